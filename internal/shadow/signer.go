package shadow

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/chrysalis-dev/morph-core/internal/crypto"
)

// LocalSigner is an Ed25519 Signer backed by an in-process key pair,
// modeled after reasoning-graph/internal/signing/ed25519.go.
type LocalSigner struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewLocalSigner generates a fresh Ed25519 key pair.
func NewLocalSigner() (*LocalSigner, error) {
	pub, priv, err := crypto.GenerateSigningKey()
	if err != nil {
		return nil, fmt.Errorf("shadow: generate signing key: %w", err)
	}
	return &LocalSigner{public: pub, private: priv}, nil
}

// NewLocalSignerFromB64 loads a LocalSigner from a base64-encoded
// Ed25519 private key, for deployments that provision the key out of
// band (e.g. from a secrets manager).
func NewLocalSignerFromB64(b64Key string) (*LocalSigner, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(b64Key)
	if err != nil {
		return nil, fmt.Errorf("shadow: decode signer private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("shadow: invalid ed25519 private key length: got %d want %d", len(keyBytes), ed25519.PrivateKeySize)
	}
	priv := ed25519.PrivateKey(keyBytes)
	return &LocalSigner{public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// PublicKey returns the signer's public key, for out-of-band distribution
// to verifiers that don't share this process's key material.
func (s *LocalSigner) PublicKey() ed25519.PublicKey {
	return s.public
}

func (s *LocalSigner) Sign(data []byte) ([]byte, error) {
	return crypto.Sign(data, s.private), nil
}

func (s *LocalSigner) Verify(data, signature []byte) error {
	return crypto.Verify(data, signature, s.public)
}

var _ Signer = (*LocalSigner)(nil)
