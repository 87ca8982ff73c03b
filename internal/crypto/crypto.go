// Package crypto provides the content hashing, key derivation, authenticated
// encryption, and signing primitives the core's shadow envelope and
// fingerprinting rely on. Inputs are always treated as UTF-8 / big-endian so
// results are bit-identical across platforms.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// MinPBKDF2Iterations is the floor spec.md §4.1 requires for derive_key.
const MinPBKDF2Iterations = 100_000

// KeySize is the derived/AEAD key size in bytes (AES-256).
const KeySize = 32

// ErrIntegrityFail is returned when an AEAD auth tag fails to verify. It is
// fatal and must never be retried (spec.md §4.1, §7).
var ErrIntegrityFail = errors.New("crypto: integrity check failed")

// ErrAuthenticityFail is returned when a signature fails to verify. Fatal,
// never retried.
var ErrAuthenticityFail = errors.New("crypto: signature verification failed")

// Hash returns the 256-bit SHA-256 content hash of data.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Fingerprint derives a stable 256-bit identity anchor from an agent's
// (name, designation, timestamp, id) tuple. The timestamp is encoded as a
// big-endian unix-nanosecond integer so the result is bit-identical across
// platforms regardless of local time.Time formatting.
func Fingerprint(name, designation string, timestampUnixNano int64, id string) [32]byte {
	var buf []byte
	buf = append(buf, []byte(name)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(designation)...)
	buf = append(buf, 0)
	var tsBytes [8]byte
	binary.BigEndian.PutUint64(tsBytes[:], uint64(timestampUnixNano))
	buf = append(buf, tsBytes[:]...)
	buf = append(buf, 0)
	buf = append(buf, []byte(id)...)
	return sha256.Sum256(buf)
}

// DeriveKey derives a 256-bit key from a fingerprint and salt via PBKDF2-HMAC-SHA256.
// iterations must be >= MinPBKDF2Iterations; callers that pass less get the
// floor silently raised so derived keys never fall below the spec's minimum.
func DeriveKey(fingerprint [32]byte, salt []byte, iterations int) []byte {
	if iterations < MinPBKDF2Iterations {
		iterations = MinPBKDF2Iterations
	}
	return pbkdf2.Key(fingerprint[:], salt, iterations, KeySize, sha256.New)
}

// RandomSalt returns n cryptographically random bytes, for use as a PBKDF2 salt.
func RandomSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: random salt: %w", err)
	}
	return salt, nil
}

// Encrypt seals plaintext under key using AES-256-GCM, returning ciphertext,
// the generated nonce (iv), and the detached auth tag.
func Encrypt(plaintext, key []byte) (ciphertext, iv, authTag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	iv = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagSize := gcm.Overhead()
	ciphertext = sealed[:len(sealed)-tagSize]
	authTag = sealed[len(sealed)-tagSize:]
	return ciphertext, iv, authTag, nil
}

// Decrypt opens ciphertext/iv/authTag under key. Any tag mismatch returns
// ErrIntegrityFail and must be treated as fatal (never retried).
func Decrypt(ciphertext, iv, authTag, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	sealed := append(append([]byte{}, ciphertext...), authTag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrIntegrityFail
	}
	return plaintext, nil
}

// GenerateSigningKey creates a new Ed25519 key pair.
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign signs data with an Ed25519 private key (RSA-2048 is an acceptable
// alternative per spec.md §4.1; this core standardizes on Ed25519, matching
// every signer in the teacher corpus).
func Sign(data []byte, priv ed25519.PrivateKey) []byte {
	return ed25519.Sign(priv, data)
}

// Verify checks a signature against data with an Ed25519 public key.
// Mismatch is fatal and must never be retried.
func Verify(data, signature []byte, pub ed25519.PublicKey) error {
	if !ed25519.Verify(pub, data, signature) {
		return ErrAuthenticityFail
	}
	return nil
}
