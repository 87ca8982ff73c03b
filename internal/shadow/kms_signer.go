package shadow

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chrysalis-dev/morph-core/internal/crypto"
)

// KMSSigner delegates signing to an external key management service over
// HTTP, the same split kernel/internal/signer/kms_signer.go uses: the
// private key never leaves the KMS, this process only holds a cached
// public key for local verification.
type KMSSigner struct {
	endpoint    string
	client      *http.Client
	signerID    string
	bearerToken string
	publicKey   ed25519.PublicKey
}

// NewKMSSigner constructs a KMSSigner and eagerly fetches the signer's
// public key so Verify can run without a round trip per call.
func NewKMSSigner(endpoint, signerID, bearerToken string, timeout time.Duration) (*KMSSigner, error) {
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == "" {
		return nil, errors.New("shadow: kms endpoint is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ks := &KMSSigner{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: timeout},
		signerID:    signerID,
		bearerToken: bearerToken,
	}
	pub, err := ks.fetchPublicKey()
	if err != nil {
		return nil, fmt.Errorf("shadow: fetch kms public key: %w", err)
	}
	ks.publicKey = pub
	return ks, nil
}

// Sign requests a signature for data from the KMS /signData endpoint.
func (k *KMSSigner) Sign(data []byte) ([]byte, error) {
	reqBody := map[string]string{
		"signerId": k.signerID,
		"data":     base64.StdEncoding.EncodeToString(data),
	}
	var resp struct {
		Signature string `json:"signature"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.client.Timeout)
	defer cancel()
	if err := k.postJSON(ctx, k.endpoint+"/signData", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("shadow: kms signData: %w", err)
	}
	if resp.Signature == "" {
		return nil, errors.New("shadow: kms returned no signature")
	}
	sig, err := base64.StdEncoding.DecodeString(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("shadow: invalid base64 signature from kms: %w", err)
	}
	return sig, nil
}

// Verify checks signature against the cached public key fetched at
// construction time; it does not call out to the KMS.
func (k *KMSSigner) Verify(data, signature []byte) error {
	if !ed25519.Verify(k.publicKey, data, signature) {
		return crypto.ErrAuthenticityFail
	}
	return nil
}

func (k *KMSSigner) fetchPublicKey() (ed25519.PublicKey, error) {
	req := map[string]string{"signerId": k.signerID}
	var resp struct {
		PublicKey string `json:"publicKey"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.client.Timeout)
	defer cancel()
	if err := k.postJSON(ctx, k.endpoint+"/publicKey", req, &resp); err != nil {
		return nil, err
	}
	if resp.PublicKey == "" {
		return nil, errors.New("kms returned no public key")
	}
	pk, err := base64.StdEncoding.DecodeString(resp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 public key: %w", err)
	}
	if len(pk) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key length: got %d want %d", len(pk), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(pk), nil
}

func (k *KMSSigner) postJSON(ctx context.Context, url string, in, out interface{}) error {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if k.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+k.bearerToken)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("kms http %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Signer = (*KMSSigner)(nil)
