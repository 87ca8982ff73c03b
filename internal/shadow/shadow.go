// Package shadow implements the shadow envelope: an encrypted, signed
// side-channel that embeds everything an adapter could not map to the
// canonical model, so a round trip through an unrelated target
// framework can still reconstruct the original native agent bit-exactly
// (spec.md §4.8).
package shadow

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chrysalis-dev/morph-core/internal/adapter"
	"github.com/chrysalis-dev/morph-core/internal/crypto"
)

// State is a shadow's position in its lifecycle state machine:
// Absent -> Embedded -> (Verified | Rejected) -> Opened.
type State int

const (
	Absent State = iota
	Embedded
	Verified
	Rejected
	Opened
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Embedded:
		return "embedded"
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	case Opened:
		return "opened"
	default:
		return "unknown"
	}
}

// ErrInvalidKey is returned when a restoration key does not contain the
// expected "salt:auth-tag" separator.
var ErrInvalidKey = errors.New("shadow: invalid restoration key")

// Identity is the (name, designation, timestamp, id) tuple that anchors
// a shadow's derived key to a specific agent identity (spec.md §4.1).
type Identity struct {
	Name              string
	Designation       string
	TimestampUnixNano int64
	ID                string
}

// Signer abstracts over a local or remote (KMS-backed) signing key, the
// same split reasoning-graph/internal/signing and
// kernel/internal/signer/kms_signer.go expose.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	Verify(data, signature []byte) error
}

// plaintextBody is everything the shadow must be able to reconstruct:
// the original native agent plus the id of the canonical agent derived
// from it and its non-mappable fields, so open() can return
// original-agent verbatim.
type plaintextBody struct {
	OriginalAgent    map[string]interface{} `json:"original_agent"`
	CanonicalAgentID string                  `json:"canonical_agent_id"`
	NonMappable      map[string]interface{} `json:"non_mappable"`
}

// Envelope is the embedded shadow structure, stored at an adapter's
// ShadowAttachmentPath. The AEAD auth tag is deliberately not embedded
// here: it only travels inside the restoration key, so possessing the
// target native agent alone is not enough to decrypt it.
type Envelope struct {
	Ciphertext  []byte `json:"ciphertext"`
	IV          []byte `json:"iv"`
	Signature   []byte `json:"signature"`
	Fingerprint []byte `json:"fingerprint"`
	Checksum    []byte `json:"checksum"`
}

// Build constructs a shadow embedding sourceNative (plus any fields the
// source adapter could not map, carried in canonicalAgent.Extensions)
// into targetNative at attachmentPath, returning the updated target and
// a restoration key.
func Build(signer Signer, sourceNative map[string]interface{}, canonicalAgent adapter.CanonicalAgent, targetNative map[string]interface{}, attachmentPath string, identity Identity) (map[string]interface{}, string, error) {
	nonMappable := make(map[string]interface{}, len(canonicalAgent.Extensions))
	for _, ext := range canonicalAgent.Extensions {
		nonMappable[ext.SourcePath] = ext.Value
	}

	body := plaintextBody{
		OriginalAgent:    sourceNative,
		CanonicalAgentID: canonicalAgent.AgentURI,
		NonMappable:      nonMappable,
	}
	plaintext, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("shadow: marshal body: %w", err)
	}
	checksum := crypto.Hash(plaintext)

	fingerprint := crypto.Fingerprint(identity.Name, identity.Designation, identity.TimestampUnixNano, identity.ID)
	salt, err := crypto.RandomSalt(16)
	if err != nil {
		return nil, "", fmt.Errorf("shadow: random salt: %w", err)
	}
	key := crypto.DeriveKey(fingerprint, salt, crypto.MinPBKDF2Iterations)

	ciphertext, iv, authTag, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return nil, "", fmt.Errorf("shadow: encrypt: %w", err)
	}

	signed := signPayload(ciphertext, iv, authTag, fingerprint[:])
	signature, err := signer.Sign(signed)
	if err != nil {
		return nil, "", fmt.Errorf("shadow: sign: %w", err)
	}

	env := Envelope{
		Ciphertext:  ciphertext,
		IV:          iv,
		Signature:   signature,
		Fingerprint: fingerprint[:],
		Checksum:    checksum[:],
	}

	target := make(map[string]interface{}, len(targetNative)+1)
	for k, v := range targetNative {
		target[k] = v
	}
	target[attachmentPath] = env

	restorationKey := base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(authTag)
	return target, restorationKey, nil
}

func signPayload(ciphertext, iv, authTag, fingerprint []byte) []byte {
	buf := make([]byte, 0, len(ciphertext)+len(iv)+len(authTag)+len(fingerprint))
	buf = append(buf, ciphertext...)
	buf = append(buf, iv...)
	buf = append(buf, authTag...)
	buf = append(buf, fingerprint...)
	return buf
}

// Open verifies and decrypts a shadow embedded at attachmentPath,
// returning the original source native agent. State transitions:
// signature failure -> Rejected (AuthenticityFail); AEAD failure ->
// Rejected (IntegrityFail); success -> Opened.
func Open(signer Signer, targetWithShadow map[string]interface{}, attachmentPath, restorationKey string) (map[string]interface{}, State, error) {
	raw, ok := targetWithShadow[attachmentPath]
	if !ok {
		return nil, Absent, fmt.Errorf("shadow: no shadow at %q", attachmentPath)
	}
	env, err := normalizeEnvelope(raw)
	if err != nil {
		return nil, Absent, fmt.Errorf("shadow: attachment at %q: %w", attachmentPath, err)
	}

	salt, authTag, err := parseRestorationKey(restorationKey)
	if err != nil {
		return nil, Embedded, err
	}

	signed := signPayload(env.Ciphertext, env.IV, authTag, env.Fingerprint)
	if err := signer.Verify(signed, env.Signature); err != nil {
		return nil, Rejected, crypto.ErrAuthenticityFail
	}

	fingerprint := [32]byte{}
	copy(fingerprint[:], env.Fingerprint)
	key := crypto.DeriveKey(fingerprint, salt, crypto.MinPBKDF2Iterations)

	plaintext, err := crypto.Decrypt(env.Ciphertext, env.IV, authTag, key)
	if err != nil {
		return nil, Rejected, crypto.ErrIntegrityFail
	}

	checksum := crypto.Hash(plaintext)
	if !bytesEqual(checksum[:], env.Checksum) {
		return nil, Rejected, crypto.ErrIntegrityFail
	}

	var body plaintextBody
	if err := json.Unmarshal(plaintext, &body); err != nil {
		return nil, Rejected, fmt.Errorf("shadow: unmarshal body: %w", err)
	}

	return body.OriginalAgent, Opened, nil
}

// normalizeEnvelope recovers an Envelope from whatever is actually
// stored at the attachment path. The common case after Build is a live
// Envelope struct, but any caller that serializes the target native
// agent (HTTP response, store write, handoff to the target framework)
// and later deserializes it back gets a map[string]interface{} instead
// -- encoding/json has no way to know the attachment was ever a typed
// struct. Routing the map back through JSON decodes its base64-encoded
// byte slices into an Envelope the same way the original marshal would
// have produced them directly.
func normalizeEnvelope(raw interface{}) (Envelope, error) {
	switch v := raw.(type) {
	case Envelope:
		return v, nil
	case map[string]interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return Envelope{}, fmt.Errorf("re-encode envelope: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(encoded, &env); err != nil {
			return Envelope{}, fmt.Errorf("decode envelope: %w", err)
		}
		return env, nil
	default:
		return Envelope{}, fmt.Errorf("is not a shadow envelope")
	}
}

func parseRestorationKey(key string) (salt, authTag []byte, err error) {
	idx := strings.Index(key, ":")
	if idx < 0 {
		return nil, nil, ErrInvalidKey
	}
	salt, err = base64.StdEncoding.DecodeString(key[:idx])
	if err != nil {
		return nil, nil, ErrInvalidKey
	}
	authTag, err = base64.StdEncoding.DecodeString(key[idx+1:])
	if err != nil {
		return nil, nil, ErrInvalidKey
	}
	return salt, authTag, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
