package shadow

import (
	"encoding/json"
	"testing"

	"github.com/chrysalis-dev/morph-core/internal/adapter"
	"github.com/chrysalis-dev/morph-core/internal/crypto"
)

func testIdentity() Identity {
	return Identity{
		Name:              "research-agent",
		Designation:       "usa",
		TimestampUnixNano: 1700000000000000000,
		ID:                "agent-1",
	}
}

func buildFixture(t *testing.T) (Signer, map[string]interface{}, string) {
	t.Helper()
	signer, err := NewLocalSigner()
	if err != nil {
		t.Fatalf("new local signer: %v", err)
	}
	source := map[string]interface{}{
		"identity": map[string]interface{}{"name": "research-agent"},
		"quirk":    "framework-specific-field",
	}
	canonicalAgent := adapter.CanonicalAgent{
		AgentURI: "https://chrysalis.dev/agents/agent-1",
		Extensions: []adapter.ExtensionProperty{
			{Namespace: "ns", Property: "quirk", Value: "framework-specific-field", SourcePath: "quirk"},
		},
	}
	target := map[string]interface{}{"title": "support-agent"}

	withShadow, key, err := Build(signer, source, canonicalAgent, target, "_shadow", testIdentity())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return signer, withShadow, key
}

func TestBuildOpenRoundTrip(t *testing.T) {
	signer, withShadow, key := buildFixture(t)

	original, state, err := Open(signer, withShadow, "_shadow", key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if state != Opened {
		t.Fatalf("expected state Opened, got %v", state)
	}
	identity, ok := original["identity"].(map[string]interface{})
	if !ok || identity["name"] != "research-agent" {
		t.Fatalf("expected original identity preserved, got %#v", original["identity"])
	}
	if original["quirk"] != "framework-specific-field" {
		t.Fatalf("expected quirk preserved, got %#v", original["quirk"])
	}
}

// TestOpenAcceptsEnvelopeAfterJSONRoundTrip exercises the realistic path:
// the target native agent gets serialized (an HTTP response, a store
// write, a handoff to the target framework) and later deserialized
// before Open is called on it. Once decoded from JSON the attachment is
// a map[string]interface{}, not the original Envelope struct.
func TestOpenAcceptsEnvelopeAfterJSONRoundTrip(t *testing.T) {
	signer, withShadow, key := buildFixture(t)

	serialized, err := json.Marshal(withShadow)
	if err != nil {
		t.Fatalf("marshal target: %v", err)
	}
	var roundTripped map[string]interface{}
	if err := json.Unmarshal(serialized, &roundTripped); err != nil {
		t.Fatalf("unmarshal target: %v", err)
	}
	if _, ok := roundTripped["_shadow"].(Envelope); ok {
		t.Fatalf("expected attachment to decode as a map, not an Envelope")
	}

	original, state, err := Open(signer, roundTripped, "_shadow", key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if state != Opened {
		t.Fatalf("expected state Opened, got %v", state)
	}
	if original["quirk"] != "framework-specific-field" {
		t.Fatalf("expected quirk preserved, got %#v", original["quirk"])
	}
}

func TestOpenAbsentShadow(t *testing.T) {
	signer, err := NewLocalSigner()
	if err != nil {
		t.Fatalf("new local signer: %v", err)
	}
	_, state, err := Open(signer, map[string]interface{}{}, "_shadow", "x:y")
	if state != Absent || err == nil {
		t.Fatalf("expected Absent with error, got state=%v err=%v", state, err)
	}
}

func TestOpenRejectsTamperedSignature(t *testing.T) {
	signer, withShadow, key := buildFixture(t)

	env := withShadow["_shadow"].(Envelope)
	tampered := env
	sig := make([]byte, len(env.Signature))
	copy(sig, env.Signature)
	sig[0] ^= 0xFF
	tampered.Signature = sig
	withShadow["_shadow"] = tampered

	_, state, err := Open(signer, withShadow, "_shadow", key)
	if state != Rejected || err != crypto.ErrAuthenticityFail {
		t.Fatalf("expected Rejected/AuthenticityFail, got state=%v err=%v", state, err)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	signer, err := NewLocalSigner()
	if err != nil {
		t.Fatalf("new local signer: %v", err)
	}
	source := map[string]interface{}{"identity": map[string]interface{}{"name": "research-agent"}}
	canonicalAgent := adapter.CanonicalAgent{AgentURI: "https://chrysalis.dev/agents/agent-1"}
	target := map[string]interface{}{}

	withShadow, key, err := Build(signer, source, canonicalAgent, target, "_shadow", testIdentity())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	env := withShadow["_shadow"].(Envelope)
	ct := make([]byte, len(env.Ciphertext))
	copy(ct, env.Ciphertext)
	ct[0] ^= 0xFF
	env.Ciphertext = ct

	// Re-sign over the tampered ciphertext so the signature check passes
	// and the AEAD/checksum check is what actually fails.
	salt, authTag, err := parseRestorationKey(key)
	if err != nil {
		t.Fatalf("parse restoration key: %v", err)
	}
	_ = salt
	signed := signPayload(env.Ciphertext, env.IV, authTag, env.Fingerprint)
	sig, err := signer.Sign(signed)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	env.Signature = sig
	withShadow["_shadow"] = env

	_, state, err := Open(signer, withShadow, "_shadow", key)
	if state != Rejected {
		t.Fatalf("expected Rejected, got state=%v err=%v", state, err)
	}
}

func TestParseRestorationKeyRejectsMissingSeparator(t *testing.T) {
	_, _, err := parseRestorationKey("not-a-valid-key")
	if err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Absent:   "absent",
		Embedded: "embedded",
		Verified: "verified",
		Rejected: "rejected",
		Opened:   "opened",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: expected %q, got %q", state, want, got)
		}
	}
}
