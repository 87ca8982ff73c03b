package crypto

import (
	"bytes"
	"testing"
)

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("research-agent", "USA", 1700000000000000000, "id-1")
	b := Fingerprint("research-agent", "USA", 1700000000000000000, "id-1")
	if a != b {
		t.Fatalf("fingerprint not stable: %x != %x", a, b)
	}
	c := Fingerprint("research-agent", "USA", 1700000000000000001, "id-1")
	if a == c {
		t.Fatalf("fingerprint did not change with timestamp")
	}
}

func TestDeriveKeySameInputsSameKey(t *testing.T) {
	fp := Fingerprint("a", "b", 1, "c")
	salt := []byte("fixed-salt")
	k1 := DeriveKey(fp, salt, 100_000)
	k2 := DeriveKey(fp, salt, 100_000)
	if !bytes.Equal(k1, k2) {
		t.Fatalf("derive_key not deterministic")
	}
	k3 := DeriveKey(fp, []byte("other-salt"), 100_000)
	if bytes.Equal(k1, k3) {
		t.Fatalf("derive_key ignored salt")
	}
}

func TestDeriveKeyEnforcesMinIterations(t *testing.T) {
	fp := Fingerprint("a", "b", 1, "c")
	salt := []byte("s")
	low := DeriveKey(fp, salt, 1)
	floor := DeriveKey(fp, salt, MinPBKDF2Iterations)
	if !bytes.Equal(low, floor) {
		t.Fatalf("low iteration count should be raised to the floor")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	plaintext := []byte("hello shadow envelope")
	ciphertext, iv, tag, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := Decrypt(ciphertext, iv, tag, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	key := make([]byte, KeySize)
	ciphertext, iv, tag, err := Encrypt([]byte("data"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ciphertext[0] ^= 0xFF
	if _, err := Decrypt(ciphertext, iv, tag, key); err != ErrIntegrityFail {
		t.Fatalf("expected ErrIntegrityFail, got %v", err)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := make([]byte, KeySize)
	ciphertext, iv, tag, err := Encrypt([]byte("data"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	wrongKey := make([]byte, KeySize)
	wrongKey[0] = 1
	if _, err := Decrypt(ciphertext, iv, tag, wrongKey); err != ErrIntegrityFail {
		t.Fatalf("expected ErrIntegrityFail, got %v", err)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	data := []byte("ciphertext || iv || auth-tag || fingerprint")
	sig := Sign(data, priv)
	if err := Verify(data, sig, pub); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyWrongSignatureFails(t *testing.T) {
	pub, priv, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sig := Sign([]byte("data"), priv)
	if err := Verify([]byte("other data"), sig, pub); err != ErrAuthenticityFail {
		t.Fatalf("expected ErrAuthenticityFail, got %v", err)
	}
}

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("x"))
	b := Hash([]byte("x"))
	if a != b {
		t.Fatalf("hash not deterministic")
	}
}
