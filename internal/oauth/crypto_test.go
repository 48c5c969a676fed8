package oauth

import "testing"

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := newTokenCipher("MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=") // 32 raw bytes, base64
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}
	ciphertext, err := c.Encrypt("super-secret-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ciphertext == "super-secret-token" {
		t.Fatalf("expected ciphertext to differ from plaintext")
	}
	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "super-secret-token" {
		t.Fatalf("expected round-trip to recover plaintext, got %q", plaintext)
	}
}

func TestTokenCipherPlaintextModeWhenKeyEmpty(t *testing.T) {
	c, err := newTokenCipher("")
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}
	ciphertext, err := c.Encrypt("plain")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ciphertext != "plain" {
		t.Fatalf("expected identity encryption in dev mode, got %q", ciphertext)
	}
}

func TestPKCEChallengeIsDeterministicFromVerifier(t *testing.T) {
	verifier, err := generateVerifier()
	if err != nil {
		t.Fatalf("generate verifier: %v", err)
	}
	c1 := challengeFromVerifier(verifier)
	c2 := challengeFromVerifier(verifier)
	if c1 != c2 {
		t.Fatalf("expected deterministic challenge for the same verifier")
	}
	if c1 == verifier {
		t.Fatalf("expected challenge to differ from verifier")
	}
}

func TestGenerateStateIsUnique(t *testing.T) {
	a, err := generateState()
	if err != nil {
		t.Fatalf("generate state: %v", err)
	}
	b, err := generateState()
	if err != nil {
		t.Fatalf("generate state: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct random states")
	}
}
