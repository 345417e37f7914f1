package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

const (
	testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testIV  = "000102030405060708090a0b0c0d0e0f"
)

func newTestEncryptor(t *testing.T) *Encryptor {
	t.Helper()
	e, err := NewEncryptor(testKey, testIV)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	return e
}

func TestNewEncryptorValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		iv   string
	}{
		{"short key", "00010203", testIV},
		{"short IV", testKey, "0001"},
		{"key not hex", strings.Repeat("zz", 32), testIV},
		{"iv not hex", testKey, strings.Repeat("zz", 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEncryptor(tt.key, tt.iv); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e := newTestEncryptor(t)

	tests := []string{
		"hello",
		"",
		"exactly sixteen!",
		strings.Repeat("long message ", 100),
		"mixed scripts: héllo, привет, 你好, 👋",
	}
	for _, plaintext := range tests {
		ciphertext, err := e.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}
		if ciphertext == plaintext && plaintext != "" {
			t.Errorf("ciphertext equals plaintext for %q", plaintext)
		}

		got, err := e.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", plaintext, err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestCiphertextIsBase64(t *testing.T) {
	e := newTestEncryptor(t)
	ciphertext, err := e.Encrypt("some message")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		t.Fatalf("ciphertext is not base64: %v", err)
	}
	if len(raw)%16 != 0 {
		t.Errorf("ciphertext length %d is not block aligned", len(raw))
	}
}

func TestEncryptDeterministicPerDeployment(t *testing.T) {
	// Key and IV are fixed, so the same plaintext encrypts identically
	// and a second instance with the same config can decrypt it.
	a := newTestEncryptor(t)
	b := newTestEncryptor(t)

	c1, err := a.Encrypt("same message")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	c2, err := a.Encrypt("same message")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if c1 != c2 {
		t.Error("same plaintext should produce the same ciphertext")
	}

	got, err := b.Decrypt(c1)
	if err != nil {
		t.Fatalf("Decrypt on second instance: %v", err)
	}
	if got != "same message" {
		t.Errorf("got %q, want %q", got, "same message")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	e := newTestEncryptor(t)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"empty", ""},
		{"not block aligned", base64.StdEncoding.EncodeToString([]byte("short"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Decrypt(tt.input); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	e := newTestEncryptor(t)
	other, err := NewEncryptor(strings.Repeat("ab", 32), testIV)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	ciphertext, err := e.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := other.Decrypt(ciphertext)
	if err == nil && got == "secret" {
		t.Error("wrong key must not recover the plaintext")
	}
}
