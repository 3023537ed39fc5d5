package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fastParams keeps key derivation cheap in tests.
var fastParams = KeyParams{Time: 1, Memory: 1024, Threads: 1}

func TestEncryptDecryptData(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		password  string
	}{
		{"simple text", "token 42: legendary", "test-password"},
		{"empty", "", "test-password"},
		{"binary", string(make([]byte, 4096)), "another-password"},
		{"unicode", "Fond: Dorée ✨", "pässwörd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := EncryptData([]byte(tt.plaintext), tt.password, fastParams)
			if err != nil {
				t.Fatalf("EncryptData() error = %v", err)
			}
			if len(tt.plaintext) > 0 && bytes.Contains(sealed, []byte(tt.plaintext)) {
				t.Error("ciphertext contains the plaintext")
			}

			plain, err := DecryptData(sealed, tt.password, fastParams)
			if err != nil {
				t.Fatalf("DecryptData() error = %v", err)
			}
			if string(plain) != tt.plaintext {
				t.Errorf("round trip mismatch")
			}
		})
	}
}

func TestDecryptData_Failures(t *testing.T) {
	sealed, err := EncryptData([]byte("secret"), "right", fastParams)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecryptData(sealed, "wrong", fastParams); !errors.Is(err, ErrDecrypt) {
		t.Errorf("wrong password: expected ErrDecrypt, got %v", err)
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	if _, err := DecryptData(tampered, "right", fastParams); !errors.Is(err, ErrDecrypt) {
		t.Errorf("tampered data: expected ErrDecrypt, got %v", err)
	}

	if _, err := DecryptData(sealed[:10], "right", fastParams); !errors.Is(err, ErrDecrypt) {
		t.Errorf("short data: expected ErrDecrypt, got %v", err)
	}

	if _, err := EncryptData([]byte("x"), "", fastParams); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestEncryptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.db")
	enc := filepath.Join(dir, "plain.db.enc")
	out := filepath.Join(dir, "restored.db")

	if err := os.WriteFile(src, []byte("sqlite bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := EncryptFile(src, enc, "pw", fastParams); err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}

	if ok, err := IsEncrypted(enc); err != nil || !ok {
		t.Errorf("IsEncrypted(enc) = %v, %v", ok, err)
	}
	if ok, err := IsEncrypted(src); err != nil || ok {
		t.Errorf("IsEncrypted(src) = %v, %v", ok, err)
	}

	if err := DecryptFile(enc, out, "pw", fastParams); err != nil {
		t.Fatalf("DecryptFile() error = %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "sqlite bytes" {
		t.Errorf("unexpected decrypted content %q", got)
	}

	if err := DecryptFile(src, out, "pw", fastParams); err == nil {
		t.Error("expected error decrypting a plain file")
	}
}
