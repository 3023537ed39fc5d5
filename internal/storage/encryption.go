package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

// encryptedMagic prefixes encrypted backup files.
const encryptedMagic = "NFTRENC1"

const (
	saltSize  = 16
	keySize   = 32 // AES-256
	gcmTagLen = 16
)

// ErrDecrypt is returned when a backup cannot be decrypted, either because
// the password is wrong or the data was modified.
var ErrDecrypt = errors.New("decryption failed")

// KeyParams are the argon2id cost parameters used to derive backup keys.
type KeyParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKeyParams follows the RFC 9106 second recommended option.
func DefaultKeyParams() KeyParams {
	return KeyParams{Time: 3, Memory: 64 * 1024, Threads: 4}
}

func (p KeyParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptData seals plaintext with AES-256-GCM under a key derived from
// password. The output layout is salt || nonce || ciphertext.
func EncryptData(plaintext []byte, password string, params KeyParams) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("password required")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(params.derive(password, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// DecryptData reverses EncryptData.
func DecryptData(data []byte, password string, params KeyParams) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("password required")
	}
	if len(data) < saltSize {
		return nil, fmt.Errorf("%w: data too short", ErrDecrypt)
	}

	salt, rest := data[:saltSize], data[saltSize:]
	gcm, err := newGCM(params.derive(password, salt))
	if err != nil {
		return nil, err
	}

	if len(rest) < gcm.NonceSize()+gcmTagLen {
		return nil, fmt.Errorf("%w: data too short", ErrDecrypt)
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// EncryptFile writes an encrypted copy of src to dst.
func EncryptFile(src, dst, password string, params KeyParams) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}

	sealed, err := EncryptData(plaintext, password, params)
	if err != nil {
		return err
	}

	data := append([]byte(encryptedMagic), sealed...)
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// DecryptFile writes the decrypted contents of src to dst.
func DecryptFile(src, dst, password string, params KeyParams) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if !bytes.HasPrefix(data, []byte(encryptedMagic)) {
		return fmt.Errorf("%s is not an encrypted backup", src)
	}

	plaintext, err := DecryptData(data[len(encryptedMagic):], password, params)
	if err != nil {
		return err
	}

	if err := os.WriteFile(dst, plaintext, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// IsEncrypted reports whether path starts with the encrypted backup header.
func IsEncrypted(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, len(encryptedMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return n == len(encryptedMagic) && string(header) == encryptedMagic, nil
}
