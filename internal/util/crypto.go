package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// Sealed fields (receipt payloads, audit metadata) are stored as
// base64(nonce || AES-256-GCM ciphertext). The configured key is stretched to
// 32 bytes with SHA-256, so any non-empty secret works.

var errNotSealed = errors.New("value is not a sealed field")

func fieldAEAD(key string) (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("field cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptField seals plain. With no key, or nothing to hide, the value is stored as is.
func EncryptField(key, plain string) (string, error) {
	if plain == "" || key == "" {
		return plain, nil
	}
	aead, err := fieldAEAD(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("field nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, []byte(plain), nil)), nil
}

// OpenField reverses EncryptField and fails on anything it did not seal with key.
func OpenField(key, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errNotSealed
	}
	aead, err := fieldAEAD(key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", errNotSealed
	}
	n := aead.NonceSize()
	plain, err := aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("open field: %w", err)
	}
	return string(plain), nil
}

// DecryptField is the lenient read path: values that were stored before a key was
// configured, or that do not open, come back unchanged.
func DecryptField(key, sealed string) string {
	if sealed == "" || key == "" {
		return sealed
	}
	plain, err := OpenField(key, sealed)
	if err != nil {
		return sealed
	}
	return plain
}
