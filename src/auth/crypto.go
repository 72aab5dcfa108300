package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// -----------------------------------------------------------------------------
// CredentialBox
// -----------------------------------------------------------------------------

// CredentialBox encrypts and decrypts stored gateway key material.
// The AEAD key is derived from the configured credential key, so rotating
// that key invalidates every stored credential.
type CredentialBox struct {
	key [32]byte
}

// -----------------------------------------------------------------------------

func NewCredentialBox(secret string) (*CredentialBox, error) {
	if secret == "" {
		return nil, fmt.Errorf("credential key cannot be empty")
	}
	b := &CredentialBox{key: sha256.Sum256([]byte(secret))}
	return b, nil
}

// -----------------------------------------------------------------------------

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (b *CredentialBox) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key[:])
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// -----------------------------------------------------------------------------

// Decrypt reverses Encrypt. A wrong key or tampered value fails cleanly.
func (b *CredentialBox) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", fmt.Errorf("cannot decrypt empty value: credentials not set")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode credentials: %w", err)
	}

	aead, err := chacha20poly1305.NewX(b.key[:])
	if err != nil {
		return "", err
	}

	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("encrypted credentials too short")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	return string(plaintext), nil
}
