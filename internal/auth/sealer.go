package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var errShortCiphertext = errors.New("sealed value too short")

// Sealer encrypts API key secrets at rest with XChaCha20-Poly1305
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from secret with HKDF-SHA256
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("empty key secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("c3 api keys"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext bound to aad, usually the owner and provider.
// The nonce is prepended to the result.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open reverses Seal
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errShortCiphertext
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed value: %w", err)
	}
	return plaintext, nil
}
