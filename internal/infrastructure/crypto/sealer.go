// Package crypto seals channel credentials at rest with XChaCha20-Poly1305.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/catalogsync/backend/internal/domain/integration"
	"golang.org/x/crypto/chacha20poly1305"
)

// sealVersion is the first byte of every sealed blob
const sealVersion byte = 1

var (
	ErrInvalidKey     = errors.New("crypto: key must be 32 bytes")
	ErrSealedTooShort = errors.New("crypto: sealed credentials are truncated")
	ErrUnknownVersion = errors.New("crypto: unknown sealed credentials version")
	ErrOpenFailed     = errors.New("crypto: credentials could not be opened")
)

// CredentialSealer implements integration.CredentialSealer.
// Layout: version(1) | nonce(24) | ciphertext+tag.
type CredentialSealer struct {
	aead cipher.AEAD
}

var _ integration.CredentialSealer = (*CredentialSealer)(nil)

// NewCredentialSealer creates a sealer from a 32-byte key
func NewCredentialSealer(key []byte) (*CredentialSealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	return &CredentialSealer{aead: aead}, nil
}

// Seal encrypts the JSON form of creds under a fresh random nonce
func (s *CredentialSealer) Seal(creds integration.Credentials) ([]byte, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to encode credentials: %w", err)
	}

	out := make([]byte, 1+s.aead.NonceSize(), 1+s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	out[0] = sealVersion
	nonce := out[1:]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}
	return s.aead.Seal(out, nonce, plaintext, []byte{sealVersion}), nil
}

// Open decrypts a blob produced by Seal
func (s *CredentialSealer) Open(sealed []byte) (integration.Credentials, error) {
	header := 1 + s.aead.NonceSize()
	if len(sealed) < header+s.aead.Overhead() {
		return nil, ErrSealedTooShort
	}
	if sealed[0] != sealVersion {
		return nil, ErrUnknownVersion
	}
	nonce := sealed[1:header]
	plaintext, err := s.aead.Open(nil, nonce, sealed[header:], sealed[:1])
	if err != nil {
		return nil, ErrOpenFailed
	}

	var creds integration.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("crypto: failed to decode credentials: %w", err)
	}
	return creds, nil
}
