package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// AESEncryptionService implements ports.EncryptionService using AES-256-GCM.
// Encrypt always uses the current key; Decrypt also tries retired keys so
// stored account numbers survive a rotation.
type AESEncryptionService struct {
	current cipher.AEAD
	retired []cipher.AEAD
}

// NewAESEncryptionService creates a new AES-256-GCM encryption service.
// Each key must be a 64-character hex string (32 bytes decoded).
func NewAESEncryptionService(hexKey string, retiredHexKeys ...string) (*AESEncryptionService, error) {
	current, err := newGCM(hexKey)
	if err != nil {
		return nil, err
	}
	svc := &AESEncryptionService{current: current}
	for i, k := range retiredHexKeys {
		aead, err := newGCM(k)
		if err != nil {
			return nil, fmt.Errorf("retired key %d: %w", i, err)
		}
		svc.retired = append(svc.retired, aead)
	}
	return svc, nil
}

func newGCM(hexKey string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding AES key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("AES key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}

// Encrypt returns hex(nonce || ciphertext).
func (s *AESEncryptionService) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.current.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := s.current.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt under the current or a retired key.
func (s *AESEncryptionService) Decrypt(ciphertextHex string) (string, error) {
	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	var errs []error
	for _, aead := range append([]cipher.AEAD{s.current}, s.retired...) {
		nonceSize := aead.NonceSize()
		if len(raw) < nonceSize {
			return "", fmt.Errorf("ciphertext too short")
		}
		plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
		if err == nil {
			return string(plaintext), nil
		}
		errs = append(errs, err)
	}
	return "", fmt.Errorf("decrypting: %w", errors.Join(errs...))
}
