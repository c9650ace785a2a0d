// Package crypto encrypts credential values at rest with AES-256-GCM.
//
// The blob format is: version(1) || nonce(12) || ciphertext(N). Decryption
// accepts a list of candidate keys and tries each in order, so ciphertext
// produced under a retired key stays readable until re-encrypted.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// blobVersion is the version byte for the encrypted blob format.
	// This allows future format changes while maintaining backward compatibility.
	blobVersion = 0x01

	// nonceSize is the AES-GCM nonce size (12 bytes is standard)
	nonceSize = 12

	// KeySize is the required key size for AES-256
	KeySize = 32
)

var (
	// ErrInvalidKeySize is returned when an encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the encrypted blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported blob version")

	// ErrNoKeys is returned when an empty key list is supplied.
	ErrNoKeys = errors.New("no encryption keys supplied")

	// ErrDecryptionFailed is returned when no candidate key opens the blob.
	ErrDecryptionFailed = errors.New("failed to decrypt blob")
)

// Encrypt seals plaintext under the given 32-byte key.
// Format: version(1) || nonce(12) || ciphertext
func Encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	blob := make([]byte, 1+nonceSize+len(ciphertext))
	blob[0] = blobVersion
	copy(blob[1:1+nonceSize], nonce)
	copy(blob[1+nonceSize:], ciphertext)

	return blob, nil
}

// EncryptString seals a string value.
func EncryptString(s string, key []byte) ([]byte, error) {
	return Encrypt([]byte(s), key)
}

// Decrypt opens a blob, trying each candidate key in order. Keys should be
// ordered newest first; the common case opens on the first attempt.
func Decrypt(blob []byte, keys [][]byte) ([]byte, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	if len(blob) < 1+nonceSize+16 { // 16 = GCM tag overhead
		return nil, ErrInvalidBlobSize
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	nonce := blob[1 : 1+nonceSize]
	ciphertext := blob[1+nonceSize:]

	for _, key := range keys {
		gcm, err := newGCM(key)
		if err != nil {
			return nil, err
		}
		plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
		if err == nil {
			return plaintext, nil
		}
	}

	return nil, ErrDecryptionFailed
}

// DecryptString opens a blob to a string.
func DecryptString(blob []byte, keys [][]byte) (string, error) {
	plaintext, err := Decrypt(blob, keys)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
