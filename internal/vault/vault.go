// Package vault encrypts and decrypts mail account credentials. No
// other package handles plaintext secrets; the registry only ever
// stores the encrypted blob.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
)

// KeySize is the required AES-256 key length in bytes.
const KeySize = 32

// Blob is an encrypted credential: a fresh random IV plus the
// CBC ciphertext. The IV is not secret and is stored alongside the
// ciphertext as its own column.
type Blob struct {
	IV         []byte
	Ciphertext []byte
}

// Encode serializes the blob as iv || ciphertext for callers that need
// a single opaque value.
func (b Blob) Encode() []byte {
	out := make([]byte, 0, len(b.IV)+len(b.Ciphertext))
	out = append(out, b.IV...)
	return append(out, b.Ciphertext...)
}

// DecodeBlob splits an iv || ciphertext value back into a Blob.
func DecodeBlob(raw []byte) (Blob, error) {
	if len(raw) < aes.BlockSize {
		return Blob{}, fmt.Errorf("blob shorter than IV: %w", apperrors.ErrCorruptBlob)
	}
	return Blob{IV: raw[:aes.BlockSize], Ciphertext: raw[aes.BlockSize:]}, nil
}

// Vault performs symmetric encryption with a process-wide key loaded
// once at startup. The key is never logged and never persisted.
type Vault struct {
	key []byte
}

// New creates a Vault from a 32-byte AES key.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}
	v := &Vault{key: make([]byte, KeySize)}
	copy(v.key, key)
	return v, nil
}

// Encrypt encrypts plaintext under a freshly generated IV.
func (v *Vault) Encrypt(plaintext string) (Blob, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Blob{}, fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return Blob{IV: iv, Ciphertext: ciphertext}, nil
}

// Decrypt recovers the plaintext from a blob. A malformed IV or
// ciphertext segment returns ErrCorruptBlob; a padding failure after
// decryption returns ErrKeyMismatch, since that is what decrypting
// with the wrong key (or tampered ciphertext) looks like under CBC.
func (v *Vault) Decrypt(blob Blob) (string, error) {
	if len(blob.IV) != aes.BlockSize {
		return "", fmt.Errorf("IV must be %d bytes, got %d: %w", aes.BlockSize, len(blob.IV), apperrors.ErrCorruptBlob)
	}
	if len(blob.Ciphertext) == 0 || len(blob.Ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext length %d not a block multiple: %w", len(blob.Ciphertext), apperrors.ErrCorruptBlob)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	padded := make([]byte, len(blob.Ciphertext))
	cipher.NewCBCDecrypter(block, blob.IV).CryptBlocks(padded, blob.Ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, apperrors.ErrKeyMismatch)
	}
	return string(plaintext), nil
}

// pkcs7Pad appends PKCS#7 padding up to the block size.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad validates and strips PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
