// Package vault protects exported session material at rest with
// authenticated encryption. Records are stored as a delimited triple of
// hex-encoded fields: <nonce>:<ciphertext>:<tag>.
package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cretee/creteebot/internal/faults"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	recordSeparator = ":"
	recordFields    = 3
	tagSize         = chacha20poly1305.Overhead
)

// Vault encrypts and decrypts opaque session blobs with a process-wide key.
// It is safe for concurrent use.
type Vault struct {
	key []byte
}

// New constructs a Vault from the configured secret. The secret is
// deterministically truncated or zero-padded to the 32-byte key size, so
// short keys are accepted rather than rejected.
func New(secret string) *Vault {
	key := make([]byte, chacha20poly1305.KeySize)
	copy(key, secret)
	return &Vault{key: key}
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// at-rest record.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, errAEAD := chacha20poly1305.NewX(v.key)
	if errAEAD != nil {
		return "", fmt.Errorf("vault: init cipher: %w", errAEAD)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, errRead := rand.Read(nonce); errRead != nil {
		return "", fmt.Errorf("vault: nonce: %w", errRead)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	}, recordSeparator), nil
}

// Decrypt opens an at-rest record and returns the original plaintext.
// A malformed record or a failed authentication tag yields an integrity
// fault so callers can distinguish tampering from absence.
func (v *Vault) Decrypt(record string) (string, error) {
	parts := strings.Split(record, recordSeparator)
	if len(parts) != recordFields {
		return "", faults.Newf(faults.KindIntegrity, "vault: record has %d fields, want %d", len(parts), recordFields)
	}

	nonce, errNonce := hex.DecodeString(parts[0])
	if errNonce != nil {
		return "", faults.Wrap(faults.KindIntegrity, "vault: decode nonce", errNonce)
	}
	ciphertext, errCipher := hex.DecodeString(parts[1])
	if errCipher != nil {
		return "", faults.Wrap(faults.KindIntegrity, "vault: decode ciphertext", errCipher)
	}
	tag, errTag := hex.DecodeString(parts[2])
	if errTag != nil {
		return "", faults.Wrap(faults.KindIntegrity, "vault: decode tag", errTag)
	}

	aead, errAEAD := chacha20poly1305.NewX(v.key)
	if errAEAD != nil {
		return "", fmt.Errorf("vault: init cipher: %w", errAEAD)
	}
	if len(nonce) != aead.NonceSize() {
		return "", faults.Newf(faults.KindIntegrity, "vault: nonce is %d bytes, want %d", len(nonce), aead.NonceSize())
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, errOpen := aead.Open(nil, nonce, sealed, nil)
	if errOpen != nil {
		return "", faults.Wrap(faults.KindIntegrity, "vault: authentication failed", errOpen)
	}
	return string(plaintext), nil
}
