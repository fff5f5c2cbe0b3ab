// Package secretcrypt implements RustMailer's at-rest secret encryption:
// AES-256-GCM with a per-record key derived from the configured password
// via PBKDF2-HMAC-SHA256. Grounded on
// original_source/src/modules/utils/encrypt.rs.
package secretcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/sparklive/rustmailer/internal/apperr"
)

const (
	pbkdf2Iterations = 100_000
	saltSize         = 32
	nonceSize        = 12
	keySize          = 32
)

// Encryptor derives a fresh AES-256-GCM key per call from a shared password.
type Encryptor struct {
	password []byte
}

func New(password string) *Encryptor {
	return &Encryptor{password: []byte(password)}
}

// Encrypt returns the URL-safe base64 of salt‖nonce‖ciphertext‖tag.
func (e *Encryptor) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", apperr.Wrap(err, apperr.InternalError, "failed to generate salt")
	}
	key := pbkdf2.Key(e.password, salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apperr.Wrap(err, apperr.InternalError, "failed to construct cipher")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return "", apperr.Wrap(err, apperr.InternalError, "failed to construct gcm")
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", apperr.Wrap(err, apperr.InternalError, "failed to generate nonce")
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt, failing with InvalidParameter when the stored
// form is malformed or the key/tag do not match.
func (e *Encryptor) Decrypt(stored string) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(stored)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidParameter, "malformed ciphertext encoding")
	}
	if len(raw) < saltSize+nonceSize {
		return nil, apperr.New(apperr.InvalidParameter, fmt.Sprintf("ciphertext too short: %d bytes", len(raw)))
	}

	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+nonceSize]
	ciphertext := raw[saltSize+nonceSize:]

	key := pbkdf2.Key(e.password, salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to construct cipher")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to construct gcm")
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidParameter, "decryption failed, wrong key or corrupt data")
	}
	return plaintext, nil
}
