package secretcrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc := New("correct horse battery staple")

	plain := []byte("super-secret-imap-password")
	ciphertext, err := enc.Encrypt(plain)
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)
	assert.NotContains(t, ciphertext, "super-secret-imap-password")

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plain, decrypted)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	enc := New("password")
	a, err := enc.Encrypt([]byte("same input"))
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("same input"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh salt/nonce per call should make ciphertexts differ")
}

func TestDecryptWithWrongPasswordFails(t *testing.T) {
	ciphertext, err := New("password-one").Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = New("password-two").Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestDecryptMalformedInputFails(t *testing.T) {
	_, err := New("password").Decrypt("not-valid-base64!!!")
	assert.Error(t, err)
}
