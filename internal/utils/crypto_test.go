package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	for _, plain := range []string{"a", "alice@example.com", "exactly16bytes!!", strings.Repeat("x", 100)} {
		enc, err := Encrypt(plain, key)
		require.NoError(t, err)
		assert.NotContains(t, enc, plain)

		dec, err := Decrypt(enc, key)
		require.NoError(t, err)
		assert.Equal(t, plain, dec)
	}

	t.Run("random IV", func(t *testing.T) {
		a, err := Encrypt("alice@example.com", key)
		require.NoError(t, err)
		b, err := Encrypt("alice@example.com", key)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("wrong key fails or differs", func(t *testing.T) {
		enc, err := Encrypt("alice@example.com", key)
		require.NoError(t, err)
		dec, err := Decrypt(enc, []byte("fedcba9876543210fedcba9876543210"))
		if err == nil {
			assert.NotEqual(t, "alice@example.com", dec)
		}
	})
}

func TestEncryptRejectsBadInput(t *testing.T) {
	_, err := Encrypt("", []byte("0123456789abcdef"))
	assert.Error(t, err)

	_, err = Encrypt("data", []byte("short"))
	assert.Error(t, err)

	_, err = Decrypt("", []byte("0123456789abcdef"))
	assert.Error(t, err)

	_, err = Decrypt("not-hex", []byte("0123456789abcdef"))
	assert.Error(t, err)

	_, err = Decrypt("00112233", []byte("0123456789abcdef"))
	assert.Error(t, err)
}
