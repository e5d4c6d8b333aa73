package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptPortalPassword(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	modB64 := base64.StdEncoding.EncodeToString(key.N.Bytes())
	expB64 := base64.StdEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes())

	encrypted, err := EncryptPortalPassword("my-secret-password", modB64, expB64)
	require.NoError(t, err)

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	assert.Len(t, ciphertext, 128, "ciphertext should match key size")

	plaintext, err := rsa.DecryptPKCS1v15(nil, key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-password", string(plaintext))
}

func TestEncryptPortalPassword_BadKey(t *testing.T) {
	_, err := EncryptPortalPassword("pw", "not base64!!", "AQAB")
	assert.Error(t, err)

	_, err = EncryptPortalPassword("pw", "AQAB", "not base64!!")
	assert.Error(t, err)
}
