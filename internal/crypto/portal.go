package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// EncryptPortalPassword encrypts a password for the academic-affairs
// login form. The portal hands out its public key as base64 big-endian
// modulus and exponent, and expects base64 PKCS#1 v1.5 ciphertext back.
func EncryptPortalPassword(password, modulusB64, exponentB64 string) (string, error) {
	mod, err := base64.StdEncoding.DecodeString(modulusB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode modulus: %w", err)
	}
	exp, err := base64.StdEncoding.DecodeString(exponentB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode exponent: %w", err)
	}

	key := &rsa.PublicKey{
		N: new(big.Int).SetBytes(mod),
		E: int(new(big.Int).SetBytes(exp).Int64()),
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, key, []byte(password))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt password: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
