package crypto

import (
	"fmt"
	"math/big"
	"strings"
)

// EncryptCheckinPassword implements the textbook RSA scheme the unified
// auth (UIAS) login page runs in the browser: the plaintext is reversed,
// its ASCII bytes are packed into one big integer, and the result of
// m^e mod n is emitted as lowercase hex padded to the modulus width.
// No padding scheme is involved, the ciphertext is deterministic.
func EncryptCheckinPassword(password, modulusHex, exponentHex string) (string, error) {
	n, ok := new(big.Int).SetString(modulusHex, 16)
	if !ok {
		return "", fmt.Errorf("failed to parse modulus hex")
	}
	e, ok := new(big.Int).SetString(exponentHex, 16)
	if !ok {
		return "", fmt.Errorf("failed to parse exponent hex")
	}

	reversed := reverseString(password)

	m := new(big.Int)
	for _, r := range reversed {
		if r > 0xff {
			return "", fmt.Errorf("password contains non-ASCII character %q", r)
		}
		m.Lsh(m, 8)
		m.Or(m, big.NewInt(int64(r)))
	}
	if m.Cmp(n) >= 0 {
		return "", fmt.Errorf("password too long for modulus")
	}

	c := new(big.Int).Exp(m, e, n)

	width := len(strings.TrimPrefix(modulusHex, "00"))
	hex := c.Text(16)
	if pad := width - len(hex); pad > 0 {
		hex = strings.Repeat("0", pad) + hex
	}
	return hex, nil
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
