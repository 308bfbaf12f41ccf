package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const (
	tokenLength   = 64
	tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
)

// GenToken returns a 64-character bearer token over [0-9a-zA-Z_]. Each
// character consumes one random byte reduced modulo the alphabet size.
func GenToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}

// TokenDigest is the hex SHA-256 of a bearer token. Sessions carry the
// digest so the token itself never leaves the store.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
