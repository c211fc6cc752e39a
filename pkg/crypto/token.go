package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

// tokenBytes is the amount of entropy carried by an auth token.
const tokenBytes = 16

// NewToken returns a random hex encoded token suitable for bearer authentication.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
