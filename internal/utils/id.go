package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewID returns a 64-character hex string from a CSPRNG. Used for
// refresh tokens and other opaque identifiers.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
