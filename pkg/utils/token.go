package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// NewToken returns a random hex token of n bytes (2n characters).
func NewToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NormalizeEmail trims and lower-cases an address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
