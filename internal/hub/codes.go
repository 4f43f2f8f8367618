package hub

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet excludes ambiguous characters: 0, O, 1, I, L.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the join code length when none is configured.
const DefaultCodeLength = 4

// GenerateCode returns a random join code of the given length drawn from an
// unambiguous alphabet.
//
// Precondition: length > 0.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}
	code := make([]byte, length)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating join code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// NormalizeCode canonicalises user-typed join codes: all whitespace is
// removed and letters are upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}
