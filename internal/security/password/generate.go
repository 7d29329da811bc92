package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	letters = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	symbols = "!@#$%^&*()-_=+[]{}"
)

// Generate produces a random password of the given length containing at
// least minSymbols non-alphanumeric characters, for reset flows. Ambiguous
// glyphs (0/O, 1/l/I) are excluded from the letter set.
func Generate(length, minSymbols int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("password length must be positive, got %d", length)
	}
	if minSymbols > length {
		minSymbols = length
	}

	out := make([]byte, length)
	for i := range out {
		pool := letters
		if i < minSymbols {
			pool = symbols
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = pool[n.Int64()]
	}

	// Shuffle so the required symbols are not clustered at the front.
	for i := len(out) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		j := n.Int64()
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}
