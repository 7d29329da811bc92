package membership

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/joshrizzo/MyLib/internal/security/password"
	"github.com/joshrizzo/MyLib/internal/security/secretbox"
)

// Format selects how passwords and answers are stored.
type Format int

const (
	// FormatHashed stores an argon2id PHC string. One-way; the default.
	FormatHashed Format = iota
	// FormatEncrypted stores an AES-GCM ciphertext, reversible with the
	// provider's key.
	FormatEncrypted
	// FormatClear stores the plaintext. Dev and migration use only.
	FormatClear
)

// ParseFormat maps the config value. Empty means hashed.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hashed":
		return FormatHashed, nil
	case "encrypted":
		return FormatEncrypted, nil
	case "clear":
		return FormatClear, nil
	default:
		return 0, fmt.Errorf("membership: password format %q not supported", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatHashed:
		return "hashed"
	case FormatEncrypted:
		return "encrypted"
	case FormatClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Codec encodes, verifies and (where the format allows) decodes stored
// credentials.
type Codec struct {
	format Format
	box    *secretbox.Box
	params password.Params
}

// NewCodec builds a codec for the format. FormatEncrypted requires a
// secretbox; the other formats ignore it.
func NewCodec(format Format, box *secretbox.Box) (*Codec, error) {
	if format == FormatEncrypted && box == nil {
		return nil, fmt.Errorf("membership: encrypted format requires an encryption key")
	}
	return &Codec{format: format, box: box, params: password.Default}, nil
}

func (c *Codec) Format() Format { return c.format }

// Encode transforms a plaintext credential into its stored form.
func (c *Codec) Encode(plain string) (string, error) {
	switch c.format {
	case FormatClear:
		return plain, nil
	case FormatEncrypted:
		return c.box.Encrypt(plain)
	case FormatHashed:
		return password.Hash(c.params, plain)
	default:
		return "", fmt.Errorf("membership: password format %d not supported", c.format)
	}
}

// Verify compares a plaintext candidate against the stored form.
func (c *Codec) Verify(plain, stored string) bool {
	switch c.format {
	case FormatClear:
		return subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) == 1
	case FormatEncrypted:
		decoded, err := c.box.Decrypt(stored)
		if err != nil {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(plain), []byte(decoded)) == 1
	case FormatHashed:
		return password.Verify(plain, stored)
	default:
		return false
	}
}

// Decode recovers the plaintext from the stored form. Hashed credentials are
// irreversible and always fail with ErrIrreversibleFormat.
func (c *Codec) Decode(stored string) (string, error) {
	switch c.format {
	case FormatClear:
		return stored, nil
	case FormatEncrypted:
		return c.box.Decrypt(stored)
	case FormatHashed:
		return "", ErrIrreversibleFormat
	default:
		return "", fmt.Errorf("membership: password format %d not supported", c.format)
	}
}
