package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Generator produces plaintext tokens. Implementations must draw from a
// cryptographically secure random source; uniqueness across sessions is the
// caller's responsibility (the creation loop retries on digest collisions).
type Generator interface {
	Generate() (string, error)
}

// URLSafeGenerator produces unpadded URL-safe base64 strings for
// machine-delivered magic links.
type URLSafeGenerator struct {
	// Bytes of entropy per token. Zero means DefaultTokenBytes.
	Bytes int
}

// DefaultTokenBytes is the entropy of a URL-safe token.
const DefaultTokenBytes = 32

// Generate implements Generator.
func (g URLSafeGenerator) Generate() (string, error) {
	n := g.Bytes
	if n <= 0 {
		n = DefaultTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// shortCodeAlphabet omits 0/O/1/I so codes survive being read aloud or typed
// from a phone screen.
const shortCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ShortCodeLength is the length of a human-typable confirmation code.
const ShortCodeLength = 6

// ShortCodeGenerator produces short alphanumeric confirmation codes for flows
// where the user types the token instead of clicking a link.
type ShortCodeGenerator struct {
	// Length of the code. Zero means ShortCodeLength.
	Length int
}

// Generate implements Generator.
func (g ShortCodeGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = ShortCodeLength
	}
	max := big.NewInt(int64(len(shortCodeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading random index: %w", err)
		}
		code[i] = shortCodeAlphabet[idx.Int64()]
	}
	return string(code), nil
}
