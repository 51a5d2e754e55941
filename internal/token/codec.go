package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// keyContext scopes the derived digest key so the application secret can be
// shared with other subsystems without key reuse.
const keyContext = "entryway.token"

const (
	keyIterations = 4096
	keyLength     = 32
)

// Algorithm selects the HMAC hash for token digests.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// ErrMissingSecret is a fatal misconfiguration: digesting without an
// application secret would make every digest forgeable.
var ErrMissingSecret = errors.New("token codec requires a non-empty secret")

// Codec computes deterministic keyed digests of plaintext tokens. The key is
// derived once from the application secret; Digest is safe for concurrent use.
type Codec struct {
	key    []byte
	hasher func() hash.Hash
}

// NewCodec derives the digest key from secret and returns a ready codec.
func NewCodec(secret string, alg Algorithm) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	var hasher func() hash.Hash
	switch alg {
	case SHA512:
		hasher = sha512.New
	case SHA256, "":
		hasher = sha256.New
	default:
		return nil, errors.New("unsupported digest algorithm: " + string(alg))
	}

	key := pbkdf2.Key([]byte(secret), []byte(keyContext), keyIterations, keyLength, sha256.New)

	return &Codec{key: key, hasher: hasher}, nil
}

// Digest returns the hex HMAC of plaintext under the derived key. Same
// plaintext and secret always produce the same digest, which is what makes
// the store's lookup-by-digest possible.
func (c *Codec) Digest(plaintext string) string {
	mac := hmac.New(c.hasher, c.key)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}
