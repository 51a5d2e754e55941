package token_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/entryway-auth/entryway/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSafeGenerator(t *testing.T) {
	gen := token.URLSafeGenerator{}

	tok, err := gen.Generate()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, token.DefaultTokenBytes)

	other, err := gen.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestURLSafeGeneratorCustomBytes(t *testing.T) {
	gen := token.URLSafeGenerator{Bytes: 16}

	tok, err := gen.Generate()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
}

func TestShortCodeGenerator(t *testing.T) {
	gen := token.ShortCodeGenerator{}

	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	for i := 0; i < 50; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		assert.Len(t, code, token.ShortCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(alphabet, r), "code %q uses char outside alphabet", code)
		}
	}
}
