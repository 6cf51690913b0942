package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeSubject("  User@Example.COM "))
	assert.Equal(t, "", NormalizeSubject("   "))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "jo******@example.com", MaskEmail("john.doe@example.com"))
	assert.Equal(t, "**@example.com", MaskEmail("ab@example.com"))
	assert.Equal(t, "not-an-email", MaskEmail("not-an-email"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*********10", MaskPhone("+3519876510"))
	assert.Equal(t, "**", MaskPhone("12"))
}

func TestHashEmailNormalizesFirst(t *testing.T) {
	assert.Equal(t, HashEmail("user@example.com"), HashEmail(" User@EXAMPLE.com "))
	assert.Len(t, HashEmail("user@example.com"), 64)
}

func TestTruncatedHash(t *testing.T) {
	hash := TruncatedHash("some-input", 12)
	assert.Len(t, hash, 12)
	assert.Equal(t, hash, TruncatedHash("some-input", 12))
	assert.NotEqual(t, hash, TruncatedHash("other-input", 12))

	// n beyond the digest length is clamped.
	assert.Len(t, TruncatedHash("some-input", 200), 64)
}

func TestRandomDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := RandomDigits(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.GreaterOrEqual(t, code[0], byte('1'), "leading digit must not be zero")
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
	}

	empty, err := RandomDigits(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
