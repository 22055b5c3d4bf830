// internal/lobby/code_test.go
package lobby

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintProducesValidCodes(t *testing.T) {
	m := NewCodeMint(4)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := m.Mint(nil)
		require.Len(t, code, 4)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q in code %s", c, code)
		}
		seen[code] = true
	}
	// 200 random draws over a 32^4 space should essentially never all collide.
	assert.Greater(t, len(seen), 190)
}

// TestMintCollisionFallback forces every random draw to collide and checks the
// counter fallback still yields well-formed, mutually distinct codes.
func TestMintCollisionFallback(t *testing.T) {
	m := NewCodeMint(4)
	alwaysTaken := func(string) bool { return true }

	first := m.Mint(alwaysTaken)
	second := m.Mint(alwaysTaken)

	require.True(t, ValidCode(first, 4), "fallback code %q is malformed", first)
	require.True(t, ValidCode(second, 4), "fallback code %q is malformed", second)
	assert.NotEqual(t, first, second, "consecutive fallback codes must differ")
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("ABCD", 4))
	assert.True(t, ValidCode("2345", 4))
	assert.False(t, ValidCode("ABC", 4), "wrong length")
	assert.False(t, ValidCode("ABCDE", 4), "wrong length")
	assert.False(t, ValidCode("AB0D", 4), "0 is not in the alphabet")
	assert.False(t, ValidCode("ABO1", 4), "O and 1 are not in the alphabet")
	assert.False(t, ValidCode("abcd", 4), "codes are upper-case only")
}
