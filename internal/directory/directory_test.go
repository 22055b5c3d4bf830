// internal/directory/directory_test.go
package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackName(t *testing.T) {
	assert.Equal(t, "Player_a1b2", FallbackName("a1b2c3d4"))
	assert.Equal(t, "Player_ab", FallbackName("ab"))
	assert.Equal(t, "Player_", FallbackName(""))
}

func TestStaticDirectoryAlwaysFallsBack(t *testing.T) {
	name, err := StaticDirectory{}.Resolve(context.Background(), "device-123")
	require.NoError(t, err)
	assert.Equal(t, "Player_devi", name)
}
