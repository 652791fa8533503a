package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewIDProducesV7(t *testing.T) {
	t.Parallel()

	gen := New()
	id, err := gen.NewID()
	require.NoError(t, err)

	parsed, err := goUUID.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(7), parsed.Version())
}

// Job IDs double as a creation-ordered key in listings, which holds
// only if successive IDs sort lexically.
func TestGeneratorNewIDSortsByCreation(t *testing.T) {
	t.Parallel()

	gen := New()
	prev, err := gen.NewID()
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		next, err := gen.NewID()
		require.NoError(t, err)
		require.NotEqual(t, prev, next)
		assert.LessOrEqual(t, prev, next)
		prev = next
	}
}
