package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Job records carry UTC timestamps, so the clock must never leak the
// host's local zone.
func TestClockNowIsUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	require.NotNil(t, clk)

	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	assert.Equal(t, time.UTC, got.Location())
	assert.False(t, got.Before(before), "timestamp %v predates %v", got, before)
	assert.False(t, got.After(after), "timestamp %v exceeds %v", got, after)
}

func TestClockNowDoesNotGoBackwards(t *testing.T) {
	t.Parallel()

	clk := New()
	submitted := clk.Now()
	updated := clk.Now()
	assert.False(t, updated.Before(submitted))
}
