package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_Unlimited(t *testing.T) {
	q := NewQuotaEnforcer(0)
	for range 1000 {
		require.NoError(t, q.Check("r"))
	}
	assert.Equal(t, 1000, q.Current())
	assert.Equal(t, 0, q.MaxFirings())

	assert.Equal(t, 0, NewQuotaEnforcer(-5).MaxFirings())
}

func TestQuotaEnforcer_Limit(t *testing.T) {
	q := NewQuotaEnforcer(3)
	for range 3 {
		require.NoError(t, q.Check("r"))
	}

	err := q.Check("loop")
	require.Error(t, err)

	var fe *FiringsExceededError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "loop", fe.Rule)
	assert.Equal(t, 4, fe.Firings)
	assert.Equal(t, 3, fe.Limit)
	assert.True(t, IsQuotaError(err))
	assert.True(t, IsFiringsExceededError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsInvariantError(err))
}
