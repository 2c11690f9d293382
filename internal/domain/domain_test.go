package domain_test

import (
	"errors"
	"postwatch/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchStateCloneDoesNotAlias(t *testing.T) {
	state := domain.WatchState{
		Users:   []string{"alice"},
		LastIDs: map[string]string{"alice": "100"},
	}

	clone := state.Clone()
	clone.Users[0] = "bob"
	clone.LastIDs["alice"] = "200"

	assert.Equal(t, "alice", state.Users[0])
	assert.Equal(t, "100", state.LastIDs["alice"])
}

func TestWatchStateNormalizeFillsNil(t *testing.T) {
	state := domain.WatchState{}.Normalize()

	assert.NotNil(t, state.Users)
	assert.NotNil(t, state.LastIDs)
	assert.Empty(t, state.Users)
}

func TestTransientErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := domain.Transient("do request", cause)

	var transient *domain.TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, "do request", transient.Detail)
	assert.ErrorIs(t, err, cause)
}
