package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/domain"
)

var fast = Policy{MaxRetries: 3, Base: time.Millisecond}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, nil, "upsert", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, nil, "ensure", func(context.Context) error {
		calls++
		return fmt.Errorf("collection: %w", domain.ErrDimensionMismatch)
	})
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("503")
	err := Do(context.Background(), fast, nil, "embed", func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.False(t, ShouldRetry(fmt.Errorf("x: %w", domain.ErrInvalidDocument)))
	assert.True(t, ShouldRetry(errors.New("timeout")))
}
