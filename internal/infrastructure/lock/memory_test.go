package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_ExclusiveAndReleased(t *testing.T) {
	l := NewMemoryLocker(Options{Retries: 0})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	assert.True(t, l.Held("a"))

	_, err = l.Acquire(ctx, "a")
	assert.True(t, errors.Is(err, shared.ErrConflict))

	other, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	other()

	release()
	release() // second call is a no-op
	assert.False(t, l.Held("a"))

	again, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	again()
}

func TestMemoryLocker_WaitsForRelease(t *testing.T) {
	l := NewMemoryLocker(Options{Retries: 50, MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	go func() {
		time.Sleep(10 * time.Millisecond)
		release()
	}()

	second, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	second()
}

func TestMemoryLocker_ContextCancelled(t *testing.T) {
	l := NewMemoryLocker(Options{Retries: 100, MinBackoff: 50 * time.Millisecond, MaxBackoff: 50 * time.Millisecond})
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryLocker_MutualExclusionUnderContention(t *testing.T) {
	l := NewMemoryLocker(Options{Retries: 1000, MinBackoff: 100 * time.Microsecond, MaxBackoff: time.Millisecond})
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "hot")
			if err != nil {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(100 * time.Microsecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.False(t, l.Held("hot"))
}

func TestOptions_Backoff(t *testing.T) {
	o := Options{MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}.withDefaults()
	assert.Equal(t, time.Millisecond, o.backoff(0))
	assert.Equal(t, 4*time.Millisecond, o.backoff(2))
	assert.Equal(t, 5*time.Millisecond, o.backoff(3))
	assert.Equal(t, 5*time.Millisecond, o.backoff(70))
}
