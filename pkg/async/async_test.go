package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoDeliversValue(t *testing.T) {
	ctx := context.Background()
	v, err := Await(ctx, Go(ctx, func(context.Context) (int, error) { return 42, nil }))
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestGoDeliversError(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()
	_, err := Await(ctx, Do(ctx, func(context.Context) error { return boom }))
	assert.ErrorIs(t, err, boom)
}

func TestAwaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	ch := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	cancel()
	_, err := Await(ctx, ch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancellationReachesCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ch := Go(ctx, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	r := <-ch
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
}
