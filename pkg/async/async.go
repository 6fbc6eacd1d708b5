// ABOUTME: Asynchronous twins for blocking store and repository calls
// ABOUTME: Go starts a call on its own goroutine, Await collects it

package async

import "context"

// Result carries the outcome of one asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Go runs fn on a new goroutine and delivers its result on the returned
// channel, which receives exactly one value and is then closed. fn sees
// ctx, so cancelling ctx cancels the call the same way it would the
// blocking form.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

// Do is Go for calls that return only an error.
func Do(ctx context.Context, fn func(context.Context) error) <-chan Result[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// Await waits for the result or for ctx to end, whichever comes first.
func Await[T any](ctx context.Context, ch <-chan Result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
