package views

import (
	"context"
	"errors"

	"github.com/desertthunder/igloo/internal/query"
	"github.com/desertthunder/igloo/internal/shared"
)

// Mutate runs a server write and invalidates keys afterwards.
//
// On success the keys are invalidated so the next read is fresh. On a server failure they are
// invalidated too, so views refetch and resync with the server. Validation failures never
// reached the server and leave the cache alone.
func Mutate[In, Out any](ctx context.Context, queries *query.Client, fn func(context.Context, In) (Out, error), in In, keys ...query.Key) (Out, error) {
	out, err := fn(ctx, in)
	if err != nil && errors.Is(err, shared.ErrInvalidInput) {
		return out, err
	}
	for _, key := range keys {
		queries.Invalidate(key)
	}
	return out, err
}
