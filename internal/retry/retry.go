// Package retry applies the store failure policy: transient errors are
// retried exactly once, everything else surfaces to the caller.
package retry

import (
	"context"
	"log/slog"

	"github.com/rezkam/growmaster/internal/domain"
)

// Once runs fn and, if it fails with a transient store error, runs it one
// more time. The second outcome is final. Cancelled contexts are never
// retried.
func Once[T any](ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || !domain.IsTransient(err) || ctx.Err() != nil {
		return v, err
	}

	slog.WarnContext(ctx, "transient store failure, retrying once", "operation", op, "error", err)
	return fn(ctx)
}
