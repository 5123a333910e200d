package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	cserrors "github.com/sugarbait/phaeton-credsync/internal/errors"
)

// withDurableTimeout bounds a durable store call so an unreachable backend
// degrades resolution instead of hanging it.
func withDurableTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// wrapDurableTimeout turns a deadline expiry into a user-facing error with
// a concrete suggestion. Other errors pass through unchanged.
func wrapDurableTimeout(err error, backend string, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return cserrors.UserError{
			Message:    "Durable store operation timed out",
			Details:    fmt.Sprintf("Backend '%s' did not respond within %s", backend, timeout),
			Suggestion: "Check network connectivity to the durable store, or raise durable.timeout_ms in your credsync.yaml",
			Err:        err,
		}
	}
	return err
}
