package docstore

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts bounds RetryOnConflict when callers pass zero
const DefaultMaxAttempts = 5

// ErrRetriesExhausted is returned when every attempt hit a version conflict
var ErrRetriesExhausted = errors.New("too many concurrent modifications")

// RetryOnConflict runs fn until it returns something other than ErrConflict.
// fn must reload the document itself on every attempt. The attempt number
// starts at 1.
func RetryOnConflict(ctx context.Context, maxAttempts int, fn func(ctx context.Context, attempt int) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts", ErrRetriesExhausted, maxAttempts)
}
