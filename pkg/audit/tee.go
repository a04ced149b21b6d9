package audit

import (
	"context"
	"errors"
	"fmt"
)

// Tee writes every event to a primary logger and then to mirrors. Only the
// primary's result is returned; mirror failures go to onError.
type Tee struct {
	primary Logger
	mirrors []Logger
	onError func(error)
}

// NewTee builds a Tee. onError may be nil.
func NewTee(primary Logger, onError func(error), mirrors ...Logger) *Tee {
	return &Tee{primary: primary, mirrors: mirrors, onError: onError}
}

// Log records event in the primary, then in every mirror under the same ID
func (t *Tee) Log(ctx context.Context, event *AuditEvent) error {
	ensureID(event)
	if err := t.primary.Log(ctx, event); err != nil {
		return err
	}
	for i, m := range t.mirrors {
		if err := m.Log(ctx, event); err != nil && t.onError != nil {
			t.onError(fmt.Errorf("audit mirror %d: %w", i, err))
		}
	}
	return nil
}

// Close closes the primary and every mirror
func (t *Tee) Close() error {
	errs := []error{t.primary.Close()}
	for _, m := range t.mirrors {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
