package docstore

import (
	"context"
	"errors"
	"time"
)

// Observer receives one call per store operation
type Observer interface {
	ObserveStorage(collection, operation, status string, d time.Duration)
}

// Instrumented reports the outcome and latency of every call to an Observer
type Instrumented[T Entity] struct {
	next     Collection[T]
	name     string
	observer Observer
}

// Instrument wraps next so every call is reported under name
func Instrument[T Entity](next Collection[T], name string, observer Observer) *Instrumented[T] {
	return &Instrumented[T]{next: next, name: name, observer: observer}
}

// statusOf maps an error to a low-cardinality label
func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	}
	return "error"
}

func (c *Instrumented[T]) observe(op string, start time.Time, err error) {
	c.observer.ObserveStorage(c.name, op, statusOf(err), time.Since(start))
}

// Compile-time check
var _ Collection[Entity] = (*Instrumented[Entity])(nil)

func (c *Instrumented[T]) Get(ctx context.Context, id string) (doc T, err error) {
	start := time.Now()
	defer func() { c.observe("get", start, err) }()
	return c.next.Get(ctx, id)
}

func (c *Instrumented[T]) Insert(ctx context.Context, doc T) (err error) {
	start := time.Now()
	defer func() { c.observe("insert", start, err) }()
	return c.next.Insert(ctx, doc)
}

func (c *Instrumented[T]) Replace(ctx context.Context, doc T) (err error) {
	start := time.Now()
	defer func() { c.observe("replace", start, err) }()
	return c.next.Replace(ctx, doc)
}

func (c *Instrumented[T]) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.observe("delete", start, err) }()
	return c.next.Delete(ctx, id)
}

func (c *Instrumented[T]) List(ctx context.Context, scope string) (docs []T, err error) {
	start := time.Now()
	defer func() { c.observe("list", start, err) }()
	return c.next.List(ctx, scope)
}

func (c *Instrumented[T]) DeleteScope(ctx context.Context, scope string) (n int64, err error) {
	start := time.Now()
	defer func() { c.observe("delete_scope", start, err) }()
	return c.next.DeleteScope(ctx, scope)
}
