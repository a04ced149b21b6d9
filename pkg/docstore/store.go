package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no document has the requested id
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a Replace carries a stale version
	ErrConflict = errors.New("document version conflict")
	// ErrDuplicate is returned when inserting an id that already exists
	ErrDuplicate = errors.New("document already exists")
)

// Entity is implemented by every stored document. Scope groups documents
// under a parent (usually a business id) and may be empty.
type Entity interface {
	GetID() string
	GetVersion() int64
	SetVersion(int64)
	GetScope() string
}

// Collection stores documents of one type with optimistic concurrency.
//
// Insert stores the document at version 1. Replace succeeds only when the
// document's version matches the stored one, then stores and sets version+1.
// On any error the in-memory document keeps its original version.
type Collection[T Entity] interface {
	Get(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, doc T) error
	Replace(ctx context.Context, doc T) error
	Delete(ctx context.Context, id string) error
	// List returns documents in scope; an empty scope lists everything
	List(ctx context.Context, scope string) ([]T, error)
	DeleteScope(ctx context.Context, scope string) (int64, error)
}

// IsNotFound reports whether err is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is ErrConflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
