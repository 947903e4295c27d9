package ports

import (
	"context"
	"errors"
)

// ErrNoElement is returned by the element operations when the parent
// document exists but holds no array element with the requested id.
var ErrNoElement = errors.New("no array element with that id")

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// SnapshotFunc receives the full current contents of a collection. It is
// called once after subscribing and again after every change.
type SnapshotFunc[T any] func(docs []T)

// Collection is one remote document collection. Writes are authoritative in
// the store; subscribers observe them through the next snapshot.
type Collection[T any] interface {
	// Name is the collection name (users, itineraries, customers, bookings).
	Name() string
	Subscribe(ctx context.Context, fn SnapshotFunc[T]) (Unsubscribe, error)
	// Get returns domain.ErrNotFound when no document has the id.
	Get(ctx context.Context, id string) (*T, error)
	// Where returns all documents whose field equals value.
	Where(ctx context.Context, field string, value any) ([]T, error)
	// Add stores doc under a freshly generated id and returns that id.
	// Any id already set on doc is ignored.
	Add(ctx context.Context, doc T) (string, error)
	// Update sets the given top-level fields on the document.
	Update(ctx context.Context, id string, fields map[string]any) error
	// Delete removes the document. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// The element operations change one entry of an array field in a single
	// atomic write, so concurrent writers on the same document never
	// overwrite each other's entries. Elements are matched on their "id"
	// field. A missing parent yields domain.ErrNotFound, a missing element
	// ErrNoElement.

	// PushElement appends elem to the array field.
	PushElement(ctx context.Context, id, field string, elem any) error
	// SetElementFields sets fields on the matching element.
	SetElementFields(ctx context.Context, id, field, elemID string, fields map[string]any) error
	// PullElement removes the matching element.
	PullElement(ctx context.Context, id, field, elemID string) error
}
