// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmynk/grouporder/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned by Create when the key is taken.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrReadOnly is returned when the backend refuses writes.
	ErrReadOnly = errors.New("store is read-only")
)

// Snapshot is the state of one document at a point in time.
type Snapshot struct {
	// ID is the document key.
	ID string

	// Data is the raw JSON document. Nil when Exists is false.
	Data []byte

	// Exists is false once the document has been deleted.
	Exists bool

	// Revision increases on every write to the document. Feeds use it to
	// avoid delivering an older state after a newer one.
	Revision int64

	// UpdatedAt is when the document was last written.
	UpdatedAt time.Time
}

// DocumentStore defines the document operations the order gateway needs.
// This abstraction allows swapping storage backends (SQLite, Redis, etc.)
// without changing the gateway. Documents are JSON objects; every mutation
// is atomic per document and no cross-document transactions exist.
type DocumentStore interface {
	// Create stores a new document under id.
	// Returns ErrAlreadyExists if the key is taken.
	Create(ctx context.Context, id string, doc []byte) error

	// Get retrieves the raw document.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (Snapshot, error)

	// Update overwrites the given top-level fields atomically, leaving
	// other fields untouched.
	Update(ctx context.Context, id string, fields map[string]json.RawMessage) error

	// ArrayUnion appends each value to the named array fields unless an
	// equal value (by JSON value equality) is already present.
	ArrayUnion(ctx context.Context, id string, values map[string][]json.RawMessage) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every document, newest first.
	List(ctx context.Context) ([]Snapshot, error)

	// Watch delivers the current state immediately and again after every
	// mutation. Deliveries for one watch never run concurrently.
	// The returned function stops the watch and may be called more than once.
	Watch(ctx context.Context, id string, fn func(Snapshot)) (func(), error)

	// Close releases any resources held by the store.
	Close() error
}

// Catalog is the read-mostly product catalog.
type Catalog interface {
	// ListAll returns every product sorted by name.
	ListAll(ctx context.Context) ([]models.Product, error)

	// ListByCategory returns the products of one category sorted by name.
	ListByCategory(ctx context.Context, category models.Category) ([]models.Product, error)

	// ListByIDs returns the products that exist among ids. Missing IDs are
	// omitted, not reported as errors.
	ListByIDs(ctx context.Context, ids []string) ([]models.Product, error)

	// Favorites returns the product IDs a participant marked as favorite.
	Favorites(ctx context.Context, identity string) ([]string, error)

	// ToggleFavorite flips a favorite mark and reports the new state.
	ToggleFavorite(ctx context.Context, identity, productID string) (bool, error)

	// UpsertProduct inserts or replaces a product.
	UpsertProduct(ctx context.Context, product models.Product) error
}
