package domain

import "context"

// Document is an opaque catalog document. Numbers are held as json.Number so
// they round-trip without reformatting.
type Document map[string]any

// Collections holding asset references.
const (
	ProductsCollection   = "products"
	CategoriesCollection = "categories"
)

// DocumentStore is the external document database, reduced to what the asset
// and snapshot lifecycle needs.
type DocumentStore interface {
	// Name is the logical database name used in snapshot envelopes.
	Name() string
	ListCollections(ctx context.Context) ([]string, error)
	FindAll(ctx context.Context, collection string) ([]Document, error)
	DeleteAll(ctx context.Context, collection string) (int64, error)

	// InsertMany inserts docs without stopping at the first bad document.
	// It returns how many were inserted; a non-nil error describes the
	// documents that were not.
	InsertMany(ctx context.Context, collection string, docs []Document) (int, error)
}
