// ABOUTME: Document store client contract consumed by every repository
// ABOUTME: Documents travel as JSON bytes addressed by table and id

package docstore

import "context"

// Key is an index key tuple, one value per indexed field in index order.
type Key []any

// Client is the narrow surface the repositories need from a document database.
// Implementations must evaluate Update expressions store-side so concurrent
// increments on one document never lose writes. No multi-document
// transactions are assumed.
type Client interface {
	// Get returns the document stored under id, or nil, nil when absent.
	Get(ctx context.Context, table, id string) ([]byte, error)

	// GetByIndex returns the first document whose index fields equal key,
	// or nil, nil when nothing matches.
	GetByIndex(ctx context.Context, table, index string, key Key) ([]byte, error)

	// Scan returns every document matching q, ordered and paged as q says.
	Scan(ctx context.Context, table string, q Query) ([][]byte, error)

	// Count returns the number of documents matching q. Paging is ignored.
	Count(ctx context.Context, table string, q Query) (int64, error)

	// Upsert inserts or fully replaces the document at id and returns the
	// stored post-write value.
	Upsert(ctx context.Context, table, id string, doc []byte) ([]byte, error)

	// Update applies exprs to the document at id as one atomic store-side
	// operation. A missing id is a no-op.
	Update(ctx context.Context, table, id string, exprs ...Expr) error

	// Delete removes the document at id. A missing id is not an error.
	Delete(ctx context.Context, table, id string) error

	// DeleteByIndex removes every document whose index fields equal key and
	// returns how many were removed.
	DeleteByIndex(ctx context.Context, table, index string, key Key) (int64, error)

	// GroupCount counts documents per value of field, restricted to the
	// given values. Values with no documents are absent from the result.
	GroupCount(ctx context.Context, table, field string, values []string) (map[string]int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
