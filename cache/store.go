package cache

import "context"

// Store is the physical storage behind a Cache. It moves opaque framed bytes;
// framing, checksums and namespace scoping live in Cache.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: Save replaces an entry atomically; a concurrent Load observes
//   either the old bytes or the new bytes, never a mix.
// - Errors: Load returns ErrNotFound for a missing entry; Delete is idempotent.
type Store interface {
	Load(ctx context.Context, key Key) ([]byte, error)
	Save(ctx context.Context, key Key, data []byte) error
	Delete(ctx context.Context, key Key) error

	// List returns every entry stored in one namespace.
	List(ctx context.Context, namespace string) ([]Listing, error)

	// Namespaces returns every namespace holding at least one entry.
	Namespaces(ctx context.Context) ([]string, error)

	// Ping verifies the store is reachable and writable.
	Ping(ctx context.Context) error

	Close() error
}

// Listing describes a stored entry without reading it.
type Listing struct {
	Key  Key
	Size int64
}
