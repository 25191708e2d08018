package storage

import "context"

// Container provides raw string keyed operations over one named collection of
// serialized documents. Implementations must be thread-safe.
type Container interface {
	// Name returns the container name.
	Name() string

	// Get retrieves the serialized value stored under key.
	// Returns found=false (and no error) if the key doesn't exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// GetAll retrieves every serialized value, ordered by key.
	GetAll(ctx context.Context) ([]string, error)

	// Scan streams every key/value pair, ordered by key.
	// Iteration stops on the first error returned by fn.
	Scan(ctx context.Context, fn func(key, value string) error) error

	// Count returns the number of stored items.
	Count(ctx context.Context) (int, error)

	// Add stores a new value under key.
	// Returns ErrDuplicateKey if the key already exists.
	Add(ctx context.Context, key, value string) error

	// Update replaces the value stored under key.
	// Returns ErrNotFound if the key doesn't exist.
	Update(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteAll removes every item in the container.
	DeleteAll(ctx context.Context) error
}

// Provider resolves a storage location and container name to a Container.
// Get must be safe to call repeatedly and concurrently; implementations may
// cache handles.
type Provider interface {
	// Get returns the container named containerName in the database at databasePath.
	Get(ctx context.Context, databasePath, containerName string) (Container, error)

	// Close releases every backend opened by the provider.
	Close() error
}
