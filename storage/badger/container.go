package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docket/storage"
)

// Container implements storage.Container for BadgerDB.
// Items live under a per-container key prefix, so any number of containers
// can share one backend.
type Container struct {
	backend *Backend
	name    string
	prefix  []byte
	retry   retryPolicy
}

var _ storage.Container = (*Container)(nil)

// NewContainer creates a Container named name on backend.
func NewContainer(backend *Backend, name string) (*Container, error) {
	if err := validateContainerName(name); err != nil {
		return nil, err
	}
	return &Container{
		backend: backend,
		name:    name,
		prefix:  makeContainerPrefix(name),
		retry:   defaultRetryPolicy().withLogger(backend.logger),
	}, nil
}

// Name returns the container name.
func (c *Container) Name() string {
	return c.name
}

// Get retrieves the serialized value stored under key.
func (c *Container) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	// empty keys can never be stored
	if key == "" {
		return "", false, nil
	}

	var entry *storage.Entry
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		entry, err = c.readEntry(tx, makeItemKey(c.prefix, key))
		return err
	}, false)
	if err != nil || entry == nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// GetAll retrieves every serialized value, ordered by key.
func (c *Container) GetAll(ctx context.Context) ([]string, error) {
	var values []string
	err := c.Scan(ctx, func(_, value string) error {
		values = append(values, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Scan streams every key/value pair in the container, ordered by key.
// The callback runs inside a read transaction; it sees a consistent snapshot.
func (c *Container) Scan(ctx context.Context, fn func(key, value string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := iter.Item()
			key := itemKeyFromKey(c.prefix, item.Key())

			var entry *storage.Entry
			err := item.Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalEntry(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("container %s: key %q: %w", c.name, key, err)
			}

			if err := fn(key, entry.Value); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// Count returns the number of items in the container.
func (c *Container) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Add stores a new value under key.
func (c *Container) Add(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return storage.ErrEmptyKey
	}

	itemKey := makeItemKey(c.prefix, key)
	return c.retry.do(ctx, func() error {
		return c.backend.WithTx(func(tx *badger.Txn) error {
			existing, err := c.readEntry(tx, itemKey)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("%w: %s/%s", storage.ErrDuplicateKey, c.name, key)
			}

			now := time.Now().UTC()
			entry := &storage.Entry{Value: value, InsertedAt: now, UpdatedAt: now}
			if err := tx.Set(itemKey, storage.MarshalEntry(entry)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
}

// Update replaces the value stored under key, keeping its insert time.
func (c *Container) Update(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return storage.ErrEmptyKey
	}

	itemKey := makeItemKey(c.prefix, key)
	return c.retry.do(ctx, func() error {
		return c.backend.WithTx(func(tx *badger.Txn) error {
			old, err := c.readEntry(tx, itemKey)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, c.name, key)
			}

			entry := &storage.Entry{Value: value, InsertedAt: old.InsertedAt, UpdatedAt: time.Now().UTC()}
			if err := tx.Set(itemKey, storage.MarshalEntry(entry)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
}

// Delete removes key. Missing keys, including the empty key, are ignored.
func (c *Container) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return nil
	}

	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeItemKey(c.prefix, key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteAll removes every item in the container.
func (c *Container) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.backend.DropPrefix(c.prefix)
}

// readEntry reads and decodes the entry at key.
// Returns nil, nil if the key doesn't exist.
func (c *Container) readEntry(tx *badger.Txn, key []byte) (*storage.Entry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entry *storage.Entry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalEntry(val)
		return unmarshalErr
	})
	return entry, err
}
