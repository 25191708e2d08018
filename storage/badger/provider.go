package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/docket/storage"
	"github.com/samber/lo"
)

// Provider implements storage.Provider for BadgerDB.
// It opens one backend per database path on first use and hands out one
// Container per (path, name) pair, caching both until Close.
type Provider struct {
	mu         sync.Mutex
	backends   map[string]*Backend
	containers map[containerRef]*Container
	closed     bool

	inMemory   bool
	gcPoolSize int
	retry      retryPolicy
	logger     *slog.Logger
}

var _ storage.Provider = (*Provider)(nil)

type containerRef struct {
	path string
	name string
}

// Option configures a Provider.
type Option func(*Provider) error

// WithInMemory opens every database in memory. Paths still identify databases
// but nothing is written to disk.
func WithInMemory() Option {
	return func(p *Provider) error {
		p.inMemory = true
		return nil
	}
}

// WithLogger sets a custom logger for the provider and its backends.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithGCPoolSize sets how many databases RunValueLogGC collects concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithGCPoolSize(size int) Option {
	return func(p *Provider) error {
		if size < 1 {
			size = 1
		}
		p.gcPoolSize = size
		return nil
	}
}

// WithConflictRetries sets how often writes retry after a transaction
// conflict, and the base delay of the exponential backoff between attempts.
func WithConflictRetries(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Provider) error {
		if maxAttempts < 1 {
			return fmt.Errorf("conflict retries: maxAttempts must be greater than 0, got %d", maxAttempts)
		}
		if baseDelay < 0 {
			return fmt.Errorf("conflict retries: baseDelay cannot be negative, got %s", baseDelay)
		}
		p.retry = retryPolicy{maxAttempts: maxAttempts, baseDelay: baseDelay}
		return nil
	}
}

// NewProvider creates a Provider. No database is opened until Get is called.
func NewProvider(opts ...Option) (*Provider, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Provider{
		backends:   make(map[string]*Backend),
		containers: make(map[containerRef]*Container),
		gcPoolSize: poolSize,
		retry:      defaultRetryPolicy(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Get returns the container named containerName in the database at
// databasePath, opening the database if this is the first request for it.
func (p *Provider) Get(ctx context.Context, databasePath, containerName string) (storage.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if databasePath == "" {
		return nil, fmt.Errorf("%w: database path", storage.ErrEmptyKey)
	}
	if err := validateContainerName(containerName); err != nil {
		return nil, err
	}

	path := p.normalizePath(databasePath)
	ref := containerRef{path: path, name: containerName}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, storage.ErrStorageClosed
	}

	if c, ok := p.containers[ref]; ok {
		return c, nil
	}

	backend, err := p.backendLocked(path)
	if err != nil {
		return nil, err
	}

	c, err := NewContainer(backend, containerName)
	if err != nil {
		return nil, err
	}
	c.retry = p.retry.withLogger(p.logger)

	p.containers[ref] = c
	p.logger.Debug("container opened", "db", path, "container", containerName)
	return c, nil
}

// Open opens the database at databasePath without resolving a container,
// so that a bad path fails early.
func (p *Provider) Open(ctx context.Context, databasePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if databasePath == "" {
		return fmt.Errorf("%w: database path", storage.ErrEmptyKey)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return storage.ErrStorageClosed
	}
	_, err := p.backendLocked(p.normalizePath(databasePath))
	return err
}

// backendLocked returns the cached backend for path, opening it if needed.
// Caller must hold p.mu.
func (p *Provider) backendLocked(path string) (*Backend, error) {
	if b, ok := p.backends[path]; ok {
		return b, nil
	}

	b, err := OpenBackend(path, p.inMemory, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	p.backends[path] = b
	p.logger.Debug("database opened", "db", path, "inMemory", p.inMemory)
	return b, nil
}

// normalizePath makes equivalent on-disk paths share one backend.
func (p *Provider) normalizePath(path string) string {
	if p.inMemory {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Paths returns the paths of every open database, sorted.
func (p *Provider) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	paths := lo.Keys(p.backends)
	slices.Sort(paths)
	return paths
}

// Close closes every open database. Further calls to Get fail with
// storage.ErrStorageClosed. Close is idempotent.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for path, b := range p.backends {
		if err := b.Close(); err != nil {
			p.logger.Error("error closing database", "db", path, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	clear(p.backends)
	clear(p.containers)
	return errors.Join(errs...)
}

// snapshotBackends returns the open backends without holding the lock afterwards.
func (p *Provider) snapshotBackends() ([]*Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, storage.ErrStorageClosed
	}
	return lo.Values(p.backends), nil
}
