package mock

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/poiesic/docket/storage"
)

// MockContainer is a map backed test double for storage.Container.
// Function fields, when set, replace the default behavior of the matching method.
// Set them before the container is shared between goroutines.
type MockContainer struct {
	GetFunc       func(ctx context.Context, key string) (string, bool, error)
	GetAllFunc    func(ctx context.Context) ([]string, error)
	AddFunc       func(ctx context.Context, key, value string) error
	UpdateFunc    func(ctx context.Context, key, value string) error
	DeleteFunc    func(ctx context.Context, key string) error
	DeleteAllFunc func(ctx context.Context) error

	name  string
	mu    sync.Mutex
	items map[string]string
	calls map[string]int
}

var _ storage.Container = (*MockContainer)(nil)

// NewMockContainer creates an empty container named name.
func NewMockContainer(name string) *MockContainer {
	return &MockContainer{
		name:  name,
		items: make(map[string]string),
		calls: make(map[string]int),
	}
}

// Name returns the container name.
func (m *MockContainer) Name() string {
	return m.name
}

// Get returns the value stored under key.
func (m *MockContainer) Get(ctx context.Context, key string) (string, bool, error) {
	if fn := injected(m, "Get", &m.GetFunc); fn != nil {
		return fn(ctx, key)
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

// GetAll returns every value ordered by key, or nil when empty.
func (m *MockContainer) GetAll(ctx context.Context) ([]string, error) {
	if fn := injected(m, "GetAll", &m.GetAllFunc); fn != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var values []string
	for _, k := range slices.Sorted(maps.Keys(m.items)) {
		values = append(values, m.items[k])
	}
	return values, nil
}

// Scan calls fn for every pair ordered by key, on a snapshot of the items.
func (m *MockContainer) Scan(ctx context.Context, fn func(key, value string) error) error {
	m.record("Scan")
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	snapshot := maps.Clone(m.items)
	m.mu.Unlock()

	for _, k := range slices.Sorted(maps.Keys(snapshot)) {
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of items.
func (m *MockContainer) Count(ctx context.Context) (int, error) {
	m.record("Count")
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

// Add stores value under a new key.
func (m *MockContainer) Add(ctx context.Context, key, value string) error {
	if fn := injected(m, "Add", &m.AddFunc); fn != nil {
		return fn(ctx, key, value)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return storage.ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; ok {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, key)
	}
	m.items[key] = value
	return nil
}

// Update replaces the value under an existing key.
func (m *MockContainer) Update(ctx context.Context, key, value string) error {
	if fn := injected(m, "Update", &m.UpdateFunc); fn != nil {
		return fn(ctx, key, value)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return storage.ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	m.items[key] = value
	return nil
}

// Delete removes key if present.
func (m *MockContainer) Delete(ctx context.Context, key string) error {
	if fn := injected(m, "Delete", &m.DeleteFunc); fn != nil {
		return fn(ctx, key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// DeleteAll removes every item.
func (m *MockContainer) DeleteAll(ctx context.Context) error {
	if fn := injected(m, "DeleteAll", &m.DeleteAllFunc); fn != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.items)
	return nil
}

// Put stores a raw value directly, skipping duplicate checks and call counting.
// Useful for planting corrupt data.
func (m *MockContainer) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
}

// CallCount returns how many times method was called.
func (m *MockContainer) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Reset clears items, call counts and injected behavior.
func (m *MockContainer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.items)
	clear(m.calls)
	m.GetFunc = nil
	m.GetAllFunc = nil
	m.AddFunc = nil
	m.UpdateFunc = nil
	m.DeleteFunc = nil
	m.DeleteAllFunc = nil
}

func (m *MockContainer) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

// injected counts a call to method and returns the function in field,
// read under the lock so Reset can run concurrently with calls.
func injected[F any](m *MockContainer, method string, field *F) F {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return *field
}
