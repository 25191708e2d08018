package mock

import (
	"context"
	"sync"

	"github.com/poiesic/docket/storage"
)

// MockProvider is a test double for storage.Provider.
// It creates one MockContainer per (path, name) pair on demand.
type MockProvider struct {
	// GetFunc is called by Get if set.
	GetFunc func(ctx context.Context, databasePath, containerName string) (storage.Container, error)

	mu         sync.Mutex
	containers map[[2]string]*MockContainer
	callCount  int
	closed     bool
}

var _ storage.Provider = (*MockProvider)(nil)

// NewMockProvider creates a provider with no containers.
//
// Returns the concrete type so tests can reach GetMockContainer.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		containers: make(map[[2]string]*MockContainer),
	}
}

// Get returns the mock container for the pair, creating it if needed.
func (p *MockProvider) Get(ctx context.Context, databasePath, containerName string) (storage.Container, error) {
	p.mu.Lock()
	p.callCount++
	getFunc := p.GetFunc
	p.mu.Unlock()

	if getFunc != nil {
		return getFunc(ctx, databasePath, containerName)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, storage.ErrStorageClosed
	}
	return p.containerLocked(databasePath, containerName), nil
}

// GetMockContainer returns the container for the pair, creating it if needed,
// so tests can inject behavior before the code under test resolves it.
func (p *MockProvider) GetMockContainer(databasePath, containerName string) *MockContainer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.containerLocked(databasePath, containerName)
}

func (p *MockProvider) containerLocked(databasePath, containerName string) *MockContainer {
	key := [2]string{databasePath, containerName}
	c, ok := p.containers[key]
	if !ok {
		c = NewMockContainer(containerName)
		p.containers[key] = c
	}
	return c
}

// GetCallCount returns the number of times Get was called.
func (p *MockProvider) GetCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
