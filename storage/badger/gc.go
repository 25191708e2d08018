package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// DefaultDiscardRatio is the value log discard ratio Badger recommends.
const DefaultDiscardRatio = 0.5

// RunValueLogGC runs value log garbage collection on every open database.
// Databases are collected concurrently on a worker pool sized by
// WithGCPoolSize. Errors from individual databases are joined; one failing
// database does not stop the others.
func (p *Provider) RunValueLogGC(ctx context.Context, discardRatio float64) error {
	if discardRatio <= 0 || discardRatio >= 1 {
		return fmt.Errorf("discard ratio must be in (0, 1), got %v", discardRatio)
	}

	backends, err := p.snapshotBackends()
	if err != nil {
		return err
	}
	if len(backends) == 0 {
		return nil
	}

	pool, err := ants.NewPool(p.gcPoolSize)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, b := range backends {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := b.RunValueLogGC(ctx, discardRatio); err != nil {
				p.logger.Error("value log gc failed", "db", b.Path(), "err", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", b.Path(), err))
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", b.Path(), submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}
