// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package docket stores typed JSON documents in named containers of an
// embedded database.
//
// A Database owns the storage provider; repositories handed out by
// NewRepository share it:
//
//	db, err := docket.NewDatabase("/var/lib/app")
//	...
//	defer db.Close()
//	users, err := docket.NewRepository[User](db, "users")
package docket

import (
	"context"
	"log/slog"

	"github.com/poiesic/docket/config"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/repository"
	"github.com/poiesic/docket/storage"
	"github.com/poiesic/docket/storage/badger"
)

// MemoryPath names the database when running in memory without a path.
const MemoryPath = "memory"

type Database struct {
	provider *badger.Provider
	path     string
	config   *config.Config
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	config *config.Config
	logger *slog.Logger
}

// WithConfig applies a loaded configuration.
// Default is config.Default().
func WithConfig(cfg *config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithLogger sets the logger shared by the provider and every repository.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewDatabase opens the database at filePath. An empty filePath falls back to
// the configured database path.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		config: config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	cfg := options.config

	path := filePath
	if path == "" {
		path = cfg.Database.Path
	}
	if path == "" && cfg.Database.InMemory {
		path = MemoryPath
	}

	providerOpts := []badger.Option{
		badger.WithLogger(options.logger),
		badger.WithGCPoolSize(cfg.GC.PoolSize),
		badger.WithConflictRetries(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay),
	}
	if cfg.Database.InMemory {
		providerOpts = append(providerOpts, badger.WithInMemory())
	}

	provider, err := badger.NewProvider(providerOpts...)
	if err != nil {
		return nil, err
	}

	if err := provider.Open(context.Background(), path); err != nil {
		provider.Close()
		return nil, err
	}

	return &Database{
		provider: provider,
		path:     path,
		config:   cfg,
		logger:   options.logger,
	}, nil
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing database", "db", db.path, "err", err)
		return err
	}
	return nil
}

// Path returns the path repositories use to address this database.
func (db *Database) Path() string {
	return db.path
}

func (db *Database) Provider() storage.Provider {
	return db.provider
}

// RunValueLogGC reclaims space in the value log using the configured
// discard ratio.
func (db *Database) RunValueLogGC(ctx context.Context) error {
	return db.RunValueLogGCWithRatio(ctx, db.config.GC.DiscardRatio)
}

// RunValueLogGCWithRatio is RunValueLogGC with an explicit discard ratio.
func (db *Database) RunValueLogGCWithRatio(ctx context.Context, discardRatio float64) error {
	db.logger.Info("running value log gc", "db", db.path, "discardRatio", discardRatio)
	return db.provider.RunValueLogGC(ctx, discardRatio)
}

// NewRepository returns a repository for documents of type D in the named
// container. Repository logging follows the configured log flag; opts are
// applied after the database defaults.
func NewRepository[D core.Document](db *Database, containerName string, opts ...repository.Option) (*repository.Repository[D], error) {
	cfg := repository.Config{
		DatabasePath:  db.path,
		ContainerName: containerName,
		Log:           db.config.Log,
	}
	return repository.New[D](db.provider, cfg, append([]repository.Option{repository.WithLogger(db.logger)}, opts...)...)
}
