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


// Package storage provides the storage abstraction layer for docket.
//
// This package defines the two collaborators a typed repository talks to:
//
//   - Provider: resolves a (database path, container name) pair to a live Container
//   - Container: raw string keyed document operations over one named collection
//
// Concrete implementations live in subpackages (storage/badger for BadgerDB,
// storage/mock for tests) and can be used interchangeably.
//
// # Constructor Return Type Pattern
//
// Public constructors that hand out containers return the storage interfaces
// to prevent accidental coupling to a specific backend:
//
//	provider := badger.NewProvider()        // concrete, owns backends
//	c, err := provider.Get(ctx, path, name)  // returns storage.Container
//
// # Stored Form
//
// Containers store documents as JSON text, keyed by document id. How that text
// lands on disk is the container's business; the Badger container wraps it in a
// small binary Entry envelope carrying insert and update timestamps.
//
// # Thread Safety
//
// All Provider and Container implementations must be thread-safe and support
// concurrent access from multiple goroutines. Ordering between concurrent
// writers is whatever the backend provides.
//
// # Context Support
//
// All methods accept context.Context. Implementations check it before doing
// any work; none of them impose timeouts of their own.
package storage
