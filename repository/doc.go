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


// Package repository provides a typed CRUD façade over a storage container.
//
// A Repository[D] is bound to one (database path, container name) pair. Each
// operation resolves the container through a storage.Provider, converts
// between D and JSON text, and forwards to the container. The repository
// keeps no per-call state and adds no locking; concurrency guarantees are
// those of the container.
//
// # Usage
//
//	type User struct {
//	    core.DocumentBase
//	    Name string `json:"name"`
//	}
//
//	users, err := repository.New[*User](provider, repository.Config{
//	    DatabasePath:  "/var/lib/app/db",
//	    ContainerName: "users",
//	})
//	id, err := users.AddItem(ctx, &User{DocumentBase: core.DocumentBase{Id: core.NewID()}, Name: "x"})
//	u, found, err := users.GetItem(ctx, id)
//
// # Absent Items
//
// Lookups report a missing item with found=false and a nil error.
//
// # Batches
//
// AddItems and UpdateItems write one item at a time, in input order, each in
// its own container call. They are best-effort and not transactional: when
// an item fails, the items before it stay written and the items after it are
// not attempted.
//
// # Corrupt Items
//
// GetItem fails with storage.ErrDeserializationFailed when the stored text
// does not decode. GetAll skips such items instead, logs a warning, and
// reports how many it skipped through GetAllWithSkipped.
package repository
