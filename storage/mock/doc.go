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


// Package mock provides test double implementations of the storage interfaces.
//
// MockContainer keeps items in a map and behaves like a well-mannered
// container: duplicate adds fail, updates of missing keys fail, deletes are
// idempotent and listings are ordered by key. Every method can be overridden
// through a function field to inject failures.
//
// # Usage in Tests
//
//	provider := mock.NewMockProvider()
//	c, _ := provider.Get(ctx, "db", "docs")
//
//	// Custom behavior injection
//	provider.GetMockContainer("db", "docs").AddFunc = func(ctx context.Context, key, value string) error {
//	    return errors.New("disk full")
//	}
//
//	// Check call counts
//	n := provider.GetCallCount()
package mock
