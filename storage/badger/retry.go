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


package badger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dgraph-io/badger/v4"
)

const (
	defaultConflictAttempts = 3
	defaultConflictDelay    = 5 * time.Millisecond
)

// retryPolicy controls how read-modify-write transactions react to
// badger.ErrConflict from a concurrent writer.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger // nil means slog.Default()
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts: defaultConflictAttempts,
		baseDelay:   defaultConflictDelay,
	}
}

// do retries operation with exponential backoff while it fails with a
// transaction conflict. Any other error is returned immediately.
// Returns the error from the last attempt if all attempts conflict.
func (p retryPolicy) do(ctx context.Context, operation func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// retry-go treats zero attempts as unlimited
	maxAttempts := max(p.maxAttempts, 1)
	logger := p.logger
	if logger == nil {
		logger = slog.Default()
	}

	return retry.Do(
		operation,
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.Delay(p.baseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, badger.ErrConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("transaction conflict, will retry", "attempt", n+1, "maxAttempts", maxAttempts)
		}),
	)
}

func (p retryPolicy) withLogger(logger *slog.Logger) retryPolicy {
	p.logger = logger
	return p
}
