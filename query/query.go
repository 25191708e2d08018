package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/poiesic/docket/storage"
)

// Source streams raw key/value pairs, stopping at the first error from fn.
// storage.Container.Scan satisfies it.
type Source func(ctx context.Context, fn func(key, value string) error) error

// Decoder turns a stored value into a T.
type Decoder[T any] func(value string) (T, error)

// errStop ends a scan early without surfacing an error.
var errStop = errors.New("stop")

// Query is an immutable, lazily evaluated query over a Source.
type Query[T any] struct {
	source  Source
	decode  Decoder[T]
	filters []func(T) bool
	compare func(a, b T) int
	skip    int
	take    int // negative means unlimited
}

// New creates a query reading from source and decoding with decode.
func New[T any](source Source, decode Decoder[T]) *Query[T] {
	return &Query[T]{
		source: source,
		decode: decode,
		take:   -1,
	}
}

// FromContainer creates a query over every JSON document in c, decoded as T.
func FromContainer[T any](c storage.Container) *Query[T] {
	return New[T](c.Scan, storage.UnmarshalDocument[T])
}

func (q *Query[T]) clone() *Query[T] {
	c := *q
	c.filters = slices.Clone(q.filters)
	return &c
}

// Where keeps only items for which pred returns true.
// Multiple Where calls are combined with AND.
func (q *Query[T]) Where(pred func(T) bool) *Query[T] {
	c := q.clone()
	c.filters = append(c.filters, pred)
	return c
}

// OrderBy sorts results with compare (negative when a sorts before b).
// The sort is stable, so ties keep container key order.
func (q *Query[T]) OrderBy(compare func(a, b T) int) *Query[T] {
	c := q.clone()
	c.compare = compare
	return c
}

// Skip drops the first n results.
func (q *Query[T]) Skip(n int) *Query[T] {
	c := q.clone()
	c.skip = max(n, 0)
	return c
}

// Take limits the results to at most n items.
func (q *Query[T]) Take(n int) *Query[T] {
	c := q.clone()
	c.take = max(n, 0)
	return c
}

// ToList evaluates the query and returns every result.
func (q *Query[T]) ToList(ctx context.Context) ([]T, error) {
	var out []T
	err := q.run(ctx, func(v T) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// First evaluates the query and returns the first result.
// found is false when the query matches nothing.
func (q *Query[T]) First(ctx context.Context) (result T, found bool, err error) {
	err = q.Take(1).run(ctx, func(v T) error {
		result, found = v, true
		return nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return result, found, nil
}

// Count evaluates the query and returns the number of results.
func (q *Query[T]) Count(ctx context.Context) (int, error) {
	n := 0
	err := q.run(ctx, func(T) error {
		n++
		return nil
	})
	return n, err
}

// Each evaluates the query, calling fn for every result.
// Iteration stops at the first error from fn, which is returned.
func (q *Query[T]) Each(ctx context.Context, fn func(T) error) error {
	return q.run(ctx, fn)
}

// All evaluates the query as an iterator. An evaluation error is yielded
// once, with a zero T, and ends the sequence.
func (q *Query[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		err := q.run(ctx, func(v T) error {
			if !yield(v, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			var zero T
			yield(zero, err)
		}
	}
}

// run evaluates the query, passing each result to emit.
func (q *Query[T]) run(ctx context.Context, emit func(T) error) error {
	if q.take == 0 {
		return nil
	}
	if q.compare != nil {
		return q.runSorted(ctx, emit)
	}

	skipped, emitted := 0, 0
	err := q.scan(ctx, func(v T) error {
		if skipped < q.skip {
			skipped++
			return nil
		}
		if err := emit(v); err != nil {
			return err
		}
		emitted++
		if q.take >= 0 && emitted >= q.take {
			return errStop
		}
		return nil
	})
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

func (q *Query[T]) runSorted(ctx context.Context, emit func(T) error) error {
	var buffered []T
	err := q.scan(ctx, func(v T) error {
		buffered = append(buffered, v)
		return nil
	})
	if err != nil {
		return err
	}

	slices.SortStableFunc(buffered, q.compare)

	if q.skip >= len(buffered) {
		return nil
	}
	buffered = buffered[q.skip:]
	if q.take >= 0 && q.take < len(buffered) {
		buffered = buffered[:q.take]
	}

	for _, v := range buffered {
		if err := emit(v); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// scan reads the source, decoding and filtering each item.
func (q *Query[T]) scan(ctx context.Context, fn func(T) error) error {
	return q.source(ctx, func(key, value string) error {
		v, err := q.decode(value)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		for _, pred := range q.filters {
			if !pred(v) {
				return nil
			}
		}
		return fn(v)
	})
}
