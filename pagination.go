package acp

import (
	"context"
	"sync"
)

// FetchPageFunc retrieves one page of items starting after cursor. The
// first call a PaginatedSequence makes always passes a nil cursor. A nil
// nextCursor signals the final page.
type FetchPageFunc[T any] func(ctx context.Context, cursor *string) (items []T, nextCursor *string, err error)

// PaginatedSequence is a cursor-driven lazy sequence over a paged RPC
// method (session/list, in this SDK). No page is fetched until the first
// item is requested, and the sequence stops fetching the moment a page
// reports a nil cursor: a small, mutex-guarded, single-purpose type
// rather than a channel-based iterator, matching the rest of the SDK's
// preference for explicit call/return over goroutine-fed channels
// wherever blocking semantics suffice.
type PaginatedSequence[T any] struct {
	fetch FetchPageFunc[T]

	mu      sync.Mutex
	buf     []T
	cursor  *string
	started bool
	done    bool
	err     error
}

// NewPaginatedSequence wraps fetch as a lazy sequence.
func NewPaginatedSequence[T any](fetch FetchPageFunc[T]) *PaginatedSequence[T] {
	return &PaginatedSequence[T]{fetch: fetch}
}

// Next returns the next item, fetching a new page if the internal buffer
// is empty and more pages remain. ok is false once the sequence is
// exhausted; err is non-nil if the most recent fetch failed, and sticks —
// a PaginatedSequence does not retry a failed page on its own.
func (s *PaginatedSequence[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return item, false, s.err
	}

	for len(s.buf) == 0 {
		if s.started && s.done {
			return item, false, nil
		}
		page, next, ferr := s.fetch(ctx, s.cursor)
		s.started = true
		if ferr != nil {
			s.err = ferr
			return item, false, ferr
		}
		s.buf = page
		s.cursor = next
		if next == nil {
			s.done = true
		}
		if len(page) == 0 && s.done {
			return item, false, nil
		}
	}

	item = s.buf[0]
	s.buf = s.buf[1:]
	return item, true, nil
}

// Collect drains the sequence to completion, returning every item fetched.
// Intended for small result sets (tests, CLIs) — callers iterating large
// session histories should prefer Next in a loop.
func (s *PaginatedSequence[T]) Collect(ctx context.Context) ([]T, error) {
	var all []T
	for {
		item, ok, err := s.Next(ctx)
		if err != nil {
			return all, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, item)
	}
}
