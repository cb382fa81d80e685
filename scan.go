package redstruct

import (
	"context"
)

// Cursor lazily pages through the results of a cursor-based scan:
//
//	for c := m.Keys(ctx, "*"); c.Next(); {
//		use(c.Item())
//	}
//	if err := c.Err(); err != nil { ... }
//
// A cursor is a single independent pass; to restart, obtain a fresh cursor.
// The pass is complete, not a snapshot: elements mutated concurrently may be
// observed zero, one or more times.
type Cursor[T any] struct {
	ctx     context.Context
	fetch   func(ctx context.Context, cursor uint64) ([]T, uint64, error)
	page    []T
	pos     int
	next    uint64
	started bool
	done    bool
	err     error
}

func newCursor[T any](ctx context.Context, fetch func(ctx context.Context, cursor uint64) ([]T, uint64, error)) *Cursor[T] {
	return &Cursor[T]{ctx: ctx, fetch: fetch}
}

func errCursor[T any](ctx context.Context, err error) *Cursor[T] {
	return &Cursor[T]{ctx: ctx, err: err, done: true}
}

// Next advances to the next element, fetching further pages as needed.
// It returns false when the pass is over or an error occurred; check Err.
func (c *Cursor[T]) Next() bool {
	if c.err != nil {
		return false
	}
	c.pos++
	for c.pos >= len(c.page) {
		if c.done && c.started {
			return false
		}
		page, next, err := c.fetch(c.ctx, c.next)
		if err != nil {
			c.err = err
			c.done = true
			return false
		}
		c.started = true
		c.page = page
		c.pos = 0
		c.next = next
		if next == 0 {
			c.done = true
			if len(page) == 0 {
				return false
			}
		}
		if len(page) > 0 {
			break
		}
	}
	return true
}

// Item returns the current element. Only valid after Next returned true.
func (c *Cursor[T]) Item() T {
	return c.page[c.pos]
}

// Err returns the error that terminated the pass, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

// All drains the cursor into a slice.
func (c *Cursor[T]) All() ([]T, error) {
	var out []T
	for c.Next() {
		out = append(out, c.Item())
	}
	return out, c.Err()
}

// Item is a decoded key/value element yielded by Map, Dict and Hash cursors.
type Item[V any] struct {
	Key   string
	Value V
}

// ZItem is a decoded member/score element yielded by SortedSet cursors.
type ZItem[M any] struct {
	Member M
	Score  float64
}
