package redstruct

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// List is an index-addressable sequence over the store's native list type.
// Pushes to either end and reads/writes by index map straight onto store
// primitives. Arbitrary-index Insert and PopAt have no store primitive and
// are emulated with a transient sentinel value (see the package docs);
// Reverse is emulated by rebuilding into a temporary key and renaming it
// over the original.
//
// Value-based searches (Index, Count, Contains) are linear scans over the
// wire. They are correct but not recommended for large lists.
type List[V any] struct {
	base
	keyExpiry
}

func NewList[V any](store Store, name string, opt Options) *List[V] {
	b := newBase(store, name, DefaultListPrefix, opt)
	return &List[V]{base: b, keyExpiry: keyExpiry{expst: store, key: b.ks.Key()}}
}

// Len returns the length of the list.
func (l *List[V]) Len(ctx context.Context) (int64, error) {
	return l.store.LLen(ctx, l.ks.Key())
}

// Append adds values to the end and returns the new length.
func (l *List[V]) Append(ctx context.Context, values ...V) (int64, error) {
	raw, err := l.encodeAll(values)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return l.Len(ctx)
	}
	return l.store.RPush(ctx, l.ks.Key(), raw...)
}

// Prepend adds values to the front and returns the new length.
func (l *List[V]) Prepend(ctx context.Context, values ...V) (int64, error) {
	raw, err := l.encodeAll(values)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return l.Len(ctx)
	}
	return l.store.LPush(ctx, l.ks.Key(), raw...)
}

// Get returns the element at index (negatives count from the end), or
// ErrNotFound when the index is out of range.
func (l *List[V]) Get(ctx context.Context, index int64) (V, error) {
	var v V
	raw, err := l.store.LIndex(ctx, l.ks.Key(), index)
	if err != nil {
		return v, err
	}
	err = l.decode(raw, &v)
	return v, err
}

// Set overwrites the element at index.
func (l *List[V]) Set(ctx context.Context, index int64, value V) error {
	raw, err := l.encode(value)
	if err != nil {
		return err
	}
	return l.store.LSet(ctx, l.ks.Key(), index, raw)
}

// Range returns elements from start through stop inclusive, following the
// store's range convention (negatives count from the end; out-of-range
// bounds clamp).
func (l *List[V]) Range(ctx context.Context, start, stop int64) ([]V, error) {
	raw, err := l.store.LRange(ctx, l.ks.Key(), start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]V, len(raw))
	for i, data := range raw {
		if err := l.decode(data, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// All returns the entire list.
func (l *List[V]) All(ctx context.Context) ([]V, error) {
	return l.Range(ctx, 0, -1)
}

// Insert places value at index; the previous occupant and everything after
// it shift one position toward the end. Returns the new length. The index
// must address an existing element; use Append/Prepend for the ends.
//
// The store can only insert relative to a value, so Insert (1) reads the
// current element, (2) overwrites it with a unique sentinel, (3) inserts
// value and then the displaced element before the sentinel in one
// transactional batch whose internal order must hold, and (4) strips the
// sentinel. A connection failure between steps can strand the sentinel in
// the list; Repair removes strays.
func (l *List[V]) Insert(ctx context.Context, index int64, value V) (int64, error) {
	raw, err := l.encode(value)
	if err != nil {
		return 0, err
	}
	key := l.ks.Key()
	displaced, err := l.store.LIndex(ctx, key, index)
	if err != nil {
		return 0, err
	}
	sentinel, err := l.encode(newSentinel())
	if err != nil {
		return 0, err
	}
	if err := l.store.LSet(ctx, key, index, sentinel); err != nil {
		return 0, err
	}
	replies, err := l.store.Exec(ctx, true, []Cmd{
		linsertBeforeCmd(key, sentinel, raw),
		linsertBeforeCmd(key, sentinel, displaced),
	})
	if err != nil {
		return 0, err
	}
	if _, err := l.store.LRem(ctx, key, 0, sentinel); err != nil {
		return 0, err
	}
	// Second insert saw the list with the sentinel still present.
	return replies[1].Int - 1, nil
}

// Pop removes and returns the last element, or ErrNotFound when empty.
func (l *List[V]) Pop(ctx context.Context) (V, error) {
	var v V
	raw, err := l.store.RPop(ctx, l.ks.Key())
	if err != nil {
		return v, err
	}
	err = l.decode(raw, &v)
	return v, err
}

// PopFront removes and returns the first element, or ErrNotFound when empty.
func (l *List[V]) PopFront(ctx context.Context) (V, error) {
	var v V
	raw, err := l.store.LPop(ctx, l.ks.Key())
	if err != nil {
		return v, err
	}
	err = l.decode(raw, &v)
	return v, err
}

// PopAt removes and returns the element at index. Middle indices use the
// sentinel swap: overwrite with a sentinel, remove the sentinel by value.
func (l *List[V]) PopAt(ctx context.Context, index int64) (V, error) {
	switch index {
	case 0:
		return l.PopFront(ctx)
	case -1:
		return l.Pop(ctx)
	}
	var v V
	key := l.ks.Key()
	raw, err := l.store.LIndex(ctx, key, index)
	if err != nil {
		return v, err
	}
	sentinel, err := l.encode(newSentinel())
	if err != nil {
		return v, err
	}
	if err := l.store.LSet(ctx, key, index, sentinel); err != nil {
		return v, err
	}
	if _, err := l.store.LRem(ctx, key, 0, sentinel); err != nil {
		return v, err
	}
	err = l.decode(raw, &v)
	return v, err
}

// Remove deletes occurrences of value: count > 0 from the front, count < 0
// from the back, 0 for all. Returns the number removed.
func (l *List[V]) Remove(ctx context.Context, value V, count int64) (int64, error) {
	raw, err := l.encode(value)
	if err != nil {
		return 0, err
	}
	return l.store.LRem(ctx, l.ks.Key(), count, raw)
}

// Trim drops every element outside start..stop (inclusive, store range
// convention).
func (l *List[V]) Trim(ctx context.Context, start, stop int64) error {
	return l.store.LTrim(ctx, l.ks.Key(), start, stop)
}

// Iter starts a forward pass, reading bounded windows per round trip.
func (l *List[V]) Iter(ctx context.Context) *Cursor[V] {
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]V, uint64, error) {
		start := int64(cursor)
		raw, err := l.store.LRange(ctx, l.ks.Key(), start, start+int64(l.pageSize)-1)
		if err != nil {
			return nil, 0, err
		}
		out := make([]V, len(raw))
		for i, data := range raw {
			if err := l.decode(data, &out[i]); err != nil {
				return nil, 0, err
			}
		}
		var next uint64
		if len(raw) == l.pageSize {
			next = cursor + uint64(l.pageSize)
		}
		return out, next, nil
	})
}

// ReverseIter starts a pass from the tail, reading bounded windows of
// negative ranges that shrink toward the head.
func (l *List[V]) ReverseIter(ctx context.Context) *Cursor[V] {
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]V, uint64, error) {
		raw, err := l.tailWindow(ctx, cursor)
		if err != nil {
			return nil, 0, err
		}
		out := make([]V, len(raw))
		for i, data := range raw {
			if err := l.decode(data, &out[len(raw)-1-i]); err != nil {
				return nil, 0, err
			}
		}
		var next uint64
		if len(raw) == l.pageSize {
			next = cursor + 1
		}
		return out, next, nil
	})
}

// tailWindow reads the page-th window counting back from the tail. The
// store clamps out-of-range windows, so a short read means the head was
// reached and an empty read means the pass is over.
func (l *List[V]) tailWindow(ctx context.Context, page uint64) ([][]byte, error) {
	size := int64(l.pageSize)
	start := -(int64(page) + 1) * size
	stop := -int64(page)*size - 1
	return l.store.LRange(ctx, l.ks.Key(), start, stop)
}

// Reverse reverses the list in place. The list is rebuilt in reverse-order
// chunks under a disposable temporary key which is then renamed over the
// original, costing O(n) round trips bounded by the page size rather than
// O(n log n) pairwise swaps.
func (l *List[V]) Reverse(ctx context.Context) error {
	key := l.ks.Key()
	tmp := l.ks.Elem(newSentinel())
	var moved int64
	for page := uint64(0); ; page++ {
		chunk, err := l.tailWindow(ctx, page)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			break
		}
		rev := make([][]byte, len(chunk))
		for i, data := range chunk {
			rev[len(chunk)-1-i] = data
		}
		if _, err := l.store.RPush(ctx, tmp, rev...); err != nil {
			return err
		}
		moved += int64(len(chunk))
		if len(chunk) < l.pageSize {
			break
		}
	}
	if moved == 0 {
		return nil
	}
	l.log("list %s: reversed %d elements via %s", key, moved, tmp)
	return l.store.Rename(ctx, tmp, key)
}

// Index returns the position of the first element equal to value, or
// ErrNotFound. Linear scan.
func (l *List[V]) Index(ctx context.Context, value V) (int64, error) {
	needle, err := l.encode(value)
	if err != nil {
		return 0, err
	}
	var pos int64
	for page := uint64(0); ; page++ {
		start := int64(page) * int64(l.pageSize)
		chunk, err := l.store.LRange(ctx, l.ks.Key(), start, start+int64(l.pageSize)-1)
		if err != nil {
			return 0, err
		}
		for _, data := range chunk {
			if bytes.Equal(data, needle) {
				return pos, nil
			}
			pos++
		}
		if len(chunk) < l.pageSize {
			return 0, ErrNotFound
		}
	}
}

// Count returns the number of elements equal to value. Linear scan.
func (l *List[V]) Count(ctx context.Context, value V) (int64, error) {
	needle, err := l.encode(value)
	if err != nil {
		return 0, err
	}
	var n int64
	for page := uint64(0); ; page++ {
		start := int64(page) * int64(l.pageSize)
		chunk, err := l.store.LRange(ctx, l.ks.Key(), start, start+int64(l.pageSize)-1)
		if err != nil {
			return 0, err
		}
		for _, data := range chunk {
			if bytes.Equal(data, needle) {
				n++
			}
		}
		if len(chunk) < l.pageSize {
			return n, nil
		}
	}
}

// Contains reports whether value occurs in the list. Linear scan.
func (l *List[V]) Contains(ctx context.Context, value V) (bool, error) {
	_, err := l.Index(ctx, value)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Repair strips sentinel markers stranded by an Insert or PopAt that failed
// between steps, and returns how many it removed. Safe to run concurrently
// with normal operations.
func (l *List[V]) Repair(ctx context.Context) (int64, error) {
	var removed int64
	for page := uint64(0); ; page++ {
		start := int64(page) * int64(l.pageSize)
		chunk, err := l.store.LRange(ctx, l.ks.Key(), start, start+int64(l.pageSize)-1)
		if err != nil {
			return removed, err
		}
		for _, data := range chunk {
			var s string
			if l.codec.Decode(data, &s) != nil {
				continue
			}
			if len(s) >= len(sentinelPrefix) && s[:len(sentinelPrefix)] == sentinelPrefix {
				n, err := l.store.LRem(ctx, l.ks.Key(), 0, data)
				if err != nil {
					return removed, err
				}
				removed += n
			}
		}
		if len(chunk) < l.pageSize {
			break
		}
	}
	if removed > 0 {
		l.log("list %s: repaired %d stray sentinels", l.ks.Key(), removed)
	}
	return removed, nil
}

// Clear deletes the whole container key.
func (l *List[V]) Clear(ctx context.Context) error {
	_, err := l.store.Del(ctx, l.ks.Key())
	return err
}

func (l *List[V]) encodeAll(values []V) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		data, err := l.encode(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}
