package redstruct

import (
	"context"
	"errors"
	"time"
)

// DefaultMapPrefix is the namespace prefix used by NewMap when Options.Prefix
// is empty; the other kinds have analogous defaults.
const (
	DefaultMapPrefix       = "rs:map"
	DefaultDictPrefix      = "rs:dict"
	DefaultHashPrefix      = "rs:hash"
	DefaultListPrefix      = "rs:list"
	DefaultSetPrefix       = "rs:set"
	DefaultSortedSetPrefix = "rs:sorted_set"
)

// Map is a key/value mapping with one store key per element
// ("prefix:name:key"). It has no Len: the size of a Map is unmonitored.
// Use Dict when you need O(1) length, or Hash when you iterate a lot.
type Map[V any] struct {
	base
}

func NewMap[V any](store Store, name string, opt Options) *Map[V] {
	return &Map[V]{base: newBase(store, name, DefaultMapPrefix, opt)}
}

// Set writes key to value.
func (m *Map[V]) Set(ctx context.Context, key string, value V) error {
	data, err := m.encode(value)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.ks.Elem(key), data)
}

// SetEx writes key to value with a time to live.
func (m *Map[V]) SetEx(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := m.encode(value)
	if err != nil {
		return err
	}
	return m.store.SetEx(ctx, m.ks.Elem(key), data, ttl)
}

// Get returns the value at key, or ErrNotFound.
func (m *Map[V]) Get(ctx context.Context, key string) (V, error) {
	var v V
	data, err := m.store.Get(ctx, m.ks.Elem(key))
	if err != nil {
		return v, err
	}
	err = m.decode(data, &v)
	return v, err
}

// GetOr returns the value at key, or def when the key is absent.
// Store and decode errors still propagate.
func (m *Map[V]) GetOr(ctx context.Context, key string, def V) (V, error) {
	v, err := m.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return v, err
}

// Contains reports whether key exists.
func (m *Map[V]) Contains(ctx context.Context, key string) (bool, error) {
	return m.store.Exists(ctx, m.ks.Elem(key))
}

// Delete removes keys and returns how many existed.
func (m *Map[V]) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.ks.Elem(k)
	}
	return m.store.Del(ctx, full...)
}

// Pop removes key and returns its former value, or ErrNotFound.
func (m *Map[V]) Pop(ctx context.Context, key string) (V, error) {
	v, err := m.Get(ctx, key)
	if err != nil {
		return v, err
	}
	_, err = m.Delete(ctx, key)
	return v, err
}

// IncrBy atomically adjusts the integer at key by delta and returns the new
// value. The stored representation bypasses the codec: it is always a
// store-native decimal string.
func (m *Map[V]) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return m.store.IncrBy(ctx, m.ks.Elem(key), delta)
}

// DecrBy atomically adjusts the integer at key by -delta.
func (m *Map[V]) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return m.store.IncrBy(ctx, m.ks.Elem(key), -delta)
}

// MGet fetches several keys in one round trip. present[i] reports whether
// keys[i] existed; values[i] is the zero value otherwise.
func (m *Map[V]) MGet(ctx context.Context, keys ...string) (values []V, present []bool, err error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.ks.Elem(k)
	}
	raw, err := m.store.MGet(ctx, full...)
	if err != nil {
		return nil, nil, err
	}
	values = make([]V, len(keys))
	present = make([]bool, len(keys))
	for i, data := range raw {
		if data == nil {
			continue
		}
		if err := m.decode(data, &values[i]); err != nil {
			return nil, nil, err
		}
		present[i] = true
	}
	return values, present, nil
}

// Update writes all entries of data in one round trip.
func (m *Map[V]) Update(ctx context.Context, data map[string]V) error {
	if len(data) == 0 {
		return nil
	}
	pairs := make([]KV, 0, len(data))
	for k, v := range data {
		raw, err := m.encode(v)
		if err != nil {
			return err
		}
		pairs = append(pairs, KV{Key: m.ks.Elem(k), Value: raw})
	}
	return m.store.MSet(ctx, pairs)
}

// TTL returns the remaining time to live of key (0 = no expiration).
func (m *Map[V]) TTL(ctx context.Context, key string) (time.Duration, error) {
	return m.store.TTL(ctx, m.ks.Elem(key))
}

// Expire sets the time to live of key.
func (m *Map[V]) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.store.Expire(ctx, m.ks.Elem(key), ttl)
}

// ExpireAt sets an absolute expiration time for key.
func (m *Map[V]) ExpireAt(ctx context.Context, key string, at time.Time) (bool, error) {
	return m.store.ExpireAt(ctx, m.ks.Elem(key), at)
}

// Persist removes any expiration from key.
func (m *Map[V]) Persist(ctx context.Context, key string) (bool, error) {
	return m.store.Persist(ctx, m.ks.Elem(key))
}

// Keys starts a scan pass over element keys matching the glob pattern
// (use "*" for all). Keys come back without the container prefix.
func (m *Map[V]) Keys(ctx context.Context, match string) *Cursor[string] {
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]string, uint64, error) {
		full, next, err := m.store.Scan(ctx, cursor, m.ks.Match(match), int64(m.pageSize))
		if err != nil {
			return nil, 0, err
		}
		keys := make([]string, len(full))
		for i, k := range full {
			keys[i] = m.ks.TrimElem(k)
		}
		return keys, next, nil
	})
}

// Items starts a scan pass over key/value entries matching the glob pattern.
// Each page of keys is resolved with one MGET. Entries deleted between the
// scan and the fetch are skipped.
func (m *Map[V]) Items(ctx context.Context, match string) *Cursor[Item[V]] {
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]Item[V], uint64, error) {
		full, next, err := m.store.Scan(ctx, cursor, m.ks.Match(match), int64(m.pageSize))
		if err != nil {
			return nil, 0, err
		}
		if len(full) == 0 {
			return nil, next, nil
		}
		raw, err := m.store.MGet(ctx, full...)
		if err != nil {
			return nil, 0, err
		}
		items := make([]Item[V], 0, len(full))
		for i, data := range raw {
			if data == nil {
				continue
			}
			var v V
			if err := m.decode(data, &v); err != nil {
				return nil, 0, err
			}
			items = append(items, Item[V]{Key: m.ks.TrimElem(full[i]), Value: v})
		}
		return items, next, nil
	})
}

// All collects every entry into a map. This can get very expensive.
func (m *Map[V]) All(ctx context.Context) (map[string]V, error) {
	out := make(map[string]V)
	c := m.Items(ctx, "*")
	for c.Next() {
		it := c.Item()
		out[it.Key] = it.Value
	}
	return out, c.Err()
}

// Clear deletes every element key of this container, page by page.
func (m *Map[V]) Clear(ctx context.Context) error {
	return clearKeys(ctx, m.store, m.ks, m.pageSize, nil)
}

// clearKeys sweeps all element keys under ks, deleting them in pages, then
// runs finish (if any) as part of the last batch.
func clearKeys(ctx context.Context, store Store, ks keyspace, pageSize int, finish []Cmd) error {
	var cursor uint64
	for {
		keys, next, err := store.Scan(ctx, cursor, ks.Match("*"), int64(pageSize))
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if _, err := store.Del(ctx, keys...); err != nil {
				return err
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	if len(finish) > 0 {
		_, err := store.Exec(ctx, false, finish)
		return err
	}
	return nil
}
