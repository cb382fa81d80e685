package redstruct

import (
	"context"
	"errors"
)

// Hash stores its elements as fields of a single store hash key. Compared
// to Map/Dict this packs small collections far more efficiently and makes
// iteration cheap; Len is native. The whole container shares one TTL.
type Hash[V any] struct {
	base
	keyExpiry
}

func NewHash[V any](store Store, name string, opt Options) *Hash[V] {
	b := newBase(store, name, DefaultHashPrefix, opt)
	return &Hash[V]{base: b, keyExpiry: keyExpiry{expst: store, key: b.ks.Key()}}
}

// Set writes field to value.
func (h *Hash[V]) Set(ctx context.Context, field string, value V) error {
	data, err := h.encode(value)
	if err != nil {
		return err
	}
	_, err = h.store.HSet(ctx, h.ks.Key(), FV{Field: field, Value: data})
	return err
}

// Get returns the value at field, or ErrNotFound.
func (h *Hash[V]) Get(ctx context.Context, field string) (V, error) {
	var v V
	data, err := h.store.HGet(ctx, h.ks.Key(), field)
	if err != nil {
		return v, err
	}
	err = h.decode(data, &v)
	return v, err
}

// GetOr returns the value at field, or def when the field is absent.
func (h *Hash[V]) GetOr(ctx context.Context, field string, def V) (V, error) {
	v, err := h.Get(ctx, field)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return v, err
}

// Contains reports whether field exists.
func (h *Hash[V]) Contains(ctx context.Context, field string) (bool, error) {
	return h.store.HExists(ctx, h.ks.Key(), field)
}

// Delete removes fields and returns how many existed.
func (h *Hash[V]) Delete(ctx context.Context, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	return h.store.HDel(ctx, h.ks.Key(), fields...)
}

// Pop removes field and returns its former value, or ErrNotFound.
func (h *Hash[V]) Pop(ctx context.Context, field string) (V, error) {
	v, err := h.Get(ctx, field)
	if err != nil {
		return v, err
	}
	_, err = h.Delete(ctx, field)
	return v, err
}

// Len returns the number of fields.
func (h *Hash[V]) Len(ctx context.Context) (int64, error) {
	return h.store.HLen(ctx, h.ks.Key())
}

// IncrBy atomically adjusts the integer at field, bypassing the codec.
func (h *Hash[V]) IncrBy(ctx context.Context, field string, delta int64) (int64, error) {
	return h.store.HIncrBy(ctx, h.ks.Key(), field, delta)
}

// DecrBy atomically adjusts the integer at field by -delta.
func (h *Hash[V]) DecrBy(ctx context.Context, field string, delta int64) (int64, error) {
	return h.store.HIncrBy(ctx, h.ks.Key(), field, -delta)
}

// MGet fetches several fields in one round trip, with presence flags.
func (h *Hash[V]) MGet(ctx context.Context, fields ...string) (values []V, present []bool, err error) {
	if len(fields) == 0 {
		return nil, nil, nil
	}
	raw, err := h.store.HMGet(ctx, h.ks.Key(), fields...)
	if err != nil {
		return nil, nil, err
	}
	values = make([]V, len(fields))
	present = make([]bool, len(fields))
	for i, data := range raw {
		if data == nil {
			continue
		}
		if err := h.decode(data, &values[i]); err != nil {
			return nil, nil, err
		}
		present[i] = true
	}
	return values, present, nil
}

// Update writes all entries of data in one round trip.
func (h *Hash[V]) Update(ctx context.Context, data map[string]V) error {
	if len(data) == 0 {
		return nil
	}
	pairs := make([]FV, 0, len(data))
	for f, v := range data {
		raw, err := h.encode(v)
		if err != nil {
			return err
		}
		pairs = append(pairs, FV{Field: f, Value: raw})
	}
	_, err := h.store.HSet(ctx, h.ks.Key(), pairs...)
	return err
}

// Keys returns all field names. For very large hashes prefer Items with a
// pattern, which pages through the store's scan.
func (h *Hash[V]) Keys(ctx context.Context) ([]string, error) {
	return h.store.HKeys(ctx, h.ks.Key())
}

// Values returns all decoded values.
func (h *Hash[V]) Values(ctx context.Context) ([]V, error) {
	raw, err := h.store.HVals(ctx, h.ks.Key())
	if err != nil {
		return nil, err
	}
	out := make([]V, len(raw))
	for i, data := range raw {
		if err := h.decode(data, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Items starts a scan pass over field/value entries matching the glob
// pattern (use "*" for all).
func (h *Hash[V]) Items(ctx context.Context, match string) *Cursor[Item[V]] {
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]Item[V], uint64, error) {
		page, next, err := h.store.HScan(ctx, h.ks.Key(), cursor, match, int64(h.pageSize))
		if err != nil {
			return nil, 0, err
		}
		items := make([]Item[V], len(page))
		for i, fv := range page {
			items[i].Key = fv.Field
			if err := h.decode(fv.Value, &items[i].Value); err != nil {
				return nil, 0, err
			}
		}
		return items, next, nil
	})
}

// All collects every entry into a map.
func (h *Hash[V]) All(ctx context.Context) (map[string]V, error) {
	raw, err := h.store.HGetAll(ctx, h.ks.Key())
	if err != nil {
		return nil, err
	}
	out := make(map[string]V, len(raw))
	for _, fv := range raw {
		var v V
		if err := h.decode(fv.Value, &v); err != nil {
			return nil, err
		}
		out[fv.Field] = v
	}
	return out, nil
}

// Clear deletes the whole container key.
func (h *Hash[V]) Clear(ctx context.Context) error {
	_, err := h.store.Del(ctx, h.ks.Key())
	return err
}
