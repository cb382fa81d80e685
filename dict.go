package redstruct

import (
	"context"
	"errors"
	"time"
)

// Dict is a Map that additionally tracks its own length, making Len O(1)
// regardless of size. Counts live in shared bucket hash keys
// ("prefix.size.N"), one field per dict, so many small dicts amortize the
// key overhead of length tracking.
//
// The count is best-effort convergent, not strict: every write/delete pairs
// the element command with a conditional counter adjustment in the same
// batch, but the existence check that gates the adjustment runs before the
// batch. Two clients concurrently creating the same element can both see it
// absent and overcount by one. Update is exempt: it computes the adjustment
// for the whole mapping in a single pass.
//
// Dict deliberately has no per-element TTL operations: an element expiring
// behind the adapter's back would silently desynchronize the counter, so
// the whole family returns ErrUnsupported.
type Dict[V any] struct {
	Map[V]
	sizeMod int
}

func NewDict[V any](store Store, name string, opt Options) *Dict[V] {
	sizeMod := opt.SizeMod
	if sizeMod <= 0 {
		sizeMod = 5
	}
	return &Dict[V]{
		Map:     Map[V]{base: newBase(store, name, DefaultDictPrefix, opt)},
		sizeMod: sizeMod,
	}
}

// BucketKey returns the shared store key holding this dict's length counter.
func (d *Dict[V]) BucketKey() string {
	key, _ := d.ks.Bucket(d.sizeMod)
	return key
}

// Len returns the tracked number of elements. One field read, O(1).
func (d *Dict[V]) Len(ctx context.Context) (int64, error) {
	bk, bf := d.ks.Bucket(d.sizeMod)
	data, err := d.store.HGet(ctx, bk, bf)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int64
	if err := (Raw{}).Decode(data, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Set writes key to value and bumps the counter if the key was absent.
func (d *Dict[V]) Set(ctx context.Context, key string, value V) error {
	data, err := d.encode(value)
	if err != nil {
		return err
	}
	return d.writeCounted(ctx, key, setCmd(d.ks.Elem(key), data))
}

// IncrBy adjusts the integer at key, bumping the counter if the key was
// absent (the store creates it at delta). The stored value bypasses the
// codec, same as Map.IncrBy.
func (d *Dict[V]) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	exists, err := d.store.Exists(ctx, d.ks.Elem(key))
	if err != nil {
		return 0, err
	}
	cmds := []Cmd{incrByCmd(d.ks.Elem(key), delta)}
	if !exists {
		bk, bf := d.ks.Bucket(d.sizeMod)
		cmds = append(cmds, hincrByCmd(bk, bf, 1))
	}
	replies, err := d.store.Exec(ctx, false, cmds)
	if err != nil {
		return 0, err
	}
	return replies[0].Int, nil
}

// DecrBy adjusts the integer at key by -delta.
func (d *Dict[V]) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return d.IncrBy(ctx, key, -delta)
}

func (d *Dict[V]) writeCounted(ctx context.Context, key string, write Cmd) error {
	exists, err := d.store.Exists(ctx, d.ks.Elem(key))
	if err != nil {
		return err
	}
	cmds := []Cmd{write}
	if !exists {
		bk, bf := d.ks.Bucket(d.sizeMod)
		cmds = append(cmds, hincrByCmd(bk, bf, 1))
	}
	_, err = d.store.Exec(ctx, false, cmds)
	return err
}

// Delete removes keys, decrementing the counter by the number that existed.
func (d *Dict[V]) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	checks := make([]Cmd, len(keys))
	for i, k := range keys {
		full[i] = d.ks.Elem(k)
		checks[i] = existsCmd(full[i])
	}
	replies, err := d.store.Exec(ctx, false, checks)
	if err != nil {
		return 0, err
	}
	var present int64
	for _, r := range replies {
		if r.Bool {
			present++
		}
	}
	if present == 0 {
		return 0, nil
	}
	bk, bf := d.ks.Bucket(d.sizeMod)
	replies, err = d.store.Exec(ctx, false, []Cmd{
		delCmd(full...),
		hincrByCmd(bk, bf, -present),
	})
	if err != nil {
		return 0, err
	}
	return replies[0].Int, nil
}

// Pop removes key and returns its former value, or ErrNotFound.
func (d *Dict[V]) Pop(ctx context.Context, key string) (V, error) {
	v, err := d.Get(ctx, key)
	if err != nil {
		return v, err
	}
	_, err = d.Delete(ctx, key)
	return v, err
}

// Update writes all entries of data and adjusts the counter by the number
// of genuinely new keys, all computed in one existence pass so concurrent
// Updates of the same batch cannot skew the count against each other.
func (d *Dict[V]) Update(ctx context.Context, data map[string]V) error {
	if len(data) == 0 {
		return nil
	}
	pairs := make([]KV, 0, len(data))
	checks := make([]Cmd, 0, len(data))
	for k, v := range data {
		raw, err := d.encode(v)
		if err != nil {
			return err
		}
		full := d.ks.Elem(k)
		pairs = append(pairs, KV{Key: full, Value: raw})
		checks = append(checks, existsCmd(full))
	}
	replies, err := d.store.Exec(ctx, false, checks)
	if err != nil {
		return err
	}
	var preexisting int64
	for _, r := range replies {
		if r.Bool {
			preexisting++
		}
	}
	bk, bf := d.ks.Bucket(d.sizeMod)
	_, err = d.store.Exec(ctx, false, []Cmd{
		msetCmd(pairs),
		hincrByCmd(bk, bf, int64(len(pairs))-preexisting),
	})
	return err
}

// Clear deletes every element key, then drops the counter field. A failure
// mid-sweep leaves the counter out of sync with the remaining keys; calling
// Clear again converges.
func (d *Dict[V]) Clear(ctx context.Context) error {
	bk, bf := d.ks.Bucket(d.sizeMod)
	err := clearKeys(ctx, d.store, d.ks, d.pageSize, []Cmd{hdelCmd(bk, bf)})
	if err != nil {
		d.log("dict %s: clear interrupted, rerun to converge: %v", d.ks.Key(), err)
	}
	return err
}

// SetEx is not supported: see the type comment.
func (d *Dict[V]) SetEx(ctx context.Context, key string, value V, ttl time.Duration) error {
	return ErrUnsupported
}

// TTL is not supported: see the type comment.
func (d *Dict[V]) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, ErrUnsupported
}

// Expire is not supported: see the type comment.
func (d *Dict[V]) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, ErrUnsupported
}

// ExpireAt is not supported: see the type comment.
func (d *Dict[V]) ExpireAt(ctx context.Context, key string, at time.Time) (bool, error) {
	return false, ErrUnsupported
}

// Persist is not supported: see the type comment.
func (d *Dict[V]) Persist(ctx context.Context, key string) (bool, error) {
	return false, ErrUnsupported
}
