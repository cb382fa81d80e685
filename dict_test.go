package redstruct

import (
	"strings"
	"testing"
	"time"
)

func TestDictLen(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		d := NewDict[string](store, "users", Options{})
		eq(t, must(d.Len(bg)), 0)

		ok(t, d.Set(bg, "a", "1"))
		ok(t, d.Set(bg, "b", "2"))
		eq(t, must(d.Len(bg)), 2)

		// Overwrites don't grow the count.
		ok(t, d.Set(bg, "a", "changed"))
		eq(t, must(d.Len(bg)), 2)

		eq(t, must(d.Delete(bg, "a")), 1)
		eq(t, must(d.Len(bg)), 1)

		// Deleting a missing key is size-neutral.
		eq(t, must(d.Delete(bg, "a")), 0)
		eq(t, must(d.Len(bg)), 1)

		eq(t, must(d.Get(bg, "b")), "2")
	})
}

func TestDictBucketKey(t *testing.T) {
	store := memSetup(t)
	d := NewDict[string](store, "users", Options{})
	if !strings.HasPrefix(d.BucketKey(), "rs:dict.size.") {
		t.Errorf("** bucket key %q lacks the shared prefix", d.BucketKey())
	}
	// The counter key is shared across dicts, not per-element.
	e := NewDict[string](store, "users", Options{})
	eq(t, d.BucketKey(), e.BucketKey())
}

func TestDictUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		d := NewDict[string](store, "users", Options{})
		ok(t, d.Set(bg, "a", "old"))
		ok(t, d.Update(bg, map[string]string{"a": "new", "b": "2", "c": "3"}))
		eq(t, must(d.Len(bg)), 3) // one preexisting, two new
		eq(t, must(d.Get(bg, "a")), "new")

		eq(t, must(d.Delete(bg, "a", "b", "missing")), 2)
		eq(t, must(d.Len(bg)), 1)
	})
}

func TestDictIncrBy(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		d := NewDict[int64](store, "visits", Options{})
		eq(t, must(d.IncrBy(bg, "home", 3)), 3)
		eq(t, must(d.Len(bg)), 1) // creation counted
		eq(t, must(d.IncrBy(bg, "home", 2)), 5)
		eq(t, must(d.Len(bg)), 1) // adjustment not counted
		eq(t, must(d.DecrBy(bg, "home", 1)), 4)
		eq(t, must(d.Get(bg, "home")), 4)
	})
}

func TestDictPop(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		d := NewDict[string](store, "users", Options{})
		ok(t, d.Set(bg, "a", "1"))
		v, err := d.Pop(bg, "a")
		ok(t, err)
		eq(t, v, "1")
		eq(t, must(d.Len(bg)), 0)
		_, err = d.Pop(bg, "a")
		wants(t, err, ErrNotFound)
	})
}

func TestDictClear(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		d := NewDict[string](store, "users", Options{PageSize: 2})
		ok(t, d.Update(bg, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"}))
		eq(t, must(d.Len(bg)), 5)

		ok(t, d.Clear(bg))
		eq(t, must(d.Len(bg)), 0)
		eq(t, must(d.Contains(bg, "a")), false)

		// Clearing twice is harmless.
		ok(t, d.Clear(bg))
		eq(t, must(d.Len(bg)), 0)
	})
}

func TestDictSeparateCounters(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		a := NewDict[string](store, "alpha", Options{})
		b := NewDict[string](store, "beta", Options{})
		ok(t, a.Set(bg, "x", "1"))
		ok(t, a.Set(bg, "y", "2"))
		ok(t, b.Set(bg, "x", "1"))
		eq(t, must(a.Len(bg)), 2)
		eq(t, must(b.Len(bg)), 1)
	})
}

func TestDictNoExpiry(t *testing.T) {
	store := memSetup(t)
	d := NewDict[string](store, "users", Options{})
	ok(t, d.Set(bg, "a", "1"))

	wants(t, d.SetEx(bg, "a", "1", time.Hour), ErrUnsupported)
	_, err := d.TTL(bg, "a")
	wants(t, err, ErrUnsupported)
	_, err = d.Expire(bg, "a", time.Hour)
	wants(t, err, ErrUnsupported)
	_, err = d.ExpireAt(bg, "a", time.Now())
	wants(t, err, ErrUnsupported)
	_, err = d.Persist(bg, "a")
	wants(t, err, ErrUnsupported)
}
