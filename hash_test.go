package redstruct

import (
	"sort"
	"testing"
	"time"
)

func TestHash(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		h := NewHash[string](store, "settings", Options{})
		eq(t, h.Key(), "rs:hash:settings")

		ok(t, h.Set(bg, "theme", "dark"))
		ok(t, h.Set(bg, "lang", "en"))
		eq(t, must(h.Get(bg, "theme")), "dark")
		eq(t, must(h.Len(bg)), 2)
		eq(t, must(h.Contains(bg, "lang")), true)
		eq(t, must(h.Contains(bg, "nope")), false)

		_, err := h.Get(bg, "nope")
		wants(t, err, ErrNotFound)
		eq(t, must(h.GetOr(bg, "nope", "fallback")), "fallback")

		eq(t, must(h.Delete(bg, "theme", "nope")), 1)
		eq(t, must(h.Len(bg)), 1)

		v, err := h.Pop(bg, "lang")
		ok(t, err)
		eq(t, v, "en")
		eq(t, must(h.Len(bg)), 0)
	})
}

func TestHashCounters(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		h := NewHash[int64](store, "tallies", Options{})
		eq(t, must(h.IncrBy(bg, "clicks", 2)), 2)
		eq(t, must(h.IncrBy(bg, "clicks", 3)), 5)
		eq(t, must(h.DecrBy(bg, "clicks", 1)), 4)
		eq(t, must(h.Get(bg, "clicks")), 4)
	})
}

func TestHashBulk(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		h := NewHash[string](store, "settings", Options{})
		data := map[string]string{"theme": "dark", "lang": "en", "tz": "UTC"}
		ok(t, h.Update(bg, data))

		values, present, err := h.MGet(bg, "theme", "nope", "tz")
		ok(t, err)
		deepEqual(t, values, []string{"dark", "", "UTC"})
		deepEqual(t, present, []bool{true, false, true})

		keys := must(h.Keys(bg))
		sort.Strings(keys)
		deepEqual(t, keys, []string{"lang", "theme", "tz"})

		vals := must(h.Values(bg))
		sort.Strings(vals)
		deepEqual(t, vals, []string{"UTC", "dark", "en"})

		deepEqual(t, must(h.All(bg)), data)

		items, err := h.Items(bg, "t*").All()
		ok(t, err)
		got := make(map[string]string)
		for _, it := range items {
			got[it.Key] = it.Value
		}
		deepEqual(t, got, map[string]string{"theme": "dark", "tz": "UTC"})
	})
}

func TestHashClearAndExpiry(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		h := NewHash[string](store, "settings", Options{})
		ok(t, h.Set(bg, "theme", "dark"))

		eq(t, must(h.Expire(bg, time.Hour)), true)
		if d := must(h.TTL(bg)); d <= 0 {
			t.Errorf("** TTL %v, wanted positive", d)
		}
		eq(t, must(h.Persist(bg)), true)

		ok(t, h.Clear(bg))
		eq(t, must(h.Len(bg)), 0)
	})
}
