package redstruct

import (
	"sort"
	"testing"
	"time"
)

func TestMap(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		m := NewMap[string](store, "cities", Options{})
		eq(t, m.Key(), "rs:map:cities")

		ok(t, m.Set(bg, "fr", "Paris"))
		ok(t, m.Set(bg, "jp", "Tokyo"))
		eq(t, must(m.Get(bg, "fr")), "Paris")
		eq(t, must(m.Contains(bg, "jp")), true)
		eq(t, must(m.Contains(bg, "xx")), false)

		_, err := m.Get(bg, "xx")
		wants(t, err, ErrNotFound)
		eq(t, must(m.GetOr(bg, "xx", "nowhere")), "nowhere")
		eq(t, must(m.GetOr(bg, "fr", "nowhere")), "Paris")

		eq(t, must(m.Delete(bg, "fr", "xx")), 1)
		eq(t, must(m.Contains(bg, "fr")), false)

		v, err := m.Pop(bg, "jp")
		ok(t, err)
		eq(t, v, "Tokyo")
		eq(t, must(m.Contains(bg, "jp")), false)
		_, err = m.Pop(bg, "jp")
		wants(t, err, ErrNotFound)
	})
}

func TestMapStructValues(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		m := NewMap[profile](store, "profiles", Options{Codec: Msgpack{}})
		in := profile{Name: "ada", Visits: 3}
		ok(t, m.Set(bg, "ada", in))
		deepEqual(t, must(m.Get(bg, "ada")), in)
	})
}

func TestMapCounters(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		m := NewMap[int64](store, "visits", Options{})
		eq(t, must(m.IncrBy(bg, "home", 3)), 3)
		eq(t, must(m.IncrBy(bg, "home", 2)), 5)
		eq(t, must(m.DecrBy(bg, "home", 1)), 4)
		// The counter reads back through the codec.
		eq(t, must(m.Get(bg, "home")), 4)
	})
}

func TestMapMGetUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		m := NewMap[string](store, "cities", Options{})
		ok(t, m.Update(bg, map[string]string{"fr": "Paris", "jp": "Tokyo", "de": "Berlin"}))

		values, present, err := m.MGet(bg, "fr", "xx", "de")
		ok(t, err)
		deepEqual(t, values, []string{"Paris", "", "Berlin"})
		deepEqual(t, present, []bool{true, false, true})

		values, present, err = m.MGet(bg)
		ok(t, err)
		eq(t, len(values), 0)
		eq(t, len(present), 0)
	})
}

func TestMapExpiry(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		m := NewMap[string](store, "sessions", Options{})
		ok(t, m.Set(bg, "s1", "alive"))
		eq(t, must(m.Expire(bg, "s1", time.Hour)), true)
		if d := must(m.TTL(bg, "s1")); d <= 0 {
			t.Errorf("** TTL %v, wanted positive", d)
		}
		eq(t, must(m.Persist(bg, "s1")), true)
		eq(t, must(m.TTL(bg, "s1")), 0)

		ok(t, m.SetEx(bg, "s2", "gone", -time.Second))
		eq(t, must(m.Contains(bg, "s2")), false)

		eq(t, must(m.ExpireAt(bg, "s1", time.Now().Add(-time.Minute))), true)
		eq(t, must(m.Contains(bg, "s1")), false)
	})
}

func TestMapScans(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		m := NewMap[string](store, "cities", Options{PageSize: 2})
		data := map[string]string{"fr": "Paris", "jp": "Tokyo", "de": "Berlin", "it": "Rome", "uk": "London"}
		ok(t, m.Update(bg, data))

		// An unrelated container under a scan-visible prefix must not leak in.
		other := NewMap[string](store, "countries", Options{PageSize: 2})
		ok(t, other.Set(bg, "fr", "France"))

		keys, err := m.Keys(bg, "*").All()
		ok(t, err)
		sort.Strings(keys)
		deepEqual(t, keys, []string{"de", "fr", "it", "jp", "uk"})

		keys, err = m.Keys(bg, "f*").All()
		ok(t, err)
		deepEqual(t, keys, []string{"fr"})

		deepEqual(t, must(m.All(bg)), data)

		items, err := m.Items(bg, "j*").All()
		ok(t, err)
		deepEqual(t, items, []Item[string]{{Key: "jp", Value: "Tokyo"}})
	})
}

func TestMapScanPageSizes(t *testing.T) {
	// Whatever the page size, one pass sees each key exactly once.
	eachStore(t, func(t *testing.T, store Store) {
		for _, pageSize := range []int{1, 3, 1000} {
			m := NewMap[int](store, "nums", Options{PageSize: pageSize})
			want := make(map[string]int)
			for _, k := range []string{"a", "b", "c", "d", "e", "f", "g"} {
				ok(t, m.Set(bg, k, len(k)))
				want[k] = 1
			}
			var seen []string
			c := m.Keys(bg, "*")
			for c.Next() {
				seen = append(seen, c.Item())
			}
			ok(t, c.Err())
			eq(t, len(seen), len(want))
			for _, k := range seen {
				if want[k] != 1 {
					t.Errorf("** page size %d: key %q seen more than once", pageSize, k)
				}
				want[k]--
			}
		}
	})
}

func TestMapClear(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		m := NewMap[string](store, "cities", Options{PageSize: 2})
		ok(t, m.Update(bg, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"}))
		keep := NewMap[string](store, "other", Options{})
		ok(t, keep.Set(bg, "x", "y"))

		ok(t, m.Clear(bg))
		keys, err := m.Keys(bg, "*").All()
		ok(t, err)
		eq(t, len(keys), 0)
		eq(t, must(keep.Contains(bg, "x")), true)
	})
}
