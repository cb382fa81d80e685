package redstruct

import (
	"bytes"
	"errors"
	"sort"
	"testing"
	"time"
)

func TestStoreStrings(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		_, err := store.Get(bg, "k")
		wants(t, err, ErrNotFound)

		ok(t, store.Set(bg, "k", []byte("v1")))
		deepEqual(t, must(store.Get(bg, "k")), []byte("v1"))
		eq(t, must(store.Exists(bg, "k")), true)

		ok(t, store.Set(bg, "k", []byte("v2")))
		deepEqual(t, must(store.Get(bg, "k")), []byte("v2"))

		eq(t, must(store.Del(bg, "k", "missing")), 1)
		eq(t, must(store.Exists(bg, "k")), false)

		eq(t, must(store.IncrBy(bg, "n", 5)), 5)
		eq(t, must(store.IncrBy(bg, "n", -2)), 3)
		deepEqual(t, must(store.Get(bg, "n")), []byte("3"))
		ok(t, store.Set(bg, "junk", []byte("zzz")))
		if _, err := store.IncrBy(bg, "junk", 1); err == nil {
			t.Errorf("** INCRBY accepted a non-numeric value")
		}

		ok(t, store.MSet(bg, []KV{{"a", []byte("1")}, {"b", []byte("2")}}))
		vals := must(store.MGet(bg, "a", "missing", "b"))
		deepEqual(t, vals, [][]byte{[]byte("1"), nil, []byte("2")})

		ok(t, store.Rename(bg, "a", "c"))
		eq(t, must(store.Exists(bg, "a")), false)
		deepEqual(t, must(store.Get(bg, "c")), []byte("1"))
		wants(t, store.Rename(bg, "missing", "d"), ErrNotFound)
	})
}

func TestStoreExpiry(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ok(t, store.Set(bg, "k", []byte("v")))
		eq(t, must(store.TTL(bg, "k")), 0) // no expiration

		eq(t, must(store.Expire(bg, "k", time.Hour)), true)
		if d := must(store.TTL(bg, "k")); d <= 0 || d > time.Hour {
			t.Errorf("** TTL %v out of range", d)
		}
		eq(t, must(store.Persist(bg, "k")), true)
		eq(t, must(store.TTL(bg, "k")), 0)
		eq(t, must(store.Persist(bg, "k")), false) // already persistent

		// A deadline in the past evicts on next touch.
		eq(t, must(store.ExpireAt(bg, "k", time.Now().Add(-time.Second))), true)
		eq(t, must(store.Exists(bg, "k")), false)
		_, err := store.Get(bg, "k")
		wants(t, err, ErrNotFound)

		ok(t, store.SetEx(bg, "e", []byte("v"), -time.Second))
		eq(t, must(store.Exists(bg, "e")), false)

		eq(t, must(store.Expire(bg, "missing", time.Hour)), false)
		_, err = store.TTL(bg, "missing")
		wants(t, err, ErrNotFound)
	})
}

func TestStoreHashes(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		_, err := store.HGet(bg, "h", "f")
		wants(t, err, ErrNotFound)

		eq(t, must(store.HSet(bg, "h", FV{"a", []byte("1")}, FV{"b", []byte("2")})), 2)
		eq(t, must(store.HSet(bg, "h", FV{"a", []byte("9")})), 0) // overwrite, not new
		deepEqual(t, must(store.HGet(bg, "h", "a")), []byte("9"))
		eq(t, must(store.HLen(bg, "h")), 2)
		eq(t, must(store.HExists(bg, "h", "b")), true)
		eq(t, must(store.HExists(bg, "h", "z")), false)

		eq(t, must(store.HIncrBy(bg, "h", "n", 4)), 4)
		eq(t, must(store.HIncrBy(bg, "h", "n", -1)), 3)

		all := must(store.HGetAll(bg, "h"))
		sort.Slice(all, func(i, j int) bool { return all[i].Field < all[j].Field })
		deepEqual(t, all, []FV{{"a", []byte("9")}, {"b", []byte("2")}, {"n", []byte("3")}})

		keys := must(store.HKeys(bg, "h"))
		sort.Strings(keys)
		deepEqual(t, keys, []string{"a", "b", "n"})

		deepEqual(t, must(store.HMGet(bg, "h", "a", "zz", "n")), [][]byte{[]byte("9"), nil, []byte("3")})

		eq(t, must(store.HDel(bg, "h", "a", "zz")), 1)
		eq(t, must(store.HLen(bg, "h")), 2)
		eq(t, must(store.HDel(bg, "h", "b", "n")), 2)
		eq(t, must(store.Exists(bg, "h")), false) // empty hash disappears
	})
}

func TestStoreLists(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		eq(t, must(store.RPush(bg, "l", []byte("b"), []byte("c"))), 2)
		eq(t, must(store.LPush(bg, "l", []byte("a"))), 3)
		eq(t, must(store.LLen(bg, "l")), 3)

		deepEqual(t, must(store.LIndex(bg, "l", 0)), []byte("a"))
		deepEqual(t, must(store.LIndex(bg, "l", -1)), []byte("c"))
		_, err := store.LIndex(bg, "l", 5)
		wants(t, err, ErrNotFound)

		ok(t, store.LSet(bg, "l", 1, []byte("B")))
		deepEqual(t, must(store.LRange(bg, "l", 0, -1)), [][]byte{[]byte("a"), []byte("B"), []byte("c")})

		eq(t, must(store.LInsertBefore(bg, "l", []byte("B"), []byte("x"))), 4)
		eq(t, must(store.LInsertBefore(bg, "l", []byte("nope"), []byte("y"))), -1)
		deepEqual(t, must(store.LRange(bg, "l", 0, -1)), [][]byte{[]byte("a"), []byte("x"), []byte("B"), []byte("c")})

		deepEqual(t, must(store.LPop(bg, "l")), []byte("a"))
		deepEqual(t, must(store.RPop(bg, "l")), []byte("c"))

		eq(t, must(store.LRem(bg, "l", 0, []byte("x"))), 1)
		deepEqual(t, must(store.LRange(bg, "l", 0, -1)), [][]byte{[]byte("B")})

		deepEqual(t, must(store.RPop(bg, "l")), []byte("B"))
		eq(t, must(store.Exists(bg, "l")), false) // empty list disappears
		_, err = store.LPop(bg, "l")
		wants(t, err, ErrNotFound)
	})
}

func TestStoreListRem(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		seed := func(key string) {
			store.Del(bg, key)
			must(store.RPush(bg, key, []byte("x"), []byte("a"), []byte("x"), []byte("b"), []byte("x")))
		}
		seed("l")
		eq(t, must(store.LRem(bg, "l", 2, []byte("x"))), 2) // first two from the head
		deepEqual(t, must(store.LRange(bg, "l", 0, -1)), [][]byte{[]byte("a"), []byte("b"), []byte("x")})

		seed("l")
		eq(t, must(store.LRem(bg, "l", -2, []byte("x"))), 2) // last two from the tail
		deepEqual(t, must(store.LRange(bg, "l", 0, -1)), [][]byte{[]byte("x"), []byte("a"), []byte("b")})

		seed("l")
		eq(t, must(store.LRem(bg, "l", 0, []byte("x"))), 3) // all
		deepEqual(t, must(store.LRange(bg, "l", 0, -1)), [][]byte{[]byte("a"), []byte("b")})
	})
}

func TestStoreRangeClamping(t *testing.T) {
	// The negative-window convention the reverse iterator depends on:
	// stop converts from the end without clamping to 0, so windows that
	// fall entirely before the head select nothing.
	eachStore(t, func(t *testing.T, store Store) {
		for _, v := range []string{"0", "1", "2", "3", "4"} {
			must(store.RPush(bg, "l", []byte(v)))
		}
		cases := []struct {
			start, stop int64
			want        []string
		}{
			{0, -1, []string{"0", "1", "2", "3", "4"}},
			{1, 3, []string{"1", "2", "3"}},
			{-2, -1, []string{"3", "4"}},
			{-100, 1, []string{"0", "1"}}, // start clamps to 0
			{3, 100, []string{"3", "4"}},  // stop clamps to n-1
			{4, 2, nil},                   // start > stop
			{5, 9, nil},                   // start past the end
			{-10, -6, nil},                // window entirely before the head
			{-7, -5, []string{"0"}},       // stop lands exactly on index 0
		}
		for _, c := range cases {
			got := must(store.LRange(bg, "l", c.start, c.stop))
			var gotS []string
			for _, b := range got {
				gotS = append(gotS, string(b))
			}
			deepEqual(t, gotS, c.want)
		}
	})
}

func TestStoreLTrim(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		must(store.RPush(bg, "l", []byte("a"), []byte("b"), []byte("c"), []byte("d")))
		ok(t, store.LTrim(bg, "l", 1, 2))
		deepEqual(t, must(store.LRange(bg, "l", 0, -1)), [][]byte{[]byte("b"), []byte("c")})
		ok(t, store.LTrim(bg, "l", 5, 9)) // empty window drops the key
		eq(t, must(store.Exists(bg, "l")), false)
	})
}

func TestStoreSets(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		eq(t, must(store.SAdd(bg, "s", []byte("a"), []byte("b"), []byte("a"))), 2)
		eq(t, must(store.SCard(bg, "s")), 2)
		eq(t, must(store.SIsMember(bg, "s", []byte("a"))), true)
		eq(t, must(store.SIsMember(bg, "s", []byte("z"))), false)

		members := must(store.SMembers(bg, "s"))
		sortBytes(members)
		deepEqual(t, members, [][]byte{[]byte("a"), []byte("b")})

		eq(t, must(store.SMove(bg, "s", "s2", []byte("a"))), true)
		eq(t, must(store.SMove(bg, "s", "s2", []byte("zz"))), false)
		eq(t, must(store.SIsMember(bg, "s2", []byte("a"))), true)

		popped := must(store.SPop(bg, "s"))
		deepEqual(t, popped, []byte("b"))
		eq(t, must(store.Exists(bg, "s")), false)
		_, err := store.SPop(bg, "s")
		wants(t, err, ErrNotFound)

		must(store.SAdd(bg, "r", []byte("x"), []byte("y"), []byte("z")))
		eq(t, len(must(store.SRandMember(bg, "r", 2))), 2)
		eq(t, len(must(store.SRandMember(bg, "r", 99))), 3)
	})
}

func TestStoreSetAlgebra(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		must(store.SAdd(bg, "a", []byte("1"), []byte("2"), []byte("3")))
		must(store.SAdd(bg, "b", []byte("2"), []byte("3"), []byte("4")))

		union := must(store.SUnion(bg, "a", "b"))
		sortBytes(union)
		deepEqual(t, union, [][]byte{[]byte("1"), []byte("2"), []byte("3"), []byte("4")})

		inter := must(store.SInter(bg, "a", "b"))
		sortBytes(inter)
		deepEqual(t, inter, [][]byte{[]byte("2"), []byte("3")})

		diff := must(store.SDiff(bg, "a", "b"))
		deepEqual(t, diff, [][]byte{[]byte("1")})

		eq(t, must(store.SUnionStore(bg, "u", "a", "b")), 4)
		eq(t, must(store.SCard(bg, "u")), 4)
		eq(t, must(store.SInterStore(bg, "i", "a", "b")), 2)
		eq(t, must(store.SDiffStore(bg, "d", "b", "a")), 1)
		eq(t, must(store.SIsMember(bg, "d", []byte("4"))), true)

		// Disjoint intersection leaves no destination key behind.
		must(store.SAdd(bg, "c", []byte("9")))
		eq(t, must(store.SInterStore(bg, "i", "a", "c")), 0)
		eq(t, must(store.Exists(bg, "i")), false)
	})
}

func TestStoreSortedSets(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		eq(t, must(store.ZAdd(bg, "z",
			ZEntry{[]byte("a"), 1}, ZEntry{[]byte("b"), 2}, ZEntry{[]byte("c"), 3})), 3)
		eq(t, must(store.ZAdd(bg, "z", ZEntry{[]byte("a"), 1.5})), 0) // rescore, not new
		eq(t, must(store.ZCard(bg, "z")), 3)

		eq(t, must(store.ZScore(bg, "z", []byte("a"))), 1.5)
		_, err := store.ZScore(bg, "z", []byte("zz"))
		wants(t, err, ErrNotFound)

		eq(t, must(store.ZRank(bg, "z", []byte("b"), false)), 1)
		eq(t, must(store.ZRank(bg, "z", []byte("b"), true)), 1)
		eq(t, must(store.ZRank(bg, "z", []byte("c"), false)), 2)
		eq(t, must(store.ZRank(bg, "z", []byte("c"), true)), 0)

		eq(t, must(store.ZIncrBy(bg, "z", []byte("a"), 10)), 11.5)
		eq(t, must(store.ZRank(bg, "z", []byte("a"), false)), 2) // reordered

		eq(t, must(store.ZRem(bg, "z", []byte("a"), []byte("zz"))), 1)
		eq(t, must(store.ZCard(bg, "z")), 2)
		eq(t, must(store.ZRem(bg, "z", []byte("b"), []byte("c"))), 2)
		eq(t, must(store.Exists(bg, "z")), false)
	})
}

func TestStoreZRange(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		must(store.ZAdd(bg, "z",
			ZEntry{[]byte("a"), 1}, ZEntry{[]byte("b"), 2},
			ZEntry{[]byte("c"), 3}, ZEntry{[]byte("d"), 4}))

		deepEqual(t, zMembers(must(store.ZRange(bg, "z", 0, 1, false))), []string{"a", "b"})
		deepEqual(t, zMembers(must(store.ZRange(bg, "z", 0, 1, true))), []string{"d", "c"})
		deepEqual(t, zMembers(must(store.ZRange(bg, "z", -2, -1, false))), []string{"c", "d"})
		deepEqual(t, zMembers(must(store.ZRange(bg, "z", 0, -1, false))), []string{"a", "b", "c", "d"})

		eq(t, must(store.ZCount(bg, "z", Scores(2, 3))), 2)
		eq(t, must(store.ZCount(bg, "z", ScoreRange{Min: 2, Max: 3, MinExcl: true})), 1)
		eq(t, must(store.ZCount(bg, "z", AllScores())), 4)

		deepEqual(t, zMembers(must(store.ZRangeByScore(bg, "z", Scores(2, 4), 0, -1, false))), []string{"b", "c", "d"})
		deepEqual(t, zMembers(must(store.ZRangeByScore(bg, "z", Scores(2, 4), 1, 1, false))), []string{"c"})
		deepEqual(t, zMembers(must(store.ZRangeByScore(bg, "z", Scores(2, 4), 0, -1, true))), []string{"d", "c", "b"})
		deepEqual(t, zMembers(must(store.ZRangeByScore(bg, "z", ScoreRange{Min: 2, Max: 4, MaxExcl: true}, 0, -1, false))), []string{"b", "c"})

		// Equal scores order by member encoding.
		must(store.ZAdd(bg, "tie", ZEntry{[]byte("y"), 1}, ZEntry{[]byte("x"), 1}))
		deepEqual(t, zMembers(must(store.ZRange(bg, "tie", 0, -1, false))), []string{"x", "y"})
	})
}

func TestStoreScan(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		for _, k := range []string{"p:a", "p:b", "p:c", "q:d"} {
			ok(t, store.Set(bg, k, []byte("v")))
		}
		// Tiny pages: every key seen exactly once per pass.
		var got []string
		var cursor uint64
		for {
			page, next, err := store.Scan(bg, cursor, "p:*", 1)
			ok(t, err)
			got = append(got, page...)
			if next == 0 {
				break
			}
			cursor = next
		}
		sort.Strings(got)
		deepEqual(t, got, []string{"p:a", "p:b", "p:c"})

		keys, next, err := store.Scan(bg, 0, "*", 100)
		ok(t, err)
		eq(t, next, 0)
		eq(t, len(keys), 4)
	})
}

func TestStoreFieldScans(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		must(store.HSet(bg, "h", FV{"a", []byte("1")}, FV{"b", []byte("2")}, FV{"c", []byte("3")}))
		var fields []string
		var cursor uint64
		for {
			page, next, err := store.HScan(bg, "h", cursor, "*", 2)
			ok(t, err)
			for _, fv := range page {
				fields = append(fields, fv.Field)
			}
			if next == 0 {
				break
			}
			cursor = next
		}
		sort.Strings(fields)
		deepEqual(t, fields, []string{"a", "b", "c"})

		must(store.SAdd(bg, "s", []byte("m1"), []byte("m2"), []byte("n3")))
		members, next, err := store.SScan(bg, "s", 0, "m*", 100)
		ok(t, err)
		eq(t, next, 0)
		sortBytes(members)
		deepEqual(t, members, [][]byte{[]byte("m1"), []byte("m2")})

		must(store.ZAdd(bg, "z", ZEntry{[]byte("a"), 1}, ZEntry{[]byte("b"), 2}))
		entries, next, err := store.ZScan(bg, "z", 0, "*", 100)
		ok(t, err)
		eq(t, next, 0)
		eq(t, len(entries), 2)
	})
}

func TestStoreExec(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		replies, err := store.Exec(bg, false, []Cmd{
			setCmd("a", []byte("1")),
			existsCmd("a"),
			existsCmd("missing"),
			incrByCmd("a", 4),
			hincrByCmd("h", "f", 2),
			msetCmd([]KV{{"b", []byte("x")}, {"c", []byte("y")}}),
			delCmd("b", "nothing"),
		})
		ok(t, err)
		eq(t, replies[1].Bool, true)
		eq(t, replies[2].Bool, false)
		eq(t, replies[3].Int, 5)
		eq(t, replies[4].Int, 2)
		eq(t, replies[6].Int, 1)
		deepEqual(t, must(store.Get(bg, "c")), []byte("y"))
	})
}

func TestStoreExecPartialFailure(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ok(t, store.Set(bg, "junk", []byte("zzz")))
		replies, err := store.Exec(bg, false, []Cmd{
			incrByCmd("junk", 1), // fails: non-numeric
			setCmd("after", []byte("ran")),
		})
		var be *BatchError
		if !errors.As(err, &be) {
			t.Fatalf("** got %T (%v), wanted *BatchError", err, err)
		}
		eq(t, be.Index, 0)
		if replies[0].Err == nil {
			t.Errorf("** failed command reported no error")
		}
		// The batch kept going.
		ok(t, replies[1].Err)
		deepEqual(t, must(store.Get(bg, "after")), []byte("ran"))
	})
}

func TestStoreWrongType(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ok(t, store.Set(bg, "k", []byte("v")))
		if _, err := store.HGet(bg, "k", "f"); err == nil {
			t.Errorf("** HGET on a string key succeeded")
		}
		if _, err := store.LPush(bg, "k", []byte("x")); err == nil {
			t.Errorf("** LPUSH on a string key succeeded")
		}
		// SET always overwrites, whatever was there.
		must(store.SAdd(bg, "s", []byte("m")))
		ok(t, store.Set(bg, "s", []byte("v")))
		deepEqual(t, must(store.Get(bg, "s")), []byte("v"))
	})
}

func sortBytes(b [][]byte) {
	sort.Slice(b, func(i, j int) bool { return bytes.Compare(b[i], b[j]) < 0 })
}

func zMembers(entries []ZEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.Member)
	}
	return out
}
