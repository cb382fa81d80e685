package redstruct

import (
	"testing"
)

func intList(t testing.TB, store Store, values ...int) *List[int] {
	t.Helper()
	l := NewList[int](store, "seq", Options{})
	ok(t, l.Clear(bg))
	for _, v := range values {
		must(l.Append(bg, v))
	}
	return l
}

func TestList(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		l := NewList[string](store, "log", Options{})
		eq(t, l.Key(), "rs:list:log")

		eq(t, must(l.Append(bg, "b", "c")), 2)
		eq(t, must(l.Prepend(bg, "a")), 3)
		eq(t, must(l.Len(bg)), 3)

		eq(t, must(l.Get(bg, 0)), "a")
		eq(t, must(l.Get(bg, -1)), "c")
		_, err := l.Get(bg, 10)
		wants(t, err, ErrNotFound)

		ok(t, l.Set(bg, 1, "B"))
		deepEqual(t, must(l.All(bg)), []string{"a", "B", "c"})
		deepEqual(t, must(l.Range(bg, 1, 2)), []string{"B", "c"})
		deepEqual(t, must(l.Range(bg, -2, -1)), []string{"B", "c"})

		eq(t, must(l.Pop(bg)), "c")
		eq(t, must(l.PopFront(bg)), "a")
		deepEqual(t, must(l.All(bg)), []string{"B"})
	})
}

func TestListInsert(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		l := intList(t, store, 1, 2, 3, 4, 5)

		n, err := l.Insert(bg, 1, 9)
		ok(t, err)
		eq(t, n, 6)
		deepEqual(t, must(l.All(bg)), []int{1, 9, 2, 3, 4, 5})

		// The displaced element and everything after it shifted, nothing lost.
		eq(t, must(l.Get(bg, 1)), 9)
		eq(t, must(l.Get(bg, 2)), 2)

		v, err := l.PopAt(bg, 1)
		ok(t, err)
		eq(t, v, 9)
		deepEqual(t, must(l.All(bg)), []int{1, 2, 3, 4, 5})
	})
}

func TestListInsertAtEnds(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		l := intList(t, store, 1, 2, 3)
		_, err := l.Insert(bg, 0, 9)
		ok(t, err)
		deepEqual(t, must(l.All(bg)), []int{9, 1, 2, 3})
		_, err = l.Insert(bg, -1, 8)
		ok(t, err)
		deepEqual(t, must(l.All(bg)), []int{9, 1, 2, 8, 3})

		// Out of range: no store element to displace.
		if _, err := l.Insert(bg, 50, 7); err == nil {
			t.Errorf("** Insert past the end succeeded")
		}
	})
}

func TestListPopAt(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		l := intList(t, store, 10, 20, 30, 40)
		v, err := l.PopAt(bg, 0)
		ok(t, err)
		eq(t, v, 10)
		v, err = l.PopAt(bg, -1)
		ok(t, err)
		eq(t, v, 40)
		v, err = l.PopAt(bg, 1)
		ok(t, err)
		eq(t, v, 30)
		deepEqual(t, must(l.All(bg)), []int{20})

		_, err = l.PopAt(bg, 7)
		wants(t, err, ErrNotFound)
	})
}

func TestListRemoveTrim(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		l := intList(t, store, 1, 2, 1, 3, 1)
		eq(t, must(l.Remove(bg, 1, 2)), 2)
		deepEqual(t, must(l.All(bg)), []int{2, 3, 1})

		ok(t, l.Trim(bg, 0, 1))
		deepEqual(t, must(l.All(bg)), []int{2, 3})

		eq(t, must(l.Count(bg, 3)), 1)
		eq(t, must(l.Contains(bg, 3)), true)
		eq(t, must(l.Contains(bg, 99)), false)
		eq(t, must(l.Index(bg, 3)), 1)
		_, err := l.Index(bg, 99)
		wants(t, err, ErrNotFound)
	})
}

func TestListReverse(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		// Small page size forces the chunked rebuild through multiple windows.
		l := NewList[int](store, "seq", Options{PageSize: 3})
		for _, n := range []int{0, 1, 2, 3, 4, 5, 6, 7} {
			must(l.Append(bg, n))
		}
		ok(t, l.Reverse(bg))
		deepEqual(t, must(l.All(bg)), []int{7, 6, 5, 4, 3, 2, 1, 0})

		// Reversing twice restores the original order.
		ok(t, l.Reverse(bg))
		deepEqual(t, must(l.All(bg)), []int{0, 1, 2, 3, 4, 5, 6, 7})
	})
}

func TestListReverseEdge(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		empty := NewList[int](store, "empty", Options{PageSize: 3})
		ok(t, empty.Reverse(bg))
		eq(t, must(empty.Len(bg)), 0)

		one := intList(t, store, 42)
		ok(t, one.Reverse(bg))
		deepEqual(t, must(one.All(bg)), []int{42})

		exact := NewList[int](store, "exact", Options{PageSize: 3})
		must(exact.Append(bg, 1, 2, 3)) // exactly one page
		ok(t, exact.Reverse(bg))
		deepEqual(t, must(exact.All(bg)), []int{3, 2, 1})
	})
}

func TestListIter(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		l := NewList[int](store, "seq", Options{PageSize: 2})
		for _, n := range []int{1, 2, 3, 4, 5} {
			must(l.Append(bg, n))
		}
		fwd, err := l.Iter(bg).All()
		ok(t, err)
		deepEqual(t, fwd, []int{1, 2, 3, 4, 5})

		rev, err := l.ReverseIter(bg).All()
		ok(t, err)
		deepEqual(t, rev, []int{5, 4, 3, 2, 1})
	})
}

func TestListRepair(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		l := NewList[string](store, "log", Options{})
		must(l.Append(bg, "a", "b"))

		// Plant a stray marker the way a failed Insert would.
		stray := must(l.encode(newSentinel()))
		must(store.RPush(bg, l.Key(), stray))
		eq(t, must(l.Len(bg)), 3)

		n, err := l.Repair(bg)
		ok(t, err)
		eq(t, n, 1)
		deepEqual(t, must(l.All(bg)), []string{"a", "b"})

		n, err = l.Repair(bg)
		ok(t, err)
		eq(t, n, 0)
	})
}
