package redstruct

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
)

var bg = context.Background()

// eachStore runs f against every embedded store implementation.
func eachStore(t *testing.T, f func(t *testing.T, store Store)) {
	t.Run("mem", func(t *testing.T) {
		f(t, memSetup(t))
	})
	t.Run("bolt", func(t *testing.T) {
		f(t, boltSetup(t))
	})
}

func memSetup(t testing.TB) Store {
	t.Helper()
	store := NewMemStore()
	t.Cleanup(func() { store.Close() })
	return store
}

func boltSetup(t testing.TB) Store {
	t.Helper()
	f := must(os.CreateTemp("", "redstruct_test_*.db"))
	f.Close()
	store := must(OpenBoltStore(f.Name(), 0o644))
	t.Cleanup(func() {
		store.Close()
		os.Remove(f.Name())
	})
	return store
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}

func wants(t testing.TB, err, want error) {
	if !errors.Is(err, want) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, want)
	}
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}
