package redstruct

import (
	"context"
)

// Keyed is anything that resolves to a fully-qualified store key: another
// container, or a RawKey for sets managed outside this package.
type Keyed interface {
	Key() string
}

// RawKey names a store key directly.
type RawKey string

func (k RawKey) Key() string { return string(k) }

// Set adapts the store's native unordered set type. All members of one Set
// live under a single store key, so set algebra (union, intersection,
// difference) runs server-side against sibling keys.
type Set[M any] struct {
	base
	keyExpiry
}

func NewSet[M any](store Store, name string, opt Options) *Set[M] {
	b := newBase(store, name, DefaultSetPrefix, opt)
	return &Set[M]{base: b, keyExpiry: keyExpiry{expst: store, key: b.ks.Key()}}
}

// Add inserts members and returns how many were not already present.
func (s *Set[M]) Add(ctx context.Context, members ...M) (int64, error) {
	raw, err := s.encodeMembers(members)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	return s.store.SAdd(ctx, s.ks.Key(), raw...)
}

// Remove deletes members and returns how many were present.
func (s *Set[M]) Remove(ctx context.Context, members ...M) (int64, error) {
	raw, err := s.encodeMembers(members)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	return s.store.SRem(ctx, s.ks.Key(), raw...)
}

// Contains reports whether member is in the set.
func (s *Set[M]) Contains(ctx context.Context, member M) (bool, error) {
	raw, err := s.encode(member)
	if err != nil {
		return false, err
	}
	return s.store.SIsMember(ctx, s.ks.Key(), raw)
}

// Len returns the number of members.
func (s *Set[M]) Len(ctx context.Context) (int64, error) {
	return s.store.SCard(ctx, s.ks.Key())
}

// Members returns all members. For large sets prefer Iter.
func (s *Set[M]) Members(ctx context.Context) ([]M, error) {
	raw, err := s.store.SMembers(ctx, s.ks.Key())
	if err != nil {
		return nil, err
	}
	return s.decodeMembers(raw)
}

// Pop removes and returns an arbitrary member, or ErrNotFound when empty.
func (s *Set[M]) Pop(ctx context.Context) (M, error) {
	var m M
	raw, err := s.store.SPop(ctx, s.ks.Key())
	if err != nil {
		return m, err
	}
	err = s.decode(raw, &m)
	return m, err
}

// Rand returns count random members without removing them.
func (s *Set[M]) Rand(ctx context.Context, count int64) ([]M, error) {
	raw, err := s.store.SRandMember(ctx, s.ks.Key(), count)
	if err != nil {
		return nil, err
	}
	return s.decodeMembers(raw)
}

// Move atomically transfers member from this set to dst.
func (s *Set[M]) Move(ctx context.Context, member M, dst Keyed) (bool, error) {
	raw, err := s.encode(member)
	if err != nil {
		return false, err
	}
	return s.store.SMove(ctx, s.ks.Key(), dst.Key(), raw)
}

// Union returns the members present in this set or any of the others.
func (s *Set[M]) Union(ctx context.Context, others ...Keyed) ([]M, error) {
	raw, err := s.store.SUnion(ctx, s.withOthers(others)...)
	if err != nil {
		return nil, err
	}
	return s.decodeMembers(raw)
}

// Inter returns the members present in this set and all of the others.
func (s *Set[M]) Inter(ctx context.Context, others ...Keyed) ([]M, error) {
	raw, err := s.store.SInter(ctx, s.withOthers(others)...)
	if err != nil {
		return nil, err
	}
	return s.decodeMembers(raw)
}

// Diff returns the members present in this set but none of the others.
func (s *Set[M]) Diff(ctx context.Context, others ...Keyed) ([]M, error) {
	raw, err := s.store.SDiff(ctx, s.withOthers(others)...)
	if err != nil {
		return nil, err
	}
	return s.decodeMembers(raw)
}

// UnionStore stores the union into dst server-side and returns its size.
func (s *Set[M]) UnionStore(ctx context.Context, dst Keyed, others ...Keyed) (int64, error) {
	return s.store.SUnionStore(ctx, dst.Key(), s.withOthers(others)...)
}

// InterStore stores the intersection into dst server-side.
func (s *Set[M]) InterStore(ctx context.Context, dst Keyed, others ...Keyed) (int64, error) {
	return s.store.SInterStore(ctx, dst.Key(), s.withOthers(others)...)
}

// DiffStore stores the difference into dst server-side.
func (s *Set[M]) DiffStore(ctx context.Context, dst Keyed, others ...Keyed) (int64, error) {
	return s.store.SDiffStore(ctx, dst.Key(), s.withOthers(others)...)
}

// Iter starts a scan pass over members matching the glob pattern.
func (s *Set[M]) Iter(ctx context.Context, match string) *Cursor[M] {
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]M, uint64, error) {
		raw, next, err := s.store.SScan(ctx, s.ks.Key(), cursor, match, int64(s.pageSize))
		if err != nil {
			return nil, 0, err
		}
		page, err := s.decodeMembers(raw)
		if err != nil {
			return nil, 0, err
		}
		return page, next, nil
	})
}

// Clear deletes the whole container key.
func (s *Set[M]) Clear(ctx context.Context) error {
	_, err := s.store.Del(ctx, s.ks.Key())
	return err
}

func (s *Set[M]) withOthers(others []Keyed) []string {
	keys := make([]string, 0, len(others)+1)
	keys = append(keys, s.ks.Key())
	for _, o := range others {
		keys = append(keys, o.Key())
	}
	return keys
}

func (s *Set[M]) encodeMembers(members []M) ([][]byte, error) {
	out := make([][]byte, len(members))
	for i, m := range members {
		raw, err := s.encode(m)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func (s *Set[M]) decodeMembers(raw [][]byte) ([]M, error) {
	out := make([]M, len(raw))
	for i, data := range raw {
		if err := s.decode(data, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
