package redstruct

import (
	"context"
	"errors"
)

// Direction optionally overrides a SortedSet's default ordering for one
// call. Auto defers to the instance-level Reversed option.
type Direction int

const (
	Auto Direction = iota
	Fwd            // ascending by score
	Rev            // descending by score
)

// Query addresses sorted-set entries in one of two deliberately distinct
// modes: by rank position (list-style) or by member (dict-style). The mode
// is fixed by the constructor, never inferred from values.
type Query[M any] struct {
	byMember bool
	start    int64
	stop     int64
	member   M
}

// ByRank selects entries from rank start through stop inclusive
// (store range convention, negatives from the end).
func ByRank[M any](start, stop int64) Query[M] {
	return Query[M]{start: start, stop: stop}
}

// ByMember selects the single entry for a member.
func ByMember[M any](member M) Query[M] {
	return Query[M]{byMember: true, member: member}
}

// SortedSet adapts the store's native ordered set: unique members, one
// numeric score each, re-adding overwrites the score. Rank is derived from
// score order with ties broken by the raw member encoding; rank and score
// lookups are store-native.
//
// A SortedSet constructed with Options.Reversed ranks, iterates and ranges
// in descending score order by default; every method taking a Direction
// consults that default exactly once and honors a per-call override.
type SortedSet[M any] struct {
	base
	keyExpiry
	reversed bool
}

func NewSortedSet[M any](store Store, name string, opt Options) *SortedSet[M] {
	b := newBase(store, name, DefaultSortedSetPrefix, opt)
	return &SortedSet[M]{
		base:      b,
		keyExpiry: keyExpiry{expst: store, key: b.ks.Key()},
		reversed:  opt.Reversed,
	}
}

// Reversed reports the instance-level default direction.
func (z *SortedSet[M]) Reversed() bool {
	return z.reversed
}

func (z *SortedSet[M]) resolve(dir Direction) bool {
	switch dir {
	case Fwd:
		return false
	case Rev:
		return true
	default:
		return z.reversed
	}
}

// Add inserts or overwrites entries and returns how many were new.
func (z *SortedSet[M]) Add(ctx context.Context, items ...ZItem[M]) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	entries := make([]ZEntry, len(items))
	for i, it := range items {
		raw, err := z.encode(it.Member)
		if err != nil {
			return 0, err
		}
		entries[i] = ZEntry{Member: raw, Score: it.Score}
	}
	return z.store.ZAdd(ctx, z.ks.Key(), entries...)
}

// IncrBy adjusts member's score by delta (creating it at delta) and returns
// the new score.
func (z *SortedSet[M]) IncrBy(ctx context.Context, member M, delta float64) (float64, error) {
	raw, err := z.encode(member)
	if err != nil {
		return 0, err
	}
	return z.store.ZIncrBy(ctx, z.ks.Key(), raw, delta)
}

// DecrBy adjusts member's score by -delta.
func (z *SortedSet[M]) DecrBy(ctx context.Context, member M, delta float64) (float64, error) {
	return z.IncrBy(ctx, member, -delta)
}

// Remove deletes members and returns how many were present.
func (z *SortedSet[M]) Remove(ctx context.Context, members ...M) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	raw := make([][]byte, len(members))
	for i, m := range members {
		data, err := z.encode(m)
		if err != nil {
			return 0, err
		}
		raw[i] = data
	}
	return z.store.ZRem(ctx, z.ks.Key(), raw...)
}

// Len returns the number of entries.
func (z *SortedSet[M]) Len(ctx context.Context) (int64, error) {
	return z.store.ZCard(ctx, z.ks.Key())
}

// Score returns member's score, or ErrNotFound. Presence is explicit: a
// legitimate score of 0 is not conflated with "missing".
func (z *SortedSet[M]) Score(ctx context.Context, member M) (float64, error) {
	raw, err := z.encode(member)
	if err != nil {
		return 0, err
	}
	return z.store.ZScore(ctx, z.ks.Key(), raw)
}

// Contains reports whether member is in the set.
func (z *SortedSet[M]) Contains(ctx context.Context, member M) (bool, error) {
	_, err := z.Score(ctx, member)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Rank returns member's position in the set's default order (or the
// per-call override), or ErrNotFound.
func (z *SortedSet[M]) Rank(ctx context.Context, member M, dir Direction) (int64, error) {
	raw, err := z.encode(member)
	if err != nil {
		return 0, err
	}
	return z.store.ZRank(ctx, z.ks.Key(), raw, z.resolve(dir))
}

// RevRank returns member's position in the order opposite to Rank's.
func (z *SortedSet[M]) RevRank(ctx context.Context, member M, dir Direction) (int64, error) {
	raw, err := z.encode(member)
	if err != nil {
		return 0, err
	}
	return z.store.ZRank(ctx, z.ks.Key(), raw, !z.resolve(dir))
}

// CountByScore returns the number of entries with scores in r.
func (z *SortedSet[M]) CountByScore(ctx context.Context, r ScoreRange) (int64, error) {
	return z.store.ZCount(ctx, z.ks.Key(), r)
}

// Get resolves a Query: ByRank yields the entries in the addressed rank
// range; ByMember yields the single addressed entry or ErrNotFound.
func (z *SortedSet[M]) Get(ctx context.Context, q Query[M], dir Direction) ([]ZItem[M], error) {
	if q.byMember {
		score, err := z.Score(ctx, q.member)
		if err != nil {
			return nil, err
		}
		return []ZItem[M]{{Member: q.member, Score: score}}, nil
	}
	return z.RangeWithScores(ctx, q.start, q.stop, dir)
}

// Range returns members from rank start through stop inclusive.
func (z *SortedSet[M]) Range(ctx context.Context, start, stop int64, dir Direction) ([]M, error) {
	items, err := z.RangeWithScores(ctx, start, stop, dir)
	if err != nil {
		return nil, err
	}
	out := make([]M, len(items))
	for i, it := range items {
		out[i] = it.Member
	}
	return out, nil
}

// RangeWithScores returns entries from rank start through stop inclusive.
func (z *SortedSet[M]) RangeWithScores(ctx context.Context, start, stop int64, dir Direction) ([]ZItem[M], error) {
	entries, err := z.store.ZRange(ctx, z.ks.Key(), start, stop, z.resolve(dir))
	if err != nil {
		return nil, err
	}
	return z.decodeEntries(entries)
}

// RangeByScore returns members with scores in r, skipping offset entries
// and returning at most count (count < 0 means unbounded).
func (z *SortedSet[M]) RangeByScore(ctx context.Context, r ScoreRange, offset, count int64, dir Direction) ([]M, error) {
	items, err := z.RangeByScoreWithScores(ctx, r, offset, count, dir)
	if err != nil {
		return nil, err
	}
	out := make([]M, len(items))
	for i, it := range items {
		out[i] = it.Member
	}
	return out, nil
}

// RangeByScoreWithScores returns entries with scores in r.
func (z *SortedSet[M]) RangeByScoreWithScores(ctx context.Context, r ScoreRange, offset, count int64, dir Direction) ([]ZItem[M], error) {
	entries, err := z.store.ZRangeByScore(ctx, z.ks.Key(), r, offset, count, z.resolve(dir))
	if err != nil {
		return nil, err
	}
	return z.decodeEntries(entries)
}

// Iter starts an ordered pass over members, one rank window per round trip.
func (z *SortedSet[M]) Iter(ctx context.Context, dir Direction) *Cursor[M] {
	reverse := z.resolve(dir)
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]M, uint64, error) {
		start := int64(cursor)
		entries, err := z.store.ZRange(ctx, z.ks.Key(), start, start+int64(z.pageSize)-1, reverse)
		if err != nil {
			return nil, 0, err
		}
		items, err := z.decodeEntries(entries)
		if err != nil {
			return nil, 0, err
		}
		out := make([]M, len(items))
		for i, it := range items {
			out[i] = it.Member
		}
		var next uint64
		if len(entries) == z.pageSize {
			next = cursor + uint64(z.pageSize)
		}
		return out, next, nil
	})
}

// Items starts an ordered pass over member/score entries.
func (z *SortedSet[M]) Items(ctx context.Context, dir Direction) *Cursor[ZItem[M]] {
	reverse := z.resolve(dir)
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]ZItem[M], uint64, error) {
		start := int64(cursor)
		entries, err := z.store.ZRange(ctx, z.ks.Key(), start, start+int64(z.pageSize)-1, reverse)
		if err != nil {
			return nil, 0, err
		}
		items, err := z.decodeEntries(entries)
		if err != nil {
			return nil, 0, err
		}
		var next uint64
		if len(entries) == z.pageSize {
			next = cursor + uint64(z.pageSize)
		}
		return items, next, nil
	})
}

// Scan starts an unordered pass over entries matching the glob pattern via
// the store's incremental scan. Slower than Iter but memory-bounded on the
// server for huge sets.
func (z *SortedSet[M]) Scan(ctx context.Context, match string) *Cursor[ZItem[M]] {
	return newCursor(ctx, func(ctx context.Context, cursor uint64) ([]ZItem[M], uint64, error) {
		entries, next, err := z.store.ZScan(ctx, z.ks.Key(), cursor, match, int64(z.pageSize))
		if err != nil {
			return nil, 0, err
		}
		items, err := z.decodeEntries(entries)
		if err != nil {
			return nil, 0, err
		}
		return items, next, nil
	})
}

// All returns every entry in the set's default (or overridden) order.
func (z *SortedSet[M]) All(ctx context.Context, dir Direction) ([]ZItem[M], error) {
	return z.RangeWithScores(ctx, 0, -1, dir)
}

// Clear deletes the whole container key.
func (z *SortedSet[M]) Clear(ctx context.Context) error {
	_, err := z.store.Del(ctx, z.ks.Key())
	return err
}

func (z *SortedSet[M]) decodeEntries(entries []ZEntry) ([]ZItem[M], error) {
	out := make([]ZItem[M], len(entries))
	for i, e := range entries {
		if err := z.decode(e.Member, &out[i].Member); err != nil {
			return nil, err
		}
		out[i].Score = e.Score
	}
	return out, nil
}
