package redstruct

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/btree"
)

var errWrongType = fmt.Errorf("wrong kind of value for key")

type memKind int

const (
	memString memKind = iota
	memHash
	memList
	memSet
	memZSet
)

// memStore is a transient in-process Store implementation intended for
// tests and embedded use. A single mutex guards everything; batches execute
// while holding it, which makes even non-transactional batches atomic here
// (a stronger guarantee than the contract requires, which is fine).
type memStore struct {
	mu    sync.Mutex
	keys  map[string]*memKey
	scans scanRegistry
}

type memKey struct {
	kind     memKind
	deadline time.Time // zero = no expiration
	str      []byte
	hash     map[string][]byte
	list     [][]byte
	set      map[string]struct{}
	zscores  map[string]float64
	zorder   *btree.BTreeG[zitem]
}

type zitem struct {
	score  float64
	member string
}

func zless(a, b zitem) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.member < b.member
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() Store {
	return &memStore{
		keys: make(map[string]*memKey),
	}
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[string]*memKey)
	s.scans = scanRegistry{}
	return nil
}

// live returns the entry for key, evicting it first if expired.
func (s *memStore) live(key string) *memKey {
	k := s.keys[key]
	if k == nil {
		return nil
	}
	if !k.deadline.IsZero() && !time.Now().Before(k.deadline) {
		delete(s.keys, key)
		return nil
	}
	return k
}

func (s *memStore) typed(key string, kind memKind) (*memKey, error) {
	k := s.live(key)
	if k == nil {
		return nil, nil
	}
	if k.kind != kind {
		return nil, errWrongType
	}
	return k, nil
}

func (s *memStore) create(key string, kind memKind) (*memKey, error) {
	k, err := s.typed(key, kind)
	if err != nil {
		return nil, err
	}
	if k != nil {
		return k, nil
	}
	k = &memKey{kind: kind}
	switch kind {
	case memHash:
		k.hash = make(map[string][]byte)
	case memSet:
		k.set = make(map[string]struct{})
	case memZSet:
		k.zscores = make(map[string]float64)
		k.zorder = btree.NewG(8, zless)
	}
	s.keys[key] = k
	return k, nil
}

// ---- strings ----

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memString)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, ErrNotFound
	}
	return slices.Clone(k.str), nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(key, value)
}

func (s *memStore) setLocked(key string, value []byte) error {
	s.keys[key] = &memKey{kind: memString, str: slices.Clone(value)}
	return nil
}

func (s *memStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = &memKey{kind: memString, str: slices.Clone(value), deadline: time.Now().Add(ttl)}
	return nil
}

func (s *memStore) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delLocked(keys), nil
}

func (s *memStore) delLocked(keys []string) int64 {
	var n int64
	for _, key := range keys {
		if s.live(key) != nil {
			delete(s.keys, key)
			n++
		}
	}
	return n
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key) != nil, nil
}

func (s *memStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrByLocked(key, delta)
}

func (s *memStore) incrByLocked(key string, delta int64) (int64, error) {
	k, err := s.typed(key, memString)
	if err != nil {
		return 0, err
	}
	var cur int64
	if k != nil {
		cur, err = strconv.ParseInt(string(k.str), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value is not an integer: %w", err)
		}
	} else {
		k, _ = s.create(key, memString)
	}
	cur += delta
	k.str = strconv.AppendInt(nil, cur, 10)
	return cur, nil
}

func (s *memStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if k, err := s.typed(key, memString); err == nil && k != nil {
			out[i] = slices.Clone(k.str)
		}
	}
	return out, nil
}

func (s *memStore) MSet(ctx context.Context, pairs []KV) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msetLocked(pairs)
}

func (s *memStore) msetLocked(pairs []KV) error {
	for _, kv := range pairs {
		s.setLocked(kv.Key, kv.Value)
	}
	return nil
}

func (s *memStore) Rename(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.live(src)
	if k == nil {
		return ErrNotFound
	}
	delete(s.keys, src)
	s.keys[dst] = k
	return nil
}

// ---- key lifecycle ----

func (s *memStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.live(key)
	if k == nil {
		return 0, ErrNotFound
	}
	if k.deadline.IsZero() {
		return 0, nil
	}
	return time.Until(k.deadline), nil
}

func (s *memStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.expireAt(key, time.Now().Add(ttl))
}

func (s *memStore) ExpireAt(ctx context.Context, key string, at time.Time) (bool, error) {
	return s.expireAt(key, at)
}

func (s *memStore) expireAt(key string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.live(key)
	if k == nil {
		return false, nil
	}
	k.deadline = at
	return true, nil
}

func (s *memStore) Persist(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.live(key)
	if k == nil || k.deadline.IsZero() {
		return false, nil
	}
	k.deadline = time.Time{}
	return true, nil
}

// ---- hashes ----

func (s *memStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memHash)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, ErrNotFound
	}
	v, ok := k.hash[field]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *memStore) HSet(ctx context.Context, key string, pairs ...FV) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.create(key, memHash)
	if err != nil {
		return 0, err
	}
	var added int64
	for _, fv := range pairs {
		if _, ok := k.hash[fv.Field]; !ok {
			added++
		}
		k.hash[fv.Field] = slices.Clone(fv.Value)
	}
	return added, nil
}

func (s *memStore) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hdelLocked(key, fields)
}

func (s *memStore) hdelLocked(key string, fields []string) (int64, error) {
	k, err := s.typed(key, memHash)
	if err != nil || k == nil {
		return 0, err
	}
	var n int64
	for _, f := range fields {
		if _, ok := k.hash[f]; ok {
			delete(k.hash, f)
			n++
		}
	}
	if len(k.hash) == 0 {
		delete(s.keys, key)
	}
	return n, nil
}

func (s *memStore) HExists(ctx context.Context, key, field string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memHash)
	if err != nil || k == nil {
		return false, err
	}
	_, ok := k.hash[field]
	return ok, nil
}

func (s *memStore) HLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memHash)
	if err != nil || k == nil {
		return 0, err
	}
	return int64(len(k.hash)), nil
}

func (s *memStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hincrByLocked(key, field, delta)
}

func (s *memStore) hincrByLocked(key, field string, delta int64) (int64, error) {
	k, err := s.create(key, memHash)
	if err != nil {
		return 0, err
	}
	var cur int64
	if v, ok := k.hash[field]; ok {
		cur, err = strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("hash value is not an integer: %w", err)
		}
	}
	cur += delta
	k.hash[field] = strconv.AppendInt(nil, cur, 10)
	return cur, nil
}

func (s *memStore) HGetAll(ctx context.Context, key string) ([]FV, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memHash)
	if err != nil || k == nil {
		return nil, err
	}
	out := make([]FV, 0, len(k.hash))
	for _, f := range sortedNames(k.hash) {
		out = append(out, FV{Field: f, Value: slices.Clone(k.hash[f])})
	}
	return out, nil
}

func (s *memStore) HKeys(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memHash)
	if err != nil || k == nil {
		return nil, err
	}
	return sortedNames(k.hash), nil
}

func (s *memStore) HVals(ctx context.Context, key string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memHash)
	if err != nil || k == nil {
		return nil, err
	}
	out := make([][]byte, 0, len(k.hash))
	for _, f := range sortedNames(k.hash) {
		out = append(out, slices.Clone(k.hash[f]))
	}
	return out, nil
}

func (s *memStore) HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(fields))
	k, err := s.typed(key, memHash)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return out, nil
	}
	for i, f := range fields {
		if v, ok := k.hash[f]; ok {
			out[i] = slices.Clone(v)
		}
	}
	return out, nil
}

// ---- lists ----

func (s *memStore) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.create(key, memList)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		k.list = slices.Insert(k.list, 0, slices.Clone(v))
	}
	return int64(len(k.list)), nil
}

func (s *memStore) RPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.create(key, memList)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		k.list = append(k.list, slices.Clone(v))
	}
	return int64(len(k.list)), nil
}

func (s *memStore) LPop(ctx context.Context, key string) ([]byte, error) {
	return s.listPop(key, false)
}

func (s *memStore) RPop(ctx context.Context, key string) ([]byte, error) {
	return s.listPop(key, true)
}

func (s *memStore) listPop(key string, tail bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memList)
	if err != nil {
		return nil, err
	}
	if k == nil || len(k.list) == 0 {
		return nil, ErrNotFound
	}
	var v []byte
	if tail {
		v = k.list[len(k.list)-1]
		k.list = k.list[:len(k.list)-1]
	} else {
		v = k.list[0]
		k.list = k.list[1:]
	}
	if len(k.list) == 0 {
		delete(s.keys, key)
	}
	return v, nil
}

func (s *memStore) LLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memList)
	if err != nil || k == nil {
		return 0, err
	}
	return int64(len(k.list)), nil
}

func (s *memStore) LIndex(ctx context.Context, key string, index int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memList)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, ErrNotFound
	}
	n := int64(len(k.list))
	if index < 0 {
		index += n
	}
	if index < 0 || index >= n {
		return nil, ErrNotFound
	}
	return slices.Clone(k.list[index]), nil
}

func (s *memStore) LSet(ctx context.Context, key string, index int64, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memList)
	if err != nil {
		return err
	}
	if k == nil {
		return ErrNotFound
	}
	n := int64(len(k.list))
	if index < 0 {
		index += n
	}
	if index < 0 || index >= n {
		return fmt.Errorf("index out of range")
	}
	k.list[index] = slices.Clone(value)
	return nil
}

func (s *memStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memList)
	if err != nil || k == nil {
		return nil, err
	}
	lo, hi, ok := clampRange(int64(len(k.list)), start, stop)
	if !ok {
		return nil, nil
	}
	out := make([][]byte, 0, hi-lo+1)
	for _, v := range k.list[lo : hi+1] {
		out = append(out, slices.Clone(v))
	}
	return out, nil
}

// clampRange converts a start..stop range (inclusive, negatives from the
// end) into concrete bounds per the store's rules. ok is false when the
// range selects nothing.
func clampRange(n, start, stop int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop, true
}

func (s *memStore) LInsertBefore(ctx context.Context, key string, pivot, value []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linsertBeforeLocked(key, pivot, value)
}

func (s *memStore) linsertBeforeLocked(key string, pivot, value []byte) (int64, error) {
	k, err := s.typed(key, memList)
	if err != nil || k == nil {
		return 0, err
	}
	for i, v := range k.list {
		if string(v) == string(pivot) {
			k.list = slices.Insert(k.list, i, slices.Clone(value))
			return int64(len(k.list)), nil
		}
	}
	return -1, nil
}

func (s *memStore) LRem(ctx context.Context, key string, count int64, value []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lremLocked(key, count, value)
}

func (s *memStore) lremLocked(key string, count int64, value []byte) (int64, error) {
	k, err := s.typed(key, memList)
	if err != nil || k == nil {
		return 0, err
	}
	limit := count
	if limit < 0 {
		limit = -limit
	}
	var removed int64
	var keep [][]byte
	if count >= 0 {
		keep = k.list[:0]
		for _, v := range k.list {
			if string(v) == string(value) && (count == 0 || removed < limit) {
				removed++
				continue
			}
			keep = append(keep, v)
		}
	} else {
		// A tail-to-head walk cannot reuse the backing array: appends at
		// the front would overwrite elements not yet visited.
		keep = make([][]byte, 0, len(k.list))
		for i := len(k.list) - 1; i >= 0; i-- {
			v := k.list[i]
			if string(v) == string(value) && removed < limit {
				removed++
				continue
			}
			keep = append(keep, v)
		}
		slices.Reverse(keep)
	}
	k.list = keep
	if len(k.list) == 0 {
		delete(s.keys, key)
	}
	return removed, nil
}

func (s *memStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memList)
	if err != nil || k == nil {
		return err
	}
	lo, hi, ok := clampRange(int64(len(k.list)), start, stop)
	if !ok {
		delete(s.keys, key)
		return nil
	}
	k.list = k.list[lo : hi+1]
	return nil
}

// ---- sets ----

func (s *memStore) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.create(key, memSet)
	if err != nil {
		return 0, err
	}
	var added int64
	for _, m := range members {
		if _, ok := k.set[string(m)]; !ok {
			k.set[string(m)] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *memStore) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memSet)
	if err != nil || k == nil {
		return 0, err
	}
	var n int64
	for _, m := range members {
		if _, ok := k.set[string(m)]; ok {
			delete(k.set, string(m))
			n++
		}
	}
	if len(k.set) == 0 {
		delete(s.keys, key)
	}
	return n, nil
}

func (s *memStore) SCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memSet)
	if err != nil || k == nil {
		return 0, err
	}
	return int64(len(k.set)), nil
}

func (s *memStore) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memSet)
	if err != nil || k == nil {
		return false, err
	}
	_, ok := k.set[string(member)]
	return ok, nil
}

func (s *memStore) SMembers(ctx context.Context, key string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memSet)
	if err != nil || k == nil {
		return nil, err
	}
	return setBytes(k.set), nil
}

func (s *memStore) SPop(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memSet)
	if err != nil {
		return nil, err
	}
	if k == nil || len(k.set) == 0 {
		return nil, ErrNotFound
	}
	for m := range k.set {
		delete(k.set, m)
		if len(k.set) == 0 {
			delete(s.keys, key)
		}
		return []byte(m), nil
	}
	return nil, ErrNotFound
}

func (s *memStore) SRandMember(ctx context.Context, key string, count int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memSet)
	if err != nil || k == nil {
		return nil, err
	}
	out := make([][]byte, 0, count)
	for m := range k.set {
		if int64(len(out)) >= count {
			break
		}
		out = append(out, []byte(m))
	}
	return out, nil
}

func (s *memStore) SMove(ctx context.Context, src, dst string, member []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, err := s.typed(src, memSet)
	if err != nil || sk == nil {
		return false, err
	}
	if _, ok := sk.set[string(member)]; !ok {
		return false, nil
	}
	dk, err := s.create(dst, memSet)
	if err != nil {
		return false, err
	}
	delete(sk.set, string(member))
	if len(sk.set) == 0 {
		delete(s.keys, src)
	}
	dk.set[string(member)] = struct{}{}
	return true, nil
}

func (s *memStore) setAlgebra(keys []string, combine func(acc map[string]struct{}, other map[string]struct{})) (map[string]struct{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	acc := make(map[string]struct{})
	first, err := s.typed(keys[0], memSet)
	if err != nil {
		return nil, err
	}
	if first != nil {
		for m := range first.set {
			acc[m] = struct{}{}
		}
	}
	for _, key := range keys[1:] {
		k, err := s.typed(key, memSet)
		if err != nil {
			return nil, err
		}
		var other map[string]struct{}
		if k != nil {
			other = k.set
		}
		combine(acc, other)
	}
	return acc, nil
}

func unionInto(acc, other map[string]struct{}) {
	for m := range other {
		acc[m] = struct{}{}
	}
}

func interInto(acc, other map[string]struct{}) {
	for m := range acc {
		if _, ok := other[m]; !ok {
			delete(acc, m)
		}
	}
}

func diffInto(acc, other map[string]struct{}) {
	for m := range other {
		delete(acc, m)
	}
}

func (s *memStore) SUnion(ctx context.Context, keys ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.setAlgebra(keys, unionInto)
	if err != nil {
		return nil, err
	}
	return setBytes(acc), nil
}

func (s *memStore) SInter(ctx context.Context, keys ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.setAlgebra(keys, interInto)
	if err != nil {
		return nil, err
	}
	return setBytes(acc), nil
}

func (s *memStore) SDiff(ctx context.Context, keys ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.setAlgebra(keys, diffInto)
	if err != nil {
		return nil, err
	}
	return setBytes(acc), nil
}

func (s *memStore) storeAlgebra(dst string, keys []string, combine func(acc, other map[string]struct{})) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.setAlgebra(keys, combine)
	if err != nil {
		return 0, err
	}
	delete(s.keys, dst)
	if len(acc) == 0 {
		return 0, nil
	}
	k, err := s.create(dst, memSet)
	if err != nil {
		return 0, err
	}
	k.set = acc
	return int64(len(acc)), nil
}

func (s *memStore) SUnionStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.storeAlgebra(dst, keys, unionInto)
}

func (s *memStore) SInterStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.storeAlgebra(dst, keys, interInto)
}

func (s *memStore) SDiffStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.storeAlgebra(dst, keys, diffInto)
}

// ---- sorted sets ----

func (s *memStore) ZAdd(ctx context.Context, key string, entries ...ZEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.create(key, memZSet)
	if err != nil {
		return 0, err
	}
	var added int64
	for _, e := range entries {
		m := string(e.Member)
		if old, ok := k.zscores[m]; ok {
			k.zorder.Delete(zitem{score: old, member: m})
		} else {
			added++
		}
		k.zscores[m] = e.Score
		k.zorder.ReplaceOrInsert(zitem{score: e.Score, member: m})
	}
	return added, nil
}

func (s *memStore) ZIncrBy(ctx context.Context, key string, member []byte, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.create(key, memZSet)
	if err != nil {
		return 0, err
	}
	m := string(member)
	score := k.zscores[m]
	if old, ok := k.zscores[m]; ok {
		k.zorder.Delete(zitem{score: old, member: m})
	}
	score += delta
	k.zscores[m] = score
	k.zorder.ReplaceOrInsert(zitem{score: score, member: m})
	return score, nil
}

func (s *memStore) ZRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memZSet)
	if err != nil || k == nil {
		return 0, err
	}
	var n int64
	for _, member := range members {
		m := string(member)
		if score, ok := k.zscores[m]; ok {
			delete(k.zscores, m)
			k.zorder.Delete(zitem{score: score, member: m})
			n++
		}
	}
	if len(k.zscores) == 0 {
		delete(s.keys, key)
	}
	return n, nil
}

func (s *memStore) ZCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memZSet)
	if err != nil || k == nil {
		return 0, err
	}
	return int64(len(k.zscores)), nil
}

func (s *memStore) ZScore(ctx context.Context, key string, member []byte) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memZSet)
	if err != nil {
		return 0, err
	}
	if k == nil {
		return 0, ErrNotFound
	}
	score, ok := k.zscores[string(member)]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (s *memStore) ZRank(ctx context.Context, key string, member []byte, reverse bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memZSet)
	if err != nil {
		return 0, err
	}
	if k == nil {
		return 0, ErrNotFound
	}
	m := string(member)
	if _, ok := k.zscores[m]; !ok {
		return 0, ErrNotFound
	}
	var rank int64 = -1
	var i int64
	iter := func(it zitem) bool {
		if it.member == m {
			rank = i
			return false
		}
		i++
		return true
	}
	if reverse {
		k.zorder.Descend(iter)
	} else {
		k.zorder.Ascend(iter)
	}
	return rank, nil
}

func (s *memStore) ZCount(ctx context.Context, key string, r ScoreRange) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memZSet)
	if err != nil || k == nil {
		return 0, err
	}
	var n int64
	k.zorder.Ascend(func(it zitem) bool {
		if it.score > r.Max {
			return false
		}
		if r.contains(it.score) {
			n++
		}
		return true
	})
	return n, nil
}

func (s *memStore) ZRange(ctx context.Context, key string, start, stop int64, reverse bool) ([]ZEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memZSet)
	if err != nil || k == nil {
		return nil, err
	}
	lo, hi, ok := clampRange(int64(len(k.zscores)), start, stop)
	if !ok {
		return nil, nil
	}
	var out []ZEntry
	var i int64
	iter := func(it zitem) bool {
		if i > hi {
			return false
		}
		if i >= lo {
			out = append(out, ZEntry{Member: []byte(it.member), Score: it.score})
		}
		i++
		return true
	}
	if reverse {
		k.zorder.Descend(iter)
	} else {
		k.zorder.Ascend(iter)
	}
	return out, nil
}

func (s *memStore) ZRangeByScore(ctx context.Context, key string, r ScoreRange, offset, count int64, reverse bool) ([]ZEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memZSet)
	if err != nil || k == nil {
		return nil, err
	}
	var out []ZEntry
	var skipped int64
	iter := func(it zitem) bool {
		if !reverse && it.score > r.Max {
			return false
		}
		if reverse && it.score < r.Min {
			return false
		}
		if !r.contains(it.score) {
			return true
		}
		if skipped < offset {
			skipped++
			return true
		}
		if count >= 0 && int64(len(out)) >= count {
			return false
		}
		out = append(out, ZEntry{Member: []byte(it.member), Score: it.score})
		return true
	}
	if reverse {
		k.zorder.Descend(iter)
	} else {
		k.zorder.Ascend(iter)
	}
	return out, nil
}

// ---- scans ----

func (s *memStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, next := s.scans.page(cursor, "", count, func() []string {
		var names []string
		for key := range s.keys {
			if s.live(key) != nil && matchKey(match, key) {
				names = append(names, key)
			}
		}
		return names
	})
	return page, next, nil
}

func (s *memStore) HScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([]FV, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memHash)
	if err != nil {
		return nil, 0, err
	}
	page, next := s.scans.page(cursor, key, count, func() []string {
		if k == nil {
			return nil
		}
		var names []string
		for f := range k.hash {
			if matchKey(match, f) {
				names = append(names, f)
			}
		}
		return names
	})
	out := make([]FV, 0, len(page))
	if k2, _ := s.typed(key, memHash); k2 != nil {
		for _, f := range page {
			if v, ok := k2.hash[f]; ok {
				out = append(out, FV{Field: f, Value: slices.Clone(v)})
			}
		}
	}
	return out, next, nil
}

func (s *memStore) SScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([][]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memSet)
	if err != nil {
		return nil, 0, err
	}
	page, next := s.scans.page(cursor, key, count, func() []string {
		if k == nil {
			return nil
		}
		var names []string
		for m := range k.set {
			if matchKey(match, m) {
				names = append(names, m)
			}
		}
		return names
	})
	out := make([][]byte, 0, len(page))
	if k2, _ := s.typed(key, memSet); k2 != nil {
		for _, m := range page {
			if _, ok := k2.set[m]; ok {
				out = append(out, []byte(m))
			}
		}
	}
	return out, next, nil
}

func (s *memStore) ZScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([]ZEntry, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.typed(key, memZSet)
	if err != nil {
		return nil, 0, err
	}
	page, next := s.scans.page(cursor, key, count, func() []string {
		if k == nil {
			return nil
		}
		var names []string
		for m := range k.zscores {
			if matchKey(match, m) {
				names = append(names, m)
			}
		}
		return names
	})
	out := make([]ZEntry, 0, len(page))
	if k2, _ := s.typed(key, memZSet); k2 != nil {
		for _, m := range page {
			if score, ok := k2.zscores[m]; ok {
				out = append(out, ZEntry{Member: []byte(m), Score: score})
			}
		}
	}
	return out, next, nil
}

// scanRegistry tracks scan passes in progress for the embedded stores.
// A pass remembers the names captured when it started, minus the pages
// already served. Elements removed mid-pass are skipped at delivery time
// by the callers; elements added mid-pass may or may not be seen, per the
// scan contract.
type scanRegistry struct {
	passes map[uint64]*scanPass
	next   uint64
}

type scanPass struct {
	key     string // "" for a keyspace scan
	pending []string
}

// page serves one page of a scan pass. Cursor 0 captures the matching
// names via collect and registers the pass; later cursors continue it.
func (r *scanRegistry) page(cursor uint64, key string, count int64, collect func() []string) ([]string, uint64) {
	if count <= 0 {
		count = 10
	}
	var sc *scanPass
	if cursor == 0 {
		names := collect()
		sort.Strings(names)
		sc = &scanPass{key: key, pending: names}
	} else {
		sc = r.passes[cursor]
		delete(r.passes, cursor)
		if sc == nil || sc.key != key {
			return nil, 0 // unknown cursor: treat as a finished pass
		}
	}
	n := int64(len(sc.pending))
	if n <= count {
		return sc.pending, 0
	}
	page := sc.pending[:count]
	sc.pending = sc.pending[count:]
	if r.passes == nil {
		r.passes = make(map[uint64]*scanPass)
	}
	r.next++
	r.passes[r.next] = sc
	return page, r.next
}

// ---- batches ----

func (s *memStore) Exec(ctx context.Context, transactional bool, cmds []Cmd) ([]Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The lock makes every batch atomic with respect to other clients, so
	// transactional adds nothing here. Failed commands do not stop the
	// batch, matching the wire behavior of a queued transaction.
	replies := make([]Reply, len(cmds))
	var firstErr error
	for i, cmd := range cmds {
		r := s.execLocked(cmd)
		replies[i] = r
		if r.Err != nil && firstErr == nil {
			firstErr = batchErrf(i, cmd, r.Err)
		}
	}
	return replies, firstErr
}

func (s *memStore) execLocked(cmd Cmd) Reply {
	switch cmd.Op {
	case OpSet:
		return Reply{Err: s.setLocked(cmd.Key, cmd.Value)}
	case OpDel:
		return Reply{Int: s.delLocked(cmd.Keys)}
	case OpExists:
		return Reply{Bool: s.live(cmd.Key) != nil}
	case OpIncrBy:
		n, err := s.incrByLocked(cmd.Key, cmd.Delta)
		return Reply{Int: n, Err: err}
	case OpMSet:
		return Reply{Err: s.msetLocked(cmd.Pairs)}
	case OpHIncrBy:
		n, err := s.hincrByLocked(cmd.Key, cmd.Field, cmd.Delta)
		return Reply{Int: n, Err: err}
	case OpHDel:
		n, err := s.hdelLocked(cmd.Key, cmd.Fields)
		return Reply{Int: n, Err: err}
	case OpLInsertBefore:
		n, err := s.linsertBeforeLocked(cmd.Key, cmd.Pivot, cmd.Value)
		return Reply{Int: n, Err: err}
	case OpLRem:
		n, err := s.lremLocked(cmd.Key, cmd.Count, cmd.Value)
		return Reply{Int: n, Err: err}
	default:
		return Reply{Err: fmt.Errorf("unknown batch op %q", cmd.Op)}
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func setBytes(set map[string]struct{}) [][]byte {
	out := make([][]byte, 0, len(set))
	for _, m := range sortedNames(set) {
		out = append(out, []byte(m))
	}
	return out
}
