package redstruct

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

// boltStore is a durable single-file Store implementation on top of bbolt.
// One keyspace, five kinds:
//
//   - meta records each live key's kind, so that kind mismatches and
//     cross-kind operations (EXISTS, DEL, RENAME, SCAN) behave like they
//     would against a shared keyspace;
//   - strings live in kv as plain key → value;
//   - hashes and sets are nested buckets keyed by field/member;
//   - lists are stored whole as one msgpack blob per key, rewritten on
//     every mutation (bolt has no cheap splice, and these lists are small);
//   - sorted sets keep twin nested buckets per key: "m" member → score
//     bits for lookups, "s" packScore(score)+member → nil for ordered
//     walks.
//
// Expirations are tracked in exp as key → deadline and enforced lazily:
// any touch of an expired key evicts it first.
type boltStore struct {
	db    *bolt.DB
	mu    sync.Mutex // guards scans
	scans scanRegistry
}

var (
	bnMeta = []byte("meta")
	bnKV   = []byte("kv")
	bnHash = []byte("hash")
	bnSet  = []byte("set")
	bnZSet = []byte("zset")
	bnList = []byte("list")
	bnExp  = []byte("exp")

	boltBuckets = [][]byte{bnMeta, bnKV, bnHash, bnSet, bnZSet, bnList, bnExp}

	zsetMembers = []byte("m")
	zsetOrder   = []byte("s")
)

const (
	kindString byte = 's'
	kindHash   byte = 'h'
	kindList   byte = 'l'
	kindSet    byte = 'e'
	kindZSet   byte = 'z'
)

// OpenBoltStore opens (creating if necessary) a bolt-backed Store at path.
func OpenBoltStore(path string, mode os.FileMode) (Store, error) {
	db, err := bolt.Open(path, mode, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

// liveKind returns the kind of key, evicting it first if it has expired.
// Returns 0 for an absent key.
func liveKind(tx *bolt.Tx, key string) byte {
	kb := []byte(key)
	kind := tx.Bucket(bnMeta).Get(kb)
	if kind == nil {
		return 0
	}
	if deadline := tx.Bucket(bnExp).Get(kb); deadline != nil {
		at := time.Unix(0, int64(binary.BigEndian.Uint64(deadline)))
		if !time.Now().Before(at) {
			dropKey(tx, key)
			return 0
		}
	}
	return kind[0]
}

func typedKind(tx *bolt.Tx, key string, want byte) (bool, error) {
	kind := liveKind(tx, key)
	if kind == 0 {
		return false, nil
	}
	if kind != want {
		return false, errWrongType
	}
	return true, nil
}

func setKind(tx *bolt.Tx, key string, kind byte) error {
	return tx.Bucket(bnMeta).Put([]byte(key), []byte{kind})
}

// dropKey removes key and all of its data, whatever its kind.
func dropKey(tx *bolt.Tx, key string) {
	kb := []byte(key)
	kind := tx.Bucket(bnMeta).Get(kb)
	if kind == nil {
		return
	}
	switch kind[0] {
	case kindString:
		tx.Bucket(bnKV).Delete(kb)
	case kindHash:
		tx.Bucket(bnHash).DeleteBucket(kb)
	case kindSet:
		tx.Bucket(bnSet).DeleteBucket(kb)
	case kindZSet:
		tx.Bucket(bnZSet).DeleteBucket(kb)
	case kindList:
		tx.Bucket(bnList).Delete(kb)
	}
	tx.Bucket(bnExp).Delete(kb)
	tx.Bucket(bnMeta).Delete(kb)
}

// ---- strings ----

func (s *boltStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		live, err := typedKind(tx, key, kindString)
		if err != nil {
			return err
		}
		if !live {
			return ErrNotFound
		}
		out = slices.Clone(tx.Bucket(bnKV).Get([]byte(key)))
		return nil
	})
	return out, err
}

func txSet(tx *bolt.Tx, key string, value []byte) error {
	dropKey(tx, key)
	if err := setKind(tx, key, kindString); err != nil {
		return err
	}
	return tx.Bucket(bnKV).Put([]byte(key), value)
}

func (s *boltStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return txSet(tx, key, value)
	})
}

func (s *boltStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := txSet(tx, key, value); err != nil {
			return err
		}
		return putDeadline(tx, key, time.Now().Add(ttl))
	})
}

func putDeadline(tx *bolt.Tx, key string, at time.Time) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(at.UnixNano()))
	return tx.Bucket(bnExp).Put([]byte(key), buf[:])
}

func txDel(tx *bolt.Tx, keys []string) int64 {
	var n int64
	for _, key := range keys {
		if liveKind(tx, key) != 0 {
			dropKey(tx, key)
			n++
		}
	}
	return n
}

func (s *boltStore) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		n = txDel(tx, keys)
		return nil
	})
	return n, err
}

func (s *boltStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		ok = liveKind(tx, key) != 0
		return nil
	})
	return ok, err
}

func txIncrBy(tx *bolt.Tx, key string, delta int64) (int64, error) {
	live, err := typedKind(tx, key, kindString)
	if err != nil {
		return 0, err
	}
	var cur int64
	if live {
		cur, err = strconv.ParseInt(string(tx.Bucket(bnKV).Get([]byte(key))), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value is not an integer: %w", err)
		}
	} else if err := setKind(tx, key, kindString); err != nil {
		return 0, err
	}
	cur += delta
	return cur, tx.Bucket(bnKV).Put([]byte(key), strconv.AppendInt(nil, cur, 10))
}

func (s *boltStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		n, err = txIncrBy(tx, key, delta)
		return err
	})
	return n, err
}

func (s *boltStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	err := s.db.Update(func(tx *bolt.Tx) error {
		for i, key := range keys {
			if live, err := typedKind(tx, key, kindString); err == nil && live {
				out[i] = slices.Clone(tx.Bucket(bnKV).Get([]byte(key)))
			}
		}
		return nil
	})
	return out, err
}

func txMSet(tx *bolt.Tx, pairs []KV) error {
	for _, kv := range pairs {
		if err := txSet(tx, kv.Key, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *boltStore) MSet(ctx context.Context, pairs []KV) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return txMSet(tx, pairs)
	})
}

func (s *boltStore) Rename(ctx context.Context, src, dst string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		kind := liveKind(tx, src)
		if kind == 0 {
			return ErrNotFound
		}
		dropKey(tx, dst)
		if err := copyKey(tx, src, dst, kind); err != nil {
			return err
		}
		if deadline := tx.Bucket(bnExp).Get([]byte(src)); deadline != nil {
			if err := tx.Bucket(bnExp).Put([]byte(dst), slices.Clone(deadline)); err != nil {
				return err
			}
		}
		dropKey(tx, src)
		return nil
	})
}

func copyKey(tx *bolt.Tx, src, dst string, kind byte) error {
	if err := setKind(tx, dst, kind); err != nil {
		return err
	}
	sb, db := []byte(src), []byte(dst)
	switch kind {
	case kindString:
		return tx.Bucket(bnKV).Put(db, slices.Clone(tx.Bucket(bnKV).Get(sb)))
	case kindList:
		return tx.Bucket(bnList).Put(db, slices.Clone(tx.Bucket(bnList).Get(sb)))
	case kindHash:
		return copyBucket(tx.Bucket(bnHash), sb, db)
	case kindSet:
		return copyBucket(tx.Bucket(bnSet), sb, db)
	case kindZSet:
		srcB := tx.Bucket(bnZSet).Bucket(sb)
		dstB, err := tx.Bucket(bnZSet).CreateBucket(db)
		if err != nil {
			return err
		}
		for _, sub := range [][]byte{zsetMembers, zsetOrder} {
			from := srcB.Bucket(sub)
			to, err := dstB.CreateBucket(sub)
			if err != nil {
				return err
			}
			if err := from.ForEach(func(k, v []byte) error {
				return to.Put(slices.Clone(k), slices.Clone(v))
			}); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown kind %q", kind)
}

func copyBucket(parent *bolt.Bucket, src, dst []byte) error {
	from := parent.Bucket(src)
	to, err := parent.CreateBucket(dst)
	if err != nil {
		return err
	}
	return from.ForEach(func(k, v []byte) error {
		return to.Put(slices.Clone(k), slices.Clone(v))
	})
}

// ---- key lifecycle ----

func (s *boltStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	var d time.Duration
	err := s.db.Update(func(tx *bolt.Tx) error {
		if liveKind(tx, key) == 0 {
			return ErrNotFound
		}
		if deadline := tx.Bucket(bnExp).Get([]byte(key)); deadline != nil {
			d = time.Until(time.Unix(0, int64(binary.BigEndian.Uint64(deadline))))
		}
		return nil
	})
	return d, err
}

func (s *boltStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.expireAt(key, time.Now().Add(ttl))
}

func (s *boltStore) ExpireAt(ctx context.Context, key string, at time.Time) (bool, error) {
	return s.expireAt(key, at)
}

func (s *boltStore) expireAt(key string, at time.Time) (bool, error) {
	var ok bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		if liveKind(tx, key) == 0 {
			return nil
		}
		ok = true
		return putDeadline(tx, key, at)
	})
	return ok, err
}

func (s *boltStore) Persist(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		if liveKind(tx, key) == 0 {
			return nil
		}
		if tx.Bucket(bnExp).Get([]byte(key)) == nil {
			return nil
		}
		ok = true
		return tx.Bucket(bnExp).Delete([]byte(key))
	})
	return ok, err
}

// ---- hashes ----

// hashBucket returns the nested bucket for key, optionally creating it.
func hashBucket(tx *bolt.Tx, key string, create bool) (*bolt.Bucket, error) {
	live, err := typedKind(tx, key, kindHash)
	if err != nil {
		return nil, err
	}
	if !live {
		if !create {
			return nil, nil
		}
		if err := setKind(tx, key, kindHash); err != nil {
			return nil, err
		}
		return tx.Bucket(bnHash).CreateBucketIfNotExists([]byte(key))
	}
	return tx.Bucket(bnHash).Bucket([]byte(key)), nil
}

func (s *boltStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	var out []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, false)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(field))
		if v == nil {
			return ErrNotFound
		}
		out = slices.Clone(v)
		return nil
	})
	return out, err
}

func (s *boltStore) HSet(ctx context.Context, key string, pairs ...FV) (int64, error) {
	var added int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, true)
		if err != nil {
			return err
		}
		for _, fv := range pairs {
			if b.Get([]byte(fv.Field)) == nil {
				added++
			}
			if err := b.Put([]byte(fv.Field), fv.Value); err != nil {
				return err
			}
		}
		return nil
	})
	return added, err
}

func txHDel(tx *bolt.Tx, key string, fields []string) (int64, error) {
	b, err := hashBucket(tx, key, false)
	if err != nil || b == nil {
		return 0, err
	}
	var n int64
	for _, f := range fields {
		if b.Get([]byte(f)) != nil {
			if err := b.Delete([]byte(f)); err != nil {
				return n, err
			}
			n++
		}
	}
	if bucketEmpty(b) {
		dropKey(tx, key)
	}
	return n, nil
}

func (s *boltStore) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		n, err = txHDel(tx, key, fields)
		return err
	})
	return n, err
}

func bucketEmpty(b *bolt.Bucket) bool {
	k, _ := b.Cursor().First()
	return k == nil
}

func (s *boltStore) HExists(ctx context.Context, key, field string) (bool, error) {
	var ok bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, false)
		if err != nil {
			return err
		}
		ok = b != nil && b.Get([]byte(field)) != nil
		return nil
	})
	return ok, err
}

func (s *boltStore) HLen(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		n = int64(b.Stats().KeyN)
		return nil
	})
	return n, err
}

func txHIncrBy(tx *bolt.Tx, key, field string, delta int64) (int64, error) {
	b, err := hashBucket(tx, key, true)
	if err != nil {
		return 0, err
	}
	var cur int64
	if v := b.Get([]byte(field)); v != nil {
		cur, err = strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("hash value is not an integer: %w", err)
		}
	}
	cur += delta
	return cur, b.Put([]byte(field), strconv.AppendInt(nil, cur, 10))
}

func (s *boltStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		n, err = txHIncrBy(tx, key, field, delta)
		return err
	})
	return n, err
}

func (s *boltStore) HGetAll(ctx context.Context, key string) ([]FV, error) {
	var out []FV
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			out = append(out, FV{Field: string(k), Value: slices.Clone(v)})
			return nil
		})
	})
	return out, err
}

func (s *boltStore) HKeys(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

func (s *boltStore) HVals(ctx context.Context, key string) ([][]byte, error) {
	var out [][]byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			out = append(out, slices.Clone(v))
			return nil
		})
	})
	return out, err
}

func (s *boltStore) HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error) {
	out := make([][]byte, len(fields))
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		for i, f := range fields {
			if v := b.Get([]byte(f)); v != nil {
				out[i] = slices.Clone(v)
			}
		}
		return nil
	})
	return out, err
}

// ---- lists ----

func listGet(tx *bolt.Tx, key string) ([][]byte, error) {
	live, err := typedKind(tx, key, kindList)
	if err != nil || !live {
		return nil, err
	}
	var items [][]byte
	if err := msgpack.Unmarshal(tx.Bucket(bnList).Get([]byte(key)), &items); err != nil {
		return nil, fmt.Errorf("corrupt list %q: %w", key, err)
	}
	return items, nil
}

func listPut(tx *bolt.Tx, key string, items [][]byte) error {
	if len(items) == 0 {
		dropKey(tx, key)
		return nil
	}
	if err := setKind(tx, key, kindList); err != nil {
		return err
	}
	blob, err := msgpack.Marshal(items)
	if err != nil {
		return err
	}
	return tx.Bucket(bnList).Put([]byte(key), blob)
}

func (s *boltStore) listMutate(key string, fn func(items [][]byte) ([][]byte, error)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		items, err := listGet(tx, key)
		if err != nil {
			return err
		}
		items, err = fn(items)
		if err != nil {
			return err
		}
		return listPut(tx, key, items)
	})
}

func (s *boltStore) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	var n int64
	err := s.listMutate(key, func(items [][]byte) ([][]byte, error) {
		for _, v := range values {
			items = slices.Insert(items, 0, slices.Clone(v))
		}
		n = int64(len(items))
		return items, nil
	})
	return n, err
}

func (s *boltStore) RPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	var n int64
	err := s.listMutate(key, func(items [][]byte) ([][]byte, error) {
		for _, v := range values {
			items = append(items, slices.Clone(v))
		}
		n = int64(len(items))
		return items, nil
	})
	return n, err
}

func (s *boltStore) LPop(ctx context.Context, key string) ([]byte, error) {
	return s.listPop(key, false)
}

func (s *boltStore) RPop(ctx context.Context, key string) ([]byte, error) {
	return s.listPop(key, true)
}

func (s *boltStore) listPop(key string, tail bool) ([]byte, error) {
	var out []byte
	err := s.listMutate(key, func(items [][]byte) ([][]byte, error) {
		if len(items) == 0 {
			return nil, ErrNotFound
		}
		if tail {
			out = items[len(items)-1]
			return items[:len(items)-1], nil
		}
		out = items[0]
		return items[1:], nil
	})
	return out, err
}

func (s *boltStore) LLen(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		items, err := listGet(tx, key)
		n = int64(len(items))
		return err
	})
	return n, err
}

func (s *boltStore) LIndex(ctx context.Context, key string, index int64) ([]byte, error) {
	var out []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		items, err := listGet(tx, key)
		if err != nil {
			return err
		}
		n := int64(len(items))
		if index < 0 {
			index += n
		}
		if index < 0 || index >= n {
			return ErrNotFound
		}
		out = slices.Clone(items[index])
		return nil
	})
	return out, err
}

func (s *boltStore) LSet(ctx context.Context, key string, index int64, value []byte) error {
	return s.listMutate(key, func(items [][]byte) ([][]byte, error) {
		n := int64(len(items))
		if n == 0 {
			return nil, ErrNotFound
		}
		if index < 0 {
			index += n
		}
		if index < 0 || index >= n {
			return nil, fmt.Errorf("index out of range")
		}
		items[index] = slices.Clone(value)
		return items, nil
	})
}

func (s *boltStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	var out [][]byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		items, err := listGet(tx, key)
		if err != nil {
			return err
		}
		lo, hi, ok := clampRange(int64(len(items)), start, stop)
		if !ok {
			return nil
		}
		out = items[lo : hi+1]
		return nil
	})
	return out, err
}

func txLInsertBefore(tx *bolt.Tx, key string, pivot, value []byte) (int64, error) {
	items, err := listGet(tx, key)
	if err != nil || items == nil {
		return 0, err
	}
	for i, v := range items {
		if bytes.Equal(v, pivot) {
			items = slices.Insert(items, i, slices.Clone(value))
			return int64(len(items)), listPut(tx, key, items)
		}
	}
	return -1, nil
}

func (s *boltStore) LInsertBefore(ctx context.Context, key string, pivot, value []byte) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		n, err = txLInsertBefore(tx, key, pivot, value)
		return err
	})
	return n, err
}

func txLRem(tx *bolt.Tx, key string, count int64, value []byte) (int64, error) {
	items, err := listGet(tx, key)
	if err != nil || items == nil {
		return 0, err
	}
	limit := count
	if limit < 0 {
		limit = -limit
	}
	var removed int64
	var keep [][]byte
	if count >= 0 {
		keep = items[:0]
		for _, v := range items {
			if bytes.Equal(v, value) && (count == 0 || removed < limit) {
				removed++
				continue
			}
			keep = append(keep, v)
		}
	} else {
		// A tail-to-head walk cannot reuse the backing array: appends at
		// the front would overwrite elements not yet visited.
		keep = make([][]byte, 0, len(items))
		for i := len(items) - 1; i >= 0; i-- {
			if bytes.Equal(items[i], value) && removed < limit {
				removed++
				continue
			}
			keep = append(keep, items[i])
		}
		slices.Reverse(keep)
	}
	return removed, listPut(tx, key, keep)
}

func (s *boltStore) LRem(ctx context.Context, key string, count int64, value []byte) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		n, err = txLRem(tx, key, count, value)
		return err
	})
	return n, err
}

func (s *boltStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.listMutate(key, func(items [][]byte) ([][]byte, error) {
		lo, hi, ok := clampRange(int64(len(items)), start, stop)
		if !ok {
			return nil, nil
		}
		return items[lo : hi+1], nil
	})
}

// ---- sets ----

func setBucket(tx *bolt.Tx, key string, create bool) (*bolt.Bucket, error) {
	live, err := typedKind(tx, key, kindSet)
	if err != nil {
		return nil, err
	}
	if !live {
		if !create {
			return nil, nil
		}
		if err := setKind(tx, key, kindSet); err != nil {
			return nil, err
		}
		return tx.Bucket(bnSet).CreateBucketIfNotExists([]byte(key))
	}
	return tx.Bucket(bnSet).Bucket([]byte(key)), nil
}

func (s *boltStore) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	var added int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := setBucket(tx, key, true)
		if err != nil {
			return err
		}
		for _, m := range members {
			if b.Get(m) == nil {
				added++
				if err := b.Put(m, nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return added, err
}

func (s *boltStore) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := setBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		for _, m := range members {
			if b.Get(m) != nil {
				if err := b.Delete(m); err != nil {
					return err
				}
				n++
			}
		}
		if bucketEmpty(b) {
			dropKey(tx, key)
		}
		return nil
	})
	return n, err
}

func (s *boltStore) SCard(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := setBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		n = int64(b.Stats().KeyN)
		return nil
	})
	return n, err
}

func (s *boltStore) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	var ok bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := setBucket(tx, key, false)
		if err != nil {
			return err
		}
		ok = b != nil && b.Get(member) != nil
		return nil
	})
	return ok, err
}

func setMembers(tx *bolt.Tx, key string) ([][]byte, error) {
	b, err := setBucket(tx, key, false)
	if err != nil || b == nil {
		return nil, err
	}
	var out [][]byte
	err = b.ForEach(func(k, v []byte) error {
		out = append(out, slices.Clone(k))
		return nil
	})
	return out, err
}

func (s *boltStore) SMembers(ctx context.Context, key string) ([][]byte, error) {
	var out [][]byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		out, err = setMembers(tx, key)
		return err
	})
	return out, err
}

func (s *boltStore) SPop(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := setBucket(tx, key, false)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrNotFound
		}
		m, _ := b.Cursor().First()
		if m == nil {
			return ErrNotFound
		}
		out = slices.Clone(m)
		if err := b.Delete(m); err != nil {
			return err
		}
		if bucketEmpty(b) {
			dropKey(tx, key)
		}
		return nil
	})
	return out, err
}

func (s *boltStore) SRandMember(ctx context.Context, key string, count int64) ([][]byte, error) {
	var out [][]byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := setBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		c := b.Cursor()
		for m, _ := c.First(); m != nil && int64(len(out)) < count; m, _ = c.Next() {
			out = append(out, slices.Clone(m))
		}
		return nil
	})
	return out, err
}

func (s *boltStore) SMove(ctx context.Context, src, dst string, member []byte) (bool, error) {
	var moved bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		sb, err := setBucket(tx, src, false)
		if err != nil || sb == nil {
			return err
		}
		if sb.Get(member) == nil {
			return nil
		}
		db, err := setBucket(tx, dst, true)
		if err != nil {
			return err
		}
		if err := sb.Delete(member); err != nil {
			return err
		}
		if bucketEmpty(sb) {
			dropKey(tx, src)
		}
		moved = true
		return db.Put(slices.Clone(member), nil)
	})
	return moved, err
}

func boltSetAlgebra(tx *bolt.Tx, keys []string, combine func(acc, other map[string]struct{})) (map[string]struct{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	acc := make(map[string]struct{})
	members, err := setMembers(tx, keys[0])
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		acc[string(m)] = struct{}{}
	}
	for _, key := range keys[1:] {
		members, err := setMembers(tx, key)
		if err != nil {
			return nil, err
		}
		other := make(map[string]struct{}, len(members))
		for _, m := range members {
			other[string(m)] = struct{}{}
		}
		combine(acc, other)
	}
	return acc, nil
}

func (s *boltStore) setOp(keys []string, combine func(acc, other map[string]struct{})) ([][]byte, error) {
	var out [][]byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		acc, err := boltSetAlgebra(tx, keys, combine)
		if err != nil {
			return err
		}
		out = setBytes(acc)
		return nil
	})
	return out, err
}

func (s *boltStore) SUnion(ctx context.Context, keys ...string) ([][]byte, error) {
	return s.setOp(keys, unionInto)
}

func (s *boltStore) SInter(ctx context.Context, keys ...string) ([][]byte, error) {
	return s.setOp(keys, interInto)
}

func (s *boltStore) SDiff(ctx context.Context, keys ...string) ([][]byte, error) {
	return s.setOp(keys, diffInto)
}

func (s *boltStore) setOpStore(dst string, keys []string, combine func(acc, other map[string]struct{})) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		acc, err := boltSetAlgebra(tx, keys, combine)
		if err != nil {
			return err
		}
		dropKey(tx, dst)
		if len(acc) == 0 {
			return nil
		}
		b, err := setBucket(tx, dst, true)
		if err != nil {
			return err
		}
		for m := range acc {
			if err := b.Put([]byte(m), nil); err != nil {
				return err
			}
		}
		n = int64(len(acc))
		return nil
	})
	return n, err
}

func (s *boltStore) SUnionStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.setOpStore(dst, keys, unionInto)
}

func (s *boltStore) SInterStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.setOpStore(dst, keys, interInto)
}

func (s *boltStore) SDiffStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.setOpStore(dst, keys, diffInto)
}

// ---- sorted sets ----

// packScore renders a float64 so that byte order matches numeric order.
func packScore(f float64) []byte {
	bits := math.Float64bits(f)
	if bits>>63 == 1 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return buf[:]
}

func unpackScore(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits>>63 == 1 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

type zsetBuckets struct {
	members *bolt.Bucket // member → packScore(score)
	order   *bolt.Bucket // packScore(score) + member → nil
}

func zsetBucket(tx *bolt.Tx, key string, create bool) (zsetBuckets, error) {
	var zb zsetBuckets
	live, err := typedKind(tx, key, kindZSet)
	if err != nil {
		return zb, err
	}
	if !live {
		if !create {
			return zb, nil
		}
		if err := setKind(tx, key, kindZSet); err != nil {
			return zb, err
		}
		b, err := tx.Bucket(bnZSet).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return zb, err
		}
		if zb.members, err = b.CreateBucketIfNotExists(zsetMembers); err != nil {
			return zb, err
		}
		if zb.order, err = b.CreateBucketIfNotExists(zsetOrder); err != nil {
			return zb, err
		}
		return zb, nil
	}
	b := tx.Bucket(bnZSet).Bucket([]byte(key))
	zb.members = b.Bucket(zsetMembers)
	zb.order = b.Bucket(zsetOrder)
	return zb, nil
}

func (zb zsetBuckets) put(member []byte, score float64) error {
	if old := zb.members.Get(member); old != nil {
		if err := zb.order.Delete(append(slices.Clone(old), member...)); err != nil {
			return err
		}
	}
	packed := packScore(score)
	if err := zb.members.Put(slices.Clone(member), packed); err != nil {
		return err
	}
	return zb.order.Put(append(slices.Clone(packed), member...), nil)
}

func (s *boltStore) ZAdd(ctx context.Context, key string, entries ...ZEntry) (int64, error) {
	var added int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, true)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if zb.members.Get(e.Member) == nil {
				added++
			}
			if err := zb.put(e.Member, e.Score); err != nil {
				return err
			}
		}
		return nil
	})
	return added, err
}

func (s *boltStore) ZIncrBy(ctx context.Context, key string, member []byte, delta float64) (float64, error) {
	var score float64
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, true)
		if err != nil {
			return err
		}
		if old := zb.members.Get(member); old != nil {
			score = unpackScore(old)
		}
		score += delta
		return zb.put(member, score)
	})
	return score, err
}

func (s *boltStore) ZRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, false)
		if err != nil || zb.members == nil {
			return err
		}
		for _, m := range members {
			old := zb.members.Get(m)
			if old == nil {
				continue
			}
			if err := zb.order.Delete(append(slices.Clone(old), m...)); err != nil {
				return err
			}
			if err := zb.members.Delete(m); err != nil {
				return err
			}
			n++
		}
		if bucketEmpty(zb.members) {
			dropKey(tx, key)
		}
		return nil
	})
	return n, err
}

func (s *boltStore) ZCard(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, false)
		if err != nil || zb.members == nil {
			return err
		}
		n = int64(zb.members.Stats().KeyN)
		return nil
	})
	return n, err
}

func (s *boltStore) ZScore(ctx context.Context, key string, member []byte) (float64, error) {
	var score float64
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, false)
		if err != nil {
			return err
		}
		if zb.members == nil {
			return ErrNotFound
		}
		packed := zb.members.Get(member)
		if packed == nil {
			return ErrNotFound
		}
		score = unpackScore(packed)
		return nil
	})
	return score, err
}

func (s *boltStore) ZRank(ctx context.Context, key string, member []byte, reverse bool) (int64, error) {
	var rank int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, false)
		if err != nil {
			return err
		}
		if zb.members == nil || zb.members.Get(member) == nil {
			return ErrNotFound
		}
		c := zb.order.Cursor()
		next := c.Next
		k, _ := c.First()
		if reverse {
			next = c.Prev
			k, _ = c.Last()
		}
		for ; k != nil; k, _ = next() {
			if bytes.Equal(k[8:], member) {
				return nil
			}
			rank++
		}
		return ErrNotFound // unreachable while the twin buckets agree
	})
	return rank, err
}

func (s *boltStore) ZCount(ctx context.Context, key string, r ScoreRange) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, false)
		if err != nil || zb.members == nil {
			return err
		}
		c := zb.order.Cursor()
		for k, _ := c.Seek(packScore(r.Min)); k != nil; k, _ = c.Next() {
			score := unpackScore(k[:8])
			if score > r.Max {
				break
			}
			if r.contains(score) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *boltStore) ZRange(ctx context.Context, key string, start, stop int64, reverse bool) ([]ZEntry, error) {
	var out []ZEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, false)
		if err != nil || zb.members == nil {
			return err
		}
		lo, hi, ok := clampRange(int64(zb.members.Stats().KeyN), start, stop)
		if !ok {
			return nil
		}
		c := zb.order.Cursor()
		next := c.Next
		k, _ := c.First()
		if reverse {
			next = c.Prev
			k, _ = c.Last()
		}
		var i int64
		for ; k != nil && i <= hi; k, _ = next() {
			if i >= lo {
				out = append(out, ZEntry{Member: slices.Clone(k[8:]), Score: unpackScore(k[:8])})
			}
			i++
		}
		return nil
	})
	return out, err
}

func (s *boltStore) ZRangeByScore(ctx context.Context, key string, r ScoreRange, offset, count int64, reverse bool) ([]ZEntry, error) {
	var out []ZEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, false)
		if err != nil || zb.members == nil {
			return err
		}
		c := zb.order.Cursor()
		var skipped int64
		emit := func(k []byte) bool {
			score := unpackScore(k[:8])
			if !r.contains(score) {
				return true
			}
			if skipped < offset {
				skipped++
				return true
			}
			if count >= 0 && int64(len(out)) >= count {
				return false
			}
			out = append(out, ZEntry{Member: slices.Clone(k[8:]), Score: score})
			return true
		}
		if reverse {
			for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
				if unpackScore(k[:8]) < r.Min {
					break
				}
				if !emit(k) {
					break
				}
			}
		} else {
			for k, _ := c.Seek(packScore(r.Min)); k != nil; k, _ = c.Next() {
				if unpackScore(k[:8]) > r.Max {
					break
				}
				if !emit(k) {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

// ---- scans ----

func (s *boltStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var collectErr error
	page, next := s.scans.page(cursor, "", count, func() []string {
		var names []string
		// Read-only pass: evicting an expired key here would mutate meta
		// under its own ForEach. Expired keys are filtered out instead and
		// evicted whenever they are next touched.
		now := time.Now()
		collectErr = s.db.View(func(tx *bolt.Tx) error {
			exp := tx.Bucket(bnExp)
			return tx.Bucket(bnMeta).ForEach(func(k, v []byte) error {
				if deadline := exp.Get(k); deadline != nil {
					at := time.Unix(0, int64(binary.BigEndian.Uint64(deadline)))
					if !now.Before(at) {
						return nil
					}
				}
				if matchKey(match, string(k)) {
					names = append(names, string(k))
				}
				return nil
			})
		})
		return names
	})
	return page, next, collectErr
}

func (s *boltStore) HScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([]FV, uint64, error) {
	page, next, err := s.fieldScan(key, cursor, match, count, kindHash)
	if err != nil {
		return nil, 0, err
	}
	var out []FV
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := hashBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		for _, f := range page {
			if v := b.Get([]byte(f)); v != nil {
				out = append(out, FV{Field: f, Value: slices.Clone(v)})
			}
		}
		return nil
	})
	return out, next, err
}

func (s *boltStore) SScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([][]byte, uint64, error) {
	page, next, err := s.fieldScan(key, cursor, match, count, kindSet)
	if err != nil {
		return nil, 0, err
	}
	var out [][]byte
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := setBucket(tx, key, false)
		if err != nil || b == nil {
			return err
		}
		for _, m := range page {
			if b.Get([]byte(m)) != nil {
				out = append(out, []byte(m))
			}
		}
		return nil
	})
	return out, next, err
}

func (s *boltStore) ZScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([]ZEntry, uint64, error) {
	page, next, err := s.fieldScan(key, cursor, match, count, kindZSet)
	if err != nil {
		return nil, 0, err
	}
	var out []ZEntry
	err = s.db.Update(func(tx *bolt.Tx) error {
		zb, err := zsetBucket(tx, key, false)
		if err != nil || zb.members == nil {
			return err
		}
		for _, m := range page {
			if packed := zb.members.Get([]byte(m)); packed != nil {
				out = append(out, ZEntry{Member: []byte(m), Score: unpackScore(packed)})
			}
		}
		return nil
	})
	return out, next, err
}

// fieldScan drives one page of a field/member scan over a nested bucket.
func (s *boltStore) fieldScan(key string, cursor uint64, match string, count int64, kind byte) ([]string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var collectErr error
	page, next := s.scans.page(cursor, key, count, func() []string {
		var names []string
		collectErr = s.db.Update(func(tx *bolt.Tx) error {
			live, err := typedKind(tx, key, kind)
			if err != nil || !live {
				return err
			}
			var b *bolt.Bucket
			switch kind {
			case kindHash:
				b = tx.Bucket(bnHash).Bucket([]byte(key))
			case kindSet:
				b = tx.Bucket(bnSet).Bucket([]byte(key))
			case kindZSet:
				b = tx.Bucket(bnZSet).Bucket([]byte(key)).Bucket(zsetMembers)
			}
			return b.ForEach(func(k, v []byte) error {
				if matchKey(match, string(k)) {
					names = append(names, string(k))
				}
				return nil
			})
		})
		return names
	})
	return page, next, collectErr
}

// ---- batches ----

func (s *boltStore) Exec(ctx context.Context, transactional bool, cmds []Cmd) ([]Reply, error) {
	// A single bolt write transaction covers the batch either way, so
	// transactional adds nothing here. Failed commands do not stop the
	// batch, matching the wire behavior of a queued transaction.
	replies := make([]Reply, len(cmds))
	var firstErr error
	err := s.db.Update(func(tx *bolt.Tx) error {
		for i, cmd := range cmds {
			r := execBolt(tx, cmd)
			replies[i] = r
			if r.Err != nil && firstErr == nil {
				firstErr = batchErrf(i, cmd, r.Err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replies, firstErr
}

func execBolt(tx *bolt.Tx, cmd Cmd) Reply {
	switch cmd.Op {
	case OpSet:
		return Reply{Err: txSet(tx, cmd.Key, cmd.Value)}
	case OpDel:
		return Reply{Int: txDel(tx, cmd.Keys)}
	case OpExists:
		return Reply{Bool: liveKind(tx, cmd.Key) != 0}
	case OpIncrBy:
		n, err := txIncrBy(tx, cmd.Key, cmd.Delta)
		return Reply{Int: n, Err: err}
	case OpMSet:
		return Reply{Err: txMSet(tx, cmd.Pairs)}
	case OpHIncrBy:
		n, err := txHIncrBy(tx, cmd.Key, cmd.Field, cmd.Delta)
		return Reply{Int: n, Err: err}
	case OpHDel:
		n, err := txHDel(tx, cmd.Key, cmd.Fields)
		return Reply{Int: n, Err: err}
	case OpLInsertBefore:
		n, err := txLInsertBefore(tx, cmd.Key, cmd.Pivot, cmd.Value)
		return Reply{Int: n, Err: err}
	case OpLRem:
		n, err := txLRem(tx, cmd.Key, cmd.Count, cmd.Value)
		return Reply{Int: n, Err: err}
	default:
		return Reply{Err: fmt.Errorf("unknown batch op %q", cmd.Op)}
	}
}
