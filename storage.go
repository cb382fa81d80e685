package redstruct

import (
	"context"
	"math"
	"time"
)

// Store is the primitive command surface the containers are built on.
// Implementations must be safe for concurrent use; the store itself is the
// only synchronization point, the containers hold no locks.
//
// Missing keys, fields and members are reported as ErrNotFound, never as
// zero values.
type Store interface {
	// Strings.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	MSet(ctx context.Context, pairs []KV) error
	Rename(ctx context.Context, src, dst string) error

	// Key lifecycle.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ExpireAt(ctx context.Context, key string, at time.Time) (bool, error)
	Persist(ctx context.Context, key string) (bool, error)

	// Hash fields.
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HSet(ctx context.Context, key string, pairs ...FV) (int64, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HExists(ctx context.Context, key, field string) (bool, error)
	HLen(ctx context.Context, key string) (int64, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HGetAll(ctx context.Context, key string) ([]FV, error)
	HKeys(ctx context.Context, key string) ([]string, error)
	HVals(ctx context.Context, key string) ([][]byte, error)
	HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error)

	// Lists.
	LPush(ctx context.Context, key string, values ...[]byte) (int64, error)
	RPush(ctx context.Context, key string, values ...[]byte) (int64, error)
	LPop(ctx context.Context, key string) ([]byte, error)
	RPop(ctx context.Context, key string) ([]byte, error)
	LLen(ctx context.Context, key string) (int64, error)
	LIndex(ctx context.Context, key string, index int64) ([]byte, error)
	LSet(ctx context.Context, key string, index int64, value []byte) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	LInsertBefore(ctx context.Context, key string, pivot, value []byte) (int64, error)
	LRem(ctx context.Context, key string, count int64, value []byte) (int64, error)
	LTrim(ctx context.Context, key string, start, stop int64) error

	// Sets.
	SAdd(ctx context.Context, key string, members ...[]byte) (int64, error)
	SRem(ctx context.Context, key string, members ...[]byte) (int64, error)
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key string, member []byte) (bool, error)
	SMembers(ctx context.Context, key string) ([][]byte, error)
	SPop(ctx context.Context, key string) ([]byte, error)
	SRandMember(ctx context.Context, key string, count int64) ([][]byte, error)
	SMove(ctx context.Context, src, dst string, member []byte) (bool, error)
	SUnion(ctx context.Context, keys ...string) ([][]byte, error)
	SInter(ctx context.Context, keys ...string) ([][]byte, error)
	SDiff(ctx context.Context, keys ...string) ([][]byte, error)
	SUnionStore(ctx context.Context, dst string, keys ...string) (int64, error)
	SInterStore(ctx context.Context, dst string, keys ...string) (int64, error)
	SDiffStore(ctx context.Context, dst string, keys ...string) (int64, error)

	// Sorted sets. Ranks order by score, ties broken by the raw member
	// encoding; reverse flips the direction.
	ZAdd(ctx context.Context, key string, entries ...ZEntry) (int64, error)
	ZIncrBy(ctx context.Context, key string, member []byte, delta float64) (float64, error)
	ZRem(ctx context.Context, key string, members ...[]byte) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZScore(ctx context.Context, key string, member []byte) (float64, error)
	ZRank(ctx context.Context, key string, member []byte, reverse bool) (int64, error)
	ZCount(ctx context.Context, key string, r ScoreRange) (int64, error)
	ZRange(ctx context.Context, key string, start, stop int64, reverse bool) ([]ZEntry, error)
	ZRangeByScore(ctx context.Context, key string, r ScoreRange, offset, count int64, reverse bool) ([]ZEntry, error)

	// Incremental scans. A cursor of 0 starts a pass; the pass is complete
	// when the returned cursor is 0 again. Concurrent mutations may cause
	// elements to be seen zero, one or more times within one pass.
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)
	HScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([]FV, uint64, error)
	SScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([][]byte, uint64, error)
	ZScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([]ZEntry, uint64, error)

	// Exec issues cmds as one batch in a single round trip and returns
	// per-command replies in order. A failed command does not stop the
	// batch; the first failure is reported as a *BatchError alongside the
	// replies. Transactional batches additionally guarantee that no other
	// client's commands interleave; they do not roll back on command
	// failure.
	Exec(ctx context.Context, transactional bool, cmds []Cmd) ([]Reply, error)

	Close() error
}

// KV is a key/value pair for MSET.
type KV struct {
	Key   string
	Value []byte
}

// FV is a hash field/value pair.
type FV struct {
	Field string
	Value []byte
}

// ZEntry is a sorted-set member with its score.
type ZEntry struct {
	Member []byte
	Score  float64
}

// ScoreRange selects sorted-set entries by score. The zero value selects
// nothing useful; use Scores or AllScores.
type ScoreRange struct {
	Min, Max         float64
	MinExcl, MaxExcl bool
}

func Scores(min, max float64) ScoreRange {
	return ScoreRange{Min: min, Max: max}
}

func AllScores() ScoreRange {
	return ScoreRange{Min: math.Inf(-1), Max: math.Inf(1)}
}

func (r ScoreRange) contains(score float64) bool {
	if score < r.Min || (score == r.Min && r.MinExcl) {
		return false
	}
	if score > r.Max || (score == r.Max && r.MaxExcl) {
		return false
	}
	return true
}

// Op identifies a batched command.
type Op string

const (
	OpSet           Op = "SET"
	OpDel           Op = "DEL"
	OpExists        Op = "EXISTS"
	OpIncrBy        Op = "INCRBY"
	OpMSet          Op = "MSET"
	OpHIncrBy       Op = "HINCRBY"
	OpHDel          Op = "HDEL"
	OpLInsertBefore Op = "LINSERT"
	OpLRem          Op = "LREM"
)

// Cmd is one command of a batch. Only the fields relevant to Op are set;
// use the constructors below.
type Cmd struct {
	Op     Op
	Key    string
	Keys   []string
	Field  string
	Fields []string
	Delta  int64
	Count  int64
	Value  []byte
	Pivot  []byte
	Pairs  []KV
}

func setCmd(key string, value []byte) Cmd {
	return Cmd{Op: OpSet, Key: key, Value: value}
}

func delCmd(keys ...string) Cmd {
	return Cmd{Op: OpDel, Keys: keys}
}

func existsCmd(key string) Cmd {
	return Cmd{Op: OpExists, Key: key}
}

func incrByCmd(key string, delta int64) Cmd {
	return Cmd{Op: OpIncrBy, Key: key, Delta: delta}
}

func msetCmd(pairs []KV) Cmd {
	return Cmd{Op: OpMSet, Pairs: pairs}
}

func hincrByCmd(key, field string, delta int64) Cmd {
	return Cmd{Op: OpHIncrBy, Key: key, Field: field, Delta: delta}
}

func hdelCmd(key string, fields ...string) Cmd {
	return Cmd{Op: OpHDel, Key: key, Fields: fields}
}

func linsertBeforeCmd(key string, pivot, value []byte) Cmd {
	return Cmd{Op: OpLInsertBefore, Key: key, Pivot: pivot, Value: value}
}

func lremCmd(key string, count int64, value []byte) Cmd {
	return Cmd{Op: OpLRem, Key: key, Count: count, Value: value}
}

// Reply is the result of one batched command.
type Reply struct {
	Int  int64
	Bool bool
	Err  error
}
