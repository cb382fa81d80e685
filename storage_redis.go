package redstruct

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore adapts a go-redis client to the Store interface. The adapter
// is a thin translation layer: every method maps to exactly one command,
// and Exec maps to one pipeline round trip.
type redisStore struct {
	c redis.UniversalClient
}

// NewRedisStore wraps an established go-redis client. The store does not
// own the client's lifecycle unless Close is called.
func NewRedisStore(c redis.UniversalClient) Store {
	return &redisStore{c: c}
}

func (s *redisStore) Close() error {
	return s.c.Close()
}

func notNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return err
}

// ---- strings ----

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.c.Get(ctx, key).Bytes()
	return v, notNil(err)
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.c.Set(ctx, key, value, 0).Err()
}

func (s *redisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.c.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	return s.c.Del(ctx, keys...).Result()
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.c.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *redisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.c.IncrBy(ctx, key, delta).Result()
}

func (s *redisStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	vals, err := s.c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

func (s *redisStore) MSet(ctx context.Context, pairs []KV) error {
	args := make([]any, 0, 2*len(pairs))
	for _, kv := range pairs {
		args = append(args, kv.Key, kv.Value)
	}
	return s.c.MSet(ctx, args...).Err()
}

func (s *redisStore) Rename(ctx context.Context, src, dst string) error {
	return s.c.Rename(ctx, src, dst).Err()
}

// ---- key lifecycle ----

func (s *redisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.c.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	switch d {
	case -2: // no such key
		return 0, ErrNotFound
	case -1: // no expiration
		return 0, nil
	}
	return d, nil
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.c.Expire(ctx, key, ttl).Result()
}

func (s *redisStore) ExpireAt(ctx context.Context, key string, at time.Time) (bool, error) {
	return s.c.ExpireAt(ctx, key, at).Result()
}

func (s *redisStore) Persist(ctx context.Context, key string) (bool, error) {
	return s.c.Persist(ctx, key).Result()
}

// ---- hashes ----

func (s *redisStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	v, err := s.c.HGet(ctx, key, field).Bytes()
	return v, notNil(err)
}

func (s *redisStore) HSet(ctx context.Context, key string, pairs ...FV) (int64, error) {
	args := make([]any, 0, 2*len(pairs))
	for _, fv := range pairs {
		args = append(args, fv.Field, fv.Value)
	}
	return s.c.HSet(ctx, key, args...).Result()
}

func (s *redisStore) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	return s.c.HDel(ctx, key, fields...).Result()
}

func (s *redisStore) HExists(ctx context.Context, key, field string) (bool, error) {
	return s.c.HExists(ctx, key, field).Result()
}

func (s *redisStore) HLen(ctx context.Context, key string) (int64, error) {
	return s.c.HLen(ctx, key).Result()
}

func (s *redisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	return s.c.HIncrBy(ctx, key, field, delta).Result()
}

func (s *redisStore) HGetAll(ctx context.Context, key string) ([]FV, error) {
	m, err := s.c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]FV, 0, len(m))
	for f, v := range m {
		out = append(out, FV{Field: f, Value: []byte(v)})
	}
	return out, nil
}

func (s *redisStore) HKeys(ctx context.Context, key string) ([]string, error) {
	return s.c.HKeys(ctx, key).Result()
}

func (s *redisStore) HVals(ctx context.Context, key string) ([][]byte, error) {
	vals, err := s.c.HVals(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	return stringsToBytes(vals), nil
}

func (s *redisStore) HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error) {
	vals, err := s.c.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

// ---- lists ----

func (s *redisStore) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	return s.c.LPush(ctx, key, bytesToAny(values)...).Result()
}

func (s *redisStore) RPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	return s.c.RPush(ctx, key, bytesToAny(values)...).Result()
}

func (s *redisStore) LPop(ctx context.Context, key string) ([]byte, error) {
	v, err := s.c.LPop(ctx, key).Bytes()
	return v, notNil(err)
}

func (s *redisStore) RPop(ctx context.Context, key string) ([]byte, error) {
	v, err := s.c.RPop(ctx, key).Bytes()
	return v, notNil(err)
}

func (s *redisStore) LLen(ctx context.Context, key string) (int64, error) {
	return s.c.LLen(ctx, key).Result()
}

func (s *redisStore) LIndex(ctx context.Context, key string, index int64) ([]byte, error) {
	v, err := s.c.LIndex(ctx, key, index).Bytes()
	return v, notNil(err)
}

func (s *redisStore) LSet(ctx context.Context, key string, index int64, value []byte) error {
	return s.c.LSet(ctx, key, index, value).Err()
}

func (s *redisStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	vals, err := s.c.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return stringsToBytes(vals), nil
}

func (s *redisStore) LInsertBefore(ctx context.Context, key string, pivot, value []byte) (int64, error) {
	return s.c.LInsertBefore(ctx, key, pivot, value).Result()
}

func (s *redisStore) LRem(ctx context.Context, key string, count int64, value []byte) (int64, error) {
	return s.c.LRem(ctx, key, count, value).Result()
}

func (s *redisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.c.LTrim(ctx, key, start, stop).Err()
}

// ---- sets ----

func (s *redisStore) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	return s.c.SAdd(ctx, key, bytesToAny(members)...).Result()
}

func (s *redisStore) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	return s.c.SRem(ctx, key, bytesToAny(members)...).Result()
}

func (s *redisStore) SCard(ctx context.Context, key string) (int64, error) {
	return s.c.SCard(ctx, key).Result()
}

func (s *redisStore) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	return s.c.SIsMember(ctx, key, member).Result()
}

func (s *redisStore) SMembers(ctx context.Context, key string) ([][]byte, error) {
	vals, err := s.c.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	return stringsToBytes(vals), nil
}

func (s *redisStore) SPop(ctx context.Context, key string) ([]byte, error) {
	v, err := s.c.SPop(ctx, key).Bytes()
	return v, notNil(err)
}

func (s *redisStore) SRandMember(ctx context.Context, key string, count int64) ([][]byte, error) {
	vals, err := s.c.SRandMemberN(ctx, key, count).Result()
	if err != nil {
		return nil, err
	}
	return stringsToBytes(vals), nil
}

func (s *redisStore) SMove(ctx context.Context, src, dst string, member []byte) (bool, error) {
	return s.c.SMove(ctx, src, dst, member).Result()
}

func (s *redisStore) SUnion(ctx context.Context, keys ...string) ([][]byte, error) {
	vals, err := s.c.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	return stringsToBytes(vals), nil
}

func (s *redisStore) SInter(ctx context.Context, keys ...string) ([][]byte, error) {
	vals, err := s.c.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	return stringsToBytes(vals), nil
}

func (s *redisStore) SDiff(ctx context.Context, keys ...string) ([][]byte, error) {
	vals, err := s.c.SDiff(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	return stringsToBytes(vals), nil
}

func (s *redisStore) SUnionStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.c.SUnionStore(ctx, dst, keys...).Result()
}

func (s *redisStore) SInterStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.c.SInterStore(ctx, dst, keys...).Result()
}

func (s *redisStore) SDiffStore(ctx context.Context, dst string, keys ...string) (int64, error) {
	return s.c.SDiffStore(ctx, dst, keys...).Result()
}

// ---- sorted sets ----

func (s *redisStore) ZAdd(ctx context.Context, key string, entries ...ZEntry) (int64, error) {
	zs := make([]redis.Z, len(entries))
	for i, e := range entries {
		zs[i] = redis.Z{Score: e.Score, Member: e.Member}
	}
	return s.c.ZAdd(ctx, key, zs...).Result()
}

func (s *redisStore) ZIncrBy(ctx context.Context, key string, member []byte, delta float64) (float64, error) {
	return s.c.ZIncrBy(ctx, key, delta, string(member)).Result()
}

func (s *redisStore) ZRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	return s.c.ZRem(ctx, key, bytesToAny(members)...).Result()
}

func (s *redisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return s.c.ZCard(ctx, key).Result()
}

func (s *redisStore) ZScore(ctx context.Context, key string, member []byte) (float64, error) {
	score, err := s.c.ZScore(ctx, key, string(member)).Result()
	return score, notNil(err)
}

func (s *redisStore) ZRank(ctx context.Context, key string, member []byte, reverse bool) (int64, error) {
	var rank int64
	var err error
	if reverse {
		rank, err = s.c.ZRevRank(ctx, key, string(member)).Result()
	} else {
		rank, err = s.c.ZRank(ctx, key, string(member)).Result()
	}
	return rank, notNil(err)
}

func (s *redisStore) ZCount(ctx context.Context, key string, r ScoreRange) (int64, error) {
	return s.c.ZCount(ctx, key, scoreBound(r.Min, r.MinExcl), scoreBound(r.Max, r.MaxExcl)).Result()
}

func (s *redisStore) ZRange(ctx context.Context, key string, start, stop int64, reverse bool) ([]ZEntry, error) {
	var zs []redis.Z
	var err error
	if reverse {
		zs, err = s.c.ZRevRangeWithScores(ctx, key, start, stop).Result()
	} else {
		zs, err = s.c.ZRangeWithScores(ctx, key, start, stop).Result()
	}
	if err != nil {
		return nil, err
	}
	return zToEntries(zs), nil
}

func (s *redisStore) ZRangeByScore(ctx context.Context, key string, r ScoreRange, offset, count int64, reverse bool) ([]ZEntry, error) {
	by := &redis.ZRangeBy{
		Min:    scoreBound(r.Min, r.MinExcl),
		Max:    scoreBound(r.Max, r.MaxExcl),
		Offset: offset,
		Count:  count,
	}
	if count < 0 {
		by.Count = -1
	}
	var zs []redis.Z
	var err error
	if reverse {
		zs, err = s.c.ZRevRangeByScoreWithScores(ctx, key, by).Result()
	} else {
		zs, err = s.c.ZRangeByScoreWithScores(ctx, key, by).Result()
	}
	if err != nil {
		return nil, err
	}
	return zToEntries(zs), nil
}

func zToEntries(zs []redis.Z) []ZEntry {
	out := make([]ZEntry, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		out = append(out, ZEntry{Member: []byte(m), Score: z.Score})
	}
	return out
}

// scoreBound renders one edge of a score interval in the store's textual
// form, with a "(" prefix marking exclusive bounds.
func scoreBound(f float64, excl bool) string {
	var s string
	switch {
	case math.IsInf(f, -1):
		s = "-inf"
	case math.IsInf(f, 1):
		s = "+inf"
	default:
		s = strconv.FormatFloat(f, 'g', -1, 64)
	}
	if excl {
		return "(" + s
	}
	return s
}

// ---- scans ----

func (s *redisStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	return s.c.Scan(ctx, cursor, match, count).Result()
}

func (s *redisStore) HScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([]FV, uint64, error) {
	flat, next, err := s.c.HScan(ctx, key, cursor, match, count).Result()
	if err != nil {
		return nil, 0, err
	}
	out := make([]FV, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out = append(out, FV{Field: flat[i], Value: []byte(flat[i+1])})
	}
	return out, next, nil
}

func (s *redisStore) SScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([][]byte, uint64, error) {
	vals, next, err := s.c.SScan(ctx, key, cursor, match, count).Result()
	if err != nil {
		return nil, 0, err
	}
	return stringsToBytes(vals), next, nil
}

func (s *redisStore) ZScan(ctx context.Context, key string, cursor uint64, match string, count int64) ([]ZEntry, uint64, error) {
	flat, next, err := s.c.ZScan(ctx, key, cursor, match, count).Result()
	if err != nil {
		return nil, 0, err
	}
	out := make([]ZEntry, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		score, err := strconv.ParseFloat(flat[i+1], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("bad score for member %q: %w", flat[i], err)
		}
		out = append(out, ZEntry{Member: []byte(flat[i]), Score: score})
	}
	return out, next, nil
}

// ---- batches ----

func (s *redisStore) Exec(ctx context.Context, transactional bool, cmds []Cmd) ([]Reply, error) {
	var pipe redis.Pipeliner
	if transactional {
		pipe = s.c.TxPipeline()
	} else {
		pipe = s.c.Pipeline()
	}
	queued := make([]redis.Cmder, len(cmds))
	for i, cmd := range cmds {
		switch cmd.Op {
		case OpSet:
			queued[i] = pipe.Set(ctx, cmd.Key, cmd.Value, 0)
		case OpDel:
			queued[i] = pipe.Del(ctx, cmd.Keys...)
		case OpExists:
			queued[i] = pipe.Exists(ctx, cmd.Key)
		case OpIncrBy:
			queued[i] = pipe.IncrBy(ctx, cmd.Key, cmd.Delta)
		case OpMSet:
			args := make([]any, 0, 2*len(cmd.Pairs))
			for _, kv := range cmd.Pairs {
				args = append(args, kv.Key, kv.Value)
			}
			queued[i] = pipe.MSet(ctx, args...)
		case OpHIncrBy:
			queued[i] = pipe.HIncrBy(ctx, cmd.Key, cmd.Field, cmd.Delta)
		case OpHDel:
			queued[i] = pipe.HDel(ctx, cmd.Key, cmd.Fields...)
		case OpLInsertBefore:
			queued[i] = pipe.LInsertBefore(ctx, cmd.Key, cmd.Pivot, cmd.Value)
		case OpLRem:
			queued[i] = pipe.LRem(ctx, cmd.Key, cmd.Count, cmd.Value)
		default:
			return nil, fmt.Errorf("unknown batch op %q", cmd.Op)
		}
	}
	// Exec returns the first command error, but queued commands still ran;
	// per-command errors are collected off the cmders below.
	_, execErr := pipe.Exec(ctx)
	if errors.Is(execErr, redis.Nil) {
		execErr = nil
	}
	replies := make([]Reply, len(cmds))
	var firstErr error
	for i, c := range queued {
		r := &replies[i]
		if err := c.Err(); err != nil {
			r.Err = err
			if firstErr == nil {
				firstErr = batchErrf(i, cmds[i], err)
			}
			continue
		}
		switch c := c.(type) {
		case *redis.IntCmd:
			r.Int = c.Val()
			if cmds[i].Op == OpExists {
				r.Bool = c.Val() > 0
			}
		case *redis.StatusCmd:
			// nothing to record
		}
	}
	if firstErr == nil && execErr != nil {
		return nil, execErr // transport failure, nothing was delivered
	}
	return replies, firstErr
}

func bytesToAny(values [][]byte) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringsToBytes(vals []string) [][]byte {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out
}
