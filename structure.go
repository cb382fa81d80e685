package redstruct

import (
	"context"
	"time"
)

const defaultPageSize = 1000

// Options configures a container. The zero value is usable: raw codec,
// kind-specific default prefix, page size 1000.
type Options struct {
	// Prefix overrides the kind-specific default namespace prefix.
	Prefix string
	// Codec serializes values (and set/sorted-set members). Defaults to Raw.
	Codec Codec
	// PageSize bounds a single round trip during scans and other chunked
	// traversals.
	PageSize int
	// SizeMod controls bucket-counter distribution for Dict: 10^SizeMod is
	// the estimated number of dicts sharing the prefix. Defaults to 5.
	SizeMod int
	// Reversed makes a SortedSet order by descending score by default.
	Reversed bool
	// Logf, if set, receives occasional diagnostics (clear sweeps, repairs).
	Logf func(format string, args ...any)
}

type base struct {
	store    Store
	ks       keyspace
	codec    Codec
	pageSize int
	logf     func(format string, args ...any)
}

func newBase(store Store, name, defaultPrefix string, opt Options) base {
	if store == nil {
		panic("redstruct: nil store")
	}
	if name == "" {
		panic("redstruct: empty container name")
	}
	prefix := opt.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	codec := opt.Codec
	if codec == nil {
		codec = Raw{}
	}
	pageSize := opt.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return base{
		store:    store,
		ks:       newKeyspace(prefix, name),
		codec:    codec,
		pageSize: pageSize,
		logf:     opt.Logf,
	}
}

// Key returns the fully-qualified key prefix of this container.
func (b *base) Key() string {
	return b.ks.Key()
}

func (b *base) log(format string, args ...any) {
	if b.logf != nil {
		b.logf(format, args...)
	}
}

func (b *base) encode(v any) ([]byte, error) {
	return b.codec.Encode(v)
}

func (b *base) decode(data []byte, out any) error {
	return decodeLenient(b.codec, data, out)
}

// keyExpiry provides the TTL family for containers stored under one key.
// The store lives in an unexported field with a name no container uses,
// so embedding keyExpiry next to base leaves base's selectors unambiguous.
type keyExpiry struct {
	expst Store
	key   string
}

// TTL returns the remaining time to live of the container's key.
// Zero means no expiration is set; ErrNotFound means the key is absent.
func (x keyExpiry) TTL(ctx context.Context) (time.Duration, error) {
	return x.expst.TTL(ctx, x.key)
}

// Expire sets the time to live of the container's key.
func (x keyExpiry) Expire(ctx context.Context, ttl time.Duration) (bool, error) {
	return x.expst.Expire(ctx, x.key, ttl)
}

// ExpireAt sets an absolute expiration time for the container's key.
func (x keyExpiry) ExpireAt(ctx context.Context, at time.Time) (bool, error) {
	return x.expst.ExpireAt(ctx, x.key, at)
}

// Persist removes any expiration from the container's key.
func (x keyExpiry) Persist(ctx context.Context) (bool, error) {
	return x.expst.Persist(ctx, x.key)
}
