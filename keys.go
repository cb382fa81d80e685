package redstruct

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// keyspace derives fully-qualified store keys from a namespace prefix and a
// container name. All methods are pure functions of the inputs.
type keyspace struct {
	prefix string
	name   string
}

func newKeyspace(prefix, name string) keyspace {
	return keyspace{prefix: strings.TrimRight(prefix, ":"), name: name}
}

// Key returns the key prefix identifying this container instance in the
// store's global key space: "prefix:name".
func (ks keyspace) Key() string {
	return strings.TrimRight(ks.prefix+":"+ks.name, ":")
}

// Elem returns the literal store key for an element of a key-per-element
// container: "prefix:name:elem".
func (ks keyspace) Elem(elem string) string {
	return ks.Key() + ":" + elem
}

// Match returns a scan pattern covering elements of this container.
func (ks keyspace) Match(pattern string) string {
	return ks.Key() + ":" + pattern
}

// TrimElem strips the container prefix from a full store key returned by a
// scan, recovering the element key.
func (ks keyspace) TrimElem(full string) string {
	return strings.TrimPrefix(full, ks.Key()+":")
}

// Bucket returns the shared bucket key holding length counters for all
// containers whose key prefix hashes to the same shard, and the field under
// which this container's own counter lives. The shard is a stable hash of
// the key prefix reduced modulo 10^sizeMod; shards above 1000 collapse by
// integer division so the number of distinct bucket keys stays bounded no
// matter how large sizeMod is.
func (ks keyspace) Bucket(sizeMod int) (key, field string) {
	mod := uint64(1)
	for i := 0; i < sizeMod; i++ {
		mod *= 10
	}
	shard := xxhash.Sum64String(ks.Key()) % mod
	if shard > 1000 {
		shard /= 1000
	}
	return ks.prefix + ".size." + strconv.FormatUint(shard, 10), ks.Key()
}
