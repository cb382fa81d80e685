package redstruct

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// sentinelPrefix marks transient list markers used to emulate index-addressed
// insert and delete. Sentinels are never legitimate elements; Repair removes
// any that a failed batch left behind.
const sentinelPrefix = "rs:sentinel:"

func newSentinel() string {
	return sentinelPrefix + uuid.NewString()
}

// matchKey reports whether key matches a store-style glob pattern
// (*, ?, character classes).
func matchKey(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	// path.Match stops * at separators; store patterns don't, so escape them.
	if strings.ContainsRune(key, '/') {
		key = strings.ReplaceAll(key, "/", "\x01")
		pattern = strings.ReplaceAll(pattern, "/", "\x01")
	}
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
