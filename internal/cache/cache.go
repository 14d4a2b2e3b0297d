// Package cache provides the key/value store that harvested histories are
// published into. Entries carry an optional TTL and can be looked up and
// removed in bulk by glob pattern.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tidwall/match"
)

// maxPatternLen bounds the glob patterns accepted by Keys.
const maxPatternLen = 256

var (
	// ErrNotFound is returned by Get when the key is missing or expired.
	ErrNotFound = errors.New("cache: key not found")
	// ErrBadPattern is returned for glob patterns outside the supported syntax.
	ErrBadPattern = errors.New("cache: invalid key pattern")
)

// ValidatePattern reports whether pattern is usable with Keys. Supported
// syntax is Redis glob with "*", "?" and backslash escapes, where both
// wildcards also match "/". Character classes are rejected so every Store
// implementation agrees on what a pattern selects.
func ValidatePattern(pattern string) error {
	if pattern == "" || len(pattern) > maxPatternLen {
		return ErrBadPattern
	}
	if strings.ContainsAny(pattern, "[]") {
		return ErrBadPattern
	}
	// A trailing lone backslash escapes nothing.
	trailing := len(pattern) - len(strings.TrimRight(pattern, `\`))
	if trailing%2 == 1 {
		return ErrBadPattern
	}
	return nil
}

// Match reports whether key is selected by pattern using Redis glob rules.
func Match(key, pattern string) bool {
	return match.Match(key, pattern)
}

// Store is the cache contract consumed by the harvester and the read API.
// No operation is atomic across keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	// MGet returns one slot per key; missing keys yield nil.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	Close() error
}
