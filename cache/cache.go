// Package cache provides the shared response cache used for signing keys and
// computed statistics. Implementations must be safe for concurrent use.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheUnavailable is returned when the backing store cannot be reached
var ErrCacheUnavailable = errors.New("cache unavailable")

// ResponseCache stores raw response bodies under string keys.
// A missing entry is reported as (nil, false, nil), never as an error.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A ttl of zero keeps the entry until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
