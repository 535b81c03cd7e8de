// Package limiter defines request rate limiting used by the HTTP services.
package limiter

import (
	"context"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	// Allow consumes one hit for key and reports whether it is within budget,
	// with a retry-after hint when it is not.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// HashKey returns a stable digest for a limiter key to avoid storing raw addresses.
func HashKey(key string) []byte {
	h := blake2b.Sum256([]byte(key))
	return h[:]
}
