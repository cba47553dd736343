package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether the caller identified by key may perform one more action
// When denied retryAfter tells how long to wait
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}
