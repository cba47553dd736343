package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// In-process token bucket per key
// Allows up to limit actions per window, idle keys are forgotten after ttl
type Memory struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Memory{
		visitors: make(map[string]*visitor),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		ttl:      max(defaultIdleTTL, window),
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	v := m.visitorLocked(key, now)
	m.gcLocked(now)
	m.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0, nil
	}

	// Denied attempts don't consume tokens
	r.CancelAt(now)
	return false, delay, nil
}

func (m *Memory) visitorLocked(key string, now time.Time) *visitor {
	if v, ok := m.visitors[key]; ok {
		v.lastSeen = now
		return v
	}

	v := &visitor{limiter: rate.NewLimiter(m.every, m.burst), lastSeen: now}
	m.visitors[key] = v
	return v
}

func (m *Memory) gcLocked(now time.Time) {
	for key, v := range m.visitors {
		if now.Sub(v.lastSeen) > m.ttl {
			delete(m.visitors, key)
		}
	}
}
