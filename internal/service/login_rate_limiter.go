package service

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrRateLimited = errors.New("too many login attempts")

const (
	DefaultLoginWindow = 10 * time.Minute
	DefaultLoginMax    = 5
)

// LoginRateLimiter limita los intentos de login por clave.
type LoginRateLimiter interface {
	Allow(key string) bool
}

// LoginLimitKey combina dispositivo y email para que un navegador no bloquee a otro.
func LoginLimitKey(deviceID, email string) string {
	return strings.TrimSpace(deviceID) + "|" + strings.ToLower(strings.TrimSpace(email))
}

type loginRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	now    func() time.Time
	hits   map[string][]time.Time
}

// NewLoginRateLimiter crea un rate limiter en memoria con ventana deslizante.
func NewLoginRateLimiter(window time.Duration, max int) LoginRateLimiter {
	if max <= 0 {
		max = DefaultLoginMax
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}
	return &loginRateLimiter{
		window: window,
		max:    max,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

func (l *loginRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
