package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Limiter suppresses repeated log messages per distinct key. The first
// maxPerKey occurrences are logged; the occurrence that hits the cap logs a
// final suppression notice and everything after that is dropped. Renderer
// hot paths use this so a single bad asset cannot flood the log every frame.
type Limiter struct {
	mu        sync.Mutex
	maxPerKey int
	counts    map[string]int
}

// NewLimiter returns a Limiter that allows maxPerKey messages per key.
// A maxPerKey of 0 or less falls back to 1.
func NewLimiter(maxPerKey int) *Limiter {
	if maxPerKey < 1 {
		maxPerKey = 1
	}
	return &Limiter{
		maxPerKey: maxPerKey,
		counts:    make(map[string]int),
	}
}

// Allow reports whether a message for key should be logged, and the number
// of occurrences seen so far including this one.
func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key] <= l.maxPerKey, l.counts[key]
}

// Warn logs msg at warn level unless key is already suppressed. When the
// per-key cap is reached a suppression notice is appended.
func (l *Limiter) Warn(key, msg string, fields ...zap.Field) {
	ok, n := l.Allow(key)
	if !ok {
		return
	}
	fields = append(fields, zap.String("key", key))
	if n == l.maxPerKey {
		fields = append(fields, zap.Int("suppressedAfter", n))
	}
	Warn(msg, fields...)
}

// Error logs msg at error level with the same suppression policy as Warn.
func (l *Limiter) Error(key, msg string, fields ...zap.Field) {
	ok, n := l.Allow(key)
	if !ok {
		return
	}
	fields = append(fields, zap.String("key", key))
	if n == l.maxPerKey {
		fields = append(fields, zap.Int("suppressedAfter", n))
	}
	Error(msg, fields...)
}

// Reset clears all suppression counters.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = make(map[string]int)
}
