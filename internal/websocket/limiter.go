package websocket

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor хранит лимитер одного IP
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ConnLimiter ограничивает частоту новых WebSocket соединений с одного IP
type ConnLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewConnLimiter создает лимитер. perSec <= 0 отключает ограничение.
func NewConnLimiter(perSec float64, burst int) *ConnLimiter {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	if burst <= 0 {
		burst = 1
	}
	return &ConnLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow сообщает, можно ли принять еще одно соединение с ip
func (l *ConnLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup удаляет IP, не обращавшиеся дольше idle. Возвращает число удаленных.
func (l *ConnLimiter) Cleanup(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			removed++
		}
	}
	return removed
}

// Run периодически чистит устаревшие записи до отмены ctx
func (l *ConnLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup(interval)
		}
	}
}
