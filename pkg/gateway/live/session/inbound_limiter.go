package session

import "time"

// inboundAudioLimiter is a byte token bucket for microphone frames. A
// browser streaming in real time never drains it; one replaying a
// recording faster than real time does.
type inboundAudioLimiter struct {
	now        func() time.Time
	rate       int64
	capacity   int64
	tokens     int64
	lastRefill time.Time
}

func newInboundAudioLimiter(now func() time.Time, bytesPerSecond int64, burst time.Duration) *inboundAudioLimiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if burst <= 0 {
		burst = time.Second
	}
	capacity := max(bytesPerSecond*int64(burst)/int64(time.Second), 1)
	return &inboundAudioLimiter{
		now:        now,
		rate:       bytesPerSecond,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: now(),
	}
}

// Allow reports whether a frame of n bytes fits the budget and, if so,
// spends it.
func (l *inboundAudioLimiter) Allow(n int) bool {
	if l == nil {
		return true
	}
	l.refill()
	if int64(n) > l.tokens {
		return false
	}
	l.tokens -= int64(max(n, 0))
	return true
}

func (l *inboundAudioLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	add := elapsed.Nanoseconds() * l.rate / int64(time.Second)
	if add <= 0 {
		return
	}
	l.tokens = min(l.tokens+add, l.capacity)
	l.lastRefill = now
}
