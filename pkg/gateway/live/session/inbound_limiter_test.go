package session

import (
	"testing"
	"time"
)

func TestInboundLimiter_AllowsWithinBurstThenDenies(t *testing.T) {
	now := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	lim := newInboundAudioLimiter(clock, 100, 2*time.Second) // 200 byte burst
	if !lim.Allow(150) {
		t.Fatalf("expected allow 150 bytes")
	}
	if !lim.Allow(50) {
		t.Fatalf("expected allow remaining 50 bytes")
	}
	if lim.Allow(1) {
		t.Fatalf("expected deny once the burst is spent")
	}
}

func TestInboundLimiter_RefillsOverTime(t *testing.T) {
	now := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	lim := newInboundAudioLimiter(clock, 1000, time.Second)
	if !lim.Allow(1000) {
		t.Fatalf("expected allow full burst")
	}
	if lim.Allow(100) {
		t.Fatalf("expected deny with empty bucket")
	}

	now = now.Add(100 * time.Millisecond)
	if !lim.Allow(100) {
		t.Fatalf("expected allow after refill")
	}
	if lim.Allow(1) {
		t.Fatalf("expected deny again without enough time")
	}

	now = now.Add(time.Hour)
	if !lim.Allow(1000) {
		t.Fatalf("expected refill capped at capacity to allow a full burst")
	}
	if lim.Allow(1) {
		t.Fatalf("expected refill to be capped at capacity")
	}
}

func TestInboundLimiter_DisabledAllowsEverything(t *testing.T) {
	lim := newInboundAudioLimiter(nil, 0, time.Second)
	if lim != nil {
		t.Fatalf("expected nil limiter when rate is zero")
	}
	if !lim.Allow(1 << 20) {
		t.Fatalf("nil limiter must allow")
	}
}
