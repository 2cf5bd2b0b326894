package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestCostForPath(t *testing.T) {
	for path, want := range map[string]Cost{
		"/v1/chat":            CostText,
		"/v1/query":           CostText,
		"/v1/search":          CostText,
		"/v1/models":          CostText,
		"/v1/images/generate": CostMedia,
		"/v1/images/analyze":  CostMedia,
		"/v1/video/analyze":   CostMedia,
		"/v1/speech":          CostMedia,
	} {
		if got := CostForPath(path); got != want {
			t.Errorf("CostForPath(%q) = %d, want %d", path, got, want)
		}
	}
}

func TestAcquireRequest_MediaDrawsMoreTokens(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 4})
	now := time.Now()

	if d := l.AcquireRequest("p1", CostMedia, now); !d.Allowed {
		t.Fatal("media call denied with a full bucket")
	}
	if d := l.AcquireRequest("p1", CostText, now); !d.Allowed {
		t.Fatal("text call denied with one token left")
	}
	denied := l.AcquireRequest("p1", CostMedia, now)
	if denied.Allowed || denied.RetryAfter != 3 {
		t.Fatalf("denied = %+v, want retry after 3s", denied)
	}
	if d := l.AcquireRequest("p1", CostMedia, now.Add(3*time.Second)); !d.Allowed {
		t.Fatal("media call denied after refill")
	}
}

func TestAcquireRequest_MediaCostOverrideAndCap(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 2, MediaCost: 10})
	now := time.Now()

	if d := l.AcquireRequest("p1", CostMedia, now); !d.Allowed {
		t.Fatal("cost above the burst must be capped, not refused forever")
	}
	if d := l.AcquireRequest("p1", CostText, now); d.Allowed {
		t.Fatal("capped media call should have emptied the bucket")
	}
}

func TestAcquireRequest_TokenBucketRefills(t *testing.T) {
	l := New(Config{RPS: 2, Burst: 2})
	now := time.Now()

	for i := 0; i < 2; i++ {
		if d := l.AcquireRequest("p1", CostText, now); !d.Allowed {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	denied := l.AcquireRequest("p1", CostText, now)
	if denied.Allowed || denied.RetryAfter < 1 {
		t.Fatalf("denied=%+v", denied)
	}
	if d := l.AcquireRequest("p1", CostText, now.Add(600*time.Millisecond)); !d.Allowed {
		t.Fatalf("bucket should refill after 600ms at 2 rps")
	}
}

func TestAcquireRequest_ConcurrencyCapDoesNotSpendTokens(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 2, MaxConcurrentRequests: 1})
	now := time.Now()

	first := l.AcquireRequest("p1", CostText, now)
	if !first.Allowed {
		t.Fatalf("first denied")
	}
	if d := l.AcquireRequest("p1", CostText, now); d.Allowed {
		t.Fatalf("second should be denied while first holds its permit")
	}
	first.Permit.Release()
	first.Permit.Release()
	if d := l.AcquireRequest("p1", CostText, now); !d.Allowed {
		t.Fatalf("refused slot must not have drawn a token")
	}
}

func TestAcquireLive_EnforcesConcurrency(t *testing.T) {
	l := New(Config{MaxLiveSessions: 1})
	now := time.Now()

	first := l.AcquireLive("p1", now)
	if !first.Allowed || first.Permit == nil {
		t.Fatalf("first allowed=%v permit=%v", first.Allowed, first.Permit)
	}
	if second := l.AcquireLive("p1", now); second.Allowed {
		t.Fatalf("second should be denied")
	}
	if other := l.AcquireLive("p2", now); !other.Allowed {
		t.Fatalf("other clients keep their own slots")
	}

	first.Permit.Release()
	first.Permit.Release()
	if third := l.AcquireLive("p1", now); !third.Allowed {
		t.Fatalf("third should be allowed after release")
	}
}

func TestLimiter_EvictsIdleClientsWhenFull(t *testing.T) {
	l := New(Config{RPS: 0.001, Burst: 1, MaxEntries: 2, EntryTTL: time.Minute})
	now := time.Now()

	l.AcquireRequest("old", CostText, now)
	l.AcquireRequest("recent", CostText, now.Add(30*time.Second))
	l.AcquireRequest("new", CostText, now.Add(90*time.Second))

	if len(l.clients) != 2 {
		t.Fatalf("clients = %d, want 2", len(l.clients))
	}
	if _, ok := l.clients["old"]; ok {
		t.Fatal("idle client survived eviction")
	}
	if d := l.AcquireRequest("recent", CostText, now.Add(90*time.Second)); d.Allowed {
		t.Fatal("kept client lost its bucket state")
	}
}

func TestClientKeyFromIP_HidesAddress(t *testing.T) {
	key := ClientKeyFromIP("203.0.113.7")
	if strings.Contains(key, "203.0.113.7") || !strings.HasPrefix(key, "ip_") {
		t.Fatalf("key=%q", key)
	}
	if key != ClientKeyFromIP("203.0.113.7") {
		t.Fatalf("key must be stable")
	}
}
