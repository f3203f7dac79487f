package ratelimit

import (
	"testing"
	"time"
)

func TestAllowConsumesBurstThenRefuses(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 2})
	now := time.Now()

	for i := 0; i < 2; i++ {
		if dec := l.Allow("1.2.3.4", now); !dec.Allowed {
			t.Fatalf("request %d refused within burst", i)
		}
	}
	dec := l.Allow("1.2.3.4", now)
	if dec.Allowed {
		t.Fatal("request allowed past burst")
	}
	if dec.RetryAfter < 1 {
		t.Fatalf("RetryAfter = %d", dec.RetryAfter)
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	now := time.Now()

	if !l.Allow("k", now).Allowed {
		t.Fatal("first request refused")
	}
	if l.Allow("k", now).Allowed {
		t.Fatal("second immediate request allowed")
	}
	if !l.Allow("k", now.Add(1100*time.Millisecond)).Allowed {
		t.Fatal("request refused after refill window")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	now := time.Now()

	if !l.Allow("a", now).Allowed {
		t.Fatal("a refused")
	}
	if !l.Allow("b", now).Allowed {
		t.Fatal("b should not share a's bucket")
	}
}

func TestAllowDisabledWhenUnconfigured(t *testing.T) {
	l := New(Config{})
	now := time.Now()
	for i := 0; i < 100; i++ {
		if !l.Allow("k", now).Allowed {
			t.Fatal("disabled limiter refused a request")
		}
	}
}

func TestEvictStaleEntries(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1, MaxEntries: 2, EntryTTL: time.Minute})
	now := time.Now()

	l.Allow("old", now)
	l.Allow("older", now)
	// Map is at capacity; a new key two minutes later triggers eviction.
	l.Allow("fresh", now.Add(2*time.Minute))
	if got := l.Len(); got != 1 {
		t.Fatalf("Len = %d after eviction, want 1", got)
	}
}
