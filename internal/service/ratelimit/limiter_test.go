package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestAllowConsumesAndRefills(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(2, 1)
	l.now = clock.now

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("expected the first two calls to pass")
	}
	if l.Allow("a") {
		t.Fatalf("expected bucket to be empty")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must not share buckets")
	}

	clock.t = clock.t.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("expected one token after a second")
	}
	if l.Allow("a") {
		t.Fatalf("expected only one token to refill")
	}

	clock.t = clock.t.Add(time.Hour)
	if !l.Allow("a") || !l.Allow("a") || l.Allow("a") {
		t.Fatalf("refill must be capped at capacity")
	}
}

func TestSweep(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(1, 1)
	l.now = clock.now

	l.Allow("old")
	clock.t = clock.t.Add(10 * time.Minute)
	l.Allow("new")

	if n := l.Sweep(5 * time.Minute); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if _, ok := l.m["new"]; !ok {
		t.Fatalf("recent bucket must survive")
	}
}

func TestZeroRefillNeverRecovers(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(1, 0)
	l.now = clock.now

	if !l.Allow("a") {
		t.Fatalf("expected the initial token")
	}
	clock.t = clock.t.Add(24 * time.Hour)
	if l.Allow("a") {
		t.Fatalf("expected no refill at rate zero")
	}
}

func TestFractionalCapacityRoundsDown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(2.9, 0.5)
	l.now = clock.now

	if !l.Allow("a") || !l.Allow("a") || l.Allow("a") {
		t.Fatalf("expected a burst of two")
	}
	clock.t = clock.t.Add(time.Second)
	if l.Allow("a") {
		t.Fatalf("half a token must not pass")
	}
	clock.t = clock.t.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("expected a token after two seconds")
	}
}
