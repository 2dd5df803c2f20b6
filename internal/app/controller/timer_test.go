package controller

import (
	"testing"
	"time"
)

func TestTimerHandle_ArmAndFire(t *testing.T) {
	h := newTimerHandle()
	if h.Armed() {
		t.Fatal("new handle should not be armed")
	}
	h.Arm(time.Millisecond)
	if !h.Armed() {
		t.Fatal("expected armed after Arm")
	}
	select {
	case <-h.C():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimerHandle_CancelDisarms(t *testing.T) {
	h := newTimerHandle()
	h.Arm(time.Hour)
	h.Cancel()
	if h.Armed() {
		t.Fatal("expected disarmed after Cancel")
	}
	if h.C() != nil {
		t.Fatal("C() must be nil after Cancel so selects block")
	}
	// Idempotent.
	h.Cancel()
}

func TestTimerHandle_RearmCancelsPrevious(t *testing.T) {
	h := newTimerHandle()
	h.Arm(time.Millisecond)
	h.Arm(50 * time.Millisecond)

	start := time.Now()
	select {
	case <-h.C():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("rearm did not cancel the earlier timer, fired after %s", elapsed)
	}

	// Only one firing may ever be pending per handle.
	select {
	case <-h.C():
		t.Fatal("unexpected second firing")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPreloadCache(t *testing.T) {
	c := newPreloadCache(3)
	if c.has(0) {
		t.Fatal("empty cache should not contain 0")
	}
	c.add(0, nil)
	if got := c.len(); got != 1 {
		t.Fatalf("expected len 1, got %d", got)
	}
	if _, ok := c.get(0); !ok {
		t.Fatal("expected entry for 0")
	}

	// Sized to the list, so filling it does not evict.
	c.add(1, nil)
	c.add(2, nil)
	if !c.has(0) || !c.has(1) || !c.has(2) {
		t.Fatal("cache sized to the photo list must not evict")
	}
}
