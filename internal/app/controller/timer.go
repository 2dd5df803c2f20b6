package controller

import "time"

// timerHandle is an explicitly cancellable one-shot timer owned by the
// controller loop. Arm always cancels the previous timer first, so two
// concurrent firings of the same handle are impossible. After Cancel, C()
// returns nil, which blocks forever in a select.
//
// All methods must be called from the controller goroutine.
type timerHandle struct {
	timer *time.Timer
	ch    chan time.Time
}

func newTimerHandle() *timerHandle {
	return &timerHandle{}
}

// Arm schedules a firing after d, cancelling any pending one. A fresh
// channel is allocated per arm so a late firing of a cancelled timer lands
// in an abandoned channel instead of the live one.
func (h *timerHandle) Arm(d time.Duration) {
	h.Cancel()
	ch := make(chan time.Time, 1)
	h.ch = ch
	h.timer = time.AfterFunc(d, func() {
		ch <- time.Now()
	})
}

// Cancel stops the pending timer, if any. Idempotent.
func (h *timerHandle) Cancel() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.ch = nil
}

// C returns the firing channel, nil when disarmed.
func (h *timerHandle) C() <-chan time.Time {
	return h.ch
}

// Armed reports whether a firing is pending.
func (h *timerHandle) Armed() bool {
	return h.timer != nil
}
