package nidra

import (
	"context"
	"time"
)

// maxTimerDuration is the largest delay a single time.Timer can reliably
// carry on platforms where the runtime timer heap is keyed by an int32
// millisecond count (§4.3.3).
const maxTimerDuration = (1<<31 - 1) * time.Millisecond

// scheduleAt chunks a long wait into a sequence of bounded timers so it
// never exceeds maxTimerDuration, self-rescheduling until target is
// reached or ctx is cancelled. fn runs once target arrives; it does not run
// if ctx is cancelled first. The wait never keeps the process alive on its
// own: callers are expected to run this in a goroutine that is itself
// joined on Stop.
func scheduleAt(ctx context.Context, target time.Time, fn func()) {
	for {
		remaining := time.Until(target)
		if remaining <= 0 {
			fn()
			return
		}

		wait := remaining
		if wait > maxTimerDuration {
			wait = maxTimerDuration
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			// loop: either we've arrived, or we reschedule the remainder.
		}
	}
}
