package scheduler

import (
	"context"
	"sync/atomic"
	"time"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

const (
	timerPending int32 = iota
	timerRunning
	timerCancelled
)

// Timer runs a callback once after a delay. Cancel wins if it arrives before
// the callback starts; once the callback is running Cancel has no effect.
type Timer struct {
	state int32
	t     *time.Timer
	done  chan struct{}
}

// AfterFunc schedules fn to run after d.
func AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{done: make(chan struct{})}
	tm.t = time.AfterFunc(d, func() {
		if !atomic.CompareAndSwapInt32(&tm.state, timerPending, timerRunning) {
			return
		}
		defer close(tm.done)
		fn()
	})
	return tm
}

// Cancel reports whether the callback was prevented from running.
func (tm *Timer) Cancel() bool {
	if !atomic.CompareAndSwapInt32(&tm.state, timerPending, timerCancelled) {
		return false
	}
	tm.t.Stop()
	return true
}

// Fired reports whether the callback has started.
func (tm *Timer) Fired() bool {
	return atomic.LoadInt32(&tm.state) == timerRunning
}

// Done is closed after the callback returns. It never closes for a cancelled timer.
func (tm *Timer) Done() <-chan struct{} {
	return tm.done
}
