package host

import "time"

// Timer measures elapsed time on the monotonic clock and can be paused.
// The zero value is a stopped timer.
type Timer struct {
	now func() time.Time

	start   time.Time
	banked  time.Duration
	running bool
}

// NewTimer returns a stopped timer reading the given clock. A nil clock
// selects time.Now.
func NewTimer(now func() time.Time) *Timer {
	return &Timer{now: now}
}

func (t *Timer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Start resets the timer to zero and starts it.
func (t *Timer) Start() {
	t.start = t.clock()
	t.banked = 0
	t.running = true
}

// Stop resets the timer to zero and stops it.
func (t *Timer) Stop() {
	t.start = time.Time{}
	t.banked = 0
	t.running = false
}

// Pause freezes the elapsed time. Pausing a paused timer has no effect.
func (t *Timer) Pause() {
	if !t.running {
		return
	}
	t.banked += t.clock().Sub(t.start)
	t.running = false
}

// Resume continues a paused timer from where it was paused.
func (t *Timer) Resume() {
	if t.running {
		return
	}
	t.start = t.clock()
	t.running = true
}

// Running reports whether the timer is counting.
func (t *Timer) Running() bool {
	return t.running
}

// Elapsed returns the time counted since Start, excluding paused spans.
func (t *Timer) Elapsed() time.Duration {
	if !t.running {
		return t.banked
	}
	return t.banked + t.clock().Sub(t.start)
}

// Seconds returns Elapsed in seconds.
func (t *Timer) Seconds() float64 {
	return t.Elapsed().Seconds()
}
