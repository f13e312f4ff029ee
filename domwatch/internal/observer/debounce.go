package observer

import "time"

// DefaultQuiet is the debounce period used when none is configured.
const DefaultQuiet = 500 * time.Millisecond

// Timer is the subset of *time.Timer the debouncer needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// NewTimerFunc starts a Timer firing once after d.
type NewTimerFunc func(d time.Duration) Timer

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

// RealTimer is the NewTimerFunc backed by the runtime clock.
func RealTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

// debouncer is a single-slot timer: arming cancels whatever is pending.
// It is not safe for concurrent use; the observer loop owns it.
type debouncer struct {
	quiet    time.Duration
	newTimer NewTimerFunc
	pending  Timer
}

func newDebouncer(quiet time.Duration, newTimer NewTimerFunc) *debouncer {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	if newTimer == nil {
		newTimer = RealTimer
	}
	return &debouncer{quiet: quiet, newTimer: newTimer}
}

// arm (re)starts the quiet period.
func (d *debouncer) arm() {
	d.stop()
	d.pending = d.newTimer(d.quiet)
}

// timerC returns the channel that fires when the quiet period expires.
// A nil channel blocks forever in a select, so nothing fires while idle.
func (d *debouncer) timerC() <-chan time.Time {
	if d.pending == nil {
		return nil
	}
	return d.pending.C()
}

// fired clears the slot after timerC delivered.
func (d *debouncer) fired() { d.pending = nil }

func (d *debouncer) stop() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
