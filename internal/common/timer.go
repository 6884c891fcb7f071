// Package common provides small shared helpers for timing analysis stages.
package common

import "time"

// Timer measures one stage of work, such as a model load or a batch run.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
	now      func() time.Time
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now(), now: time.Now}
}

// Stop records and returns the elapsed duration. Later calls overwrite the
// previous measurement.
func (t *Timer) Stop() time.Duration {
	t.duration = t.now().Sub(t.start)
	return t.duration
}

// Milliseconds returns the recorded duration in milliseconds.
func (t *Timer) Milliseconds() float64 {
	return float64(t.duration) / float64(time.Millisecond)
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}
