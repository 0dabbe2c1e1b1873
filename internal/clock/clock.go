package clock

import "time"

// Clock yields the current time. Stores take one so tests can pin "now".
type Clock func() time.Time

func System() Clock {
	return func() time.Time {
		return time.Now().Round(time.Millisecond)
	}
}

// Fixed returns a clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// SameDay compares local calendar dates, not 24-hour windows.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

// Manual is a settable clock for tests and simulations.
type Manual struct {
	now time.Time
}

func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.now = t
}

func (m *Manual) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

func (m *Manual) Clock() Clock {
	return m.Now
}
