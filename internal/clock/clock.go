package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Set pins the clock to t and returns a function restoring the previous one.
func Set(t time.Time) func() {
	prev := NowFunc
	NowFunc = func() time.Time { return t }
	return func() { NowFunc = prev }
}

// Advance moves a pinned clock forward by d.
func Advance(d time.Duration) {
	now := NowFunc().Add(d)
	NowFunc = func() time.Time { return now }
}
