package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// NowPtr returns the current time as a pointer, for optional timestamps.
func NowPtr() *time.Time {
	t := Now()
	return &t
}
