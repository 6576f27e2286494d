package attendance

import "time"

// Points converts time present into award points. Duration is measured
// in whole minutes truncated toward zero; negative durations from clock
// skew land in the lowest band rather than failing.
func Points(d time.Duration) int {
	minutes := int(d / time.Minute)
	switch {
	case minutes < 15:
		return 1
	case minutes < 30:
		return 3
	case minutes < 60:
		return 5
	case minutes < 120:
		return 8
	default:
		return 10
	}
}
