// Package rates holds tick-based fixed window limiters.
package rates

// Window counts events in fixed windows of ticks.
type Window struct {
	Start uint64
	Count int
}

// Allow records one event at tick now and reports whether it fits within max
// events per window ticks. When it does not, wait is the number of ticks until
// the window resets. A zero window or non-positive max allows everything.
func (w *Window) Allow(now, window uint64, max int) (ok bool, wait uint64) {
	if window == 0 || max <= 0 {
		return true, 0
	}
	if now < w.Start || now-w.Start >= window {
		w.Start = now
		w.Count = 0
	}
	w.Count++
	if w.Count <= max {
		return true, 0
	}
	return false, w.Start + window - now
}
