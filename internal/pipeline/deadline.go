package pipeline

import "time"

// Deadline is the fixed instant after which no iteration may start. It is
// computed once from the start time and the run budget.
type Deadline struct {
	start time.Time
	end   time.Time
}

// NewDeadline returns the deadline start+budget.
func NewDeadline(start time.Time, budget time.Duration) Deadline {
	return Deadline{start: start, end: start.Add(budget)}
}

// Start returns when the budget began.
func (d Deadline) Start() time.Time { return d.start }

// End returns the deadline instant.
func (d Deadline) End() time.Time { return d.end }

// Budget returns the total run duration.
func (d Deadline) Budget() time.Duration { return d.end.Sub(d.start) }

// Expired reports whether now is at or past the deadline.
func (d Deadline) Expired(now time.Time) bool {
	return !now.Before(d.end)
}

// Remaining returns the time left before the deadline, never negative.
func (d Deadline) Remaining(now time.Time) time.Duration {
	if r := d.end.Sub(now); r > 0 {
		return r
	}
	return 0
}
