package clock

import "time"

// Backoff doubles a delay after every consecutive failure, starting at Base
// and never exceeding Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	failures int
}

// Next returns the delay for the current failure and counts it.
func (b *Backoff) Next() time.Duration {
	d := b.Base
	for i := 0; i < b.failures && d < b.Max; i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	b.failures++
	return d
}

// Reset forgets previous failures.
func (b *Backoff) Reset() {
	b.failures = 0
}
