// Package budget measures work consumed within a single ingestion step.
package budget

import "time"

// Meter reports the amount of work consumed since the start of the current step.
// Values never decrease within a step.
type Meter interface {
	Consumed() uint64
}

// Elapsed measures wall-clock nanoseconds since the last Reset.
type Elapsed struct {
	started time.Time
	now     func() time.Time
}

// NewElapsed returns a meter that starts counting immediately.
func NewElapsed() *Elapsed {
	e := &Elapsed{now: time.Now}
	e.Reset()
	return e
}

// Reset starts a new step.
func (e *Elapsed) Reset() {
	e.started = e.now()
}

// Consumed returns nanoseconds elapsed since Reset.
func (e *Elapsed) Consumed() uint64 {
	d := e.now().Sub(e.started)
	if d < 0 {
		return 0
	}
	return uint64(d)
}

// Counter charges one unit for every Consumed call. Useful for pausing at exact positions.
type Counter struct {
	n uint64
}

// Consumed returns the number of prior calls and charges one more unit.
func (c *Counter) Consumed() uint64 {
	v := c.n
	c.n++
	return v
}

// Reset starts a new step.
func (c *Counter) Reset() {
	c.n = 0
}

// Unlimited never reports any consumption.
type Unlimited struct{}

func (Unlimited) Consumed() uint64 { return 0 }
