package core

import "time"

// Clock measures wall time between Start and the last Update, in seconds.
type Clock struct {
	now       func() time.Time
	startTime time.Time
	lastTick  time.Time
	elapsed   float64
	delta     float64
	running   bool
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if !c.running {
		return
	}
	t := c.now()
	c.delta = t.Sub(c.lastTick).Seconds()
	c.elapsed = t.Sub(c.startTime).Seconds()
	c.lastTick = t
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = c.now()
	c.lastTick = c.startTime
	c.elapsed = 0
	c.delta = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Elapsed returns the seconds since Start as of the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// Delta returns the seconds between the last two Updates.
func (c *Clock) Delta() float64 {
	return c.delta
}
