package engine

// Clock counts engine generations. A generation is one applied update
// batch or one structural flush; documents compare generations to skip
// projecting when nothing was written.
type Clock struct {
	gen int64
}

// NewClock creates a clock at generation 0.
func NewClock() *Clock {
	return &Clock{}
}

// Advance starts a new generation and returns it.
func (c *Clock) Advance() int64 {
	c.gen++
	return c.gen
}

// Current returns the current generation.
func (c *Clock) Current() int64 {
	return c.gen
}
