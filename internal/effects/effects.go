package effects

import "math"

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order. An empty chain passes audio
// through unchanged.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// onePole is a one-pole lowpass used to darken feedback paths.
type onePole struct {
	alpha float32
	state float32
}

func newOnePole(sampleRate int, cutoffHz float64) onePole {
	if cutoffHz <= 0 || cutoffHz >= float64(sampleRate)/2 {
		return onePole{alpha: 1}
	}
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	return onePole{alpha: float32(dt / (rc + dt))}
}

func (f *onePole) process(x float32) float32 {
	f.state += f.alpha * (x - f.state)
	return f.state
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
