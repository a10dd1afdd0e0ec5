package effects

import "math"

// ChorusParams mirror the browser synthesizer's chorus module. TimeSec is
// the centre delay, Depth the sweep as a fraction of it (0..1), Tone the
// lowpass on the delayed voice (0 disables it).
type ChorusParams struct {
	TimeSec  float64
	Depth    float32
	RateHz   float64
	Mix      float32
	Tone     float64
	Feedback float32
}

func DefaultChorusParams() ChorusParams {
	return ChorusParams{TimeSec: 0.025, Depth: 0.5, RateHz: 1, Mix: 0.5, Tone: 4000}
}

// Chorus is a modulated delay. The right channel sweeps a quarter cycle
// behind the left.
type Chorus struct {
	bufL, bufR   []float32
	pos          int
	base, depth  float64
	rate, phase  float64
	mix          float32
	feedback     float32
	toneL, toneR onePole
}

func NewChorus(sampleRate int, params ChorusParams) *Chorus {
	base := math.Max(params.TimeSec*float64(sampleRate), 1)
	depth := base * float64(clamp(params.Depth, 0, 1))
	size := int(base+depth) + 2
	return &Chorus{
		bufL:     make([]float32, size),
		bufR:     make([]float32, size),
		base:     base,
		depth:    depth,
		rate:     2 * math.Pi * math.Max(params.RateHz, 0) / float64(sampleRate),
		mix:      clamp(params.Mix, 0, 1),
		feedback: clamp(params.Feedback, 0, 0.9),
		toneL:    newOnePole(sampleRate, params.Tone),
		toneR:    newOnePole(sampleRate, params.Tone),
	}
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	c.bufL[c.pos] = l
	c.bufR[c.pos] = r
	delL := c.toneL.process(c.tap(c.bufL, c.base+math.Sin(c.phase)*c.depth))
	delR := c.toneR.process(c.tap(c.bufR, c.base+math.Cos(c.phase)*c.depth))
	c.bufL[c.pos] += delL * c.feedback
	c.bufR[c.pos] += delR * c.feedback

	c.phase += c.rate
	if c.phase > 2*math.Pi {
		c.phase -= 2 * math.Pi
	}
	c.pos++
	if c.pos >= len(c.bufL) {
		c.pos = 0
	}
	return l*(1-c.mix) + delL*c.mix, r*(1-c.mix) + delR*c.mix
}

// tap reads buf delay samples behind the write position with linear
// interpolation.
func (c *Chorus) tap(buf []float32, delay float64) float32 {
	at := float64(c.pos) - delay
	for at < 0 {
		at += float64(len(buf))
	}
	i := int(at)
	frac := float32(at - float64(i))
	j := i + 1
	if j >= len(buf) {
		j = 0
	}
	return buf[i]*(1-frac) + buf[j]*frac
}

func (c *Chorus) Reset() {
	clear(c.bufL)
	clear(c.bufR)
	c.pos = 0
	c.phase = 0
	c.toneL.state = 0
	c.toneR.state = 0
}
