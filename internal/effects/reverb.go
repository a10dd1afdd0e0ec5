package effects

// ReverbParams mirror the browser synthesizer's reverb module. Room scales
// the comb delay lengths, Decay is the comb feedback and Tone dampens the tail.
type ReverbParams struct {
	Dry   float32
	Wet   float32
	Tone  float64
	Room  float32
	Decay float32
}

func DefaultReverbParams() ReverbParams {
	return ReverbParams{Dry: 1, Wet: 0.25, Tone: 6000, Room: 0.5, Decay: 0.75}
}

// Reverb is a Schroeder reverb: four damped combs in parallel, two allpasses
// in series. The right channel uses slightly longer delays for width.
type Reverb struct {
	left, right reverbChannel
	dry, wet    float32
}

type reverbChannel struct {
	combs   [4]combFilter
	allpass [2]allpassFilter
}

type combFilter struct {
	buf  []float32
	pos  int
	fb   float32
	damp onePole
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

func NewReverb(sampleRate int, params ReverbParams) *Reverb {
	base := int(float32(sampleRate) * clamp(params.Room, 0, 1) * 0.05)
	if base < 10 {
		base = 10
	}
	r := &Reverb{dry: clamp(params.Dry, 0, 1), wet: clamp(params.Wet, 0, 1)}
	fb := clamp(params.Decay, 0, 0.95)
	r.left = newReverbChannel(sampleRate, base, fb, params.Tone)
	r.right = newReverbChannel(sampleRate, base+base/40+1, fb, params.Tone)
	return r
}

func newReverbChannel(sampleRate, base int, fb float32, tone float64) reverbChannel {
	var ch reverbChannel
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range ch.combs {
		ch.combs[i] = combFilter{buf: make([]float32, combLens[i]), fb: fb, damp: newOnePole(sampleRate, tone)}
	}
	apLens := [2]int{max(base*347/1000, 1), max(base*213/1000, 1)}
	for i := range ch.allpass {
		ch.allpass[i] = allpassFilter{buf: make([]float32, apLens[i]), fb: 0.5}
	}
	return ch
}

func (r *Reverb) Process(l, rr float32) (float32, float32) {
	mono := (l + rr) * 0.5
	outL := r.left.process(mono)
	outR := r.right.process(mono)
	return l*r.dry + outL*r.wet, rr*r.dry + outR*r.wet
}

func (r *Reverb) Reset() {
	r.left.reset()
	r.right.reset()
}

func (ch *reverbChannel) process(in float32) float32 {
	var out float32
	for i := range ch.combs {
		out += ch.combs[i].process(in)
	}
	out *= 0.25
	for i := range ch.allpass {
		out = ch.allpass[i].process(out)
	}
	return out
}

func (ch *reverbChannel) reset() {
	for i := range ch.combs {
		clear(ch.combs[i].buf)
		ch.combs[i].pos = 0
		ch.combs[i].damp.state = 0
	}
	for i := range ch.allpass {
		clear(ch.allpass[i].buf)
		ch.allpass[i].pos = 0
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + c.damp.process(out)*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}
