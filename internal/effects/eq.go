package effects

import (
	"math"
	"sync/atomic"
)

// DefaultCrossovers split the master equalizer into five bands.
var DefaultCrossovers = []float64{200, 800, 2500, 8000}

// Equalizer splits the signal at its crossover frequencies with cascaded
// one-pole lowpasses and sums the bands back with per-band gains. With all
// gains at 1 the output equals the input. Gains may be changed from any
// goroutine while Process runs.
type Equalizer struct {
	gains []atomic.Uint32
	lpL   []onePole
	lpR   []onePole
}

func NewEqualizer(sampleRate int, crossovers ...float64) *Equalizer {
	if len(crossovers) == 0 {
		crossovers = DefaultCrossovers
	}
	eq := &Equalizer{
		gains: make([]atomic.Uint32, len(crossovers)+1),
		lpL:   make([]onePole, len(crossovers)),
		lpR:   make([]onePole, len(crossovers)),
	}
	for i, hz := range crossovers {
		eq.lpL[i] = newOnePole(sampleRate, hz)
		eq.lpR[i] = newOnePole(sampleRate, hz)
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1))
	}
	return eq
}

// Bands is the number of adjustable bands, lowest first.
func (eq *Equalizer) Bands() int { return len(eq.gains) }

// SetGain sets a linear band gain; 1 is unity. Out-of-range bands and
// negative gains are ignored.
func (eq *Equalizer) SetGain(band int, gain float32) {
	if band < 0 || band >= len(eq.gains) || gain < 0 {
		return
	}
	eq.gains[band].Store(math.Float32bits(gain))
}

func (eq *Equalizer) Gain(band int) float32 {
	if band < 0 || band >= len(eq.gains) {
		return 1
	}
	return math.Float32frombits(eq.gains[band].Load())
}

func (eq *Equalizer) Process(l, r float32) (float32, float32) {
	var outL, outR float32
	for i := range eq.lpL {
		lowL := eq.lpL[i].process(l)
		lowR := eq.lpR[i].process(r)
		g := eq.Gain(i)
		outL += lowL * g
		outR += lowR * g
		l -= lowL
		r -= lowR
	}
	g := eq.Gain(len(eq.lpL))
	return outL + l*g, outR + r*g
}

func (eq *Equalizer) Reset() {
	for i := range eq.lpL {
		eq.lpL[i].state = 0
		eq.lpR[i].state = 0
	}
}
