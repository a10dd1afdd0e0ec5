// Package synth sounds resolved notes: a polyphonic oscillator for the
// synthesized source and a one-shot sampler for the piano and guitar banks.
package synth

import (
	"math"

	"github.com/cbegin/mmlseq-go/internal/pitch"
)

const twoPi = math.Pi * 2

// Engine is a voice engine the mixer renders from. NoteOn returns a voice id
// that NoteOff later releases.
type Engine interface {
	NoteOn(res pitch.Resolution, velocity float64) int
	NoteOff(id int)
	AllNotesOff()
	RenderFrame() (float32, float32)
	SetMasterGain(gain float64)
	ActiveVoiceCount() int
}

// Envelope is an ADSR envelope in seconds and linear level.
type Envelope struct {
	AttackSec  float64
	DecaySec   float64
	SustainLvl float64
	ReleaseSec float64
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type envelope struct {
	level float64
	state envState
}

func (e *envelope) trigger() {
	e.level = 0
	e.state = envAttack
}

func (e *envelope) release() {
	if e.state != envOff {
		e.state = envRelease
	}
}

// advance steps the envelope by one frame and reports whether the voice is
// still sounding.
func (e *envelope) advance(p Envelope, sampleRate float64) bool {
	switch e.state {
	case envAttack:
		e.level += step(1, p.AttackSec, sampleRate)
		if e.level >= 1 {
			e.level = 1
			e.state = envDecay
		}
	case envDecay:
		e.level -= step(1-p.SustainLvl, p.DecaySec, sampleRate)
		if e.level <= p.SustainLvl {
			e.level = p.SustainLvl
			e.state = envSustain
		}
	case envSustain:
	case envRelease:
		from := p.SustainLvl
		if from <= 0 {
			from = 1
		}
		e.level -= step(from, p.ReleaseSec, sampleRate)
		if e.level <= 0.0001 {
			e.level = 0
			e.state = envOff
		}
	case envOff:
		e.level = 0
	}
	return e.state != envOff
}

func step(span, sec, sampleRate float64) float64 {
	if sec <= 0 || sampleRate <= 0 {
		return math.Max(span, 1)
	}
	return span / (sec * sampleRate)
}

// pan is a constant-power pan law with position in [-1, 1].
func pan(position float64) (float64, float64) {
	angle := (clamp(position, -1, 1) + 1) / 2 * (math.Pi / 2)
	return math.Cos(angle), math.Sin(angle)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dcBlocker removes the DC offset of one channel.
type dcBlocker struct {
	prevIn, prevOut float64
}

func (d *dcBlocker) process(x float64) float64 {
	const r = 0.995
	y := x - d.prevIn + r*d.prevOut
	d.prevIn = x
	d.prevOut = y
	return y
}
