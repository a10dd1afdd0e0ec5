package lfo

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Shape is the waveform of a modulation oscillator.
type Shape int

const (
	Sine Shape = iota
	Triangle
	Square
	Sawtooth
)

func (s Shape) String() string {
	switch s {
	case Triangle:
		return "triangle"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	default:
		return "sine"
	}
}

// ParseShape accepts the oscillator type names used by the web audio API.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sine":
		return Sine, nil
	case "triangle", "tri":
		return Triangle, nil
	case "square", "pulse":
		return Square, nil
	case "sawtooth", "saw":
		return Sawtooth, nil
	}
	return Sine, errors.Errorf("lfo: unknown shape %q", name)
}

// Value is the shape's level at phase p in [0, 1), ranging over [-1, 1].
func (s Shape) Value(p float64) float64 {
	switch s {
	case Triangle:
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*p - 1
	default:
		return math.Sin(2 * math.Pi * p)
	}
}

// LFO is a low-frequency oscillator shared by every voice of an engine.
// Depth is in the caller's units (semitones for vibrato).
type LFO struct {
	depth  float64
	rateHz float64
	shape  Shape
	phase  float64
}

func (l *LFO) Set(depth, rateHz float64, shape Shape) {
	l.depth = depth
	l.rateHz = rateHz
	l.shape = shape
}

// Sample returns the current value in [-depth, +depth] and advances one
// sample. It returns 0 while the LFO is inactive.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	v := l.shape.Value(l.phase) * l.depth
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v
}

func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

func (l *LFO) Reset() {
	l.phase = 0
}
