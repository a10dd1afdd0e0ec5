package effects

import (
	"math"

	"github.com/pkg/errors"
)

// Curve selects the waveshaping transfer function.
type Curve int

const (
	CurveClean Curve = iota
	CurveCrunch
	CurveOverdrive
	CurveFuzz
)

var curveNames = []string{"clean", "crunch", "overdrive", "fuzz"}

func (c Curve) String() string {
	if c < 0 || int(c) >= len(curveNames) {
		return "unknown"
	}
	return curveNames[c]
}

func ParseCurve(name string) (Curve, error) {
	for i, n := range curveNames {
		if n == name {
			return Curve(i), nil
		}
	}
	return CurveClean, errors.Errorf("unknown distortion curve %q", name)
}

// DistortionParams mirror the browser synthesizer's distortion module.
// Samples is the resolution of the shaping table, Drive (0..1) raises the
// input gain up to 50x, Color and Tone are lowpass cutoffs before and after
// the shaper (0 disables either) and Level is the output gain.
type DistortionParams struct {
	Curve   Curve
	Samples int
	Drive   float32
	Color   float64
	Tone    float64
	Level   float32
}

func DefaultDistortionParams() DistortionParams {
	return DistortionParams{Curve: CurveOverdrive, Samples: 4096, Drive: 0.5, Color: 2000, Tone: 4000, Level: 0.5}
}

// Distortion is a table waveshaper with pre and post filtering.
type Distortion struct {
	table          []float32
	gain, level    float32
	colorL, colorR onePole
	toneL, toneR   onePole
}

func NewDistortion(sampleRate int, params DistortionParams) *Distortion {
	n := max(params.Samples, 2)
	table := make([]float32, n)
	for i := range table {
		x := 2*float64(i)/float64(n-1) - 1
		table[i] = float32(shape(params.Curve, x))
	}
	return &Distortion{
		table:  table,
		gain:   1 + 49*clamp(params.Drive, 0, 1),
		level:  clamp(params.Level, 0, 1),
		colorL: newOnePole(sampleRate, params.Color),
		colorR: newOnePole(sampleRate, params.Color),
		toneL:  newOnePole(sampleRate, params.Tone),
		toneR:  newOnePole(sampleRate, params.Tone),
	}
}

// shape maps x in [-1, 1] onto [-1, 1].
func shape(c Curve, x float64) float64 {
	switch c {
	case CurveCrunch:
		return math.Tanh(3*x) / math.Tanh(3)
	case CurveOverdrive:
		if x >= 0 {
			return math.Tanh(5*x) / math.Tanh(5)
		}
		return math.Tanh(2*x) / math.Tanh(2)
	case CurveFuzz:
		y := (1 - math.Exp(-8*math.Abs(x))) / (1 - math.Exp(-8))
		return math.Copysign(y, x)
	default:
		return x
	}
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	l = d.shape(d.colorL.process(l) * d.gain)
	r = d.shape(d.colorR.process(r) * d.gain)
	return d.toneL.process(l) * d.level, d.toneR.process(r) * d.level
}

func (d *Distortion) shape(x float32) float32 {
	pos := (clamp(x, -1, 1) + 1) / 2 * float32(len(d.table)-1)
	i := int(pos)
	if i >= len(d.table)-1 {
		return d.table[len(d.table)-1]
	}
	frac := pos - float32(i)
	return d.table[i]*(1-frac) + d.table[i+1]*frac
}

func (d *Distortion) Reset() {
	d.colorL.state, d.colorR.state = 0, 0
	d.toneL.state, d.toneR.state = 0, 0
}
