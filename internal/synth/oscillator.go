package synth

import (
	"math"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/cbegin/mmlseq-go/internal/lfo"
	"github.com/cbegin/mmlseq-go/internal/pitch"
)

// Waveform is the oscillator wave type.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

func (w Waveform) String() string {
	switch w {
	case WaveSquare:
		return "square"
	case WaveSawtooth:
		return "sawtooth"
	case WaveTriangle:
		return "triangle"
	default:
		return "sine"
	}
}

func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sine":
		return WaveSine, nil
	case "square":
		return WaveSquare, nil
	case "sawtooth", "saw":
		return WaveSawtooth, nil
	case "triangle", "tri":
		return WaveTriangle, nil
	}
	return WaveSine, errors.Errorf("synth: unknown waveform %q (expected sine|square|sawtooth|triangle)", name)
}

type OscillatorParams struct {
	Voices     int
	MasterGain float64
	Wave       Waveform
	Envelope   Envelope
	// VibratoDepth is in semitones.
	VibratoDepth float64
	VibratoRate  float64
	VibratoShape lfo.Shape
	// Pan spreads voices by pitch, low notes left; 0 keeps them centered.
	Pan float64
}

func DefaultOscillatorParams() OscillatorParams {
	return OscillatorParams{
		Voices:     16,
		MasterGain: 0.3,
		Wave:       WaveTriangle,
		Envelope: Envelope{
			AttackSec:  0.005,
			DecaySec:   0.12,
			SustainLvl: 0.7,
			ReleaseSec: 0.08,
		},
		VibratoShape: lfo.Sine,
		Pan:          0.3,
	}
}

type oscVoice struct {
	active   bool
	id       int
	age      int
	freq     float64
	phase    float64
	velocity float64
	env      envelope
	pan      float64
}

// Oscillator is a polyphonic oscillator engine. It is not
// safe for concurrent use; the Mixer serializes access.
type Oscillator struct {
	sampleRate float64
	params     OscillatorParams
	voices     []oscVoice
	nextID     int
	masterGain uint64
	vibrato    lfo.LFO
	dcL, dcR   dcBlocker
}

func NewOscillator(sampleRate int, params OscillatorParams) *Oscillator {
	if params.Voices <= 0 {
		params.Voices = 16
	}
	o := &Oscillator{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]oscVoice, params.Voices),
		masterGain: math.Float64bits(params.MasterGain),
	}
	o.vibrato.Set(params.VibratoDepth, params.VibratoRate, params.VibratoShape)
	return o
}

func (o *Oscillator) SetWaveform(w Waveform) { o.params.Wave = w }

func (o *Oscillator) Waveform() Waveform { return o.params.Wave }

func (o *Oscillator) SetVibrato(depth, rateHz float64, shape lfo.Shape) {
	o.vibrato.Set(depth, rateHz, shape)
}

func (o *Oscillator) NoteOn(res pitch.Resolution, velocity float64) int {
	slot := o.stealVoice()
	id := o.nextID
	o.nextID++
	v := &o.voices[slot]
	*v = oscVoice{
		active:   true,
		id:       id,
		freq:     res.Frequency,
		velocity: clamp(velocity, 0, 1),
		pan:      o.params.Pan * (float64(res.Index-pitch.ReferenceIndex) / float64(pitch.KeyCount/2)),
	}
	v.env.trigger()
	return id
}

func (o *Oscillator) NoteOff(id int) {
	for i := range o.voices {
		v := &o.voices[i]
		if v.active && v.id == id {
			v.env.release()
		}
	}
}

func (o *Oscillator) AllNotesOff() {
	for i := range o.voices {
		if o.voices[i].active {
			o.voices[i].env.release()
		}
	}
}

func (o *Oscillator) RenderFrame() (float32, float32) {
	freqMul := 1.0
	if mod := o.vibrato.Sample(o.sampleRate); mod != 0 {
		freqMul = math.Pow(2, mod/12)
	}
	gain := o.masterGainValue()
	var l, r float64
	for i := range o.voices {
		v := &o.voices[i]
		if !v.active {
			continue
		}
		v.age++
		if !v.env.advance(o.params.Envelope, o.sampleRate) {
			v.active = false
			continue
		}
		sig := o.renderWave(v, v.freq*freqMul) * v.env.level * v.velocity
		gl, gr := pan(v.pan)
		l += sig * gl * gain
		r += sig * gr * gain
	}
	l = o.dcL.process(l)
	r = o.dcR.process(r)
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (o *Oscillator) renderWave(v *oscVoice, freq float64) float64 {
	dt := freq / o.sampleRate
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= math.Floor(v.phase)
	}
	switch o.params.Wave {
	case WaveSquare:
		out := -1.0
		if v.phase < 0.5 {
			out = 1
		}
		out += polyBLEP(v.phase, dt)
		out -= polyBLEP(math.Mod(v.phase+0.5, 1), dt)
		return out
	case WaveSawtooth:
		return 2*v.phase - 1 - polyBLEP(v.phase, dt)
	case WaveTriangle:
		return 2*math.Abs(2*v.phase-1) - 1
	default:
		return math.Sin(twoPi * v.phase)
	}
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (o *Oscillator) stealVoice() int {
	for i := range o.voices {
		if !o.voices[i].active {
			return i
		}
	}
	// Steal the oldest releasing voice, or failing that the oldest active voice.
	oldestRelease, oldestReleaseAge := -1, -1
	oldestActive, oldestActiveAge := 0, -1
	for i := range o.voices {
		v := &o.voices[i]
		if v.env.state == envRelease && v.age > oldestReleaseAge {
			oldestRelease, oldestReleaseAge = i, v.age
		}
		if v.age > oldestActiveAge {
			oldestActive, oldestActiveAge = i, v.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldestActive
}

func (o *Oscillator) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&o.masterGain, math.Float64bits(gain))
}

func (o *Oscillator) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&o.masterGain))
}

func (o *Oscillator) ActiveVoiceCount() int {
	n := 0
	for i := range o.voices {
		if o.voices[i].active {
			n++
		}
	}
	return n
}
