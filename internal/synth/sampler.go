package synth

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/mmlseq-go/internal/pitch"
)

type SamplerParams struct {
	Voices     int
	MasterGain float64
	// ReleaseSec is the fade applied when a one-shot is stopped early.
	ReleaseSec float64
}

func DefaultSamplerParams() SamplerParams {
	return SamplerParams{Voices: 24, MasterGain: 0.6, ReleaseSec: 0.12}
}

type sampleVoice struct {
	active   bool
	id       int
	age      int
	sample   *Sample
	pos      float64
	step     float64
	velocity float64
	env      envelope
	pan      float64
}

// Sampler plays one-shot samples from the slots of its banks. A note is
// sounded from the slot chosen by the resolver at the resolver's rate.
type Sampler struct {
	sampleRate float64
	params     SamplerParams
	slots      map[int]*Sample
	voices     []sampleVoice
	nextID     int
	masterGain uint64
	envelope   Envelope
}

func NewSampler(sampleRate int, params SamplerParams, banks ...*Bank) *Sampler {
	if params.Voices <= 0 {
		params.Voices = 24
	}
	s := &Sampler{
		sampleRate: float64(sampleRate),
		params:     params,
		slots:      map[int]*Sample{},
		voices:     make([]sampleVoice, params.Voices),
		masterGain: math.Float64bits(params.MasterGain),
		// Only the release stage is used: one-shots start at full level.
		envelope: Envelope{SustainLvl: 1, ReleaseSec: params.ReleaseSec},
	}
	for _, b := range banks {
		s.AddBank(b)
	}
	return s
}

// AddBank installs every sample of b at its slot, replacing what was there.
func (s *Sampler) AddBank(b *Bank) {
	if b == nil {
		return
	}
	offset := b.Source.BankOffset()
	for index, smp := range b.samples {
		s.slots[offset+index] = smp
	}
}

// HasSlot reports whether a sample is loaded at slot.
func (s *Sampler) HasSlot(slot int) bool {
	return s.slots[slot] != nil
}

// NoteOn starts the sample at res.Slot. It returns -1 when the slot is empty.
func (s *Sampler) NoteOn(res pitch.Resolution, velocity float64) int {
	smp := s.slots[res.Slot]
	if smp == nil || len(smp.Data) == 0 {
		return -1
	}
	slot := s.stealVoice()
	id := s.nextID
	s.nextID++
	rate := res.Rate
	if rate <= 0 {
		rate = 1
	}
	v := &s.voices[slot]
	*v = sampleVoice{
		active:   true,
		id:       id,
		sample:   smp,
		step:     rate * float64(smp.SampleRate) / s.sampleRate,
		velocity: clamp(velocity, 0, 1),
		pan:      0.25 * float64(res.Index-pitch.ReferenceIndex) / float64(pitch.KeyCount/2),
	}
	v.env.level = 1
	v.env.state = envSustain
	return id
}

func (s *Sampler) NoteOff(id int) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.active && v.id == id {
			v.env.release()
		}
	}
}

func (s *Sampler) AllNotesOff() {
	for i := range s.voices {
		if s.voices[i].active {
			s.voices[i].env.release()
		}
	}
}

func (s *Sampler) RenderFrame() (float32, float32) {
	gain := math.Float64frombits(atomic.LoadUint64(&s.masterGain))
	var l, r float64
	for i := range s.voices {
		v := &s.voices[i]
		if !v.active {
			continue
		}
		v.age++
		if !v.env.advance(s.envelope, s.sampleRate) {
			v.active = false
			continue
		}
		x, ok := v.sample.at(v.pos)
		if !ok {
			v.active = false
			continue
		}
		v.pos += v.step
		sig := x * v.env.level * v.velocity
		gl, gr := pan(v.pan)
		l += sig * gl * gain
		r += sig * gr * gain
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (s *Sampler) stealVoice() int {
	oldest, oldestAge := 0, -1
	for i := range s.voices {
		v := &s.voices[i]
		if !v.active {
			return i
		}
		if v.age > oldestAge {
			oldest, oldestAge = i, v.age
		}
	}
	return oldest
}

func (s *Sampler) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&s.masterGain, math.Float64bits(gain))
}

func (s *Sampler) ActiveVoiceCount() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].active {
			n++
		}
	}
	return n
}
