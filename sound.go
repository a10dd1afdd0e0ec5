package mmlseq

import (
	"log/slog"

	"github.com/cbegin/mmlseq-go/internal/lfo"
	"github.com/cbegin/mmlseq-go/internal/mml"
	"github.com/cbegin/mmlseq-go/internal/pitch"
	"github.com/cbegin/mmlseq-go/internal/scheduler"
	"github.com/cbegin/mmlseq-go/internal/synth"
)

// Synthesized stand-in banks carry one sample every bankSpacing keys; the
// resolver pitch-shifts the keys in between.
const bankSpacing = 3

const noteVelocity = 0.8

type vibrato struct {
	depth float64
	rate  float64
	shape lfo.Shape
}

type voicing struct {
	waveform Waveform
	vibrato  vibrato
}

// bankCache loads each one-shot bank once per sample rate.
type bankCache struct {
	sampleRate int
	dirs       map[SoundSource]string
	log        *slog.Logger
	banks      map[SoundSource]*synth.Bank
}

func newBankCache(sampleRate int, dirs map[SoundSource]string, log *slog.Logger) *bankCache {
	return &bankCache{sampleRate: sampleRate, dirs: dirs, log: log, banks: map[SoundSource]*synth.Bank{}}
}

func (c *bankCache) bank(source SoundSource) *synth.Bank {
	if b, ok := c.banks[source]; ok {
		return b
	}
	var b *synth.Bank
	if dir := c.dirs[source]; dir != "" {
		loaded, err := synth.LoadBank(dir, source)
		if err != nil {
			c.log.Warn("sample bank unavailable, using synthesized bank", "source", source, "dir", dir, "err", err)
		} else {
			c.log.Debug("sample bank loaded", "source", source, "dir", dir, "samples", loaded.Len())
			b = loaded
		}
	}
	if b == nil {
		b = synth.SynthesizeBank(source, c.sampleRate, bankSpacing)
	}
	c.banks[source] = b
	return b
}

// newVoice builds the engine and resolver for one sound source.
func newVoice(source SoundSource, sampleRate int, v voicing, banks *bankCache) (synth.Engine, *pitch.Resolver) {
	if !source.OneShot() {
		params := synth.DefaultOscillatorParams()
		params.Wave = v.waveform
		params.VibratoDepth = v.vibrato.depth
		params.VibratoRate = v.vibrato.rate
		params.VibratoShape = v.vibrato.shape
		return synth.NewOscillator(sampleRate, params), pitch.NewResolver(source, nil)
	}
	bank := banks.bank(source)
	return synth.NewSampler(sampleRate, synth.DefaultSamplerParams(), bank), pitch.NewResolver(source, bank.Recorded())
}

type voiceKey struct {
	track mml.TrackID
	seq   int
}

// voiceTable routes scheduler cues to mixer voices.
type voiceTable struct {
	mixer *synth.Mixer
	ids   map[voiceKey]int
}

func newVoiceTable(mixer *synth.Mixer) *voiceTable {
	return &voiceTable{mixer: mixer, ids: map[voiceKey]int{}}
}

func (v *voiceTable) noteOn(c scheduler.Cue) {
	id := v.mixer.NoteOn(c.Pitch, noteVelocity)
	if id >= 0 {
		v.ids[voiceKey{c.Event.Track, c.Event.Seq}] = id
	}
}

func (v *voiceTable) noteOff(c scheduler.Cue) {
	key := voiceKey{c.Event.Track, c.Event.Seq}
	if id, ok := v.ids[key]; ok {
		delete(v.ids, key)
		v.mixer.NoteOff(id)
	}
}

func (v *voiceTable) reset() {
	clear(v.ids)
	v.mixer.AllNotesOff()
}
