// Package mmlseq compiles Music Macro Language text into timed melody and
// bass tracks and performs them through a synthesizer, reporting each note
// as it starts and stops.
package mmlseq

import (
	"github.com/cbegin/mmlseq-go/internal/mml"
	"github.com/cbegin/mmlseq-go/internal/pitch"
	"github.com/cbegin/mmlseq-go/internal/synth"
)

type (
	Score       = mml.Score
	Track       = mml.Track
	Event       = mml.Event
	Diagnostic  = mml.Diagnostic
	ErrorKind   = mml.ErrorKind
	TrackID     = mml.TrackID
	Waveform    = synth.Waveform
	SoundSource = pitch.Source
)

const (
	ErrTempo  = mml.ErrTempo
	ErrOctave = mml.ErrOctave
	ErrNote   = mml.ErrNote
	ErrLength = mml.ErrLength
	ErrMML    = mml.ErrMML
)

const (
	Melody = mml.Melody
	Bass   = mml.Bass
)

const (
	SourceOscillator = pitch.SourceOscillator
	SourcePiano      = pitch.SourcePiano
	SourceGuitar     = pitch.SourceGuitar
)

const (
	WaveSine     = synth.WaveSine
	WaveSquare   = synth.WaveSquare
	WaveSawtooth = synth.WaveSawtooth
	WaveTriangle = synth.WaveTriangle
)

// CompileOption adjusts the compiler defaults.
type CompileOption func(*mml.Config)

// WithDefaults sets the tempo, octave and note length each track starts
// with. A non-positive tempo or length, or a negative octave, keeps the
// built-in default. Octave 0 is a valid starting octave.
func WithDefaults(tempo, octave, length int) CompileOption {
	return func(cfg *mml.Config) {
		if tempo > 0 {
			cfg.DefaultTempo = tempo
		}
		if octave >= 0 {
			cfg.DefaultOctave = octave
		}
		if length > 0 {
			cfg.DefaultLength = length
		}
	}
}

func withCompilerConfig(c mml.Config) CompileOption {
	return func(cfg *mml.Config) { *cfg = c }
}

// Compile tokenizes and compiles text. Problems are reported as
// diagnostics; the score is always usable.
func Compile(text string, opts ...CompileOption) (*Score, []Diagnostic) {
	cfg := mml.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return mml.Parse(text, cfg)
}

func ParseSoundSource(name string) (SoundSource, error) { return pitch.ParseSource(name) }

func ParseWaveform(name string) (Waveform, error) { return synth.ParseWaveform(name) }

// NoteName returns the scientific pitch name of a keyboard index, e.g. "A4".
func NoteName(index int) string { return pitch.NoteName(index) }

// Frequency returns the equal-tempered frequency of a keyboard index.
func Frequency(index int) float64 { return pitch.Frequency(index) }
