package synth

import (
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/cbegin/mmlseq-go/internal/pitch"
)

// Sample is a mono recording.
type Sample struct {
	Data       []float32
	SampleRate int
}

// at returns the linearly interpolated value at fractional frame pos.
func (s *Sample) at(pos float64) (float64, bool) {
	i := int(pos)
	if pos < 0 || i >= len(s.Data) {
		return 0, false
	}
	a := float64(s.Data[i])
	if i+1 >= len(s.Data) {
		return a, true
	}
	frac := pos - float64(i)
	return a + (float64(s.Data[i+1])-a)*frac, true
}

// Duration is the length of the sample in seconds.
func (s *Sample) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Data)) / float64(s.SampleRate)
}

// DecodeSample reads a PCM WAV stream and downmixes it to mono.
func DecodeSample(r io.ReadSeeker) (*Sample, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("synth: not a valid WAV stream")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "synth: decode WAV")
	}
	bitDepth := int(decoder.SampleBitDepth())
	if bitDepth == 0 {
		return nil, errors.New("synth: unknown WAV bit depth")
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	factor := math.Pow(2, float64(bitDepth-1))
	frames := len(buf.Data) / channels
	out := &Sample{Data: make([]float32, frames), SampleRate: buf.Format.SampleRate}
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[f*channels+c])
		}
		out.Data[f] = float32(sum / float64(channels) / factor)
	}
	return out, nil
}

func LoadSample(path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "synth: open sample")
	}
	defer f.Close()
	s, err := DecodeSample(f)
	if err != nil {
		return nil, errors.Wrapf(err, "synth: %s", path)
	}
	return s, nil
}

// Bank holds the recorded samples of one one-shot source, keyed by
// keyboard index.
type Bank struct {
	Source  pitch.Source
	samples map[int]*Sample
}

func NewBank(source pitch.Source) *Bank {
	return &Bank{Source: source, samples: map[int]*Sample{}}
}

func (b *Bank) Add(index int, s *Sample) {
	if index < 0 || index >= pitch.KeyCount || s == nil {
		return
	}
	b.samples[index] = s
}

func (b *Bank) Sample(index int) *Sample { return b.samples[index] }

func (b *Bank) Len() int { return len(b.samples) }

// Recorded lists the keyboard indexes that have a sample, ascending.
func (b *Bank) Recorded() []int {
	out := make([]int, 0, len(b.samples))
	for idx := range b.samples {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// LoadBank reads every "<NoteName>.wav" file in dir (for example "A4.wav"
// or "Cs3.wav"). Files whose names are not note names are skipped.
func LoadBank(dir string, source pitch.Source) (*Bank, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "synth: read bank %s", dir)
	}
	bank := NewBank(source)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".wav") {
			continue
		}
		index, err := pitch.ParseNoteName(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			continue
		}
		s, err := LoadSample(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		bank.Add(index, s)
	}
	if bank.Len() == 0 {
		return nil, errors.Errorf("synth: no note samples in %s", dir)
	}
	return bank, nil
}

// SynthesizeBank builds a stand-in bank for source when no recordings are
// available: a sample every spacing keys starting at A0.
func SynthesizeBank(source pitch.Source, sampleRate, spacing int) *Bank {
	if spacing <= 0 {
		spacing = 1
	}
	bank := NewBank(source)
	rng := rand.New(rand.NewSource(int64(sampleRate)))
	for idx := 0; idx < pitch.KeyCount; idx += spacing {
		freq := pitch.Frequency(idx)
		switch source {
		case pitch.SourceGuitar:
			bank.Add(idx, pluckedString(freq, sampleRate, 1.6, rng))
		default:
			bank.Add(idx, struckString(freq, sampleRate, 2.2))
		}
	}
	return bank
}

// pluckedString is a Karplus-Strong string excited with a noise burst.
func pluckedString(freq float64, sampleRate int, seconds float64, rng *rand.Rand) *Sample {
	n := int(seconds * float64(sampleRate))
	period := int(math.Round(float64(sampleRate) / freq))
	if period < 2 {
		period = 2
	}
	line := make([]float64, period)
	for i := range line {
		line[i] = rng.Float64()*2 - 1
	}
	out := make([]float32, n)
	const decay = 0.996
	pos := 0
	for i := 0; i < n; i++ {
		next := (pos + 1) % period
		y := line[pos]
		line[pos] = decay * 0.5 * (line[pos] + line[next])
		out[i] = float32(y * 0.5)
		pos = next
	}
	return &Sample{Data: out, SampleRate: sampleRate}
}

// struckString sums a few inharmonic partials with exponential decay, faster
// for the upper partials.
func struckString(freq float64, sampleRate int, seconds float64) *Sample {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	partials := []struct{ ratio, amp, decay float64 }{
		{1, 1, 2.5},
		{2.001, 0.5, 3.5},
		{3.004, 0.25, 5},
		{4.009, 0.12, 7},
		{5.016, 0.06, 9},
	}
	nyquist := float64(sampleRate) / 2
	attack := 0.004 * float64(sampleRate)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		var v float64
		for _, p := range partials {
			if freq*p.ratio >= nyquist {
				continue
			}
			v += p.amp * math.Exp(-p.decay*t) * math.Sin(twoPi*freq*p.ratio*t)
		}
		if float64(i) < attack {
			v *= float64(i) / attack
		}
		out[i] = float32(v * 0.4)
	}
	return &Sample{Data: out, SampleRate: sampleRate}
}
