package pitch

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Reference pitch: A4 = 440 Hz at keyboard index 48 (A0 = 0, C8 = 87).
const (
	ReferenceHz    = 440.0
	ReferenceIndex = 48
	KeyCount       = 88
)

// Semitones returns the signed semitone distance from one index to another.
// Frequency and Rate are both built on it so synthesized and sampled
// playback always agree on pitch.
func Semitones(from, to int) float64 {
	return float64(to - from)
}

func ratio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}

// Frequency is the equal-temperament frequency of a keyboard index.
func Frequency(index int) float64 {
	return ReferenceHz * ratio(Semitones(ReferenceIndex, index))
}

// Rate is the playback-rate multiplier that turns a sample recorded at
// recorded into index.
func Rate(index, recorded int) float64 {
	return ratio(Semitones(recorded, index))
}

// NearestIndex maps a frequency back to the closest keyboard index.
func NearestIndex(hz float64) int {
	if hz <= 0 {
		return 0
	}
	return ReferenceIndex + int(math.Round(12*math.Log2(hz/ReferenceHz)))
}

var noteNames = [12]string{"A", "A#", "B", "C", "C#", "D", "D#", "E", "F", "F#", "G", "G#"}

// NoteName renders a keyboard index as scientific pitch, e.g. 48 -> "A4".
func NoteName(index int) string {
	if index < 0 || index >= KeyCount {
		return fmt.Sprintf("?%d", index)
	}
	name := noteNames[index%12]
	// Octave numbers change at C, three semitones above A.
	octave := (index + 9) / 12
	return name + strconv.Itoa(octave)
}

var nameOffsets = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// ParseNoteName is the inverse of NoteName. Sharps may be written '#' or
// 's' (for file systems), flats as a trailing 'b' after the letter.
func ParseNoteName(s string) (int, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if len(name) < 2 {
		return 0, errors.Errorf("pitch: invalid note name %q", s)
	}
	base, ok := nameOffsets[name[0]]
	if !ok {
		return 0, errors.Errorf("pitch: invalid note letter in %q", s)
	}
	i := 1
	for i < len(name) && (name[i] == '#' || name[i] == 's' || name[i] == 'b') {
		if name[i] == 'b' {
			base--
		} else {
			base++
		}
		i++
	}
	octave, err := strconv.Atoi(name[i:])
	if err != nil {
		return 0, errors.Wrapf(err, "pitch: invalid octave in %q", s)
	}
	index := octave*12 + base - 9
	if index < 0 || index >= KeyCount {
		return 0, errors.Errorf("pitch: %q is outside the keyboard", s)
	}
	return index, nil
}

// Source is the sound-source selection the performance is resolved for.
type Source string

const (
	SourceOscillator Source = "oscillator"
	SourcePiano      Source = "piano"
	SourceGuitar     Source = "guitar"
)

func ParseSource(name string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(name))) {
	case SourceOscillator, "osc", "":
		return SourceOscillator, nil
	case SourcePiano:
		return SourcePiano, nil
	case SourceGuitar:
		return SourceGuitar, nil
	}
	return "", errors.Errorf("pitch: unknown sound source %q (expected oscillator|piano|guitar)", name)
}

// OneShot reports whether the source plays recorded samples.
func (s Source) OneShot() bool { return s == SourcePiano || s == SourceGuitar }

// BankOffset is the first one-shot slot of the source: piano samples occupy
// slots 0..87, guitar samples 88..175.
func (s Source) BankOffset() int {
	if s == SourceGuitar {
		return KeyCount
	}
	return 0
}

// Resolution is what the synthesis backend needs to sound one note.
type Resolution struct {
	Index     int
	Frequency float64
	Slot      int
	Rate      float64
}

// Resolver turns keyboard indexes into frequencies or sample playback
// parameters for one sound source.
type Resolver struct {
	source   Source
	recorded []int
}

// NewResolver builds a resolver. recorded lists the keyboard indexes that
// have a sample in the bank; other keys are pitch-shifted from the nearest
// one. An empty list means every key was recorded.
func NewResolver(source Source, recorded []int) *Resolver {
	r := &Resolver{source: source}
	for _, idx := range recorded {
		if idx >= 0 && idx < KeyCount {
			r.recorded = append(r.recorded, idx)
		}
	}
	sort.Ints(r.recorded)
	return r
}

func (r *Resolver) Source() Source { return r.source }

func (r *Resolver) Resolve(index int) Resolution {
	res := Resolution{Index: index, Frequency: Frequency(index), Rate: 1}
	if !r.source.OneShot() {
		return res
	}
	recorded := r.nearestRecorded(index)
	res.Slot = r.source.BankOffset() + recorded
	res.Rate = Rate(index, recorded)
	return res
}

func (r *Resolver) nearestRecorded(index int) int {
	if len(r.recorded) == 0 {
		return index
	}
	i := sort.SearchInts(r.recorded, index)
	switch {
	case i == 0:
		return r.recorded[0]
	case i == len(r.recorded):
		return r.recorded[len(r.recorded)-1]
	}
	lo, hi := r.recorded[i-1], r.recorded[i]
	if index-lo <= hi-index {
		return lo
	}
	return hi
}
