// Package midiexport writes compiled scores as Standard MIDI Files.
package midiexport

import (
	"io"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/mmlseq-go/internal/mml"
)

const (
	TicksPerQuarter = 480
	// ReferenceBPM is the file tempo; event times are converted from seconds
	// at this tempo so every MML tempo change is preserved exactly.
	ReferenceBPM = 120
	// KeyOffset maps keyboard index 0 (A0) to MIDI key 21.
	KeyOffset       = 21
	DefaultVelocity = 100
)

// Ticks converts seconds to ticks at the reference tempo.
func Ticks(seconds float64) uint32 {
	if seconds <= 0 {
		return 0
	}
	return uint32(math.Round(seconds * TicksPerQuarter * ReferenceBPM / 60))
}

// Key returns the MIDI key number of a keyboard index.
func Key(index int) uint8 {
	return uint8(index + KeyOffset)
}

type timed struct {
	tick uint32
	// off sorts note-offs ahead of note-ons on the same tick.
	off bool
	msg midi.Message
}

// Build converts score into a format 1 file with one track per MML track;
// the MIDI channel is the track number.
func Build(score *mml.Score) (*smf.SMF, error) {
	if score == nil || !score.HasEvents() {
		return nil, errors.New("midiexport: score has no events")
	}
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	for i, tr := range score.Tracks {
		if i > 15 {
			return nil, errors.Errorf("midiexport: too many tracks (%d)", len(score.Tracks))
		}
		ch := uint8(i)
		var evs []timed
		for _, ev := range tr.Events {
			if ev.IsRest() {
				continue
			}
			key := Key(ev.Note)
			evs = append(evs,
				timed{tick: Ticks(ev.Start), msg: midi.NoteOn(ch, key, DefaultVelocity)},
				timed{tick: Ticks(ev.End()), off: true, msg: midi.NoteOff(ch, key)},
			)
		}
		sort.SliceStable(evs, func(a, b int) bool {
			if evs[a].tick != evs[b].tick {
				return evs[a].tick < evs[b].tick
			}
			return evs[a].off && !evs[b].off
		})

		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(tr.ID.String()))
		if i == 0 {
			track.Add(0, smf.MetaTempo(ReferenceBPM))
		}
		var last uint32
		for _, e := range evs {
			track.Add(e.tick-last, e.msg)
			last = e.tick
		}
		track.Close(0)
		if err := s.Add(track); err != nil {
			return nil, errors.Wrapf(err, "midiexport: add %s track", tr.ID)
		}
	}
	return s, nil
}

// Write encodes score as a Standard MIDI File.
func Write(w io.Writer, score *mml.Score) error {
	s, err := Build(score)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return errors.Wrap(err, "midiexport: write")
	}
	return nil
}

func WriteFile(path string, score *mml.Score) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "midiexport: create")
	}
	if err := Write(f, score); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "midiexport: close")
}
