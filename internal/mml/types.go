package mml

import (
	"fmt"
	"time"
)

type TokenKind int

const (
	TokenNote TokenKind = iota + 1
	TokenRest
	TokenOctaveUp
	TokenOctaveDown
	TokenOctaveSet
	TokenLengthSet
	TokenTempoSet
	TokenTie
	TokenDot
	TokenTrackBreak
	TokenError
)

var tokenKindNames = map[TokenKind]string{
	TokenNote:       "NOTE",
	TokenRest:       "REST",
	TokenOctaveUp:   "OCTAVE_UP",
	TokenOctaveDown: "OCTAVE_DOWN",
	TokenOctaveSet:  "OCTAVE_SET",
	TokenLengthSet:  "LENGTH_SET",
	TokenTempoSet:   "TEMPO_SET",
	TokenTie:        "TIE",
	TokenDot:        "DOT",
	TokenTrackBreak: "TRACK_BREAK",
	TokenError:      "ERROR",
}

func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// ErrorKind classifies a non-fatal tokenizer or compiler problem.
type ErrorKind string

const (
	ErrTempo  ErrorKind = "TEMPO"
	ErrOctave ErrorKind = "OCTAVE"
	ErrNote   ErrorKind = "NOTE"
	ErrLength ErrorKind = "LENGTH"
	ErrMML    ErrorKind = "MML"
)

// Token is one lexed directive. Value is 0 when no number was written.
type Token struct {
	Kind     TokenKind
	Text     string
	Pos      int
	Value    int
	Semitone int
	Err      ErrorKind
}

// TrackID names a performance line. Melody and Bass are the first two
// sections of a '|' separated source.
type TrackID int

const (
	Melody TrackID = iota
	Bass
)

func (id TrackID) String() string {
	switch id {
	case Melody:
		return "melody"
	case Bass:
		return "bass"
	default:
		return fmt.Sprintf("track%d", int(id)+1)
	}
}

// Rest is the note index carried by rest events.
const Rest = -1

// Keyboard range of note indexes: A0 is 0, A4 is 48, C8 is 87.
const (
	MinNoteIndex = 0
	MaxNoteIndex = 87
	A4Index      = 48
)

// Event is one note or rest. Text joins the lexemes that make it up
// ("C4&C4", "D8."); Pos and EndPos bound its span in the source, including
// any whitespace between tied or dotted parts.
type Event struct {
	Track    TrackID
	Seq      int
	Note     int
	Start    float64 // seconds from track start
	Duration float64 // seconds
	Text     string
	Pos      int
	EndPos   int
	Octave   int
	Tempo    int
}

func (e Event) IsRest() bool { return e.Note == Rest }

func (e Event) End() float64 { return e.Start + e.Duration }

func (e Event) StartTime() time.Duration { return seconds(e.Start) }

func (e Event) EndTime() time.Duration { return seconds(e.End()) }

type Track struct {
	ID     TrackID
	Source string
	Events []Event
}

// Notes returns the sounding (non-rest) events of the track.
func (t *Track) Notes() []Event {
	out := make([]Event, 0, len(t.Events))
	for _, ev := range t.Events {
		if !ev.IsRest() {
			out = append(out, ev)
		}
	}
	return out
}

// End is the time the last event of the track finishes.
func (t *Track) End() float64 {
	if len(t.Events) == 0 {
		return 0
	}
	return t.Events[len(t.Events)-1].End()
}

type Score struct {
	Tracks []Track
}

// Track returns the track with the given id, or nil.
func (s *Score) Track(id TrackID) *Track {
	if s == nil {
		return nil
	}
	for i := range s.Tracks {
		if s.Tracks[i].ID == id {
			return &s.Tracks[i]
		}
	}
	return nil
}

// Duration is the length of the longest track.
func (s *Score) Duration() float64 {
	if s == nil {
		return 0
	}
	var d float64
	for i := range s.Tracks {
		if end := s.Tracks[i].End(); end > d {
			d = end
		}
	}
	return d
}

// HasEvents reports whether any track holds at least one event.
func (s *Score) HasEvents() bool {
	if s == nil {
		return false
	}
	for i := range s.Tracks {
		if len(s.Tracks[i].Events) > 0 {
			return true
		}
	}
	return false
}

// Diagnostic is a non-fatal problem found while tokenizing or compiling.
// Note holds the offending source text.
type Diagnostic struct {
	Kind  ErrorKind
	Note  string
	Pos   int
	Track TrackID
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("mml: %s error in %s at %d: %q", d.Kind, d.Track, d.Pos, d.Note)
}

type Config struct {
	DefaultOctave int
	DefaultLength int
	DefaultTempo  int
	MinOctave     int
	MaxOctave     int
	MaxLength     int
	MaxTempo      int
}

func DefaultConfig() Config {
	return Config{
		DefaultOctave: 4,
		DefaultLength: 4,
		DefaultTempo:  120,
		MinOctave:     0,
		MaxOctave:     8,
		MaxLength:     256,
		MaxTempo:      960,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
