package mml

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func parseDefault(t *testing.T, src string) (*Score, []Diagnostic) {
	t.Helper()
	return Parse(src, DefaultConfig())
}

func TestCompileQuarterNotesAtTempo120(t *testing.T) {
	score, diags := parseDefault(t, "T120 O4 C4 D4 E4 F4")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	ev := score.Track(Melody).Events
	if len(ev) != 4 {
		t.Fatalf("expected 4 events, got %d", len(ev))
	}
	starts := []float64{0, 0.5, 1.0, 1.5}
	notes := []int{39, 41, 43, 44}
	for i := range ev {
		if !near(ev[i].Duration, 0.5) {
			t.Fatalf("event %d: expected duration 0.5, got %v", i, ev[i].Duration)
		}
		if !near(ev[i].Start, starts[i]) {
			t.Fatalf("event %d: expected start %v, got %v", i, starts[i], ev[i].Start)
		}
		if ev[i].Note != notes[i] {
			t.Fatalf("event %d: expected note %d, got %d", i, notes[i], ev[i].Note)
		}
	}
}

func TestCompileTieMergesIntoOneEvent(t *testing.T) {
	score, diags := parseDefault(t, "C4&C4")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	ev := score.Track(Melody).Events
	if len(ev) != 1 {
		t.Fatalf("expected 1 event, got %d", len(ev))
	}
	if !near(ev[0].Duration, 1.0) {
		t.Fatalf("expected tied duration 1.0, got %v", ev[0].Duration)
	}
	if ev[0].Text != "C4&C4" {
		t.Fatalf("expected source span C4&C4, got %q", ev[0].Text)
	}
}

func TestCompileEventSpanCoversSpacedParts(t *testing.T) {
	src := "C4 & C4 D4 . E4"
	score, diags := parseDefault(t, src)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	ev := score.Track(Melody).Events
	if len(ev) != 3 {
		t.Fatalf("expected 3 events, got %d", len(ev))
	}
	want := []string{"C4 & C4", "D4 .", "E4"}
	for i, w := range want {
		if got := src[ev[i].Pos:ev[i].EndPos]; got != w {
			t.Fatalf("event %d: expected span %q, got %q", i, w, got)
		}
	}
	if ev[0].Text != "C4&C4" {
		t.Fatalf("expected joined text C4&C4, got %q", ev[0].Text)
	}
}

func TestCompileUnterminatedCommentIsReported(t *testing.T) {
	score, diags := parseDefault(t, "C4 /* D4 E4")
	if len(diags) != 1 || diags[0].Kind != ErrMML || diags[0].Pos != 3 || diags[0].Note != "/*" {
		t.Fatalf("expected one MML diagnostic at the opener, got %v", diags)
	}
	if got := len(score.Track(Melody).Events); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
}

func TestCompileRestOffsetsFollowingNote(t *testing.T) {
	score, diags := parseDefault(t, "C4 R4 D4")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	tr := score.Track(Melody)
	notes := tr.Notes()
	if len(notes) != 2 {
		t.Fatalf("expected 2 sounding events, got %d", len(notes))
	}
	if notes[0].Text != "C4" || notes[1].Text != "D4" {
		t.Fatalf("unexpected notes %q %q", notes[0].Text, notes[1].Text)
	}
	if !near(notes[1].Start, 1.0) {
		t.Fatalf("expected D4 at 1.0s, got %v", notes[1].Start)
	}
	if len(tr.Events) != 3 || !tr.Events[1].IsRest() {
		t.Fatalf("expected the rest to stay in the sequence")
	}
}

func TestCompileInvalidTempoKeepsPreviousValue(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want float64
	}{
		{name: "default tempo", src: "T0 C4", want: 0.5},
		{name: "previous tempo", src: "T60 T0 C4", want: 1.0},
		{name: "above maximum", src: "T240 T5000 C4", want: 0.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, diags := parseDefault(t, tc.src)
			if len(diags) != 1 || diags[0].Kind != ErrTempo {
				t.Fatalf("expected one TEMPO diagnostic, got %v", diags)
			}
			ev := score.Track(Melody).Events
			if len(ev) != 1 || !near(ev[0].Duration, tc.want) {
				t.Fatalf("expected one event of %v, got %+v", tc.want, ev)
			}
		})
	}
}

func TestCompileOctaveBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		octave int
	}{
		{name: "above maximum", src: "O8 > C", octave: 8},
		{name: "below minimum", src: "O0 < A", octave: 0},
		{name: "explicit set", src: "O4 O9 C", octave: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, diags := parseDefault(t, tc.src)
			count := 0
			for _, d := range diags {
				if d.Kind == ErrOctave {
					count++
				}
			}
			if count != 1 {
				t.Fatalf("expected exactly one OCTAVE diagnostic, got %v", diags)
			}
			ev := score.Track(Melody).Events
			if len(ev) != 1 || ev[0].Octave != tc.octave {
				t.Fatalf("expected octave %d to be kept, got %+v", tc.octave, ev)
			}
		})
	}
}

func TestCompileDots(t *testing.T) {
	score, diags := parseDefault(t, "C4. D4.. E8")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	ev := score.Track(Melody).Events
	if !near(ev[0].Duration, 0.75) || !near(ev[1].Duration, 0.875) {
		t.Fatalf("unexpected dotted durations: %v %v", ev[0].Duration, ev[1].Duration)
	}
	if !near(ev[2].Start, 1.625) {
		t.Fatalf("expected E8 at 1.625s, got %v", ev[2].Start)
	}
}

func TestCompileTracksAreIndependent(t *testing.T) {
	score, diags := parseDefault(t, "T60 O5 L8 C D E || C2")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(score.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(score.Tracks))
	}
	bass := score.Track(Bass)
	if bass.Source != "C2" {
		t.Fatalf("expected bass source C2, got %q", bass.Source)
	}
	ev := bass.Events
	if len(ev) != 1 || ev[0].Octave != 4 || ev[0].Tempo != 120 || !near(ev[0].Duration, 1.0) {
		t.Fatalf("bass should compile with default state, got %+v", ev)
	}
	if ev[0].Track != Bass {
		t.Fatalf("expected bass track id, got %v", ev[0].Track)
	}
	if !near(score.Track(Melody).End(), 1.5) || !near(score.Duration(), 1.5) {
		t.Fatalf("unexpected melody end %v", score.Track(Melody).End())
	}
}

func TestCompileStructuralErrors(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		events int
	}{
		{name: "leading tie", src: "& C", events: 1},
		{name: "tie into other pitch", src: "C&D", events: 2},
		{name: "tie into rest", src: "C&R", events: 2},
		{name: "dangling tie", src: "C&", events: 1},
		{name: "leading dot", src: ". C", events: 1},
		{name: "dot after directive", src: "C O5 .", events: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, diags := parseDefault(t, tc.src)
			if len(diags) != 1 || diags[0].Kind != ErrMML {
				t.Fatalf("expected one MML diagnostic, got %v", diags)
			}
			if got := len(score.Track(Melody).Events); got != tc.events {
				t.Fatalf("expected %d events, got %d", tc.events, got)
			}
		})
	}
}

func TestCompileNoteOutsideKeyboardBecomesRest(t *testing.T) {
	score, diags := parseDefault(t, "O0 C D E F G A B")
	if len(diags) != 5 {
		t.Fatalf("expected 5 NOTE diagnostics for notes below A0, got %v", diags)
	}
	for _, d := range diags {
		if d.Kind != ErrNote {
			t.Fatalf("unexpected diagnostic %v", d)
		}
	}
	ev := score.Track(Melody).Events
	if len(ev) != 7 || !ev[0].IsRest() || ev[5].Note != 0 || ev[6].Note != 2 {
		t.Fatalf("unexpected events %+v", ev)
	}
}

func TestCompileInvalidLengths(t *testing.T) {
	score, diags := parseDefault(t, "L0 C C0 L8 D")
	if len(diags) != 2 {
		t.Fatalf("expected 2 LENGTH diagnostics, got %v", diags)
	}
	ev := score.Track(Melody).Events
	if !near(ev[0].Duration, 0.5) || !near(ev[1].Duration, 0.5) || !near(ev[2].Duration, 0.25) {
		t.Fatalf("unexpected durations %v %v %v", ev[0].Duration, ev[1].Duration, ev[2].Duration)
	}
}

func TestCompileEmptyAndRestOnly(t *testing.T) {
	score, diags := parseDefault(t, "")
	if len(diags) != 0 || score.HasEvents() {
		t.Fatalf("empty input should compile to nothing, got %v %+v", diags, score)
	}
	score, diags = parseDefault(t, "R4 R8 R")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	tr := score.Track(Melody)
	if len(tr.Events) != 3 || len(tr.Notes()) != 0 {
		t.Fatalf("expected a rest-only sequence, got %+v", tr.Events)
	}
}

func TestCompileStartTimesNeverDecrease(t *testing.T) {
	sources := []string{
		"T120 O4 L8 C D E F G A B > C",
		"T90 C4. D8 E4&E8 R16 F+32 G-2.. T200 A B",
		"O3 L16 C > C < C > > C < < C | L2 C R C R",
		"T c x & . L0 D O12 E F",
	}
	for _, src := range sources {
		score, _ := parseDefault(t, src)
		for _, tr := range score.Tracks {
			prevEnd := 0.0
			for i, ev := range tr.Events {
				if ev.Start+eps < prevEnd {
					t.Fatalf("%q: event %d starts at %v before previous end %v", src, i, ev.Start, prevEnd)
				}
				if ev.Duration <= 0 {
					t.Fatalf("%q: event %d has non-positive duration", src, i)
				}
				if ev.Seq != i {
					t.Fatalf("%q: event %d has seq %d", src, i, ev.Seq)
				}
				prevEnd = ev.End()
			}
		}
	}
}

func TestCompileDiagnosticsCarryTrack(t *testing.T) {
	_, diags := parseDefault(t, "C | T0 C")
	if len(diags) != 1 || diags[0].Track != Bass || diags[0].Note != "T0" {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
	if diags[0].Error() == "" {
		t.Fatalf("expected error text")
	}
}

func BenchmarkParse(b *testing.B) {
	src := "T150 O5 L16 C D E F G A B > C < C D E F G A B | O3 L8 C C G G A A G4"
	for i := 0; i < b.N; i++ {
		Parse(src, DefaultConfig())
	}
}
