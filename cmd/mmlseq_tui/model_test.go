package main

import (
	"regexp"
	"testing"

	"github.com/cbegin/mmlseq-go"
)

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func soundingNotes(t *testing.T, text string, picks map[mmlseq.TrackID]int) map[mmlseq.TrackID]mmlseq.Event {
	t.Helper()
	score, diags := mmlseq.Compile(text)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
	out := map[mmlseq.TrackID]mmlseq.Event{}
	for id, seq := range picks {
		out[id] = score.Track(id).Events[seq]
	}
	return out
}

func TestNoteSpansPointAtSourceText(t *testing.T) {
	text := "O4 C8 D8. E4\n| O2 A2 B2"
	sounding := soundingNotes(t, text, map[mmlseq.TrackID]int{mmlseq.Melody: 1, mmlseq.Bass: 1})
	spans := noteSpans(text, sounding)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %+v", spans)
	}
	if got := text[spans[0].start:spans[0].end]; spans[0].track != mmlseq.Melody || got[0] != 'D' {
		t.Fatalf("melody span = %q", got)
	}
	if got := text[spans[1].start:spans[1].end]; spans[1].track != mmlseq.Bass || got[0] != 'B' {
		t.Fatalf("bass span = %q", got)
	}
}

func TestNoteSpansSkipsInvalidPositions(t *testing.T) {
	sounding := map[mmlseq.TrackID]mmlseq.Event{
		mmlseq.Melody: {Pos: 10, EndPos: 12, Text: "C4"},
		mmlseq.Bass:   {Pos: -1, EndPos: 0, Text: "C"},
	}
	if spans := noteSpans("C4", sounding); len(spans) != 0 {
		t.Fatalf("expected no spans, got %+v", spans)
	}
}

func TestHighlightKeepsText(t *testing.T) {
	text := "T120 C D E | O2 C"
	sounding := soundingNotes(t, text, map[mmlseq.TrackID]int{mmlseq.Melody: 2, mmlseq.Bass: 0})
	if got := ansi.ReplaceAllString(highlight(text, sounding), ""); got != text {
		t.Fatalf("highlight changed the text: %q", got)
	}
	if got := highlight(text, nil); got != text {
		t.Fatalf("no sounding notes should leave text untouched, got %q", got)
	}
}

func TestNoteSpansCoverSpacedTies(t *testing.T) {
	text := "C4 & C4 D8 . E4"
	sounding := soundingNotes(t, text, map[mmlseq.TrackID]int{mmlseq.Melody: 0})
	spans := noteSpans(text, sounding)
	if len(spans) != 1 || text[spans[0].start:spans[0].end] != "C4 & C4" {
		t.Fatalf("tied note span = %+v", spans)
	}
	sounding = soundingNotes(t, text, map[mmlseq.TrackID]int{mmlseq.Melody: 1})
	spans = noteSpans(text, sounding)
	if len(spans) != 1 || text[spans[0].start:spans[0].end] != "D8 ." {
		t.Fatalf("dotted note span = %+v", spans)
	}
}
