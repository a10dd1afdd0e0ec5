package pianoroll

import (
	"bytes"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/cbegin/mmlseq-go/internal/mml"
)

func parse(t *testing.T, src string) *mml.Score {
	t.Helper()
	score, diags := mml.Parse(src, mml.DefaultConfig())
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
	return score
}

func TestDrawSizesToScore(t *testing.T) {
	dc, err := Draw(parse(t, "O4 C D E"), DefaultOptions())
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	// C4..E4 is 39..43, two keys of padding each side, 1.5s at 120px/s.
	if dc.Width() != 228 || dc.Height() != 90 {
		t.Fatalf("unexpected size %dx%d", dc.Width(), dc.Height())
	}
	r, g, b, _ := dc.Image().At(78, 65).RGBA()
	if r>>8 < 200 || g>>8 < 100 || b>>8 > 60 {
		t.Fatalf("expected the melody colour inside the C4 note, got %d %d %d", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = dc.Image().At(78, 15).RGBA()
	if r>>8 > 100 || g>>8 > 100 || b>>8 > 100 {
		t.Fatalf("expected background above the notes, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestDrawRejectsEmptyScore(t *testing.T) {
	if _, err := Draw(parse(t, "R4 R4"), DefaultOptions()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := Draw(nil, DefaultOptions()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty for nil score, got %v", err)
	}
}

func TestWritePNGAndSave(t *testing.T) {
	score := parse(t, "T240 L8 C E G > C | O2 C1")
	var buf bytes.Buffer
	if err := WritePNG(&buf, score, Options{PixelsPerSecond: 50}); err != nil {
		t.Fatalf("write: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() <= 48 || img.Bounds().Dy() <= 0 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if err := SavePNG(filepath.Join(t.TempDir(), "roll.png"), score, DefaultOptions()); err != nil {
		t.Fatalf("save: %v", err)
	}
}
