// Package pianoroll draws a compiled score as a piano-roll image: keys on
// the vertical axis, time on the horizontal one, one colour per track.
package pianoroll

import (
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/cbegin/mmlseq-go/internal/mml"
	"github.com/cbegin/mmlseq-go/internal/pitch"
)

var ErrEmpty = errors.New("pianoroll: score has no notes")

const maxWidth = 16384

type Color struct {
	R, G, B float64
}

var trackColors = []Color{
	{1, 0.5, 0},    // melody
	{0.5, 0.85, 1}, // bass
	{0.2, 1, 0.2},
	{1, 0.6, 0.7},
}

func trackColor(id mml.TrackID) Color {
	return trackColors[int(id)%len(trackColors)]
}

func darker(c Color) Color {
	return Color{c.R * 0.8, c.G * 0.8, c.B * 0.8}
}

type Options struct {
	PixelsPerSecond float64
	KeyHeight       float64
	KeyboardWidth   float64
	// Padding is the number of extra keys shown above and below the
	// range the score uses.
	Padding int
}

func DefaultOptions() Options {
	return Options{PixelsPerSecond: 120, KeyHeight: 10, KeyboardWidth: 48, Padding: 2}
}

type layout struct {
	opts   Options
	lo, hi int
	width  float64
	height float64
}

func (l layout) y(index int) float64 {
	return float64(l.hi-index) * l.opts.KeyHeight
}

func (l layout) x(sec float64) float64 {
	return l.opts.KeyboardWidth + sec*l.opts.PixelsPerSecond
}

func isBlack(index int) bool {
	switch index % 12 {
	case 1, 4, 6, 9, 11:
		return true
	}
	return false
}

// Draw renders score into a new drawing context.
func Draw(score *mml.Score, opts Options) (*gg.Context, error) {
	def := DefaultOptions()
	if opts.PixelsPerSecond <= 0 {
		opts.PixelsPerSecond = def.PixelsPerSecond
	}
	if opts.KeyHeight <= 0 {
		opts.KeyHeight = def.KeyHeight
	}
	if opts.KeyboardWidth <= 0 {
		opts.KeyboardWidth = def.KeyboardWidth
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	}
	lo, hi, ok := noteRange(score)
	if !ok {
		return nil, ErrEmpty
	}
	l := layout{
		opts: opts,
		lo:   max(lo-opts.Padding, mml.MinNoteIndex),
		hi:   min(hi+opts.Padding, mml.MaxNoteIndex),
	}
	l.width = math.Min(math.Ceil(l.x(score.Duration())), maxWidth)
	l.height = float64(l.hi-l.lo+1) * opts.KeyHeight

	dc := gg.NewContext(int(l.width), int(l.height))
	drawBackground(dc, l)
	for i := range score.Tracks {
		drawTrack(dc, l, &score.Tracks[i])
	}
	drawKeyboard(dc, l)
	if err := drawLabels(dc, l); err != nil {
		return nil, err
	}
	return dc, nil
}

func noteRange(score *mml.Score) (int, int, bool) {
	lo, hi := mml.MaxNoteIndex, mml.MinNoteIndex
	found := false
	if score == nil {
		return 0, 0, false
	}
	for i := range score.Tracks {
		for _, ev := range score.Tracks[i].Notes() {
			lo = min(lo, ev.Note)
			hi = max(hi, ev.Note)
			found = true
		}
	}
	return lo, hi, found
}

func drawBackground(dc *gg.Context, l layout) {
	dc.SetRGB(0.17, 0.17, 0.17)
	dc.DrawRectangle(0, 0, l.width, l.height)
	dc.Fill()
	for idx := l.lo; idx <= l.hi; idx++ {
		if isBlack(idx) {
			dc.SetRGBA(0, 0, 0, 0.25)
			dc.DrawRectangle(l.opts.KeyboardWidth, l.y(idx), l.width, l.opts.KeyHeight)
			dc.Fill()
		}
	}
	// one line per second
	dc.SetLineWidth(0.5)
	for sec := 0.0; l.x(sec) < l.width; sec++ {
		dc.SetRGBA(1, 1, 1, 0.15)
		dc.DrawLine(l.x(sec), 0, l.x(sec), l.height)
		dc.Stroke()
	}
}

func drawTrack(dc *gg.Context, l layout, tr *mml.Track) {
	c := trackColor(tr.ID)
	for _, ev := range tr.Notes() {
		x := l.x(ev.Start)
		if x >= l.width {
			break
		}
		w := math.Max(ev.Duration*l.opts.PixelsPerSecond, 1)
		dc.DrawRoundedRectangle(x, l.y(ev.Note)+1, w, l.opts.KeyHeight-2, 2)
		if isBlack(ev.Note) {
			dc.SetRGB(darker(c).R, darker(c).G, darker(c).B)
		} else {
			dc.SetRGB(c.R, c.G, c.B)
		}
		dc.FillPreserve()
		dc.SetRGBA(0, 0, 0, 1)
		dc.SetLineWidth(1)
		dc.Stroke()
	}
}

func drawKeyboard(dc *gg.Context, l layout) {
	for idx := l.lo; idx <= l.hi; idx++ {
		dc.DrawRectangle(0, l.y(idx), l.opts.KeyboardWidth, l.opts.KeyHeight)
		if isBlack(idx) {
			dc.SetRGB(0.13, 0.13, 0.13)
		} else {
			dc.SetRGB(1, 1, 1)
		}
		dc.FillPreserve()
		dc.SetRGBA(0, 0, 0, 1)
		dc.SetLineWidth(1)
		dc.Stroke()
	}
}

// drawLabels names every C on the keyboard.
func drawLabels(dc *gg.Context, l layout) error {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return errors.Wrap(err, "pianoroll: load font")
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: l.opts.KeyHeight * 0.8}))
	dc.SetRGBA(0, 0, 0, 0.7)
	for idx := l.lo; idx <= l.hi; idx++ {
		if idx%12 != 3 {
			continue
		}
		dc.DrawStringAnchored(pitch.NoteName(idx), l.opts.KeyboardWidth-3, l.y(idx)+l.opts.KeyHeight/2, 1, 0.5)
	}
	return nil
}

// WritePNG encodes the piano roll of score as PNG.
func WritePNG(w io.Writer, score *mml.Score, opts Options) error {
	dc, err := Draw(score, opts)
	if err != nil {
		return err
	}
	return errors.Wrap(dc.EncodePNG(w), "pianoroll: encode png")
}

func SavePNG(path string, score *mml.Score, opts Options) error {
	dc, err := Draw(score, opts)
	if err != nil {
		return err
	}
	return errors.Wrapf(dc.SavePNG(path), "pianoroll: save %s", path)
}
