package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/pkg/errors"
)

// SampleSource fills interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 byte
// stream ebiten expects. It never ends; the output is closed explicitly.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

// Output streams a SampleSource to the audio device.
type Output struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	contextOnce       sync.Once
	audioContext      *ebitaudio.Context
	contextSampleRate int
)

// ebiten allows one audio context per process.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if contextSampleRate != sampleRate {
		return nil, errors.Errorf("audio: context already initialized at %d Hz (requested %d Hz)", contextSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Open prepares an output for source. Call Play to start the device.
func Open(sampleRate int, source SampleSource, bufferSize time.Duration) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, errors.Wrap(err, "audio: new player")
	}
	if bufferSize > 0 {
		pl.SetBufferSize(bufferSize)
	}
	return &Output{player: pl, reader: reader}, nil
}

func (o *Output) Play()  { o.player.Play() }
func (o *Output) Pause() { o.player.Pause() }

func (o *Output) IsPlaying() bool { return o.player.IsPlaying() }

// Position is the device's playback position, what the listener hears now.
func (o *Output) Position() time.Duration {
	return o.player.Position()
}

func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return errors.Wrap(err, "audio: close player")
	}
	return o.reader.Close()
}
