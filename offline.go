package mmlseq

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/cbegin/mmlseq-go/internal/config"
	"github.com/cbegin/mmlseq-go/internal/midiexport"
	"github.com/cbegin/mmlseq-go/internal/scheduler"
	"github.com/cbegin/mmlseq-go/internal/synth"
)

const (
	renderBlock = 256
	// renderTail leaves room for release envelopes after the last note.
	renderTail = 0.5
)

// RenderSamples performs score offline with the default voicing of source
// and returns interleaved stereo frames. Note timing is quantized to
// blocks of 256 frames, as in real-time playback.
func RenderSamples(score *Score, source SoundSource, sampleRate int) []float32 {
	cfg := config.DefaultConfig()
	cfg.SampleRate = sampleRate
	cfg.Source = string(source)
	return RenderWithConfig(score, cfg)
}

// RenderWithConfig renders score with the sound settings of cfg, including
// its effects, vibrato and sample directories.
func RenderWithConfig(score *Score, cfg *config.Config) []float32 {
	pc := defaultPlayerConfig()
	WithConfig(cfg)(&pc)
	return render(score, cfg.SampleRate, pc)
}

func render(score *Score, sampleRate int, pc playerConfig) []float32 {
	if sampleRate <= 0 {
		return nil
	}
	logger := pc.logger
	if logger == nil {
		logger = slog.Default()
	}
	banks := newBankCache(sampleRate, pc.sampleDirs, logger)
	engine, resolver := newVoice(pc.source, sampleRate, pc.voicing, banks)
	mixer := synth.NewMixer(engine, pc.effects.Chain(sampleRate))
	mixer.SetVolume(pc.volume)
	voices := newVoiceTable(mixer)

	clock := scheduler.NewManualClock()
	sched := scheduler.New(score, resolver, clock, scheduler.Handlers{
		OnEventStart: voices.noteOn,
		OnEventStop:  voices.noteOff,
	})
	if err := sched.StartAll(0); err != nil {
		logger.Warn("offline render could not start", "err", err)
		return nil
	}

	frames := int((score.Duration() + renderTail) * float64(sampleRate))
	out := make([]float32, frames*2)
	for off := 0; off < frames; off += renderBlock {
		n := min(renderBlock, frames-off)
		clock.AdvanceTo(frameTime(off, sampleRate))
		mixer.Process(out[off*2 : (off+n)*2])
	}
	sched.StopAll()
	return out
}

func frameTime(frame, sampleRate int) time.Duration {
	return time.Duration(frame) * time.Second / time.Duration(sampleRate)
}

// WriteWAV encodes interleaved stereo samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "mmlseq: encode wav")
	}
	return errors.Wrap(enc.Close(), "mmlseq: finish wav")
}

func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "mmlseq: create wav")
	}
	if err := WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "mmlseq: close wav")
}

// WriteMIDI exports score as a Standard MIDI File, one MIDI track and
// channel per MML track.
func WriteMIDI(w io.Writer, score *Score) error {
	return midiexport.Write(w, score)
}

func WriteMIDIFile(path string, score *Score) error {
	return midiexport.WriteFile(path, score)
}
