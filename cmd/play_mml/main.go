package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cbegin/mmlseq-go"
	"github.com/cbegin/mmlseq-go/internal/config"
	"github.com/cbegin/mmlseq-go/internal/pianoroll"
)

const defaultMML = "T120 O4 L8 C D E F G A B > C | O2 L2 C G C"

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/mmlseq/config.json)")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (overrides config)")
		sourceName = flag.String("source", "", "sound source: oscillator|piano|guitar")
		waveName   = flag.String("wave", "", "oscillator waveform: sine|square|sawtooth|triangle")
		loop       = flag.Bool("loop", false, "loop playback; use with -loops to count then stop")
		loops      = flag.Int("loops", 3, "when -loop, stop after N loops (0 = loop forever)")
		mmlPath    = flag.String("file", "", "path to an MML file")
		mmlInline  = flag.String("mml", "", "inline MML string")
		volume     = flag.Float64("volume", -1, "master volume scalar (overrides config)")
		wavOut     = flag.String("wav", "", "render to a WAV file instead of playing")
		midiOut    = flag.String("midi", "", "export a Standard MIDI File instead of playing")
		pngOut     = flag.String("png", "", "draw a piano roll PNG instead of playing")
		save       = flag.Bool("save", false, "save the MML text as mml-<timestamp>.txt in the export directory")
		verbose    = flag.Bool("v", false, "print every note as it plays")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger := initLogger(*debug)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}
	if *sourceName != "" {
		cfg.Source = *sourceName
	}
	if *waveName != "" {
		cfg.Waveform = *waveName
	}
	if *volume >= 0 {
		cfg.Volume = *volume
	}
	if *loop {
		cfg.Loop = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	mmlText, err := resolveMMLInput(*mmlPath, *mmlInline)
	if err != nil {
		log.Fatal(err)
	}

	score, diags := mmlseq.Compile(mmlText, mmlseq.WithDefaults(cfg.MML.Tempo, cfg.MML.Octave, cfg.MML.Length))
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s error at %d in %s: %q\n", d.Kind, d.Pos, d.Track, d.Note)
	}

	if *save {
		path, err := mmlseq.ExportText(cfg.ExportPath(""), mmlText, time.Now())
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("saved", path)
	}
	if *wavOut != "" || *midiOut != "" || *pngOut != "" {
		if err := exportScore(score, cfg, *wavOut, *midiOut, *pngOut); err != nil {
			log.Fatal(err)
		}
		return
	}

	opts := []mmlseq.PlayerOption{mmlseq.WithConfig(cfg), mmlseq.WithLogger(logger)}
	pl, err := mmlseq.NewPlayer(cfg.SampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer pl.Close()
	ch := pl.Watch()
	if _, err := pl.Load(mmlText); err != nil {
		log.Fatal(err)
	}
	if err := pl.Start(); err != nil {
		log.Fatal(err)
	}
	loopCount := 0
	for event := range ch {
		switch event.Kind {
		case mmlseq.EventNoteStart:
			if *verbose {
				ev := event.Event
				fmt.Printf("%7.3fs %-6s %-4s %s\n", ev.Start, ev.Track, mmlseq.NoteName(ev.Note), ev.Text)
			}
		case mmlseq.EventPlaybackEnded:
			fmt.Println("playback completed")
			goto done
		case mmlseq.EventLoopCompleted:
			loopCount++
			fmt.Printf("loop %d completed\n", loopCount)
			if cfg.Loop && *loops > 0 && loopCount >= *loops {
				pl.Stop()
			}
		}
	}
done:
	pl.Wait()
}

func initLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func exportScore(score *mmlseq.Score, cfg *config.Config, wavPath, midiPath, pngPath string) error {
	if wavPath != "" {
		samples := mmlseq.RenderWithConfig(score, cfg)
		if err := mmlseq.WriteWAVFile(wavPath, samples, cfg.SampleRate); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%.2fs)\n", wavPath, float64(len(samples)/2)/float64(cfg.SampleRate))
	}
	if midiPath != "" {
		if err := mmlseq.WriteMIDIFile(midiPath, score); err != nil {
			return err
		}
		fmt.Println("wrote", midiPath)
	}
	if pngPath != "" {
		if err := pianoroll.SavePNG(pngPath, score, pianoroll.DefaultOptions()); err != nil {
			return err
		}
		fmt.Println("wrote", pngPath)
	}
	return nil
}

func resolveMMLInput(path string, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return defaultMML, nil
}
