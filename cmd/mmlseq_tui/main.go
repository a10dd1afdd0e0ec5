package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cbegin/mmlseq-go"
	"github.com/cbegin/mmlseq-go/internal/config"
)

const defaultMML = `T140 O5 L8 E D C D E E E4 D D D4 E G G4
| O3 L4 C G C G C G C G`

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/mmlseq/config.json)")
		mmlPath    = flag.String("file", "", "path to an MML file")
		mmlInline  = flag.String("mml", "", "inline MML string")
		debug      = flag.Bool("debug", false, "write a debug log next to the config file")
	)
	flag.Parse()

	logger, closeLog := initLogger(*debug)
	defer closeLog()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	text := defaultMML
	switch {
	case *mmlInline != "":
		text = *mmlInline
	case *mmlPath != "":
		data, err := os.ReadFile(*mmlPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		text = string(data)
	}

	pl, err := mmlseq.NewPlayer(cfg.SampleRate, mmlseq.WithConfig(cfg), mmlseq.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer pl.Close()
	wave, _ := mmlseq.ParseWaveform(cfg.Waveform)

	m := newModel(pl, text, cfg.ExportPath(""), wave, nil)
	diags, err := pl.Load(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	m.setDiagnostics(diags)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// initLogger writes to ~/.config/mmlseq/debug.log when enabled; the
// terminal belongs to the UI.
func initLogger(enabled bool) (*slog.Logger, func()) {
	if !enabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	os.MkdirAll(dir, 0755)
	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }
}
