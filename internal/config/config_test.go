package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cbegin/mmlseq-go/internal/pitch"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := DefaultConfig()
	if cfg.SampleRate != def.SampleRate || cfg.Source != def.Source || cfg.Volume != 1 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"source":"guitar","effects":{"reverb":{"enabled":true,"wet":0.5}},"mml":{"tempo":90}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SoundSource() != pitch.SourceGuitar {
		t.Fatalf("expected guitar, got %q", cfg.Source)
	}
	if cfg.SampleRate != 48000 {
		t.Fatalf("omitted sample rate should keep default, got %d", cfg.SampleRate)
	}
	if !cfg.Effects.Reverb.Enabled || cfg.Effects.Reverb.Wet != 0.5 || cfg.Effects.Reverb.Decay == 0 {
		t.Fatalf("unexpected reverb %+v", cfg.Effects.Reverb)
	}
	if cfg.Effects.Delay.Enabled {
		t.Fatalf("delay should stay disabled")
	}
	if got := cfg.Effects.Chain(48000).Len(); got != 1 {
		t.Fatalf("expected one effect in chain, got %d", got)
	}
	cc := cfg.CompilerConfig()
	if cc.DefaultTempo != 90 || cc.DefaultOctave != 4 || cc.DefaultLength != 4 {
		t.Fatalf("unexpected compiler config %+v", cc)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad json":    `{"source":`,
		"bad source":  `{"source":"organ"}`,
		"bad wave":    `{"waveform":"noise"}`,
		"bad rate":    `{"sampleRate":-1}`,
		"bad vibrato": `{"vibrato":{"shape":"random"}}`,
		"bad octave":  `{"mml":{"octave":9}}`,
		"bad curve":   `{"effects":{"distortion":{"curve":"metal"}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Source = "piano"
	cfg.Samples.Piano = "/tmp/piano"
	cfg.Effects.Delay.Enabled = true
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if back.SoundSource() != pitch.SourcePiano || back.SampleDir(pitch.SourcePiano) != "/tmp/piano" || !back.Effects.Delay.Enabled {
		t.Fatalf("round trip lost fields: %+v", back)
	}
	if back.SampleDir(pitch.SourceGuitar) != "" {
		t.Fatalf("guitar dir should be empty")
	}
}

func TestExportPath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ExportPath("a.txt"); got != "a.txt" {
		t.Fatalf("unexpected %q", got)
	}
	cfg.ExportDir = "/srv/out"
	if got := cfg.ExportPath("a.txt"); got != filepath.Join("/srv/out", "a.txt") {
		t.Fatalf("unexpected %q", got)
	}
}

func TestCompilerConfigAcceptsOctaveZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"mml":{"octave":0}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.CompilerConfig().DefaultOctave; got != 0 {
		t.Fatalf("expected octave 0, got %d", got)
	}
	cfg.MML.Octave = -1
	if got := cfg.CompilerConfig().DefaultOctave; got != 4 {
		t.Fatalf("negative octave should keep the default, got %d", got)
	}
}

func TestEffectsChainIncludesDistortionAndChorus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"effects":{"distortion":{"enabled":true,"curve":"fuzz"},"chorus":{"enabled":true,"mix":0.3}}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d := cfg.Effects.Distortion; d.Curve != "fuzz" || d.Samples != 4096 || d.Level == 0 {
		t.Fatalf("unexpected distortion %+v", d)
	}
	if c := cfg.Effects.Chorus; c.Mix != 0.3 || c.TimeSec == 0 || c.Tone != 4000 {
		t.Fatalf("unexpected chorus %+v", c)
	}
	if got := cfg.Effects.Chain(48000).Len(); got != 2 {
		t.Fatalf("expected distortion and chorus in chain, got %d", got)
	}
	if got := DefaultConfig().Effects.Chain(48000).Len(); got != 0 {
		t.Fatalf("default chain should be empty, got %d", got)
	}
}
