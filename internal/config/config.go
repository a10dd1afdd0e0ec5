package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/cbegin/mmlseq-go/internal/effects"
	"github.com/cbegin/mmlseq-go/internal/lfo"
	"github.com/cbegin/mmlseq-go/internal/mml"
	"github.com/cbegin/mmlseq-go/internal/pitch"
	"github.com/cbegin/mmlseq-go/internal/synth"
)

// SamplesConfig points at directories of "<NoteName>.wav" recordings. An
// empty directory selects the built-in synthesized bank.
type SamplesConfig struct {
	Piano  string `json:"piano,omitempty"`
	Guitar string `json:"guitar,omitempty"`
}

type DelayConfig struct {
	Enabled  bool    `json:"enabled"`
	TimeSec  float64 `json:"time"`
	Dry      float32 `json:"dry"`
	Wet      float32 `json:"wet"`
	Tone     float64 `json:"tone"`
	Feedback float32 `json:"feedback"`
}

type ReverbConfig struct {
	Enabled bool    `json:"enabled"`
	Dry     float32 `json:"dry"`
	Wet     float32 `json:"wet"`
	Tone    float64 `json:"tone"`
	Room    float32 `json:"room"`
	Decay   float32 `json:"decay"`
}

type DistortionConfig struct {
	Enabled bool    `json:"enabled"`
	Curve   string  `json:"curve"`
	Samples int     `json:"samples"`
	Drive   float32 `json:"drive"`
	Color   float64 `json:"color"`
	Tone    float64 `json:"tone"`
	Level   float32 `json:"level"`
}

type ChorusConfig struct {
	Enabled  bool    `json:"enabled"`
	TimeSec  float64 `json:"time"`
	Depth    float32 `json:"depth"`
	Rate     float64 `json:"rate"`
	Mix      float32 `json:"mix"`
	Tone     float64 `json:"tone"`
	Feedback float32 `json:"feedback"`
}

type EffectsConfig struct {
	Distortion DistortionConfig `json:"distortion"`
	Chorus     ChorusConfig     `json:"chorus"`
	Delay      DelayConfig      `json:"delay"`
	Reverb     ReverbConfig     `json:"reverb"`
}

type VibratoConfig struct {
	Depth float64 `json:"depth,omitempty"`
	Rate  float64 `json:"rate,omitempty"`
	Shape string  `json:"shape,omitempty"`
}

// MMLConfig holds the compiler defaults. Octave 0 is valid, so it is always
// written; a negative octave selects the built-in default.
type MMLConfig struct {
	Tempo  int `json:"tempo,omitempty"`
	Octave int `json:"octave"`
	Length int `json:"length,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	SampleRate int           `json:"sampleRate"`
	Source     string        `json:"source"`
	Waveform   string        `json:"waveform"`
	Volume     float64       `json:"volume"`
	Loop       bool          `json:"loop,omitempty"`
	Vibrato    VibratoConfig `json:"vibrato,omitempty"`
	Samples    SamplesConfig `json:"samples,omitempty"`
	Effects    EffectsConfig `json:"effects"`
	MML        MMLConfig     `json:"mml,omitempty"`
	ExportDir  string        `json:"exportDir,omitempty"`
}

func DefaultConfig() *Config {
	d := mml.DefaultConfig()
	fx := EffectsConfig{
		Distortion: synthDistortionDefaults(),
		Chorus:     synthChorusDefaults(),
		Delay:      synthDelayDefaults(),
		Reverb:     synthReverbDefaults(),
	}
	return &Config{
		SampleRate: 48000,
		Source:     string(pitch.SourceOscillator),
		Waveform:   synth.DefaultOscillatorParams().Wave.String(),
		Volume:     1,
		Effects:    fx,
		MML:        MMLConfig{Tempo: d.DefaultTempo, Octave: d.DefaultOctave, Length: d.DefaultLength},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "config: home directory")
	}
	return filepath.Join(home, ".config", "mmlseq"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the default config file, or returns defaults if there is none.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, so omitted fields keep their
// default values. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: expand path")
	}
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "config: read")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Save writes the config to the default location.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

func (c *Config) SaveFile(path string) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return errors.Wrap(err, "config: expand path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "config: create directory")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "config: encode")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "config: write")
}

// Validate checks the enumerated and numeric fields.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.Errorf("sampleRate must be positive, got %d", c.SampleRate)
	}
	if c.Volume < 0 {
		return errors.Errorf("volume must not be negative, got %v", c.Volume)
	}
	if _, err := pitch.ParseSource(c.Source); err != nil {
		return err
	}
	if _, err := synth.ParseWaveform(c.Waveform); err != nil {
		return err
	}
	if d := c.Effects.Distortion; d.Curve != "" {
		if _, err := effects.ParseCurve(d.Curve); err != nil {
			return err
		}
	}
	if def := mml.DefaultConfig(); c.MML.Octave > def.MaxOctave {
		return errors.Errorf("mml octave must be at most %d, got %d", def.MaxOctave, c.MML.Octave)
	}
	if c.Vibrato.Shape != "" {
		if _, err := lfo.ParseShape(c.Vibrato.Shape); err != nil {
			return err
		}
	}
	return nil
}

// SoundSource returns the parsed source selection.
func (c *Config) SoundSource() pitch.Source {
	s, err := pitch.ParseSource(c.Source)
	if err != nil {
		return pitch.SourceOscillator
	}
	return s
}

// SampleDir returns the expanded recording directory for source, or "".
func (c *Config) SampleDir(source pitch.Source) string {
	var dir string
	switch source {
	case pitch.SourcePiano:
		dir = c.Samples.Piano
	case pitch.SourceGuitar:
		dir = c.Samples.Guitar
	}
	if dir == "" {
		return ""
	}
	if expanded, err := homedir.Expand(dir); err == nil {
		return expanded
	}
	return dir
}

// ExportPath joins name onto the export directory, expanding "~".
func (c *Config) ExportPath(name string) string {
	if c.ExportDir == "" {
		return name
	}
	dir, err := homedir.Expand(c.ExportDir)
	if err != nil {
		dir = c.ExportDir
	}
	return filepath.Join(dir, name)
}

// CompilerConfig returns the MML compiler settings with configured defaults.
func (c *Config) CompilerConfig() mml.Config {
	out := mml.DefaultConfig()
	if c.MML.Tempo > 0 {
		out.DefaultTempo = c.MML.Tempo
	}
	if c.MML.Octave >= 0 {
		out.DefaultOctave = c.MML.Octave
	}
	if c.MML.Length > 0 {
		out.DefaultLength = c.MML.Length
	}
	return out
}
