package config

import (
	"github.com/cbegin/mmlseq-go/internal/effects"
	"github.com/cbegin/mmlseq-go/internal/lfo"
)

func synthDistortionDefaults() DistortionConfig {
	p := effects.DefaultDistortionParams()
	return DistortionConfig{
		Curve:   p.Curve.String(),
		Samples: p.Samples,
		Drive:   p.Drive,
		Color:   p.Color,
		Tone:    p.Tone,
		Level:   p.Level,
	}
}

func synthChorusDefaults() ChorusConfig {
	p := effects.DefaultChorusParams()
	return ChorusConfig{TimeSec: p.TimeSec, Depth: p.Depth, Rate: p.RateHz, Mix: p.Mix, Tone: p.Tone, Feedback: p.Feedback}
}

func synthDelayDefaults() DelayConfig {
	p := effects.DefaultDelayParams()
	return DelayConfig{TimeSec: p.TimeSec, Dry: p.Dry, Wet: p.Wet, Tone: p.Tone, Feedback: p.Feedback}
}

func synthReverbDefaults() ReverbConfig {
	p := effects.DefaultReverbParams()
	return ReverbConfig{Dry: p.Dry, Wet: p.Wet, Tone: p.Tone, Room: p.Room, Decay: p.Decay}
}

// Chain builds the enabled effects in the order distortion, chorus, delay,
// reverb.
func (e EffectsConfig) Chain(sampleRate int) *effects.Chain {
	chain := effects.NewChain()
	if d := e.Distortion; d.Enabled {
		curve, err := effects.ParseCurve(d.Curve)
		if err != nil {
			curve = effects.DefaultDistortionParams().Curve
		}
		chain.Add(effects.NewDistortion(sampleRate, effects.DistortionParams{
			Curve:   curve,
			Samples: d.Samples,
			Drive:   d.Drive,
			Color:   d.Color,
			Tone:    d.Tone,
			Level:   d.Level,
		}))
	}
	if c := e.Chorus; c.Enabled {
		chain.Add(effects.NewChorus(sampleRate, effects.ChorusParams{
			TimeSec:  c.TimeSec,
			Depth:    c.Depth,
			RateHz:   c.Rate,
			Mix:      c.Mix,
			Tone:     c.Tone,
			Feedback: c.Feedback,
		}))
	}
	if d := e.Delay; d.Enabled {
		chain.Add(effects.NewDelay(sampleRate, effects.DelayParams{
			TimeSec:  d.TimeSec,
			Dry:      d.Dry,
			Wet:      d.Wet,
			Tone:     d.Tone,
			Feedback: d.Feedback,
		}))
	}
	if r := e.Reverb; r.Enabled {
		chain.Add(effects.NewReverb(sampleRate, effects.ReverbParams{
			Dry:   r.Dry,
			Wet:   r.Wet,
			Tone:  r.Tone,
			Room:  r.Room,
			Decay: r.Decay,
		}))
	}
	return chain
}

// LFOShape returns the vibrato LFO shape, sine when unset or unknown.
func (v VibratoConfig) LFOShape() lfo.Shape {
	s, err := lfo.ParseShape(v.Shape)
	if err != nil {
		return lfo.Sine
	}
	return s
}
