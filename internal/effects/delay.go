package effects

// DelayParams mirror the browser synthesizer's delay module. Levels are 0..1,
// Tone is the cutoff of the lowpass in the feedback path (0 disables it).
type DelayParams struct {
	TimeSec  float64
	Dry      float32
	Wet      float32
	Tone     float64
	Feedback float32
	// Cross routes feedback to the opposite channel for a ping-pong echo.
	Cross float32
}

func DefaultDelayParams() DelayParams {
	return DelayParams{TimeSec: 0.25, Dry: 1, Wet: 0.3, Tone: 4000, Feedback: 0.35}
}

// Delay is a stereo feedback delay.
type Delay struct {
	bufL, bufR   []float32
	pos          int
	params       DelayParams
	toneL, toneR onePole
}

func NewDelay(sampleRate int, params DelayParams) *Delay {
	samples := int(params.TimeSec * float64(sampleRate))
	if samples < 1 {
		samples = 1
	}
	params.Dry = clamp(params.Dry, 0, 1)
	params.Wet = clamp(params.Wet, 0, 1)
	params.Feedback = clamp(params.Feedback, 0, 0.95)
	params.Cross = clamp(params.Cross, 0, 1)
	return &Delay{
		bufL:   make([]float32, samples),
		bufR:   make([]float32, samples),
		params: params,
		toneL:  newOnePole(sampleRate, params.Tone),
		toneR:  newOnePole(sampleRate, params.Tone),
	}
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	p := &d.params
	delL := d.toneL.process(d.bufL[d.pos])
	delR := d.toneR.process(d.bufR[d.pos])
	fbL := p.Feedback * (delL*(1-p.Cross) + delR*p.Cross)
	fbR := p.Feedback * (delR*(1-p.Cross) + delL*p.Cross)
	d.bufL[d.pos] = l + fbL
	d.bufR[d.pos] = r + fbR
	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return l*p.Dry + delL*p.Wet, r*p.Dry + delR*p.Wet
}

func (d *Delay) Reset() {
	clear(d.bufL)
	clear(d.bufR)
	d.pos = 0
	d.toneL.state = 0
	d.toneR.state = 0
}
