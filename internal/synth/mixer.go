package synth

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/mmlseq-go/internal/effects"
	"github.com/cbegin/mmlseq-go/internal/pitch"
)

// Mixer renders one engine through an effect chain and master volume. Note
// calls come from the playback loop while Process runs on the audio thread;
// the mixer serializes them.
type Mixer struct {
	mu     sync.Mutex
	engine Engine
	chain  *effects.Chain
	volume uint64
	tap    func([]float32)
}

func NewMixer(engine Engine, chain *effects.Chain) *Mixer {
	return &Mixer{engine: engine, chain: chain, volume: math.Float64bits(1)}
}

// SetEngine swaps the engine. Voices of the previous engine are dropped.
func (m *Mixer) SetEngine(engine Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engine = engine
	if m.chain != nil {
		m.chain.Reset()
	}
}

func (m *Mixer) Engine() Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine
}

// SetTap installs a callback that sees every rendered stereo buffer.
func (m *Mixer) SetTap(tap func([]float32)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tap = tap
}

func (m *Mixer) NoteOn(res pitch.Resolution, velocity float64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return -1
	}
	return m.engine.NoteOn(res, velocity)
}

func (m *Mixer) NoteOff(id int) {
	if id < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine != nil {
		m.engine.NoteOff(id)
	}
}

func (m *Mixer) AllNotesOff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine != nil {
		m.engine.AllNotesOff()
	}
}

func (m *Mixer) ActiveVoiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return 0
	}
	return m.engine.ActiveVoiceCount()
}

// SetVolume sets the master volume scalar; 1 is unity.
func (m *Mixer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	atomic.StoreUint64(&m.volume, math.Float64bits(v))
}

func (m *Mixer) Volume() float64 {
	return math.Float64frombits(atomic.LoadUint64(&m.volume))
}

// Process fills dst with interleaved stereo frames.
func (m *Mixer) Process(dst []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vol := float32(m.Volume())
	for i := 0; i+1 < len(dst); i += 2 {
		var l, r float32
		if m.engine != nil {
			l, r = m.engine.RenderFrame()
		}
		if m.chain != nil {
			l, r = m.chain.Process(l, r)
		}
		dst[i], dst[i+1] = l*vol, r*vol
	}
	if m.tap != nil {
		m.tap(dst)
	}
}
