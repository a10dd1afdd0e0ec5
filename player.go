package mmlseq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/mmlseq-go/internal/audio"
	"github.com/cbegin/mmlseq-go/internal/config"
	"github.com/cbegin/mmlseq-go/internal/effects"
	"github.com/cbegin/mmlseq-go/internal/eventloop"
	"github.com/cbegin/mmlseq-go/internal/mml"
	"github.com/cbegin/mmlseq-go/internal/pitch"
	"github.com/cbegin/mmlseq-go/internal/scheduler"
	"github.com/cbegin/mmlseq-go/internal/synth"
)

var (
	ErrClosed        = errors.New("mmlseq: player closed")
	ErrNotLoaded     = errors.New("mmlseq: no MML loaded")
	ErrNothingToPlay = errors.New("mmlseq: score has no events")

	// ErrInvalidState is returned when a transport call does not apply to
	// the current playback state, for example Start while playing.
	ErrInvalidState = scheduler.ErrInvalidState
)

type (
	State  = scheduler.State
	Cursor = scheduler.Cursor
)

const (
	StateIdle    = scheduler.Idle
	StatePlaying = scheduler.Playing
	StatePaused  = scheduler.Paused
)

type EventKind int

const (
	EventNoteStart EventKind = iota
	EventNoteStop
	EventPlaybackEnded
	EventLoopCompleted
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventNoteStart:
		return "note-start"
	case EventNoteStop:
		return "note-stop"
	case EventPlaybackEnded:
		return "playback-ended"
	case EventLoopCompleted:
		return "loop-completed"
	case EventError:
		return "error"
	}
	return "unknown"
}

// PlaybackEvent is delivered on the channel returned by Watch. Event is set
// for note events; ErrorKind and Note are set for EventError.
type PlaybackEvent struct {
	Kind      EventKind
	Event     Event
	ErrorKind ErrorKind
	Note      string
}

// Callbacks are invoked on the player's event goroutine in dispatch order.
// They must return quickly and must not call back into the Player; use
// Watch to react to playback from another goroutine.
type Callbacks struct {
	OnEventStart func(Event)
	OnEventStop  func(Event)
	OnEnded      func()
	OnError      func(kind ErrorKind, note string)
}

type PlayerOption func(*playerConfig)

type playerConfig struct {
	callbacks    Callbacks
	audioOutput  bool
	bufferSize   time.Duration
	logger       *slog.Logger
	source       SoundSource
	voicing      voicing
	sampleDirs   map[SoundSource]string
	loopPlayback bool
	sampleTap    func([]float32)
	compiler     mml.Config
	effects      config.EffectsConfig
	volume       float64
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		audioOutput: true,
		bufferSize:  50 * time.Millisecond,
		source:      SourceOscillator,
		voicing:     voicing{waveform: synth.DefaultOscillatorParams().Wave},
		sampleDirs:  map[SoundSource]string{},
		compiler:    mml.DefaultConfig(),
		volume:      1,
	}
}

func WithCallbacks(cb Callbacks) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.callbacks = cb
	}
}

// WithAudioOutput(false) runs the player without opening an audio device.
// Scheduling and callbacks behave the same.
func WithAudioOutput(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.audioOutput = enabled
	}
}

func WithLogger(logger *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.logger = logger
	}
}

func WithSoundSource(source SoundSource) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.source = source
	}
}

func WithWaveform(w Waveform) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.voicing.waveform = w
	}
}

// WithVibrato adds pitch vibrato to the oscillator source. depth is in
// semitones, rate in Hz.
func WithVibrato(depth, rateHz float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.voicing.vibrato.depth = depth
		cfg.voicing.vibrato.rate = rateHz
	}
}

// WithLoopPlayback restarts the score from the top each time it ends
// naturally. Stop still ends playback.
func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// WithSampleDir loads the one-shot bank of source from a directory of
// "<NoteName>.wav" files instead of the synthesized bank.
func WithSampleDir(source SoundSource, dir string) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleDirs[source] = dir
	}
}

// WithConfig applies a loaded configuration file. Options given after it
// override its values.
func WithConfig(c *config.Config) PlayerOption {
	return func(cfg *playerConfig) {
		if c == nil {
			return
		}
		cfg.source = c.SoundSource()
		if w, err := synth.ParseWaveform(c.Waveform); err == nil {
			cfg.voicing.waveform = w
		}
		cfg.voicing.vibrato = vibrato{depth: c.Vibrato.Depth, rate: c.Vibrato.Rate, shape: c.Vibrato.LFOShape()}
		cfg.loopPlayback = c.Loop
		cfg.volume = c.Volume
		cfg.effects = c.Effects
		cfg.compiler = c.CompilerConfig()
		for _, src := range []SoundSource{SourcePiano, SourceGuitar} {
			if dir := c.SampleDir(src); dir != "" {
				cfg.sampleDirs[src] = dir
			}
		}
	}
}

// loopClock drives the scheduler from the player's event loop.
type loopClock struct {
	loop *eventloop.Loop
}

func (c loopClock) Now() time.Duration { return c.loop.Now() }

func (c loopClock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	return c.loop.AfterFunc(d, f)
}

// Player performs MML through the synthesizer in real time. Its methods are
// safe for concurrent use; playback state lives on a single event goroutine.
type Player struct {
	sampleRate int
	cfg        playerConfig
	log        *slog.Logger
	loop       *eventloop.Loop
	cancel     context.CancelFunc
	mixer      *synth.Mixer
	eq         *effects.Equalizer
	banks      *bankCache

	// Owned by the event goroutine.
	source   SoundSource
	resolver *pitch.Resolver
	text     string
	score    *Score
	sched    *scheduler.Scheduler
	voices   *voiceTable
	stopping bool
	output   *audio.Output

	mu        sync.Mutex
	done      chan struct{}
	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("mmlseq: sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	source, err := pitch.ParseSource(string(cfg.source))
	if err != nil {
		return nil, err
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "player")

	p := &Player{
		sampleRate: sampleRate,
		cfg:        cfg,
		log:        logger,
		loop:       eventloop.New(),
		eq:         effects.NewEqualizer(sampleRate),
		banks:      newBankCache(sampleRate, cfg.sampleDirs, logger),
		source:     source,
	}
	chain := cfg.effects.Chain(sampleRate)
	chain.Add(p.eq)
	engine, resolver := newVoice(source, sampleRate, cfg.voicing, p.banks)
	p.resolver = resolver
	p.mixer = synth.NewMixer(engine, chain)
	p.mixer.SetVolume(cfg.volume)
	p.mixer.SetTap(cfg.sampleTap)
	p.voices = newVoiceTable(p.mixer)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() {
		if err := p.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.log.Error("event loop stopped", "err", err)
		}
	}()
	p.log.Debug("player ready", "sampleRate", sampleRate, "source", source, "audio", cfg.audioOutput)
	return p, nil
}

// do runs f on the event goroutine and returns its error.
func (p *Player) do(f func() error) error {
	var err error
	if lerr := p.loop.Do(context.Background(), func() { err = f() }); lerr != nil {
		if errors.Is(lerr, eventloop.ErrClosed) {
			return ErrClosed
		}
		return lerr
	}
	return err
}

// Load compiles text and prepares it for playback from the top, stopping
// anything that is playing. Compile problems are returned, reported to
// OnError and sent to Watch; they never prevent loading.
func (p *Player) Load(text string) ([]Diagnostic, error) {
	var diags []Diagnostic
	err := p.do(func() error {
		diags = p.prepare(text)
		return nil
	})
	return diags, err
}

func (p *Player) prepare(text string) []Diagnostic {
	p.halt()
	score, diags := Compile(text, withCompilerConfig(p.cfg.compiler))
	p.text = text
	p.score = score
	p.sched = scheduler.New(score, p.resolver, loopClock{p.loop}, scheduler.Handlers{
		OnEventStart: p.handleStart,
		OnEventStop:  p.handleStop,
		OnEnded:      p.handleEnded,
	})
	for _, d := range diags {
		p.log.Debug("mml diagnostic", "kind", d.Kind, "note", d.Note, "pos", d.Pos, "track", d.Track)
		if cb := p.cfg.callbacks.OnError; cb != nil {
			cb(d.Kind, d.Note)
		}
		p.emit(PlaybackEvent{Kind: EventError, ErrorKind: d.Kind, Note: d.Note})
	}
	p.log.Debug("mml loaded", "tracks", len(score.Tracks), "duration", score.Duration(), "diagnostics", len(diags))
	return diags
}

// halt stops every track, keeping the cursors.
func (p *Player) halt() {
	if p.sched == nil {
		return
	}
	p.stopping = true
	p.sched.StopAll()
	p.stopping = false
	p.voices.reset()
}

func (p *Player) handleStart(c scheduler.Cue) {
	p.voices.noteOn(c)
	if cb := p.cfg.callbacks.OnEventStart; cb != nil {
		cb(c.Event)
	}
	p.emit(PlaybackEvent{Kind: EventNoteStart, Event: c.Event})
}

func (p *Player) handleStop(c scheduler.Cue) {
	p.voices.noteOff(c)
	if cb := p.cfg.callbacks.OnEventStop; cb != nil {
		cb(c.Event)
	}
	p.emit(PlaybackEvent{Kind: EventNoteStop, Event: c.Event})
}

func (p *Player) handleEnded() {
	if !p.stopping && p.cfg.loopPlayback && p.sched.RewindAll() == nil {
		p.emit(PlaybackEvent{Kind: EventLoopCompleted})
		if err := p.sched.StartAll(0); err == nil {
			return
		}
	}
	p.log.Debug("playback ended", "stopped", p.stopping)
	if cb := p.cfg.callbacks.OnEnded; cb != nil {
		cb()
	}
	p.emit(PlaybackEvent{Kind: EventPlaybackEnded})
	p.signalDone()
}

// Start plays the loaded score, resuming from where it was paused or
// stopped. A score that has played to its end starts over. Start while
// playing returns ErrInvalidState and leaves playback untouched.
func (p *Player) Start() error {
	return p.do(p.start)
}

func (p *Player) start() error {
	if p.sched == nil {
		return ErrNotLoaded
	}
	if !p.score.HasEvents() {
		return ErrNothingToPlay
	}
	if p.sched.Finished() {
		if err := p.sched.RewindAll(); err != nil {
			return err
		}
	}
	if err := p.openOutput(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.done == nil {
		p.done = make(chan struct{})
	}
	p.mu.Unlock()
	if err := p.sched.ResumeAll(); err != nil {
		return err
	}
	p.log.Debug("playback started", "melody", p.sched.Cursor(Melody).Index, "bass", p.sched.Cursor(Bass).Index)
	return nil
}

func (p *Player) openOutput() error {
	if !p.cfg.audioOutput {
		return nil
	}
	if p.output == nil {
		out, err := audio.Open(p.sampleRate, p.mixer, p.cfg.bufferSize)
		if err != nil {
			return errors.Wrap(err, "mmlseq: open audio output")
		}
		p.output = out
	}
	if !p.output.IsPlaying() {
		p.output.Play()
	}
	return nil
}

// Pause holds playback at the current position. Sounding notes are
// released.
func (p *Player) Pause() error {
	return p.do(func() error {
		if p.sched == nil {
			return ErrNotLoaded
		}
		if err := p.sched.PauseAll(); err != nil {
			return err
		}
		p.log.Debug("playback paused")
		return nil
	})
}

// Toggle pauses while playing and starts otherwise.
func (p *Player) Toggle() error {
	return p.do(func() error {
		if p.sched == nil {
			return ErrNotLoaded
		}
		if p.state() == StatePlaying {
			return p.sched.PauseAll()
		}
		return p.start()
	})
}

// Stop ends playback but keeps the position, so Start continues from
// there. Use StopAndRewind to return to the top.
func (p *Player) Stop() error {
	return p.do(func() error {
		p.halt()
		return nil
	})
}

// Rewind moves a stopped score back to its first event.
func (p *Player) Rewind() error {
	return p.do(func() error {
		if p.sched == nil {
			return ErrNotLoaded
		}
		return p.sched.RewindAll()
	})
}

func (p *Player) StopAndRewind() error {
	return p.do(func() error {
		if p.sched == nil {
			return nil
		}
		p.halt()
		return p.sched.RewindAll()
	})
}

// SetSoundSource switches between the oscillator and the one-shot banks.
// Playback stops and the loaded text is prepared again from the top.
func (p *Player) SetSoundSource(source SoundSource) error {
	source, err := pitch.ParseSource(string(source))
	if err != nil {
		return err
	}
	return p.do(func() error {
		p.source = source
		p.rebuildVoice()
		return nil
	})
}

// SetWaveform changes the oscillator waveform. Like a source change it
// stops playback and prepares the loaded text again.
func (p *Player) SetWaveform(w Waveform) error {
	return p.do(func() error {
		p.cfg.voicing.waveform = w
		if !p.source.OneShot() {
			p.rebuildVoice()
		}
		return nil
	})
}

func (p *Player) rebuildVoice() {
	p.halt()
	engine, resolver := newVoice(p.source, p.sampleRate, p.cfg.voicing, p.banks)
	p.resolver = resolver
	p.mixer.SetEngine(engine)
	p.log.Debug("sound source set", "source", p.source, "waveform", p.cfg.voicing.waveform)
	if p.sched != nil {
		p.prepare(p.text)
	}
}

func (p *Player) SoundSource() SoundSource {
	var s SoundSource
	_ = p.do(func() error {
		s = p.source
		return nil
	})
	return s
}

// State summarizes the tracks: playing if any track plays, paused if any
// is paused, idle otherwise.
func (p *Player) State() State {
	s := StateIdle
	_ = p.do(func() error {
		s = p.state()
		return nil
	})
	return s
}

func (p *Player) state() State {
	if p.sched == nil {
		return StateIdle
	}
	paused := false
	for _, id := range p.sched.Tracks() {
		switch p.sched.State(id) {
		case StatePlaying:
			return StatePlaying
		case StatePaused:
			paused = true
		}
	}
	if paused {
		return StatePaused
	}
	return StateIdle
}

// Cursor reports the position of one track.
func (p *Player) Cursor(track TrackID) Cursor {
	var c Cursor
	_ = p.do(func() error {
		if p.sched != nil {
			c = p.sched.Cursor(track)
		}
		return nil
	})
	return c
}

// Score returns the most recently loaded score, or nil.
func (p *Player) Score() *Score {
	var s *Score
	_ = p.do(func() error {
		s = p.score
		return nil
	})
	return s
}

func (p *Player) Text() string {
	var t string
	_ = p.do(func() error {
		t = p.text
		return nil
	})
	return t
}

// Close stops playback, releases the audio device and ends the event
// goroutine. The player cannot be used afterwards.
func (p *Player) Close() error {
	var closeErr error
	err := p.do(func() error {
		p.halt()
		if p.output != nil {
			closeErr = p.output.Close()
			p.output = nil
		}
		return nil
	})
	p.loop.Close()
	p.cancel()
	p.signalDone()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	return closeErr
}

func (p *Player) emit(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// Wait blocks until the current playback ends or is stopped. With loop
// playback enabled it only returns after Stop. Wait returns immediately if
// nothing is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events:
//   - EventNoteStart / EventNoteStop: a note began or ended (Event set)
//   - EventLoopCompleted: the score ended and restarted (loop playback)
//   - EventPlaybackEnded: playback finished or was stopped
//   - EventError: a compile problem found by Load (ErrorKind, Note set)
//
// The channel is buffered (cap 64); events are dropped when it is full.
// Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 64)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	p.mixer.SetVolume(volume)
}

func (p *Player) MasterVolume() float64 {
	return p.mixer.Volume()
}

// SetEQBand sets the gain for a master EQ band (0-4). 1.0 = unity.
// Band frequencies: 0=<200Hz, 1=200-800Hz, 2=800-2.5kHz, 3=2.5-8kHz, 4=>8kHz.
// This takes effect immediately on the audio thread (lock-free).
func (p *Player) SetEQBand(band int, gain float32) {
	p.eq.SetGain(band, gain)
}

// EQBand returns the current gain for a master EQ band (0-4).
func (p *Player) EQBand(band int) float32 {
	return p.eq.Gain(band)
}

// PlaybackPosition returns the current output position of the audio driver,
// i.e. what the listener actually hears right now. Returns 0 without an
// audio device.
func (p *Player) PlaybackPosition() time.Duration {
	var pos time.Duration
	_ = p.do(func() error {
		if p.output != nil {
			pos = p.output.Position()
		}
		return nil
	})
	return pos
}
