package scheduler

import (
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/mmlseq-go/internal/mml"
	"github.com/cbegin/mmlseq-go/internal/pitch"
)

var (
	ErrInvalidState = errors.New("scheduler: invalid state")
	ErrOutOfRange   = errors.New("scheduler: start index out of range")
	ErrUnknownTrack = errors.New("scheduler: unknown track")
)

type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Resolver maps a keyboard index to synthesis parameters.
type Resolver interface {
	Resolve(index int) pitch.Resolution
}

// Cue is a due event together with its resolved pitch.
type Cue struct {
	Event mml.Event
	Pitch pitch.Resolution
}

// Handlers are invoked on the clock's goroutine. Any of them may be nil.
type Handlers struct {
	OnEventStart func(Cue)
	OnEventStop  func(Cue)
	OnEnded      func()
}

// Cursor is the playback position of one track.
type Cursor struct {
	Index   int
	Elapsed time.Duration
	Paused  bool
}

type pendingStop struct {
	cue Cue
	end time.Duration
}

type track struct {
	id       mml.TrackID
	events   []mml.Event
	state    State
	cursor   Cursor
	active   bool
	base     time.Duration
	timer    Timer
	epoch    uint64
	sounding []pendingStop
}

// Scheduler plays compiled tracks against a Clock. It is not safe for
// concurrent use: every method and every clock callback must run on the
// same goroutine.
type Scheduler struct {
	clock    Clock
	resolver Resolver
	handlers Handlers
	tracks   []*track
	session  bool
}

func New(score *mml.Score, resolver Resolver, clock Clock, handlers Handlers) *Scheduler {
	s := &Scheduler{clock: clock, resolver: resolver, handlers: handlers}
	if score != nil {
		for _, tr := range score.Tracks {
			s.tracks = append(s.tracks, &track{id: tr.ID, events: tr.Events})
		}
	}
	return s
}

// Tracks lists the ids of the scheduled tracks in score order.
func (s *Scheduler) Tracks() []mml.TrackID {
	ids := make([]mml.TrackID, len(s.tracks))
	for i, t := range s.tracks {
		ids[i] = t.id
	}
	return ids
}

func (s *Scheduler) lookup(id mml.TrackID) (*track, error) {
	for _, t := range s.tracks {
		if t.id == id {
			return t, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownTrack, "track %s", id)
}

func (s *Scheduler) State(id mml.TrackID) State {
	t, err := s.lookup(id)
	if err != nil {
		return Idle
	}
	return t.state
}

func (s *Scheduler) Cursor(id mml.TrackID) Cursor {
	t, err := s.lookup(id)
	if err != nil {
		return Cursor{}
	}
	c := t.cursor
	if t.state == Playing {
		c.Elapsed = s.clock.Now() - t.base
	}
	return c
}

// Active reports whether any track is playing or paused.
func (s *Scheduler) Active() bool {
	for _, t := range s.tracks {
		if t.active {
			return true
		}
	}
	return false
}

// Start begins playback of one track at event index from, or resumes it
// when paused (from is then ignored).
func (s *Scheduler) Start(id mml.TrackID, from int) error {
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := t.checkStart(from); err != nil {
		return err
	}
	s.start(t, from, s.clock.Now())
	return nil
}

// StartAll starts every non-empty track from the same clock reading so
// melody and bass share one time origin. Nothing starts if any track
// would fail.
func (s *Scheduler) StartAll(from int) error {
	var ready []*track
	for _, t := range s.tracks {
		if len(t.events) == 0 {
			continue
		}
		if err := t.checkStart(from); err != nil {
			return err
		}
		ready = append(ready, t)
	}
	now := s.clock.Now()
	for _, t := range ready {
		s.start(t, from, now)
	}
	return nil
}

func (t *track) checkStart(from int) error {
	switch t.state {
	case Playing:
		return errors.Wrapf(ErrInvalidState, "start %s: already playing", t.id)
	case Paused:
		return nil
	}
	if from < 0 || from > len(t.events) {
		return errors.Wrapf(ErrOutOfRange, "start %s at %d of %d", t.id, from, len(t.events))
	}
	return nil
}

// ResumeAll continues every unfinished track from its retained cursor:
// paused tracks resume and stopped tracks pick up where they stopped. All
// tracks share one clock reading so they stay aligned.
func (s *Scheduler) ResumeAll() error {
	var ready []*track
	for _, t := range s.tracks {
		if len(t.events) == 0 || t.state == Playing || t.finished() {
			continue
		}
		ready = append(ready, t)
	}
	if len(ready) == 0 {
		return errors.Wrap(ErrInvalidState, "resume: nothing left to play")
	}
	now := s.clock.Now()
	for _, t := range ready {
		s.run(t, now)
	}
	return nil
}

// Finished reports whether every track has played to its end.
func (s *Scheduler) Finished() bool {
	for _, t := range s.tracks {
		if t.state != Idle || !t.finished() {
			return false
		}
	}
	return true
}

func (t *track) finished() bool {
	return t.cursor.Index >= len(t.events) && len(t.sounding) == 0 && t.cursor.Elapsed >= t.end()
}

func (s *Scheduler) start(t *track, from int, now time.Duration) {
	if t.state == Idle {
		elapsed := time.Duration(0)
		if from < len(t.events) {
			elapsed = t.events[from].StartTime()
		} else if len(t.events) > 0 {
			elapsed = t.events[len(t.events)-1].EndTime()
		}
		t.cursor = Cursor{Index: from, Elapsed: elapsed}
	}
	s.run(t, now)
}

func (s *Scheduler) run(t *track, now time.Duration) {
	t.cursor.Paused = false
	t.base = now - t.cursor.Elapsed
	t.state = Playing
	t.active = true
	t.epoch++
	s.session = true
	s.pump(t)
}

// Pause stops dispatch on a playing track, keeping its position. Sounding
// notes are released.
func (s *Scheduler) Pause(id mml.TrackID) error {
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	if t.state != Playing {
		return errors.Wrapf(ErrInvalidState, "pause %s: %s", t.id, t.state)
	}
	s.halt(t)
	t.state = Paused
	t.cursor.Paused = true
	s.release(t)
	return nil
}

// PauseAll pauses every playing track.
func (s *Scheduler) PauseAll() error {
	var playing []*track
	for _, t := range s.tracks {
		if t.state == Playing {
			playing = append(playing, t)
		}
	}
	if len(playing) == 0 {
		return errors.Wrap(ErrInvalidState, "pause: nothing is playing")
	}
	for _, t := range playing {
		s.halt(t)
	}
	for _, t := range playing {
		t.state = Paused
		t.cursor.Paused = true
		s.release(t)
	}
	return nil
}

// Stop moves a track to Idle from any state. The cursor is kept; Rewind
// resets it.
func (s *Scheduler) Stop(id mml.TrackID) error {
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	if t.state == Idle {
		return nil
	}
	s.halt(t)
	s.idle(t)
	s.release(t)
	s.checkEnded()
	return nil
}

// StopAll stops every track. All timers are cancelled before any stop
// callback runs.
func (s *Scheduler) StopAll() {
	var stopping []*track
	for _, t := range s.tracks {
		if t.state != Idle {
			s.halt(t)
			stopping = append(stopping, t)
		}
	}
	for _, t := range stopping {
		s.idle(t)
	}
	for _, t := range stopping {
		s.release(t)
	}
	s.checkEnded()
}

// Rewind resets the cursor of an idle track to the first event.
func (s *Scheduler) Rewind(id mml.TrackID) error {
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	if t.state != Idle {
		return errors.Wrapf(ErrInvalidState, "rewind %s: %s", t.id, t.state)
	}
	t.cursor = Cursor{}
	return nil
}

// RewindAll rewinds every track, or none if any track is not idle.
func (s *Scheduler) RewindAll() error {
	for _, t := range s.tracks {
		if t.state != Idle {
			return errors.Wrapf(ErrInvalidState, "rewind %s: %s", t.id, t.state)
		}
	}
	for _, t := range s.tracks {
		t.cursor = Cursor{}
	}
	return nil
}

// halt cancels the track's timer and invalidates any callback already
// queued for it.
func (s *Scheduler) halt(t *track) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.epoch++
	if t.state == Playing {
		t.cursor.Elapsed = s.clock.Now() - t.base
	}
}

func (s *Scheduler) idle(t *track) {
	t.state = Idle
	t.active = false
	t.cursor.Paused = false
}

// release fires the stop callback for notes that are still sounding.
func (s *Scheduler) release(t *track) {
	sounding := t.sounding
	t.sounding = nil
	for _, p := range sounding {
		if s.handlers.OnEventStop != nil {
			s.handlers.OnEventStop(p.cue)
		}
	}
}

func (s *Scheduler) checkEnded() {
	if !s.session || s.Active() {
		return
	}
	s.session = false
	if s.handlers.OnEnded != nil {
		s.handlers.OnEnded()
	}
}

// pump dispatches everything due at the current elapsed time and arms the
// timer for the next due item. Due items are derived from absolute elapsed
// time, so late timer delivery never accumulates drift.
func (s *Scheduler) pump(t *track) {
	epoch := t.epoch
	elapsed := s.clock.Now() - t.base
	for {
		stopAt, hasStop := t.nextStop()
		startAt, hasStart := t.nextStart()
		if !hasStop && !hasStart {
			break
		}
		if hasStop && (!hasStart || stopAt <= startAt) {
			if stopAt > elapsed {
				break
			}
			p := t.sounding[0]
			t.sounding = t.sounding[1:]
			if s.handlers.OnEventStop != nil {
				s.handlers.OnEventStop(p.cue)
			}
		} else {
			if startAt > elapsed {
				break
			}
			ev := t.events[t.cursor.Index]
			t.cursor.Index++
			if ev.IsRest() {
				continue
			}
			cue := Cue{Event: ev, Pitch: s.resolve(ev.Note)}
			t.addSounding(pendingStop{cue: cue, end: ev.EndTime()})
			if s.handlers.OnEventStart != nil {
				s.handlers.OnEventStart(cue)
			}
		}
		if t.epoch != epoch || t.state != Playing {
			return
		}
	}
	t.cursor.Elapsed = elapsed
	next, ok := t.nextDue()
	if !ok {
		// trailing rests still occupy time
		if end := t.end(); elapsed < end {
			next, ok = end, true
		}
	}
	if !ok {
		s.idle(t)
		t.cursor.Elapsed = elapsed
		s.checkEnded()
		return
	}
	delay := t.base + next - s.clock.Now()
	if delay < 0 {
		delay = 0
	}
	t.timer = s.clock.AfterFunc(delay, func() {
		if t.epoch != epoch || t.state != Playing {
			return
		}
		t.timer = nil
		s.pump(t)
	})
}

func (s *Scheduler) resolve(index int) pitch.Resolution {
	if s.resolver == nil {
		return pitch.Resolution{Index: index, Frequency: pitch.Frequency(index), Rate: 1}
	}
	return s.resolver.Resolve(index)
}

func (t *track) nextStart() (time.Duration, bool) {
	if t.cursor.Index >= len(t.events) {
		return 0, false
	}
	return t.events[t.cursor.Index].StartTime(), true
}

func (t *track) nextStop() (time.Duration, bool) {
	if len(t.sounding) == 0 {
		return 0, false
	}
	return t.sounding[0].end, true
}

func (t *track) nextDue() (time.Duration, bool) {
	stopAt, hasStop := t.nextStop()
	startAt, hasStart := t.nextStart()
	switch {
	case hasStop && hasStart:
		if stopAt < startAt {
			return stopAt, true
		}
		return startAt, true
	case hasStop:
		return stopAt, true
	case hasStart:
		return startAt, true
	}
	return 0, false
}

func (t *track) end() time.Duration {
	if len(t.events) == 0 {
		return 0
	}
	return t.events[len(t.events)-1].EndTime()
}

func (t *track) addSounding(p pendingStop) {
	i := len(t.sounding)
	for i > 0 && t.sounding[i-1].end > p.end {
		i--
	}
	t.sounding = append(t.sounding, pendingStop{})
	copy(t.sounding[i+1:], t.sounding[i:])
	t.sounding[i] = p
}
