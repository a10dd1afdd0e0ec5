package scheduler

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/mmlseq-go/internal/mml"
	"github.com/cbegin/mmlseq-go/internal/pitch"
)

type recorder struct {
	clock  *ManualClock
	origin time.Duration
	log    []string
}

func (r *recorder) add(format string, args ...any) {
	at := r.clock.Now() - r.origin
	r.log = append(r.log, at.String()+" "+fmt.Sprintf(format, args...))
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnEventStart: func(c Cue) { r.add("start %s %s", c.Event.Track, c.Event.Text) },
		OnEventStop:  func(c Cue) { r.add("stop %s %s", c.Event.Track, c.Event.Text) },
		OnEnded:      func() { r.add("ended") },
	}
}

func newTestScheduler(t *testing.T, src string) (*Scheduler, *ManualClock, *recorder) {
	t.Helper()
	score, diags := mml.Parse(src, mml.DefaultConfig())
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	clock := NewManualClock()
	rec := &recorder{clock: clock}
	s := New(score, pitch.NewResolver(pitch.SourceOscillator, nil), clock, rec.handlers())
	return s, clock, rec
}

func TestSchedulerDispatchesInOrder(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "T120 C4 D8 E8")
	if err := s.Start(mml.Melody, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(5 * time.Second)
	want := []string{
		"0s start melody C4",
		"500ms stop melody C4",
		"500ms start melody D8",
		"750ms stop melody D8",
		"750ms start melody E8",
		"1s stop melody E8",
		"1s ended",
	}
	if !reflect.DeepEqual(rec.log, want) {
		t.Fatalf("unexpected callbacks:\n%v\nwant\n%v", rec.log, want)
	}
	if s.State(mml.Melody) != Idle {
		t.Fatalf("expected idle after the last event, got %v", s.State(mml.Melody))
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clock.Pending())
	}
}

func TestSchedulerStartWhilePlayingFails(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C4 D4")
	if err := s.Start(mml.Melody, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(250 * time.Millisecond)
	err := s.Start(mml.Melody, 0)
	if errors.Cause(err) != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	clock.Advance(2 * time.Second)
	want := []string{
		"0s start melody C4",
		"500ms stop melody C4",
		"500ms start melody D4",
		"1s stop melody D4",
		"1s ended",
	}
	if !reflect.DeepEqual(rec.log, want) {
		t.Fatalf("original playback disturbed:\n%v", rec.log)
	}
}

func TestSchedulerRestsFireNoCallbacks(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C4 R4 D4")
	if err := s.Start(mml.Melody, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(3 * time.Second)
	want := []string{
		"0s start melody C4",
		"500ms stop melody C4",
		"1s start melody D4",
		"1.5s stop melody D4",
		"1.5s ended",
	}
	if !reflect.DeepEqual(rec.log, want) {
		t.Fatalf("unexpected callbacks:\n%v", rec.log)
	}
}

func TestSchedulerTrailingRestDelaysEnd(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C4 R2")
	if err := s.Start(mml.Melody, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(time.Second)
	if s.State(mml.Melody) != Playing {
		t.Fatalf("expected to be playing through the rest")
	}
	clock.Advance(time.Second)
	if got := rec.log[len(rec.log)-1]; got != "1.5s ended" {
		t.Fatalf("expected to end after the rest, got %q", got)
	}
}

func TestSchedulerPauseAndResume(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C4 D4")
	if err := s.Start(mml.Melody, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(700 * time.Millisecond)
	if err := s.Pause(mml.Melody); err != nil {
		t.Fatalf("pause: %v", err)
	}
	cur := s.Cursor(mml.Melody)
	if !cur.Paused || cur.Index != 2 || cur.Elapsed != 700*time.Millisecond {
		t.Fatalf("unexpected cursor after pause: %+v", cur)
	}
	clock.Advance(10 * time.Second)
	if err := s.Pause(mml.Melody); errors.Cause(err) != ErrInvalidState {
		t.Fatalf("expected pausing a paused track to fail, got %v", err)
	}
	if err := s.Start(mml.Melody, 0); err != nil {
		t.Fatalf("resume: %v", err)
	}
	clock.Advance(time.Second)
	want := []string{
		"0s start melody C4",
		"500ms stop melody C4",
		"500ms start melody D4",
		"700ms stop melody D4",
		"11s ended",
	}
	if !reflect.DeepEqual(rec.log, want) {
		t.Fatalf("unexpected callbacks:\n%v", rec.log)
	}
}

func TestSchedulerResumeKeepsRemainingSchedule(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C4 D4 E4")
	_ = s.Start(mml.Melody, 0)
	clock.Advance(250 * time.Millisecond)
	_ = s.Pause(mml.Melody)
	clock.Advance(time.Second)
	_ = s.Start(mml.Melody, 0)
	clock.Advance(5 * time.Second)
	want := []string{
		"0s start melody C4",
		"250ms stop melody C4",
		"1.5s start melody D4",
		"2s stop melody D4",
		"2s start melody E4",
		"2.5s stop melody E4",
		"2.5s ended",
	}
	if !reflect.DeepEqual(rec.log, want) {
		t.Fatalf("unexpected callbacks:\n%v", rec.log)
	}
}

func TestSchedulerStopAllEndsOnceWithoutStaleCallbacks(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C2 D2 | C1")
	if err := s.StartAll(0); err != nil {
		t.Fatalf("start all: %v", err)
	}
	clock.Advance(300 * time.Millisecond)
	s.StopAll()
	clock.Advance(10 * time.Second)
	want := []string{
		"0s start melody C2",
		"0s start bass C1",
		"300ms stop melody C2",
		"300ms stop bass C1",
		"300ms ended",
	}
	if !reflect.DeepEqual(rec.log, want) {
		t.Fatalf("unexpected callbacks:\n%v", rec.log)
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected cancelled timers, got %d pending", clock.Pending())
	}
	s.StopAll()
	if len(rec.log) != len(want) {
		t.Fatalf("second StopAll should be silent, got %v", rec.log[len(want):])
	}
}

func TestSchedulerEndedWaitsForEveryTrack(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C4 | C1")
	_ = s.StartAll(0)
	clock.Advance(time.Second)
	for _, line := range rec.log {
		if line == "500ms ended" {
			t.Fatalf("ended fired while bass still playing: %v", rec.log)
		}
	}
	clock.Advance(2 * time.Second)
	if got := rec.log[len(rec.log)-1]; got != "2s ended" {
		t.Fatalf("expected ended at 2s, got %q", got)
	}
}

func TestSchedulerStopKeepsCursorUntilRewind(t *testing.T) {
	s, clock, _ := newTestScheduler(t, "C4 D4 E4")
	_ = s.Start(mml.Melody, 0)
	clock.Advance(600 * time.Millisecond)
	if err := s.Rewind(mml.Melody); errors.Cause(err) != ErrInvalidState {
		t.Fatalf("expected rewind while playing to fail, got %v", err)
	}
	if err := s.Stop(mml.Melody); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if cur := s.Cursor(mml.Melody); cur.Index != 2 {
		t.Fatalf("expected cursor to survive stop, got %+v", cur)
	}
	if err := s.Rewind(mml.Melody); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if cur := s.Cursor(mml.Melody); cur != (Cursor{}) {
		t.Fatalf("expected rewound cursor, got %+v", cur)
	}
}

func TestSchedulerReplayIsIdentical(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "T150 L8 C D E R F | O2 C2")
	run := func() []string {
		rec.log = nil
		rec.origin = clock.Now()
		if err := s.RewindAll(); err != nil {
			t.Fatalf("rewind: %v", err)
		}
		if err := s.StartAll(0); err != nil {
			t.Fatalf("start: %v", err)
		}
		clock.Advance(10 * time.Second)
		return append([]string(nil), rec.log...)
	}
	first := run()
	s.StopAll()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("replay differs:\n%v\n%v", first, second)
	}
}

func TestSchedulerStartFromIndex(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C4 D4 E4")
	if err := s.Start(mml.Melody, 4); errors.Cause(err) != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := s.Start(mml.Melody, 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(time.Second)
	want := []string{"0s start melody E4", "500ms stop melody E4", "500ms ended"}
	if !reflect.DeepEqual(rec.log, want) {
		t.Fatalf("unexpected callbacks:\n%v", rec.log)
	}
}

func TestSchedulerLateTimerCatchesUp(t *testing.T) {
	score, _ := mml.Parse("L16 C D E F", mml.DefaultConfig())
	clock := NewManualClock()
	lagging := &laggingClock{ManualClock: clock, lag: 40 * time.Millisecond}
	rec := &recorder{clock: clock}
	s := New(score, nil, lagging, rec.handlers())
	_ = s.Start(mml.Melody, 0)
	clock.Advance(2 * time.Second)
	if got := rec.log[len(rec.log)-1]; got != "540ms ended" {
		t.Fatalf("late timers should not accumulate drift, got %v", rec.log)
	}
	starts := 0
	for _, line := range rec.log {
		if strings.Contains(line, " start ") {
			starts++
		}
	}
	if starts != 4 {
		t.Fatalf("expected every note to start once, got %v", rec.log)
	}
}

// laggingClock delivers every timer a fixed amount late.
type laggingClock struct {
	*ManualClock
	lag time.Duration
}

func (c *laggingClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.ManualClock.AfterFunc(d+c.lag, f)
}

func TestSchedulerUnknownTrack(t *testing.T) {
	s, _, _ := newTestScheduler(t, "C")
	if err := s.Start(mml.Bass, 0); errors.Cause(err) != ErrUnknownTrack {
		t.Fatalf("expected ErrUnknownTrack, got %v", err)
	}
}

func TestManualClockOrdersTimers(t *testing.T) {
	c := NewManualClock()
	var got []string
	c.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	c.AfterFunc(time.Second, func() { got = append(got, "a") })
	stopped := c.AfterFunc(time.Second, func() { got = append(got, "x") })
	c.AfterFunc(2*time.Second, func() { got = append(got, "c") })
	if !stopped.Stop() || stopped.Stop() {
		t.Fatalf("Stop should report pending exactly once")
	}
	c.Advance(3 * time.Second)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if c.Now() != 3*time.Second {
		t.Fatalf("unexpected now %v", c.Now())
	}
}

func TestSchedulerResumeAllAfterStopKeepsTracksAligned(t *testing.T) {
	s, clock, rec := newTestScheduler(t, "C4 D4 E4 | C2 D2")
	_ = s.StartAll(0)
	clock.Advance(700 * time.Millisecond)
	s.StopAll()
	clock.Advance(time.Second)
	rec.log = nil
	rec.origin = clock.Now()
	if err := s.ResumeAll(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	clock.Advance(3 * time.Second)
	want := []string{
		"300ms start melody E4",
		"300ms start bass D2",
		"800ms stop melody E4",
		"1.3s stop bass D2",
		"1.3s ended",
	}
	if !reflect.DeepEqual(rec.log, want) {
		t.Fatalf("unexpected callbacks:\n%v", rec.log)
	}
	if !s.Finished() {
		t.Fatalf("expected every track finished")
	}
	if err := s.ResumeAll(); errors.Cause(err) != ErrInvalidState {
		t.Fatalf("expected nothing to resume, got %v", err)
	}
	if err := s.RewindAll(); err != nil || s.Finished() {
		t.Fatalf("rewind should make the score playable again (%v)", err)
	}
}
