package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/mmlseq-go"
)

var (
	sources   = []mmlseq.SoundSource{mmlseq.SourceOscillator, mmlseq.SourcePiano, mmlseq.SourceGuitar}
	waveforms = []mmlseq.Waveform{mmlseq.WaveTriangle, mmlseq.WaveSine, mmlseq.WaveSquare, mmlseq.WaveSawtooth}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	noteStyles  = []lipgloss.Style{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("117")),
	}
)

type playbackMsg mmlseq.PlaybackEvent

func listenForEvents(ch <-chan mmlseq.PlaybackEvent) tea.Cmd {
	return func() tea.Msg {
		return playbackMsg(<-ch)
	}
}

type model struct {
	player   *mmlseq.Player
	events   <-chan mmlseq.PlaybackEvent
	text     string
	exportTo string
	source   int
	wave     int
	state    mmlseq.State
	sounding map[mmlseq.TrackID]mmlseq.Event
	diags    []string
	status   string
	loops    int
	quitting bool
}

func newModel(player *mmlseq.Player, text, exportTo string, wave mmlseq.Waveform, diags []mmlseq.Diagnostic) model {
	m := model{
		player:   player,
		events:   player.Watch(),
		text:     text,
		exportTo: exportTo,
		sounding: map[mmlseq.TrackID]mmlseq.Event{},
	}
	for i, s := range sources {
		if s == player.SoundSource() {
			m.source = i
		}
	}
	for i, w := range waveforms {
		if w == wave {
			m.wave = i
		}
	}
	m.setDiagnostics(diags)
	return m
}

func (m *model) setDiagnostics(diags []mmlseq.Diagnostic) {
	m.diags = m.diags[:0]
	for _, d := range diags {
		m.diags = append(m.diags, fmt.Sprintf("%s error in %s: %q", d.Kind, d.Track, d.Note))
	}
}

func (m model) Init() tea.Cmd {
	return listenForEvents(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.player.StopAndRewind()
			return m, tea.Quit

		case " ", "p":
			if err := m.player.Toggle(); err != nil {
				m.status = err.Error()
			}

		case "s":
			m.player.StopAndRewind()
			clear(m.sounding)

		case "o":
			m.source = (m.source + 1) % len(sources)
			if err := m.player.SetSoundSource(sources[m.source]); err != nil {
				m.status = err.Error()
			}
			clear(m.sounding)

		case "w":
			m.wave = (m.wave + 1) % len(waveforms)
			if err := m.player.SetWaveform(waveforms[m.wave]); err != nil {
				m.status = err.Error()
			}
			clear(m.sounding)

		case "e":
			path, err := mmlseq.ExportText(m.exportTo, m.text, time.Now())
			if err != nil {
				m.status = err.Error()
			} else {
				m.status = "saved " + path
			}
		}
		m.state = m.player.State()

	case playbackMsg:
		ev := mmlseq.PlaybackEvent(msg)
		switch ev.Kind {
		case mmlseq.EventNoteStart:
			m.sounding[ev.Event.Track] = ev.Event
		case mmlseq.EventNoteStop:
			if cur, ok := m.sounding[ev.Event.Track]; ok && cur.Seq == ev.Event.Seq {
				delete(m.sounding, ev.Event.Track)
			}
		case mmlseq.EventLoopCompleted:
			m.loops++
		case mmlseq.EventPlaybackEnded:
			clear(m.sounding)
			m.state = m.player.State()
		}
		return m, listenForEvents(m.events)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	playState := "STOP"
	switch m.state {
	case mmlseq.StatePlaying:
		playState = "PLAY"
	case mmlseq.StatePaused:
		playState = "PAUSE"
	}
	header := headerStyle.Render(fmt.Sprintf("mmlseq  %-5s  source:%s  wave:%s  loops:%d",
		playState, sources[m.source], waveforms[m.wave], m.loops))

	var out strings.Builder
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(highlight(m.text, m.sounding))
	out.WriteString("\n\n")
	for _, id := range []mmlseq.TrackID{mmlseq.Melody, mmlseq.Bass} {
		label := fmt.Sprintf("%-6s", id)
		if ev, ok := m.sounding[id]; ok {
			out.WriteString(noteStyle(id).Render(fmt.Sprintf(" %s %-4s ", label, mmlseq.NoteName(ev.Note))))
		} else {
			out.WriteString(dimStyle.Render(fmt.Sprintf(" %s ---  ", label)))
		}
		out.WriteString(" ")
	}
	out.WriteString("\n")
	for _, d := range m.diags {
		out.WriteString(errorStyle.Render(d))
		out.WriteString("\n")
	}
	if m.status != "" {
		out.WriteString(dimStyle.Render(m.status))
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("space:play/pause  s:stop  o:source  w:wave  e:export  q:quit"))
	return out.String()
}

func noteStyle(id mmlseq.TrackID) lipgloss.Style {
	return noteStyles[int(id)%len(noteStyles)]
}

type span struct {
	start, end int
	track      mmlseq.TrackID
}

// noteSpans locates the source text of each sounding note, ordered by
// position. Overlapping spans are dropped.
func noteSpans(text string, sounding map[mmlseq.TrackID]mmlseq.Event) []span {
	var spans []span
	for id, ev := range sounding {
		end := ev.EndPos
		if ev.Pos < 0 || end > len(text) || end <= ev.Pos {
			continue
		}
		spans = append(spans, span{start: ev.Pos, end: end, track: id})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := spans[:0]
	at := 0
	for _, s := range spans {
		if s.start < at {
			continue
		}
		out = append(out, s)
		at = s.end
	}
	return out
}

// highlight renders text with each sounding note styled by its track.
func highlight(text string, sounding map[mmlseq.TrackID]mmlseq.Event) string {
	var out strings.Builder
	at := 0
	for _, s := range noteSpans(text, sounding) {
		out.WriteString(text[at:s.start])
		out.WriteString(noteStyle(s.track).Render(text[s.start:s.end]))
		at = s.end
	}
	out.WriteString(text[at:])
	return out.String()
}
