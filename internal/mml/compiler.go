package mml

import "strings"

// Parse tokenizes and compiles text in one step.
func Parse(text string, cfg Config) (*Score, []Diagnostic) {
	toks := Tokenize(text)
	score, diags := Compile(toks, cfg)
	sections := splitSources(text, toks)
	for i := range score.Tracks {
		if i < len(sections) {
			score.Tracks[i].Source = sections[i]
		}
	}
	return score, diags
}

// Compile turns a token stream into per-track event sequences. Problems are
// collected as diagnostics while compilation keeps the last valid state.
func Compile(tokens []Token, cfg Config) (*Score, []Diagnostic) {
	cfg = normalizeConfig(cfg)
	score := &Score{}
	var diags []Diagnostic
	section := make([]Token, 0, len(tokens))
	flush := func() {
		id := TrackID(len(score.Tracks))
		tr, d := compileTrack(id, section, cfg)
		score.Tracks = append(score.Tracks, tr)
		diags = append(diags, d...)
		section = section[:0]
	}
	for _, tok := range tokens {
		if tok.Kind == TokenTrackBreak {
			flush()
			continue
		}
		section = append(section, tok)
	}
	flush()
	return score, diags
}

type compileState struct {
	cfg     Config
	id      TrackID
	octave  int
	length  int
	tempo   int
	elapsed float64
	events  []Event
	diags   []Diagnostic
	// dotTarget is the event a following '.' extends, -1 when dots are not allowed.
	dotTarget int
	dotTerm   float64
	tie       *Token
}

func compileTrack(id TrackID, tokens []Token, cfg Config) (Track, []Diagnostic) {
	st := &compileState{
		cfg:       cfg,
		id:        id,
		octave:    cfg.DefaultOctave,
		length:    cfg.DefaultLength,
		tempo:     cfg.DefaultTempo,
		events:    make([]Event, 0, len(tokens)),
		dotTarget: -1,
	}
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenError:
			st.report(tok.Err, tok.Text, tok.Pos)
			continue
		case TokenDot:
			st.applyDot(tok)
			continue
		case TokenNote:
			st.applyNote(tok)
			continue
		case TokenRest:
			st.applyRest(tok)
			continue
		}
		st.dotTarget = -1
		switch tok.Kind {
		case TokenTie:
			st.applyTie(tok)
		case TokenOctaveUp:
			st.setOctave(st.octave+1, tok)
		case TokenOctaveDown:
			st.setOctave(st.octave-1, tok)
		case TokenOctaveSet:
			st.setOctave(tok.Value, tok)
		case TokenLengthSet:
			if !st.validLength(tok.Value) {
				st.report(ErrLength, tok.Text, tok.Pos)
				continue
			}
			st.length = tok.Value
		case TokenTempoSet:
			if tok.Value < 1 || tok.Value > st.cfg.MaxTempo {
				st.report(ErrTempo, tok.Text, tok.Pos)
				continue
			}
			st.tempo = tok.Value
		}
	}
	if st.tie != nil {
		st.report(ErrMML, st.tie.Text, st.tie.Pos)
	}
	return Track{ID: id, Events: st.events}, st.diags
}

func (st *compileState) report(kind ErrorKind, note string, pos int) {
	st.diags = append(st.diags, Diagnostic{Kind: kind, Note: note, Pos: pos, Track: st.id})
}

func (st *compileState) validLength(n int) bool {
	return n >= 1 && n <= st.cfg.MaxLength
}

func (st *compileState) setOctave(octave int, tok Token) {
	if octave < st.cfg.MinOctave || octave > st.cfg.MaxOctave {
		st.report(ErrOctave, tok.Text, tok.Pos)
		return
	}
	st.octave = octave
}

// duration of a note or rest token in seconds at the current tempo.
func (st *compileState) duration(tok Token) float64 {
	length := st.length
	if hasNumber(tok) {
		if st.validLength(tok.Value) {
			length = tok.Value
		} else {
			st.report(ErrLength, tok.Text, tok.Pos)
		}
	}
	return (60 / float64(st.tempo)) * (4 / float64(length))
}

func (st *compileState) applyNote(tok Token) {
	dur := st.duration(tok)
	index := st.octave*12 + tok.Semitone - 9
	if tie := st.tie; tie != nil {
		st.tie = nil
		last := len(st.events) - 1
		if st.events[last].Note == index {
			ev := &st.events[last]
			ev.Duration += dur
			ev.Text += tie.Text + tok.Text
			ev.EndPos = tok.Pos + len(tok.Text)
			st.elapsed += dur
			st.dotTarget, st.dotTerm = last, dur
			return
		}
		st.report(ErrMML, tie.Text+tok.Text, tie.Pos)
	}
	if index < MinNoteIndex || index > MaxNoteIndex {
		st.report(ErrNote, tok.Text, tok.Pos)
		index = Rest
	}
	st.push(index, dur, tok)
}

func (st *compileState) applyRest(tok Token) {
	dur := st.duration(tok)
	if tie := st.tie; tie != nil {
		st.tie = nil
		st.report(ErrMML, tie.Text+tok.Text, tie.Pos)
	}
	st.push(Rest, dur, tok)
}

func (st *compileState) push(note int, dur float64, tok Token) {
	st.events = append(st.events, Event{
		Track:    st.id,
		Seq:      len(st.events),
		Note:     note,
		Start:    st.elapsed,
		Duration: dur,
		Text:     tok.Text,
		Pos:      tok.Pos,
		EndPos:   tok.Pos + len(tok.Text),
		Octave:   st.octave,
		Tempo:    st.tempo,
	})
	st.elapsed += dur
	st.dotTarget, st.dotTerm = len(st.events)-1, dur
}

func (st *compileState) applyDot(tok Token) {
	if st.dotTarget < 0 {
		st.report(ErrMML, tok.Text, tok.Pos)
		return
	}
	st.dotTerm /= 2
	ev := &st.events[st.dotTarget]
	ev.Duration += st.dotTerm
	ev.Text += tok.Text
	ev.EndPos = tok.Pos + len(tok.Text)
	st.elapsed += st.dotTerm
}

func (st *compileState) applyTie(tok Token) {
	if st.tie != nil || len(st.events) == 0 || st.events[len(st.events)-1].IsRest() {
		st.report(ErrMML, tok.Text, tok.Pos)
		return
	}
	t := tok
	st.tie = &t
}

func hasNumber(tok Token) bool {
	return tok.Text != "" && isDigit(tok.Text[len(tok.Text)-1])
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MaxOctave <= cfg.MinOctave {
		cfg.MinOctave, cfg.MaxOctave = def.MinOctave, def.MaxOctave
	}
	if cfg.DefaultOctave < cfg.MinOctave || cfg.DefaultOctave > cfg.MaxOctave {
		cfg.DefaultOctave = def.DefaultOctave
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.DefaultLength <= 0 || cfg.DefaultLength > cfg.MaxLength {
		cfg.DefaultLength = def.DefaultLength
	}
	if cfg.MaxTempo <= 0 {
		cfg.MaxTempo = def.MaxTempo
	}
	if cfg.DefaultTempo <= 0 || cfg.DefaultTempo > cfg.MaxTempo {
		cfg.DefaultTempo = def.DefaultTempo
	}
	return cfg
}

// splitSources cuts text at the track-break tokens so each track keeps the
// source it was compiled from.
func splitSources(text string, toks []Token) []string {
	var out []string
	start := 0
	for _, tok := range toks {
		if tok.Kind != TokenTrackBreak {
			continue
		}
		out = append(out, strings.TrimSpace(text[start:tok.Pos]))
		start = tok.Pos + len(tok.Text)
	}
	return append(out, strings.TrimSpace(text[start:]))
}
