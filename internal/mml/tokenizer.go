package mml

import (
	"strconv"
	"unicode/utf8"
)

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// Tokenize lexes MML text. It never fails: malformed numbers and unknown
// characters come back as TokenError entries and lexing carries on.
func Tokenize(text string) []Token {
	src, open := stripComments(text)
	toks := make([]Token, 0, len(src)/2+1)
	i := 0
	for i < len(src) {
		ch := lower(src[i])
		switch {
		case isSpace(ch):
			i++
		case ch == '|':
			start := i
			for i < len(src) && src[i] == '|' {
				i++
			}
			toks = append(toks, Token{Kind: TokenTrackBreak, Text: src[start:i], Pos: start})
		case isNote(ch):
			tok, next, bad := lexNote(src, i)
			toks = append(toks, tok)
			if bad != nil {
				toks = append(toks, *bad)
			}
			i = next
		case ch == 'r':
			val, next, ok := lexNumber(src, i+1)
			tok := Token{Kind: TokenRest, Text: src[i:next], Pos: i}
			if ok {
				tok.Value = val
				toks = append(toks, tok)
			} else {
				tok.Text = src[i : i+1]
				toks = append(toks, tok, Token{Kind: TokenError, Err: ErrLength, Text: src[i:next], Pos: i})
			}
			i = next
		case ch == 'o' || ch == 'l' || ch == 't':
			kind, errKind := directiveKinds(ch)
			val, next, ok := lexNumber(src, i+1)
			if !ok || next == i+1 {
				toks = append(toks, Token{Kind: TokenError, Err: errKind, Text: src[i:next], Pos: i})
			} else {
				toks = append(toks, Token{Kind: kind, Text: src[i:next], Pos: i, Value: val})
			}
			i = next
		case ch == '>':
			toks = append(toks, Token{Kind: TokenOctaveUp, Text: ">", Pos: i})
			i++
		case ch == '<':
			toks = append(toks, Token{Kind: TokenOctaveDown, Text: "<", Pos: i})
			i++
		case ch == '&':
			toks = append(toks, Token{Kind: TokenTie, Text: "&", Pos: i})
			i++
		case ch == '.':
			toks = append(toks, Token{Kind: TokenDot, Text: ".", Pos: i})
			i++
		case isDigit(ch):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			toks = append(toks, Token{Kind: TokenError, Err: ErrMML, Text: src[start:i], Pos: start})
		case isAlpha(ch):
			toks = append(toks, Token{Kind: TokenError, Err: ErrNote, Text: src[i : i+1], Pos: i})
			i++
		default:
			_, size := utf8.DecodeRuneInString(src[i:])
			toks = append(toks, Token{Kind: TokenError, Err: ErrMML, Text: src[i : i+size], Pos: i})
			i += size
		}
	}
	if open >= 0 {
		toks = append(toks, Token{Kind: TokenError, Err: ErrMML, Text: "/*", Pos: open})
	}
	return toks
}

func directiveKinds(ch byte) (TokenKind, ErrorKind) {
	switch ch {
	case 'o':
		return TokenOctaveSet, ErrOctave
	case 'l':
		return TokenLengthSet, ErrLength
	default:
		return TokenTempoSet, ErrTempo
	}
}

// lexNote reads a note letter, its accidentals and an optional length.
// An unparseable length is reported through the second token.
func lexNote(s string, at int) (Token, int, *Token) {
	semitone := noteOffsets[lower(s[at])]
	i := at + 1
	for i < len(s) {
		switch s[i] {
		case '#', '+':
			semitone++
			i++
			continue
		case '-':
			semitone--
			i++
			continue
		}
		break
	}
	val, next, ok := lexNumber(s, i)
	tok := Token{Kind: TokenNote, Text: s[at:next], Pos: at, Semitone: semitone}
	if !ok {
		tok.Text = s[at:i]
		return tok, next, &Token{Kind: TokenError, Err: ErrLength, Text: s[i:next], Pos: i}
	}
	tok.Value = val
	return tok, next, nil
}

// lexNumber consumes a run of digits. ok is false when the run does not fit
// in an int; a missing number is ok with value 0.
func lexNumber(s string, at int) (int, int, bool) {
	i := at
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == at {
		return 0, i, true
	}
	n, err := strconv.Atoi(s[at:i])
	if err != nil {
		return 0, i, false
	}
	return n, i, true
}

// stripComments blanks out // and /* */ comments, keeping byte offsets
// stable so token positions still index the caller's text. An unterminated
// block comment runs to the end of the input; open is the offset of its
// opener, or -1.
func stripComments(src string) (out string, open int) {
	buf := []byte(src)
	changed := false
	open = -1
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] != '/' {
			continue
		}
		switch buf[i+1] {
		case '/':
			changed = true
			for i < len(buf) && buf[i] != '\n' {
				buf[i] = ' '
				i++
			}
		case '*':
			changed = true
			open = i
			buf[i], buf[i+1] = ' ', ' '
			i += 2
			for i < len(buf) {
				if i+1 < len(buf) && buf[i] == '*' && buf[i+1] == '/' {
					buf[i], buf[i+1] = ' ', ' '
					open = -1
					i++
					break
				}
				if buf[i] != '\n' {
					buf[i] = ' '
				}
				i++
			}
		}
	}
	if !changed {
		return src, open
	}
	return string(buf), open
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\r' || b == '\t' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isNote(b byte) bool  { _, ok := noteOffsets[b]; return ok }
