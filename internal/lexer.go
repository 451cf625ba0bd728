package chtl

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chtl-lang/compiler/internal/loc"
)

// ErrTokenLimit means that the configured token limit was exceeded.
var ErrTokenLimit = errors.New("max tokens exceeded")

type LexerOptions struct {
	SkipWhitespace bool
	SkipComments   bool
	TrackPositions bool
	Strict         bool
	// MaxTokens bounds the number of tokens produced; zero means no limit.
	MaxTokens int
}

func DefaultLexerOptions() LexerOptions {
	return LexerOptions{
		SkipWhitespace: true,
		SkipComments:   false,
		TrackPositions: true,
	}
}

// A LexError records a token-level failure together with the lexer state
// that produced it. Error tokens are never discarded silently.
type LexError struct {
	Message   string
	Loc       loc.Loc
	Offending string
	State     string
}

// Lexer produces CHTL tokens from a source string.
type Lexer struct {
	src    string
	pos    int
	count  int
	opts   LexerOptions
	errors []LexError
}

func NewLexer(src string, opts LexerOptions) *Lexer {
	return &Lexer{src: src, opts: opts}
}

func (l *Lexer) Errors() []LexError {
	return l.errors
}

func (l *Lexer) addError(msg string, start int, state string) {
	end := l.pos
	if end > len(l.src) {
		end = len(l.src)
	}
	l.errors = append(l.errors, LexError{
		Message:   msg,
		Loc:       loc.Loc{Start: start},
		Offending: l.src[start:end],
		State:     state,
	})
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || ('0' <= c && c <= '9')
}

func isValueDelim(c byte) bool {
	switch c {
	case ';', '{', '}', '(', ')', ',', ' ', '\t', '\n', '\r', 0:
		return true
	}
	return false
}

// Next returns the next token. After EOFToken is returned, further calls
// keep returning EOFToken.
func (l *Lexer) Next() Token {
	if l.opts.MaxTokens > 0 && l.count >= l.opts.MaxTokens {
		l.addError(ErrTokenLimit.Error(), l.pos, "limit")
		return Token{Type: ErrorToken, Data: ErrTokenLimit.Error(), Loc: loc.Loc{Start: l.pos}}
	}
	tok := l.next()
	l.count++
	return tok
}

func (l *Lexer) next() Token {
	if !l.opts.SkipWhitespace {
		if t, ok := l.whitespace(); ok {
			return t
		}
	} else {
		l.skipSpace()
	}
	start := l.pos
	if l.eof() {
		return Token{Type: EOFToken, Loc: loc.Loc{Start: start}}
	}
	c := l.peek()

	switch {
	case c == '/' && l.peekAt(1) == '/':
		return l.lineComment(start)
	case c == '/' && l.peekAt(1) == '*':
		return l.blockComment(start)
	case c == '-' && l.peekAt(1) == '-':
		return l.generatorComment(start)
	case c == '"' || c == '\'':
		return l.str(start)
	case c == '[':
		if t, ok := l.bracketKeyword(start); ok {
			return t
		}
		l.pos++
		return Token{Type: PunctToken, Data: "[", Loc: loc.Loc{Start: start}}
	case isIdentStart(c):
		return l.identOrKeyword(start)
	case '0' <= c && c <= '9':
		return l.numberOrUnquoted(start)
	case c == '#' || c == '.' || c == '%' || c == '!':
		// CSS-flavoured unquoted values such as #fff or .5em
		return l.unquoted(start)
	}

	switch c {
	case '{', '}', '(', ')', ']', ';', ':', ',', '@', '=', '&', '*', '>', '+', '~':
		l.pos++
		return Token{Type: PunctToken, Data: string(c), Loc: loc.Loc{Start: start}}
	case '-':
		l.pos++
		return Token{Type: PunctToken, Data: "-", Loc: loc.Loc{Start: start}}
	}

	// Unrecognised byte; consume the full rune so we make progress.
	_, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	l.addError("invalid character", start, "default")
	tok := Token{Type: InvalidToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
	if l.opts.Strict {
		tok.Type = ErrorToken
	}
	return tok
}

func (l *Lexer) skipSpace() {
	for !l.eof() {
		c := l.peek()
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		break
	}
}

func (l *Lexer) whitespace() (Token, bool) {
	start := l.pos
	l.skipSpace()
	if l.pos > start {
		return Token{Type: WhitespaceToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}, true
	}
	return Token{}, false
}

func (l *Lexer) lineComment(start int) Token {
	for !l.eof() && l.peek() != '\n' {
		l.pos++
	}
	if l.opts.SkipComments {
		return l.next()
	}
	return Token{Type: LineCommentToken, Data: strings.TrimSpace(l.src[start+2 : l.pos]), Loc: loc.Loc{Start: start}}
}

func (l *Lexer) blockComment(start int) Token {
	l.pos += 2
	for !l.eof() {
		if l.peek() == '*' && l.peekAt(1) == '/' {
			l.pos += 2
			if l.opts.SkipComments {
				return l.next()
			}
			return Token{Type: BlockCommentToken, Data: strings.TrimSpace(l.src[start+2 : l.pos-2]), Loc: loc.Loc{Start: start}}
		}
		l.pos++
	}
	l.addError("unterminated block comment", start, "comment")
	return Token{Type: ErrorToken, Data: "unterminated block comment", Loc: loc.Loc{Start: start}}
}

func (l *Lexer) generatorComment(start int) Token {
	l.pos += 2
	for !l.eof() && l.peek() != '\n' {
		l.pos++
	}
	return Token{Type: GeneratorCommentToken, Data: strings.TrimSpace(l.src[start+2 : l.pos]), Loc: loc.Loc{Start: start}}
}

func (l *Lexer) str(start int) Token {
	quote := l.peek()
	l.pos++
	var b strings.Builder
	for !l.eof() {
		c := l.peek()
		switch c {
		case quote:
			l.pos++
			return Token{Type: StringToken, Data: b.String(), Loc: loc.Loc{Start: start}}
		case '\\':
			l.pos++
			if l.eof() {
				break
			}
			switch l.peek() {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(l.peek())
			}
			l.pos++
		case '\n':
			// strings do not span lines
			l.addError("unterminated string literal", start, "string")
			return Token{Type: ErrorToken, Data: "unterminated string literal", Loc: loc.Loc{Start: start}}
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	l.addError("unterminated string literal", start, "string")
	return Token{Type: ErrorToken, Data: "unterminated string literal", Loc: loc.Loc{Start: start}}
}

func (l *Lexer) bracketKeyword(start int) (Token, bool) {
	end := l.pos + 1
	for end < len(l.src) && l.src[end] != ']' && l.src[end] != '\n' {
		end++
	}
	if end >= len(l.src) || l.src[end] != ']' {
		return Token{}, false
	}
	word := l.src[start : end+1]
	if IsBracketKeyword(word) {
		l.pos = end + 1
		return Token{Type: KeywordToken, Data: word, Loc: loc.Loc{Start: start}}, true
	}
	return Token{}, false
}

func (l *Lexer) identOrKeyword(start int) Token {
	for !l.eof() && isIdentPart(l.peek()) {
		l.pos++
	}
	word := l.src[start:l.pos]
	if IsWordKeyword(word) {
		return Token{Type: KeywordToken, Data: word, Loc: loc.Loc{Start: start}}
	}
	return Token{Type: IdentToken, Data: word, Loc: loc.Loc{Start: start}}
}

func (l *Lexer) numberOrUnquoted(start int) Token {
	sawNonDigit := false
	for !l.eof() && !isValueDelim(l.peek()) && l.peek() != ':' {
		c := l.peek()
		if !('0' <= c && c <= '9') && c != '.' {
			sawNonDigit = true
		}
		l.pos++
	}
	if sawNonDigit {
		return Token{Type: UnquotedToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
	}
	return Token{Type: NumberToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
}

func (l *Lexer) unquoted(start int) Token {
	for !l.eof() && !isValueDelim(l.peek()) && l.peek() != ':' {
		l.pos++
	}
	return Token{Type: UnquotedToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
}

// RawBalanced captures everything up to and excluding the brace matching
// an already-consumed opening brace. Strings and comments are honoured so
// braces inside them do not count. Used for style, script, and origin
// bodies, which are stored verbatim.
func (l *Lexer) RawBalanced() (string, loc.Loc, bool) {
	start := l.pos
	depth := 1
	for !l.eof() {
		c := l.peek()
		switch c {
		case '{':
			depth++
			l.pos++
		case '}':
			depth--
			if depth == 0 {
				content := l.src[start:l.pos]
				l.pos++
				return content, loc.Loc{Start: start}, true
			}
			l.pos++
		case '"', '\'':
			l.skipRawString(c)
		case '/':
			if l.peekAt(1) == '*' {
				l.skipRawBlockComment()
			} else if l.peekAt(1) == '/' {
				for !l.eof() && l.peek() != '\n' {
					l.pos++
				}
			} else {
				l.pos++
			}
		default:
			l.pos++
		}
	}
	l.addError("unterminated block", start, "raw")
	return l.src[start:], loc.Loc{Start: start}, false
}

func (l *Lexer) skipRawString(quote byte) {
	l.pos++
	for !l.eof() {
		c := l.peek()
		if c == '\\' {
			l.pos += 2
			continue
		}
		l.pos++
		if c == quote || c == '\n' {
			return
		}
	}
}

func (l *Lexer) skipRawBlockComment() {
	l.pos += 2
	for !l.eof() {
		if l.peek() == '*' && l.peekAt(1) == '/' {
			l.pos += 2
			return
		}
		l.pos++
	}
}

// RawValue captures an attribute or declaration value up to an unnested
// ';' or '}' and trims surrounding space. Supports unquoted CSS shorthand
// values containing spaces, e.g. `border: 1px solid red;`.
func (l *Lexer) RawValue() (string, loc.Loc) {
	l.skipSpace()
	start := l.pos
	depth := 0
	for !l.eof() {
		c := l.peek()
		if depth == 0 && (c == ';' || c == '}') {
			break
		}
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '"', '\'':
			l.skipRawString(c)
			continue
		}
		l.pos++
	}
	return strings.TrimRightFunc(l.src[start:l.pos], unicode.IsSpace), loc.Loc{Start: start}
}
