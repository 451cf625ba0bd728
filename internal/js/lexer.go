package js

import (
	"strconv"
	"strings"

	"github.com/chtl-lang/compiler/internal/loc"
)

// State identifies the lexer's current context. The lexer keeps an
// explicit stack; block states are pushed on keyword recognition and
// popped on the matching closing brace.
type State uint32

const (
	StateNormal State = iota
	StateString
	StateCommentSingle
	StateCommentMulti
	StateSelector
	StateListen
	StateDelegate
	StateAnimate
	StateVir
	StateModule
	StateCJModBlock
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateString:
		return "IN_STRING"
	case StateCommentSingle:
		return "IN_COMMENT_SINGLE"
	case StateCommentMulti:
		return "IN_COMMENT_MULTI"
	case StateSelector:
		return "IN_SELECTOR"
	case StateListen:
		return "IN_LISTEN"
	case StateDelegate:
		return "IN_DELEGATE"
	case StateAnimate:
		return "IN_ANIMATE"
	case StateVir:
		return "IN_VIR"
	case StateModule:
		return "IN_MODULE"
	case StateCJModBlock:
		return "IN_CJMOD_BLOCK"
	}
	return "Invalid(" + strconv.Itoa(int(s)) + ")"
}

type LexError struct {
	Message string
	Loc     loc.Loc
	State   State
}

// Lexer scans CHTL-JS source. Multi-character operators are recognised
// maximal-munch; everything it does not understand is passed through as
// raw JS.
type Lexer struct {
	src    string
	pos    int
	stack  []State
	errors []LexError
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: src, stack: []State{StateNormal}}
}

func (l *Lexer) Errors() []LexError {
	return l.errors
}

func (l *Lexer) State() State {
	return l.stack[len(l.stack)-1]
}

// PushState enters a block state and returns the matching pop. Callers
// defer the returned function so push/pop parity holds on every exit
// path.
func (l *Lexer) PushState(st State) func() {
	l.stack = append(l.stack, st)
	depth := len(l.stack)
	return func() {
		if len(l.stack) >= depth {
			l.stack = l.stack[:depth-1]
		}
	}
}

func (l *Lexer) addError(msg string, start int) {
	l.errors = append(l.errors, LexError{Message: msg, Loc: loc.Loc{Start: start}, State: l.State()})
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func isWordStart(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || ('0' <= c && c <= '9')
}

// Next returns the next token, skipping whitespace (whitespace inside raw
// runs is preserved in the run itself).
func (l *Lexer) Next() Token {
	for !l.eof() {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		break
	}
	start := l.pos
	if l.eof() {
		return Token{Type: EOFToken, Loc: loc.Loc{Start: start}}
	}
	c := l.src[l.pos]

	// Maximal-munch multi-character operators first.
	switch {
	case c == '{' && l.peekAt(1) == '{':
		return l.selector(start)
	case c == '&' && l.peekAt(1) == '-' && l.peekAt(2) == '>':
		l.pos += 3
		return Token{Type: EventBindToken, Data: "&->", Loc: loc.Loc{Start: start}}
	case c == '-' && l.peekAt(1) == '>':
		l.pos += 2
		return Token{Type: ArrowToken, Data: "->", Loc: loc.Loc{Start: start}}
	case c == '=' && l.peekAt(1) == '>':
		l.pos += 2
		return Token{Type: FatArrowToken, Data: "=>", Loc: loc.Loc{Start: start}}
	case c == '/' && l.peekAt(1) == '/':
		pop := l.PushState(StateCommentSingle)
		defer pop()
		for !l.eof() && l.src[l.pos] != '\n' {
			l.pos++
		}
		return Token{Type: CommentToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
	case c == '/' && l.peekAt(1) == '*':
		pop := l.PushState(StateCommentMulti)
		defer pop()
		l.pos += 2
		for !l.eof() {
			if l.src[l.pos] == '*' && l.peekAt(1) == '/' {
				l.pos += 2
				return Token{Type: CommentToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
			}
			l.pos++
		}
		l.addError("unterminated block comment", start)
		return Token{Type: ErrorToken, Data: "unterminated block comment", Loc: loc.Loc{Start: start}}
	case c == '"' || c == '\'' || c == '`':
		return l.str(start, c)
	case isWordStart(c):
		for !l.eof() && isWordPart(l.src[l.pos]) {
			l.pos++
		}
		word := l.src[start:l.pos]
		if IsBlockKeyword(word) {
			return Token{Type: KeywordToken, Data: word, Loc: loc.Loc{Start: start}}
		}
		return Token{Type: IdentToken, Data: word, Loc: loc.Loc{Start: start}}
	case '0' <= c && c <= '9':
		for !l.eof() && (isWordPart(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
		return Token{Type: NumberToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
	}

	switch c {
	case '{', '}', '(', ')', '[', ']', ';', ':', ',', '.', '=', '%':
		l.pos++
		return Token{Type: PunctToken, Data: string(c), Loc: loc.Loc{Start: start}}
	}

	// Anything else: a raw run up to the next character the lexer does
	// understand. Compound assignments and arithmetic land here.
	for !l.eof() {
		c := l.src[l.pos]
		if isWordStart(c) || ('0' <= c && c <= '9') ||
			strings.IndexByte("{}()[];:,.=%\"'` \t\n\r", c) >= 0 ||
			(c == '-' && l.peekAt(1) == '>') || (c == '&' && l.peekAt(1) == '-') {
			break
		}
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return Token{Type: RawToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
}

// selector captures everything between paired `{{` and `}}` as a single
// selector literal.
func (l *Lexer) selector(start int) Token {
	pop := l.PushState(StateSelector)
	defer pop()
	l.pos += 2
	depth := 1
	inner := l.pos
	for !l.eof() {
		if l.src[l.pos] == '{' && l.peekAt(1) == '{' {
			depth++
			l.pos += 2
			continue
		}
		if l.src[l.pos] == '}' && l.peekAt(1) == '}' {
			depth--
			if depth == 0 {
				data := strings.TrimSpace(l.src[inner:l.pos])
				l.pos += 2
				return Token{Type: SelectorToken, Data: data, Loc: loc.Loc{Start: start}}
			}
			l.pos += 2
			continue
		}
		l.pos++
	}
	l.addError("unterminated enhanced selector", start)
	return Token{Type: ErrorToken, Data: "unterminated enhanced selector", Loc: loc.Loc{Start: start}}
}

func (l *Lexer) str(start int, quote byte) Token {
	pop := l.PushState(StateString)
	defer pop()
	l.pos++
	for !l.eof() {
		c := l.src[l.pos]
		if c == '\\' {
			l.pos += 2
			continue
		}
		l.pos++
		if c == quote {
			return Token{Type: StringToken, Data: l.src[start:l.pos], Loc: loc.Loc{Start: start}}
		}
		if c == '\n' && quote != '`' {
			break
		}
	}
	l.addError("unterminated string literal", start)
	return Token{Type: ErrorToken, Data: "unterminated string literal", Loc: loc.Loc{Start: start}}
}

// RawBalanced captures source up to and excluding the brace matching an
// already-consumed `{`, honouring strings and comments. Used for handler
// bodies and opaque block payloads.
func (l *Lexer) RawBalanced() (string, bool) {
	start := l.pos
	depth := 1
	for !l.eof() {
		c := l.src[l.pos]
		switch c {
		case '{':
			depth++
			l.pos++
		case '}':
			depth--
			if depth == 0 {
				content := l.src[start:l.pos]
				l.pos++
				return content, true
			}
			l.pos++
		case '"', '\'', '`':
			l.skipRawString(c)
		case '/':
			if l.peekAt(1) == '*' {
				l.pos += 2
				for !l.eof() && !(l.src[l.pos] == '*' && l.peekAt(1) == '/') {
					l.pos++
				}
				l.pos += 2
			} else if l.peekAt(1) == '/' {
				for !l.eof() && l.src[l.pos] != '\n' {
					l.pos++
				}
			} else {
				l.pos++
			}
		default:
			l.pos++
		}
	}
	l.addError("unterminated block", start)
	return l.src[start:], false
}

// RawExpr captures a balanced JS expression up to a top-level `,` or `}`.
// Used for event handler values inside listen/delegate blocks.
func (l *Lexer) RawExpr() string {
	for !l.eof() {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		break
	}
	start := l.pos
	depth := 0
	for !l.eof() {
		c := l.src[l.pos]
		switch c {
		case '{', '(', '[':
			depth++
			l.pos++
		case ')', ']':
			if depth > 0 {
				depth--
			}
			l.pos++
		case '}':
			if depth == 0 {
				return strings.TrimSpace(l.src[start:l.pos])
			}
			depth--
			l.pos++
		case ',':
			if depth == 0 {
				return strings.TrimSpace(l.src[start:l.pos])
			}
			l.pos++
		case '"', '\'', '`':
			l.skipRawString(c)
		default:
			l.pos++
		}
	}
	return strings.TrimSpace(l.src[start:])
}

func (l *Lexer) skipRawString(quote byte) {
	l.pos++
	for !l.eof() {
		c := l.src[l.pos]
		if c == '\\' {
			l.pos += 2
			continue
		}
		l.pos++
		if c == quote {
			return
		}
	}
}
