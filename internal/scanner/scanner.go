// Package scanner slices a mixed-syntax CHTL source into typed fragments
// without pre-knowing block boundaries. It is the first stage of the
// pipeline; every downstream merge uses its emission order.
package scanner

import (
	"strconv"
	"strings"

	"github.com/chtl-lang/compiler/internal/loc"
	"github.com/dlclark/regexp2"
)

type FragmentType int

const (
	FragmentCHTL FragmentType = iota
	FragmentCHTLJS
	FragmentPureJS
	FragmentCSS
	FragmentHTML
	FragmentComment
)

func (t FragmentType) String() string {
	switch t {
	case FragmentCHTL:
		return "CHTL"
	case FragmentCHTLJS:
		return "CHTL_JS"
	case FragmentPureJS:
		return "PURE_JS"
	case FragmentCSS:
		return "CSS"
	case FragmentHTML:
		return "HTML"
	case FragmentComment:
		return "COMMENT"
	}
	return "Invalid(" + strconv.Itoa(int(t)) + ")"
}

// A Fragment is a contiguous, typed slice of the input. Content is the
// verbatim source slice (leading inter-fragment whitespace attributed to
// the fragment that follows it), so concatenating all fragments in order
// reproduces the input. Body is the inner block content for style/script
// fragments, without the `style {`/`script {` header and closing brace.
type Fragment struct {
	Type    FragmentType
	Content string
	Body    string
	Span    loc.Span
	Depth   int
}

type Options struct {
	// KeepGeneratorComments emits `--` comments as COMMENT fragments
	// instead of folding them into the surrounding CHTL fragment.
	KeepGeneratorComments bool
}

// selectorArrow matches `->` immediately following a closed enhanced
// selector, e.g. `{{.btn}} -> listen`. The lookbehind needs regexp2;
// the standard library engine cannot express it.
var selectorArrow = regexp2.MustCompile(`(?<=\}\})\s*->`, 0)

// topLevelBlock matches a CHTL-JS structured block keyword in statement
// position.
var topLevelBlock = regexp2.MustCompile(`(?m)^\s*(listen|delegate|animate|vir|module)\s*[\{:=a-zA-Z]`, 0)

type scanner struct {
	src   string
	pos   int
	start int // start of the pending (unemitted) source, including whitespace
	frags []Fragment
	diags []loc.Diagnostic
	opts  Options
}

// Scan performs a single forward pass over src and returns its fragments
// in source order together with any scan diagnostics.
func Scan(src string, opts Options) ([]Fragment, []loc.Diagnostic) {
	s := &scanner{src: src, opts: opts}
	s.run()
	return s.frags, s.diags
}

func (s *scanner) error(code loc.DiagnosticCode, text string, at int) {
	s.diags = append(s.diags, loc.Diagnostic{
		Severity: loc.ErrorType,
		Code:     code,
		Text:     text,
		Location: &loc.DiagnosticLocation{Line: 1 + strings.Count(s.src[:at], "\n"), Column: at - strings.LastIndexByte(s.src[:at], '\n'), Length: 1},
	})
}

func (s *scanner) emit(typ FragmentType, end int, body string, depth int) {
	if end <= s.start {
		return
	}
	s.frags = append(s.frags, Fragment{
		Type:    typ,
		Content: s.src[s.start:end],
		Body:    body,
		Span:    loc.Span{Start: s.start, End: end},
		Depth:   depth,
	})
	s.start = end
}

// flushCHTL emits any pending source before pos as a CHTL fragment.
func (s *scanner) flushCHTL() {
	if strings.TrimSpace(s.src[s.start:s.pos]) == "" {
		// Bare inter-fragment whitespace is attributed to the fragment
		// that follows, so leave it pending.
		return
	}
	s.emit(FragmentCHTL, s.pos, "", 0)
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '/' && s.peekAt(1) == '/':
			s.skipLine()
		case c == '/' && s.peekAt(1) == '*':
			if !s.skipBlockComment() {
				s.error(loc.ERROR_UNTERMINATED_COMMENT, "unterminated block comment", s.pos)
				s.pos = len(s.src)
			}
		case c == '-' && s.peekAt(1) == '-':
			if s.opts.KeepGeneratorComments {
				s.flushCHTL()
				start := s.pos
				s.skipLine()
				s.emit(FragmentComment, s.pos, strings.TrimSpace(s.src[start+2:s.pos]), 0)
			} else {
				s.skipLine()
			}
		case c == '"' || c == '\'':
			if !s.skipString(c) {
				s.error(loc.ERROR_UNTERMINATED_STRING, "unterminated string literal", s.pos)
				s.pos = len(s.src)
			}
		case s.matchWord("style") && s.nextNonSpaceIs("style", '{'):
			s.scanBlock("style")
		case s.matchWord("script") && s.nextNonSpaceIs("script", '{'):
			s.scanBlock("script")
		case c == '<' && s.atTopLevelHTML():
			s.scanHTML()
		case c == '{':
			s.skipBalanced()
		default:
			s.pos++
		}
	}
	// Whatever is pending at EOF is CHTL (or pure trailing whitespace,
	// which rides along with the final fragment to keep coverage exact).
	if strings.TrimSpace(s.src[s.start:]) != "" {
		s.emit(FragmentCHTL, len(s.src), "", 0)
	} else if s.start < len(s.src) && len(s.frags) > 0 {
		last := &s.frags[len(s.frags)-1]
		last.Content += s.src[s.start:]
		last.Span.End = len(s.src)
		s.start = len(s.src)
	}
}

func (s *scanner) peekAt(n int) byte {
	if s.pos+n >= len(s.src) {
		return 0
	}
	return s.src[s.pos+n]
}

func (s *scanner) skipLine() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *scanner) skipBlockComment() bool {
	s.pos += 2
	for s.pos < len(s.src) {
		if s.src[s.pos] == '*' && s.peekAt(1) == '/' {
			s.pos += 2
			return true
		}
		s.pos++
	}
	return false
}

func (s *scanner) skipString(quote byte) bool {
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		s.pos++
		if c == quote {
			return true
		}
		if c == '\n' {
			return true // the lexer reports this later with a precise span
		}
	}
	return false
}

// matchWord reports whether the word starts at pos on an identifier
// boundary and the scanner is currently at top level (depth 0), which is
// where the unified scanner carves out style/script blocks. Nested blocks
// belong to their enclosing CHTL element fragment.
func (s *scanner) matchWord(word string) bool {
	if !strings.HasPrefix(s.src[s.pos:], word) {
		return false
	}
	if s.pos > 0 {
		prev := s.src[s.pos-1]
		if prev == '_' || prev == '-' || ('a' <= prev && prev <= 'z') || ('A' <= prev && prev <= 'Z') || ('0' <= prev && prev <= '9') {
			return false
		}
	}
	return true
}

func (s *scanner) nextNonSpaceIs(word string, c byte) bool {
	i := s.pos + len(word)
	for i < len(s.src) && (s.src[i] == ' ' || s.src[i] == '\t' || s.src[i] == '\n' || s.src[i] == '\r') {
		i++
	}
	return i < len(s.src) && s.src[i] == c
}

// skipBalanced consumes a brace-balanced block verbatim, honouring
// strings and comments. Used for element bodies and declaration blocks,
// which stay inside the surrounding CHTL fragment.
func (s *scanner) skipBalanced() {
	open := s.pos
	depth := 0
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '{':
			depth++
			s.pos++
		case c == '}':
			depth--
			s.pos++
			if depth == 0 {
				return
			}
		case c == '"' || c == '\'':
			if !s.skipString(c) {
				s.pos = len(s.src)
			}
		case c == '/' && s.peekAt(1) == '*':
			if !s.skipBlockComment() {
				s.pos = len(s.src)
			}
		case c == '/' && s.peekAt(1) == '/':
			s.skipLine()
		default:
			s.pos++
		}
	}
	s.error(loc.ERROR_UNTERMINATED_BLOCK, "unterminated block", open)
}

// scanBlock carves out a top-level `style {` or `script {` block as its
// own fragment(s).
func (s *scanner) scanBlock(word string) {
	s.flushCHTL()
	blockStart := s.pos
	s.pos += len(word)
	for s.pos < len(s.src) && s.src[s.pos] != '{' {
		s.pos++
	}
	if s.pos >= len(s.src) {
		s.error(loc.ERROR_UNTERMINATED_BLOCK, "unterminated "+word+" block", blockStart)
		return
	}
	s.pos++ // '{'
	bodyStart := s.pos
	depth := 1
	for s.pos < len(s.src) && depth > 0 {
		c := s.src[s.pos]
		switch {
		case c == '{':
			depth++
			s.pos++
		case c == '}':
			depth--
			s.pos++
		case c == '"' || c == '\'':
			if !s.skipString(c) {
				s.pos = len(s.src)
			}
		case c == '/' && s.peekAt(1) == '*':
			if !s.skipBlockComment() {
				s.pos = len(s.src)
			}
		case c == '/' && s.peekAt(1) == '/':
			s.skipLine()
		default:
			s.pos++
		}
	}
	if depth > 0 {
		s.error(loc.ERROR_UNTERMINATED_BLOCK, "unterminated "+word+" block", blockStart)
		return
	}
	body := s.src[bodyStart : s.pos-1]
	if word == "style" {
		s.emit(FragmentCSS, s.pos, body, 1)
		return
	}
	s.emitScript(body, bodyStart)
}

// emitScript classifies a script body and emits one fragment, or splits a
// mixed body into alternating CHTL_JS / PURE_JS fragments on statement
// boundaries.
func (s *scanner) emitScript(body string, bodyStart int) {
	stmts := splitStatements(body)
	if len(stmts) < 2 {
		typ := FragmentPureJS
		if IsCHTLJS(body) {
			typ = FragmentCHTLJS
		}
		s.emit(typ, s.pos, body, 1)
		return
	}

	// Group contiguous statements of the same classification.
	type group struct {
		typ      FragmentType
		from, to int // byte offsets within body
	}
	var groups []group
	for _, st := range stmts {
		typ := FragmentPureJS
		if IsCHTLJS(body[st.from:st.to]) {
			typ = FragmentCHTLJS
		}
		if len(groups) > 0 && groups[len(groups)-1].typ == typ {
			groups[len(groups)-1].to = st.to
			continue
		}
		groups = append(groups, group{typ: typ, from: st.from, to: st.to})
	}
	if len(groups) == 1 {
		s.emit(groups[0].typ, s.pos, body, 1)
		return
	}
	// The first group carries the `script {` header; the last carries the
	// closing brace, keeping coverage exact.
	for i, g := range groups {
		end := bodyStart + g.to
		if i == len(groups)-1 {
			end = s.pos
		}
		s.emit(g.typ, end, body[g.from:g.to], 1)
	}
}

type stmtSpan struct {
	from, to int
}

// splitStatements splits a script body at top-level statement boundaries:
// a `;` or newline at brace/paren depth zero ends a statement.
func splitStatements(body string) []stmtSpan {
	var out []stmtSpan
	depth := 0
	from := 0
	i := 0
	flush := func(to int) {
		if strings.TrimSpace(body[from:to]) != "" {
			out = append(out, stmtSpan{from, to})
			from = to
		}
	}
	for i < len(body) {
		c := body[i]
		switch c {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			if depth > 0 {
				depth--
			}
		case '"', '\'', '`':
			for i++; i < len(body); i++ {
				if body[i] == '\\' {
					i++
					continue
				}
				if body[i] == c {
					break
				}
			}
		case ';', '\n':
			if depth == 0 {
				i++
				flush(i)
				continue
			}
		}
		i++
	}
	flush(len(body))
	return out
}

// IsCHTLJS reports whether a script body uses CHTL-JS syntax: an enhanced
// selector `{{…}}`, an arrow after a selector, an event binding `&->`, or
// a structured block in statement position.
func IsCHTLJS(body string) bool {
	if strings.Contains(body, "{{") || strings.Contains(body, "&->") {
		return true
	}
	if m, _ := selectorArrow.MatchString(body); m {
		return true
	}
	if m, _ := topLevelBlock.MatchString(body); m {
		return true
	}
	return false
}

// atTopLevelHTML reports whether pos begins a verbatim HTML run (a tag at
// top level, outside any CHTL block).
func (s *scanner) atTopLevelHTML() bool {
	if s.peekAt(1) == 0 {
		return false
	}
	c := s.peekAt(1)
	return c == '!' || c == '/' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// scanHTML consumes a contiguous run of verbatim HTML tags and text up to
// the next CHTL construct at top level.
func (s *scanner) scanHTML() {
	s.flushCHTL()
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '[' || (c == '-' && s.peekAt(1) == '-') {
			break
		}
		if c == '{' {
			break
		}
		if s.matchWord("style") && s.nextNonSpaceIs("style", '{') {
			break
		}
		if s.matchWord("script") && s.nextNonSpaceIs("script", '{') {
			break
		}
		s.pos++
	}
	s.emit(FragmentHTML, s.pos, "", 0)
}
