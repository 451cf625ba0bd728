package js

import (
	"strconv"

	"github.com/chtl-lang/compiler/internal/loc"
)

// A TokenType is the type of a CHTL-JS Token.
type TokenType uint32

const (
	ErrorToken TokenType = iota
	// IdentToken is a JS identifier.
	IdentToken
	// StringToken is a quoted literal including its quotes, passed through
	// to the output verbatim.
	StringToken
	// NumberToken is a numeric literal.
	NumberToken
	// KeywordToken is one of the CHTL-JS block keywords: listen, delegate,
	// animate, vir, module, iNeverAway, load.
	KeywordToken
	// SelectorToken is the full content between paired `{{` and `}}`.
	SelectorToken
	// ArrowToken is `->`.
	ArrowToken
	// EventBindToken is `&->`.
	EventBindToken
	// FatArrowToken is `=>`.
	FatArrowToken
	// PunctToken is single-character punctuation.
	PunctToken
	// RawToken is a run of source the lexer passes through untouched:
	// operators, compound assignments, and anything else plain JS.
	RawToken
	WhitespaceToken
	CommentToken
	EOFToken
)

func (t TokenType) String() string {
	switch t {
	case ErrorToken:
		return "Error"
	case IdentToken:
		return "Ident"
	case StringToken:
		return "String"
	case NumberToken:
		return "Number"
	case KeywordToken:
		return "Keyword"
	case SelectorToken:
		return "Selector"
	case ArrowToken:
		return "Arrow"
	case EventBindToken:
		return "EventBind"
	case FatArrowToken:
		return "FatArrow"
	case PunctToken:
		return "Punct"
	case RawToken:
		return "Raw"
	case WhitespaceToken:
		return "Whitespace"
	case CommentToken:
		return "Comment"
	case EOFToken:
		return "EOF"
	}
	return "Invalid(" + strconv.Itoa(int(t)) + ")"
}

type Token struct {
	Type TokenType
	Data string
	Loc  loc.Loc
}

// blockKeywords are the structured block openers. Computed once at
// startup, never mutated.
var blockKeywords = map[string]bool{
	"listen":     true,
	"delegate":   true,
	"animate":    true,
	"vir":        true,
	"module":     true,
	"iNeverAway": true,
	"load":       true,
}

func IsBlockKeyword(s string) bool {
	return blockKeywords[s]
}
