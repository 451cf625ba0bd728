package chtl

import (
	"strconv"

	"github.com/chtl-lang/compiler/internal/loc"
)

// A TokenType is the type of a Token.
type TokenType uint32

const (
	// ErrorToken means that an error occurred during tokenization.
	ErrorToken TokenType = iota
	// IdentToken is a bare identifier: a tag name, attribute name, or
	// template/custom/origin name.
	IdentToken
	// StringToken is a quoted literal, single or double quotes.
	StringToken
	// NumberToken is a numeric literal.
	NumberToken
	// UnquotedToken is an unquoted literal accepted wherever a string is
	// expected, most commonly CSS values such as `red` in `color: red;`.
	UnquotedToken
	// KeywordToken covers both word keywords (text, style, script, inherit,
	// delete, except, use, from, as) and bracket keywords ([Template],
	// [Custom], [Origin], [Configuration], [Namespace], [Import], [Info],
	// [Export]).
	KeywordToken
	// PunctToken is single-character punctuation: { } ( ) [ ] ; : , @ = & * > + ~ -
	// (a `.` starts an unquoted literal instead).
	PunctToken
	// OperatorToken covers multi-character operators.
	OperatorToken
	// LineCommentToken is a // comment.
	LineCommentToken
	// BlockCommentToken is a /* */ comment.
	BlockCommentToken
	// GeneratorCommentToken is a -- comment, preserved through generation
	// when the configuration requests.
	GeneratorCommentToken
	// WhitespaceToken is emitted only when SkipWhitespace is disabled.
	WhitespaceToken
	// EOFToken marks the end of input.
	EOFToken
	// InvalidToken is an unrecognised character run. Invalid tokens are
	// never discarded silently; each one produces a lexer error entry.
	InvalidToken
)

// String returns a string representation of the TokenType.
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
	case UnquotedToken:
		return "Unquoted"
	case KeywordToken:
		return "Keyword"
	case PunctToken:
		return "Punct"
	case OperatorToken:
		return "Operator"
	case LineCommentToken:
		return "LineComment"
	case BlockCommentToken:
		return "BlockComment"
	case GeneratorCommentToken:
		return "GeneratorComment"
	case WhitespaceToken:
		return "Whitespace"
	case EOFToken:
		return "EOF"
	case InvalidToken:
		return "Invalid"
	}
	return "Invalid(" + strconv.Itoa(int(t)) + ")"
}

// A Token consists of a TokenType and its Data (identifier text, literal
// value with quotes stripped, keyword spelling, or punctuation).
type Token struct {
	Type TokenType
	Data string
	Loc  loc.Loc
}

func (t Token) String() string {
	switch t.Type {
	case EOFToken:
		return ""
	case StringToken:
		return strconv.Quote(t.Data)
	default:
		return t.Data
	}
}

// bracketKeywords are the top-level declaration openers. The table is
// computed once at startup and never mutated.
var bracketKeywords = map[string]bool{
	"[Template]":      true,
	"[Custom]":        true,
	"[Origin]":        true,
	"[Configuration]": true,
	"[Namespace]":     true,
	"[Import]":        true,
	"[Info]":          true,
	"[Export]":        true,
}

var wordKeywords = map[string]bool{
	"text":    true,
	"style":   true,
	"script":  true,
	"inherit": true,
	"delete":  true,
	"except":  true,
	"use":     true,
	"from":    true,
	"as":      true,
}

// IsBracketKeyword reports whether s is a [Keyword] form declaration opener.
func IsBracketKeyword(s string) bool {
	return bracketKeywords[s]
}

// IsWordKeyword reports whether s is a reserved word keyword.
func IsWordKeyword(s string) bool {
	return wordKeywords[s]
}
