package chtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type LexTest struct {
	name     string
	input    string
	expected []TokenType
}

func collect(input string, opts LexerOptions) []Token {
	lx := NewLexer(input, opts)
	var toks []Token
	for {
		t := lx.Next()
		toks = append(toks, t)
		if t.Type == EOFToken || t.Type == ErrorToken {
			return toks
		}
	}
}

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestLexerBasic(t *testing.T) {
	Cases := []LexTest{
		{
			"element open",
			`div {`,
			[]TokenType{IdentToken, PunctToken, EOFToken},
		},
		{
			"attribute",
			`id: box;`,
			[]TokenType{IdentToken, PunctToken, IdentToken, PunctToken, EOFToken},
		},
		{
			"string literal",
			`"hello"`,
			[]TokenType{StringToken, EOFToken},
		},
		{
			"bracket keyword",
			`[Template] @Element Card`,
			[]TokenType{KeywordToken, PunctToken, IdentToken, IdentToken, EOFToken},
		},
		{
			"word keywords",
			`style script text inherit delete except`,
			[]TokenType{KeywordToken, KeywordToken, KeywordToken, KeywordToken, KeywordToken, KeywordToken, EOFToken},
		},
		{
			"unquoted css value",
			`#fff`,
			[]TokenType{UnquotedToken, EOFToken},
		},
		{
			"number",
			`42`,
			[]TokenType{NumberToken, EOFToken},
		},
		{
			"generator comment",
			`-- generated`,
			[]TokenType{GeneratorCommentToken, EOFToken},
		},
		{
			"line comment",
			`// note`,
			[]TokenType{LineCommentToken, EOFToken},
		},
		{
			"block comment",
			`/* note */ div`,
			[]TokenType{BlockCommentToken, IdentToken, EOFToken},
		},
	}
	for _, c := range Cases {
		t.Run(c.name, func(t *testing.T) {
			toks := collect(c.input, DefaultLexerOptions())
			assert.Equal(t, c.expected, types(toks))
		})
	}
}

func TestLexerStringValue(t *testing.T) {
	toks := collect(`"a\nb"`, DefaultLexerOptions())
	assert.Equal(t, StringToken, toks[0].Type)
	assert.Equal(t, "a\nb", toks[0].Data)
}

func TestLexerUnterminatedString(t *testing.T) {
	lx := NewLexer(`"abc`, DefaultLexerOptions())
	tok := lx.Next()
	assert.Equal(t, ErrorToken, tok.Type)
	if assert.Len(t, lx.Errors(), 1) {
		assert.Equal(t, "string", lx.Errors()[0].State)
		assert.Equal(t, 0, lx.Errors()[0].Loc.Start)
	}
}

func TestLexerUnterminatedComment(t *testing.T) {
	lx := NewLexer(`/* abc`, DefaultLexerOptions())
	tok := lx.Next()
	assert.Equal(t, ErrorToken, tok.Type)
	if assert.Len(t, lx.Errors(), 1) {
		assert.Equal(t, "comment", lx.Errors()[0].State)
	}
}

func TestLexerMaxTokens(t *testing.T) {
	opts := DefaultLexerOptions()
	opts.MaxTokens = 2
	lx := NewLexer(`a b c d`, opts)
	lx.Next()
	lx.Next()
	tok := lx.Next()
	assert.Equal(t, ErrorToken, tok.Type)
	assert.Equal(t, ErrTokenLimit.Error(), tok.Data)
}

func TestLexerSkipComments(t *testing.T) {
	opts := DefaultLexerOptions()
	opts.SkipComments = true
	toks := collect("// skip me\ndiv", opts)
	assert.Equal(t, []TokenType{IdentToken, EOFToken}, types(toks))
}

func TestLexerTracksPositions(t *testing.T) {
	toks := collect(`div { id: box; }`, DefaultLexerOptions())
	assert.Equal(t, 0, toks[0].Loc.Start)
	assert.Equal(t, 4, toks[1].Loc.Start)
	assert.Equal(t, 6, toks[2].Loc.Start)
}

func TestRawBalanced(t *testing.T) {
	lx := NewLexer(`.card { color: red; } } trailing`, DefaultLexerOptions())
	body, _, ok := lx.RawBalanced()
	assert.True(t, ok)
	assert.Equal(t, `.card { color: red; } `, body)
}

func TestRawBalancedHonoursStrings(t *testing.T) {
	lx := NewLexer(`content: "}"; } rest`, DefaultLexerOptions())
	body, _, ok := lx.RawBalanced()
	assert.True(t, ok)
	assert.Equal(t, `content: "}"; `, body)
}

func TestTokenTypeStrings(t *testing.T) {
	assert.Equal(t, "Ident", IdentToken.String())
	assert.Equal(t, "GeneratorComment", GeneratorCommentToken.String())
	assert.Equal(t, "EOF", EOFToken.String())
}
