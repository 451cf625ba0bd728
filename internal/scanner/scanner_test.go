package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func totalLen(frags []Fragment) int {
	n := 0
	for _, f := range frags {
		n += len(f.Content)
	}
	return n
}

func TestScanSingleCHTLFragment(t *testing.T) {
	input := `div { id: box; "hello" }`
	frags, diags := Scan(input, Options{})
	assert.Empty(t, diags)
	require.Len(t, frags, 1)
	assert.Equal(t, FragmentCHTL, frags[0].Type)
	assert.Equal(t, input, frags[0].Content)
}

func TestScanTopLevelStyle(t *testing.T) {
	input := "style { .card { color: red; } }\ndiv { }"
	frags, diags := Scan(input, Options{})
	assert.Empty(t, diags)
	require.Len(t, frags, 2)
	assert.Equal(t, FragmentCSS, frags[0].Type)
	assert.Contains(t, frags[0].Body, ".card { color: red; }")
	assert.Equal(t, FragmentCHTL, frags[1].Type)
}

func TestScanScriptClassification(t *testing.T) {
	Cases := []struct {
		name     string
		input    string
		expected FragmentType
	}{
		{
			"enhanced selector is CHTL-JS",
			`script { {{.btn}} -> listen { click: f }; }`,
			FragmentCHTLJS,
		},
		{
			"event binding is CHTL-JS",
			"script { box &-> click { go(); }; }",
			FragmentCHTLJS,
		},
		{
			"vir block is CHTL-JS",
			"script {\nvir v = listen { click: f };\n}",
			FragmentCHTLJS,
		},
		{
			"module block is CHTL-JS",
			"script {\nmodule { load: a, b };\n}",
			FragmentCHTLJS,
		},
		{
			"plain js is pure",
			`script { console.log("hi"); }`,
			FragmentPureJS,
		},
	}
	for _, c := range Cases {
		t.Run(c.name, func(t *testing.T) {
			frags, _ := Scan(c.input, Options{})
			require.NotEmpty(t, frags)
			assert.Equal(t, c.expected, frags[0].Type)
		})
	}
}

func TestScanMixedScriptSplits(t *testing.T) {
	input := "script {\nvar a = 1;\nvar b = 2;\n{{.btn}} -> listen { click: f };\n}"
	frags, _ := Scan(input, Options{})
	require.Len(t, frags, 2)
	assert.Equal(t, FragmentPureJS, frags[0].Type)
	assert.Contains(t, frags[0].Body, "var a = 1;")
	assert.Equal(t, FragmentCHTLJS, frags[1].Type)
	assert.Contains(t, frags[1].Body, "{{.btn}}")
}

func TestScanCoverageInvariant(t *testing.T) {
	inputs := []string{
		`div { id: box; "hello" }`,
		"style { a { b: c; } }\nscript { var x = 1; }\ndiv { }",
		"script {\nvar a = 1;\n{{.x}} -> listen { click: f };\nvar b = 2;\n}",
		"[Template] @Element C { div { } }\nbody { @Element C; }",
		"",
		"   \n\t  ",
	}
	for _, input := range inputs {
		frags, _ := Scan(input, Options{})
		var joined strings.Builder
		for _, f := range frags {
			joined.WriteString(f.Content)
		}
		// fragments concatenate back to the input, modulo pure trailing
		// whitespace on empty inputs
		if strings.TrimSpace(input) == "" {
			assert.Empty(t, frags)
			continue
		}
		assert.Equal(t, input, joined.String())
		assert.Equal(t, len(input), totalLen(frags))
	}
}

func TestScanSpansDisjointAndOrdered(t *testing.T) {
	input := "style { a { b: c; } }\nscript { var x = 1; }\ndiv { }"
	frags, _ := Scan(input, Options{})
	require.True(t, len(frags) >= 3)
	for i := 1; i < len(frags); i++ {
		assert.Equal(t, frags[i-1].Span.End, frags[i].Span.Start, "spans must tile the input")
	}
	assert.Equal(t, 0, frags[0].Span.Start)
	assert.Equal(t, len(input), frags[len(frags)-1].Span.End)
}

func TestScanDeterministic(t *testing.T) {
	input := "script {\nvar a = 1;\n{{.x}} -> listen { click: f };\n}"
	first, _ := Scan(input, Options{})
	second, _ := Scan(input, Options{})
	assert.Equal(t, first, second)
}

func TestScanGeneratorComment(t *testing.T) {
	input := "-- build note\ndiv { }"
	frags, _ := Scan(input, Options{KeepGeneratorComments: true})
	require.Len(t, frags, 2)
	assert.Equal(t, FragmentComment, frags[0].Type)
	assert.Equal(t, "build note", frags[0].Body)
}

func TestScanUnterminatedBlock(t *testing.T) {
	_, diags := Scan("style { .a { color: red; ", Options{})
	require.NotEmpty(t, diags)
	assert.Equal(t, "unterminated style block", diags[0].Text)
}

func TestIsCHTLJS(t *testing.T) {
	assert.True(t, IsCHTLJS(`{{.btn}}.focus()`))
	assert.True(t, IsCHTLJS(`a &-> click { b() }`))
	assert.True(t, IsCHTLJS("\nanimate { duration: 200 }\n"))
	assert.False(t, IsCHTLJS(`console.log("listen carefully")`))
	assert.False(t, IsCHTLJS(`var x = a - b > c;`))
}
