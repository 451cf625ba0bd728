package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chtl "github.com/chtl-lang/compiler/internal"
	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/namespace"
	"github.com/chtl-lang/compiler/internal/transform"
)

func render(t *testing.T, input string, opts RenderOptions) (PrintResult, *handler.Handler) {
	t.Helper()
	h := handler.NewHandler(input, "test.chtl")
	doc := chtl.Parse(input, h, chtl.DefaultParseOptions())
	require.NotNil(t, doc)
	table := namespace.NewTable()
	transform.Transform(doc, table, transform.TransformOptions{}, h)
	return PrintDocument(doc, table, opts, h), h
}

func TestPrintSimpleElement(t *testing.T) {
	pr, h := render(t, `div { id: box; "hello" }`, RenderOptions{})
	assert.False(t, h.HasErrors())
	assert.Equal(t, `<div id="box">hello</div>`, string(pr.HTML))
	assert.Empty(t, pr.CSS)
	assert.Empty(t, pr.Scripts)
}

func TestPrintClassAutomation(t *testing.T) {
	pr, _ := render(t, `div { style { .card { color: red; } } "hi" }`, RenderOptions{})
	assert.Equal(t, `<div class="card">hi</div>`, string(pr.HTML))
	assert.Equal(t, ".card { color: red; }\n", string(pr.CSS))
}

func TestPrintTemplateExpansion(t *testing.T) {
	pr, h := render(t, `[Template] @Element Card { div { "$ {label}" } } body { @Element Card(label="x"); }`, RenderOptions{})
	assert.False(t, h.HasErrors())
	assert.Contains(t, string(pr.HTML), "<body><div>x</div></body>")
}

func TestPrintVarSubstitution(t *testing.T) {
	pr, h := render(t, `[Template] @Var G { accent = tomato; } div { style { .b { color: G(accent); } } }`, RenderOptions{})
	assert.False(t, h.HasErrors())
	assert.Contains(t, string(pr.CSS), "color: tomato;")
}

func TestPrintVarUnknownKeyReported(t *testing.T) {
	_, h := render(t, `[Template] @Var G { accent = tomato; } div { style { .b { color: G(missing); } } }`, RenderOptions{})
	assert.True(t, h.HasErrors())
}

func TestPrintCustomStyleSpecialisation(t *testing.T) {
	input := `[Custom] @Style Base { color: red; border: 1px solid black; }
div { @Style Base { color: blue; delete border; } }`
	pr, h := render(t, input, RenderOptions{})
	assert.False(t, h.HasErrors())
	html := string(pr.HTML)
	assert.Contains(t, html, "color: blue")
	assert.NotContains(t, html, "border")
	assert.NotContains(t, html, "red")
}

func TestPrintStyleInheritance(t *testing.T) {
	input := `[Template] @Style Base { color: red; padding: 4px; }
[Custom] @Style Fancy { inherit @Style Base; color: blue; }
div { @Style Fancy; }`
	pr, h := render(t, input, RenderOptions{})
	assert.False(t, h.HasErrors())
	html := string(pr.HTML)
	assert.Contains(t, html, "color: blue")
	assert.Contains(t, html, "padding: 4px")
}

func TestPrintDeleteInheritSevers(t *testing.T) {
	input := `[Template] @Style Base { padding: 4px; }
[Custom] @Style Bare { inherit @Style Base; color: blue; delete inherit; }
div { @Style Bare; }`
	pr, _ := render(t, input, RenderOptions{})
	html := string(pr.HTML)
	assert.Contains(t, html, "color: blue")
	assert.NotContains(t, html, "padding")
}

func TestPrintOriginPassthrough(t *testing.T) {
	input := `[Origin] @Html Raw { <b>bold & raw</b> } body { @Html Raw; }`
	pr, h := render(t, input, RenderOptions{})
	assert.False(t, h.HasErrors())
	assert.Contains(t, string(pr.HTML), "<b>bold & raw</b>")
}

func TestPrintVoidElement(t *testing.T) {
	pr, _ := render(t, `div { img { src: photo.png; } }`, RenderOptions{})
	assert.Equal(t, `<div><img src="photo.png"/></div>`, string(pr.HTML))
}

func TestPrintEscapesText(t *testing.T) {
	pr, _ := render(t, `div { "a < b & c" }`, RenderOptions{})
	assert.Equal(t, `<div>a &lt; b &amp; c</div>`, string(pr.HTML))
}

func TestPrintGeneratorComment(t *testing.T) {
	pr, _ := render(t, "-- note\ndiv { }", RenderOptions{KeepGeneratorComments: true})
	assert.Contains(t, string(pr.HTML), "<!-- note -->")

	pr, _ = render(t, "-- note\ndiv { }", RenderOptions{})
	assert.NotContains(t, string(pr.HTML), "note")
}

func TestPrintDoctype(t *testing.T) {
	pr, _ := render(t, "use html5;\nhtml { body { } }", RenderOptions{})
	assert.Contains(t, string(pr.HTML), "<!DOCTYPE html>")
}

func TestPrintCollectsScripts(t *testing.T) {
	pr, _ := render(t, `div { script { console.log("x"); } }`, RenderOptions{})
	require.Len(t, pr.Scripts, 1)
	assert.Contains(t, pr.Scripts[0], `console.log("x");`)
}

// Generating twice from the same tree yields byte-identical outputs.
func TestPrintIdempotent(t *testing.T) {
	input := `[Template] @Element C { div { "v" } } body { @Element C; style { .x { a: b; } } }`
	h := handler.NewHandler(input, "test.chtl")
	doc := chtl.Parse(input, h, chtl.DefaultParseOptions())
	table := namespace.NewTable()
	transform.Transform(doc, table, transform.TransformOptions{}, h)

	first := PrintDocument(doc, table, RenderOptions{}, h)
	second := PrintDocument(doc, table, RenderOptions{}, h)
	assert.Equal(t, string(first.HTML), string(second.HTML))
	assert.Equal(t, string(first.CSS), string(second.CSS))
}
