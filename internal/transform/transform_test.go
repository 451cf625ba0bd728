package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chtl "github.com/chtl-lang/compiler/internal"
	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/namespace"
)

func setup(t *testing.T, input string) (*chtl.Node, *namespace.Table, *handler.Handler) {
	t.Helper()
	h := handler.NewHandler(input, "test.chtl")
	doc := chtl.Parse(input, h, chtl.DefaultParseOptions())
	require.NotNil(t, doc)
	return doc, namespace.NewTable(), h
}

func findElement(doc *chtl.Node, tag string) *chtl.Node {
	var found *chtl.Node
	chtl.Walk(doc, func(n *chtl.Node) {
		if found == nil && n.Type == chtl.ElementNode && n.Data == tag {
			found = n
		}
	})
	return found
}

func TestClassInjectionFromStyle(t *testing.T) {
	doc, table, h := setup(t, `div { style { .card { color: red; } } "hi" }`)
	Transform(doc, table, TransformOptions{}, h)

	div := findElement(doc, "div")
	require.NotNil(t, div)
	class, ok := div.GetAttribute("class")
	assert.True(t, ok)
	assert.Equal(t, "card", class)
}

func TestIDInjectionFromStyle(t *testing.T) {
	doc, table, h := setup(t, `div { style { #main { width: 100px; } } }`)
	Transform(doc, table, TransformOptions{}, h)
	id, ok := findElement(doc, "div").GetAttribute("id")
	assert.True(t, ok)
	assert.Equal(t, "main", id)
}

func TestFirstClassWins(t *testing.T) {
	doc, table, h := setup(t, `div { style { .first { a: b; } .second { c: d; } } }`)
	Transform(doc, table, TransformOptions{}, h)
	class, _ := findElement(doc, "div").GetAttribute("class")
	assert.Equal(t, "first", class)
}

func TestExistingClassNotOverwritten(t *testing.T) {
	doc, table, h := setup(t, `div { class: keep; style { .card { a: b; } } }`)
	Transform(doc, table, TransformOptions{}, h)
	class, _ := findElement(doc, "div").GetAttribute("class")
	assert.Equal(t, "keep", class)
}

func TestScriptInjectionOnlyWhenStyleDidNot(t *testing.T) {
	doc, table, h := setup(t, `div { script { {{.hook}} -> listen { click: f }; } }`)
	Transform(doc, table, TransformOptions{}, h)
	class, ok := findElement(doc, "div").GetAttribute("class")
	assert.True(t, ok)
	assert.Equal(t, "hook", class)
}

func TestScriptInjectionSkippedWhenStyleInjected(t *testing.T) {
	doc, table, h := setup(t, `div { style { .styled { a: b; } } script { {{.other}} -> listen { click: f }; } }`)
	Transform(doc, table, TransformOptions{}, h)
	class, _ := findElement(doc, "div").GetAttribute("class")
	assert.Equal(t, "styled", class)
}

func TestInjectionDisabled(t *testing.T) {
	doc, table, h := setup(t, `div { style { .card { a: b; } } }`)
	Transform(doc, table, TransformOptions{DisableStyleAutoClass: true}, h)
	_, ok := findElement(doc, "div").GetAttribute("class")
	assert.False(t, ok)
}

func TestAmpersandPrefersClassInStyle(t *testing.T) {
	doc, table, h := setup(t, `div { id: box; class: card; style { &:hover { color: red; } } }`)
	Transform(doc, table, TransformOptions{}, h)
	div := findElement(doc, "div")
	var style *chtl.Node
	for c := div.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == chtl.StyleNode {
			style = c
		}
	}
	require.NotNil(t, style)
	assert.Contains(t, style.Data, ".card:hover")
}

func TestAmpersandPrefersIDInScript(t *testing.T) {
	doc, table, h := setup(t, `div { id: box; class: card; script { {{&}} -> listen { click: f }; } }`)
	Transform(doc, table, TransformOptions{}, h)
	div := findElement(doc, "div")
	var script *chtl.Node
	for c := div.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == chtl.ScriptNode {
			script = c
		}
	}
	require.NotNil(t, script)
	assert.Contains(t, script.Data, "{{#box}}")
}

func TestExtractStyleSelectors(t *testing.T) {
	classes, ids := ExtractStyleSelectors(`.card { color: red; } #main { width: 1px; } .card:hover { a: b; }`)
	assert.Equal(t, []string{"card"}, classes)
	assert.Equal(t, []string{"main"}, ids)
}

func TestExtractScriptSelectors(t *testing.T) {
	classes, ids := ExtractScriptSelectors(`{{.btn}} -> listen { click: f }; {{#panel}}.toggle();`)
	assert.Equal(t, []string{"btn"}, classes)
	assert.Equal(t, []string{"panel"}, ids)
}

func TestSymbolRegistration(t *testing.T) {
	doc, table, h := setup(t, `[Template] @Element Card { div { } } [Custom] @Style Fancy { color: red; }`)
	BuildSymbols(doc, table, TransformOptions{}, h)
	assert.False(t, h.HasErrors())

	tpl, ok := table.Lookup(namespace.KindTemplate, "Card")
	assert.True(t, ok)
	assert.Equal(t, chtl.TemplateNode, tpl.Type)

	custom, ok := table.Lookup(namespace.KindCustom, "Fancy")
	assert.True(t, ok)
	assert.Equal(t, chtl.CustomNode, custom.Type)
}

func TestNamespaceScopedRegistration(t *testing.T) {
	doc, table, h := setup(t, `[Namespace] ui { [Template] @Element Button { button { } } }`)
	BuildSymbols(doc, table, TransformOptions{}, h)
	assert.False(t, h.HasErrors())

	def, ok := table.LookupFrom("ui", namespace.KindTemplate, "Button")
	assert.True(t, ok)
	assert.Equal(t, "Button", def.Data)
}

func TestUndefinedUseReported(t *testing.T) {
	doc, table, h := setup(t, `body { @Element Missing; }`)
	BuildSymbols(doc, table, TransformOptions{}, h)
	ResolveUses(doc, table, h)
	assert.True(t, h.HasErrors())
}

func TestUseCustomFlagSet(t *testing.T) {
	doc, table, h := setup(t, `[Custom] @Element Box { div { } } body { @Element Box; }`)
	BuildSymbols(doc, table, TransformOptions{}, h)
	ResolveUses(doc, table, h)
	var use *chtl.Node
	chtl.Walk(doc, func(n *chtl.Node) {
		if n.Type == chtl.UseNode {
			use = n
		}
	})
	require.NotNil(t, use)
	assert.True(t, use.UseCustom)
}
