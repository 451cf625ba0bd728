package printer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/js"
	"github.com/chtl-lang/compiler/internal/test_utils"
)

func renderJS(t *testing.T, input string, opts JSOptions) (string, *handler.Handler) {
	t.Helper()
	h := handler.NewHandler(input, "test.cjjs")
	prog := js.Parse(input, h)
	require.NotNil(t, prog)
	return string(PrintScript(prog, opts, h)), h
}

func TestPrintScriptPrelude(t *testing.T) {
	out, _ := renderJS(t, `var x = 1;`, DefaultJSOptions())
	assert.Contains(t, out, "var CHTLSelector = {")
	assert.Contains(t, out, "var CHTLEventDelegation = (function() {")
	assert.Contains(t, out, "var CHTLAnimation = (function() {")
	assert.Contains(t, out, "var CHTLVirtualObjects = {};")
	assert.Contains(t, out, "'use strict';")
	assert.NotContains(t, out, "CHTLModuleLoader", "module loader only emits when a module block is present")
}

func TestPrintSelectorListen(t *testing.T) {
	out, h := renderJS(t, `{{.btn}} -> listen { click: function(){} };`, DefaultJSOptions())
	assert.False(t, h.HasErrors())
	assert.Contains(t, out, "CHTLSelector.byClass('.btn').addEventListener('click', function(){});")
}

func TestPrintListenMultipleEvents(t *testing.T) {
	out, _ := renderJS(t, `{{#menu}} -> listen { click: a, mouseover: b };`, DefaultJSOptions())
	assert.Contains(t, out, "CHTLSelector.byId('#menu').addEventListener('click', a);")
	assert.Contains(t, out, "CHTLSelector.byId('#menu').addEventListener('mouseover', b);")
}

func TestPrintSelectorKinds(t *testing.T) {
	Cases := []struct {
		input    string
		expected string
	}{
		{`{{.a}}`, "CHTLSelector.byClass('.a')"},
		{`{{#b}}`, "CHTLSelector.byId('#b')"},
		{`{{span}}`, "CHTLSelector.byTag('span')"},
		{`{{div .x}}`, "CHTLSelector.query('div .x')"},
		{`{{.item}}[3]`, "CHTLSelector.byClass('.item')[3]"},
	}
	for _, c := range Cases {
		t.Run(c.input, func(t *testing.T) {
			out, _ := renderJS(t, c.input, DefaultJSOptions())
			assert.Contains(t, out, c.expected)
		})
	}
}

func TestPrintEventBinding(t *testing.T) {
	out, _ := renderJS(t, `{{#save}} &-> click { submit(); }`, DefaultJSOptions())
	assert.Contains(t, out, "CHTLSelector.byId('#save').addEventListener('click', function(event) { submit(); });")
}

func TestPrintArrowFlattens(t *testing.T) {
	out, _ := renderJS(t, `{{#box}} -> innerText`, DefaultJSOptions())
	assert.Contains(t, out, "CHTLSelector.byId('#box').innerText")
}

func TestPrintDelegate(t *testing.T) {
	out, _ := renderJS(t, `{{#list}} -> delegate { target: {{.item}}, click: onItem };`, DefaultJSOptions())
	assert.Contains(t, out, "CHTLEventDelegation.delegate(CHTLSelector.byId('#list'), '.item', 'click', onItem);")
}

func TestPrintAnimate(t *testing.T) {
	out, _ := renderJS(t, `{{.card}} -> animate { duration: 400, easing: 'ease-in' };`, DefaultJSOptions())
	assert.Contains(t, out, "CHTLAnimation.animate({")
	assert.Contains(t, out, "target: CHTLSelector.byClass('.card')")
	assert.Contains(t, out, "duration: 400")
	assert.Contains(t, out, "easing: 'ease-in'")
}

func TestPrintVirtualObject(t *testing.T) {
	out, _ := renderJS(t, `vir Saver = listen { click: save };`, DefaultJSOptions())
	assert.Contains(t, out, "CHTLVirtualObjects.saver = {")
	assert.Contains(t, out, "click: save")
}

func TestPrintModuleFormats(t *testing.T) {
	input := `module { load: "./a.js", "./b.js" };`

	amd, _ := renderJS(t, input, JSOptions{WrapIIFE: true, Format: ModuleAMD})
	assert.Contains(t, amd, "var CHTLModuleLoader = (function() {")
	assert.Contains(t, amd, "CHTLModuleLoader.load('./a.js', function() {});")

	cjs, _ := renderJS(t, input, JSOptions{WrapIIFE: true, Format: ModuleCommonJS})
	assert.Contains(t, cjs, "require('./a.js');")

	es6, _ := renderJS(t, input, JSOptions{WrapIIFE: true, Format: ModuleES6})
	assert.Contains(t, es6, "import './a.js';")
}

func TestPrintModuleLoadOrderOverride(t *testing.T) {
	out, _ := renderJS(t, `module { load: "b", "a" };`, JSOptions{WrapIIFE: true, LoadOrder: []string{"a", "b"}})
	ia := strings.Index(out, "load('a'")
	ib := strings.Index(out, "load('b'")
	require.True(t, ia >= 0 && ib >= 0)
	assert.Less(t, ia, ib)
}

func TestPrintMinify(t *testing.T) {
	out, _ := renderJS(t, `{{.a}} -> listen { click: f };`, JSOptions{WrapIIFE: true, Minify: true})
	assert.NotContains(t, out, "\n")
	assert.Contains(t, out, "addEventListener('click', f)")
}

func TestPrintScriptSnapshot(t *testing.T) {
	input := `{{.btn}} -> listen { click: function(){} };`
	out, _ := renderJS(t, input, DefaultJSOptions())
	test_utils.MakeSnapshot(&test_utils.SnapshotOptions{
		Testing:      t,
		TestCaseName: "selector listen translation",
		Input:        input,
		Output:       out,
		Kind:         test_utils.JsOutput,
	})
}
