package module

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/loc"
)

func newHandler() *handler.Handler {
	return handler.NewHandler("", "test")
}

func diamondFS() fstest.MapFS {
	return fstest.MapFS{
		"a.cjjs": {Data: []byte(`module { load: "./b.cjjs", "./c.cjjs" };`)},
		"b.cjjs": {Data: []byte(`module { load: "./d.cjjs" };`)},
		"c.cjjs": {Data: []byte(`module { load: "./d.cjjs" };`)},
		"d.cjjs": {Data: []byte(`var d = 1;`)},
	}
}

func TestDiamondLoadOrder(t *testing.T) {
	h := newHandler()
	loader := NewLoader(diamondFS(), Options{})
	res := loader.LoadFile("a.cjjs", h)

	assert.False(t, h.HasErrors())
	require.Len(t, res.Order, 4)
	assert.Equal(t, []string{"./d.cjjs", "./b.cjjs", "./c.cjjs", "a.cjjs"}, res.Order)
}

func TestDiamondParallelBatches(t *testing.T) {
	h := newHandler()
	loader := NewLoader(diamondFS(), Options{Strategy: StrategyParallel})
	res := loader.LoadFile("a.cjjs", h)

	require.Len(t, res.Batches, 3)
	assert.Equal(t, []string{"./d.cjjs"}, res.Batches[0])
	assert.Equal(t, []string{"./b.cjjs", "./c.cjjs"}, res.Batches[1])
	assert.Equal(t, []string{"a.cjjs"}, res.Batches[2])
}

func TestCycleRejected(t *testing.T) {
	fsys := fstest.MapFS{
		"a.cjjs": {Data: []byte(`module { load: "./b.cjjs" };`)},
		"b.cjjs": {Data: []byte(`module { load: "./a.cjjs" };`)},
	}
	h := newHandler()
	loader := NewLoader(fsys, Options{})
	res := loader.LoadFile("a.cjjs", h)

	require.True(t, h.HasErrors())
	diags := h.Errors()
	require.NotEmpty(t, diags)
	assert.Equal(t, loc.ERROR_CYCLIC_DEPENDENCY, diags[0].Code)
	assert.Contains(t, diags[0].Text, "a -> b -> a")

	// both modules stay individually resolvable for error recovery
	assert.Len(t, res.Entries, 2)
	for _, e := range res.Entries {
		assert.True(t, e.Loaded)
	}
}

func TestExtensionLadder(t *testing.T) {
	fsys := fstest.MapFS{
		"util.cjjs": {Data: []byte(`var u = 1;`)},
		"lib.js":    {Data: []byte(`var l = 1;`)},
	}
	h := newHandler()
	loader := NewLoader(fsys, Options{SearchPaths: []string{"."}})

	e := loader.resolve("util", "main.chtl", loc.Loc{}, h)
	require.NotNil(t, e)
	assert.Equal(t, "util.cjjs", e.ResolvedPath)
	assert.Equal(t, TypeCJJS, e.Type)

	e = loader.resolve("lib", "main.chtl", loc.Loc{}, h)
	require.NotNil(t, e)
	assert.Equal(t, "lib.js", e.ResolvedPath)
	assert.Equal(t, TypeJS, e.Type)
	assert.False(t, h.HasErrors())
}

func TestSearchPathOrderFirstMatchWins(t *testing.T) {
	fsys := fstest.MapFS{
		"first/m.js":  {Data: []byte(`var a = 1;`)},
		"second/m.js": {Data: []byte(`var b = 2;`)},
	}
	h := newHandler()
	loader := NewLoader(fsys, Options{SearchPaths: []string{"first", "second"}})
	e := loader.resolve("m", "main.chtl", loc.Loc{}, h)
	require.NotNil(t, e)
	assert.Equal(t, "first/m.js", e.ResolvedPath)
}

func TestMissingModuleReported(t *testing.T) {
	h := newHandler()
	loader := NewLoader(fstest.MapFS{}, Options{SearchPaths: []string{"."}})
	e := loader.resolve("ghost", "main.chtl", loc.Loc{}, h)
	assert.Nil(t, e)
	require.True(t, h.HasErrors())
	assert.Equal(t, loc.ERROR_MODULE_NOT_FOUND, h.Errors()[0].Code)
}

func TestCacheByResolvedPath(t *testing.T) {
	fsys := fstest.MapFS{"m.js": {Data: []byte(`var m = 1;`)}}
	h := newHandler()
	loader := NewLoader(fsys, Options{SearchPaths: []string{"."}})
	first := loader.resolve("m", "main.chtl", loc.Loc{}, h)
	second := loader.resolve("./m.js", "main.chtl", loc.Loc{}, h)
	assert.Same(t, first, second)
}

func TestPureJSDepsSkipped(t *testing.T) {
	fsys := fstest.MapFS{
		"a.cjjs": {Data: []byte(`module { load: "./p.js" };`)},
		// a pure-JS module's inner text is never scanned for load targets
		"p.js": {Data: []byte(`module { load: "./ghost.js" };`)},
	}
	h := newHandler()
	loader := NewLoader(fsys, Options{})
	res := loader.LoadFile("a.cjjs", h)
	assert.False(t, h.HasErrors())
	assert.Equal(t, []string{"./p.js", "a.cjjs"}, res.Order)
}

func TestDeterministicSortOrder(t *testing.T) {
	h1, h2 := newHandler(), newHandler()
	first := NewLoader(diamondFS(), Options{}).LoadFile("a.cjjs", h1)
	second := NewLoader(diamondFS(), Options{}).LoadFile("a.cjjs", h2)
	assert.Equal(t, first.Order, second.Order)
}

func TestLoadTargets(t *testing.T) {
	targets := LoadTargets(`module { load: "./x.js", "./y.cjjs" }; var after = 1;`, "m.cjjs")
	assert.Equal(t, []string{"./x.js", "./y.cjjs"}, targets)
}
