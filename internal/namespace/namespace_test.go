package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chtl "github.com/chtl-lang/compiler/internal"
)

func tplNode(name string) *chtl.Node {
	return &chtl.Node{Type: chtl.TemplateNode, Kind: chtl.ElementKind, Data: name}
}

func TestCreateAndFind(t *testing.T) {
	table := NewTable()
	leaf, err := table.Create("a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "c", leaf.Name)
	assert.Equal(t, "a.b.c", table.QualifiedName(leaf))

	found, ok := table.Find("a.b.c")
	assert.True(t, ok)
	assert.Same(t, leaf, found)

	_, ok = table.Find("a.b.missing")
	assert.False(t, ok)
}

func TestFindByShortName(t *testing.T) {
	table := NewTable()
	_, err := table.Create("outer.inner")
	require.NoError(t, err)
	found, ok := table.Find("inner")
	assert.True(t, ok)
	assert.Equal(t, "inner", found.Name)
}

func TestReservedNamesRejected(t *testing.T) {
	table := NewTable()
	for _, name := range []string{"global", "default", "system", "chtl", "temp", "tmp"} {
		_, err := table.Create(name)
		assert.Error(t, err, name)
	}
}

func TestRegisterIdempotentOnSameIdentity(t *testing.T) {
	table := NewTable()
	node := tplNode("Card")
	require.NoError(t, table.Register(KindTemplate, "Card", node))
	require.NoError(t, table.Register(KindTemplate, "Card", node))

	other := tplNode("Card")
	err := table.Register(KindTemplate, "Card", other)
	assert.Error(t, err)
}

func TestEnterExitCursor(t *testing.T) {
	table := NewTable()
	_, err := table.Enter("ui")
	require.NoError(t, err)
	require.NoError(t, table.Register(KindTemplate, "Button", tplNode("Button")))
	table.Exit()

	_, ok := table.Global().Entry(KindTemplate, "Button")
	assert.False(t, ok)
	def, ok := table.LookupFrom("ui", KindTemplate, "Button")
	assert.True(t, ok)
	assert.Equal(t, "Button", def.Data)
}

func TestLookupWalksAncestors(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Register(KindTemplate, "Base", tplNode("Base")))
	_, err := table.Enter("ui.widgets")
	require.NoError(t, err)
	def, ok := table.Lookup(KindTemplate, "Base")
	assert.True(t, ok)
	assert.Equal(t, "Base", def.Data)
}

func TestAutoMergeUnionsEntries(t *testing.T) {
	table := NewTable()
	first, err := table.Create("a.shared")
	require.NoError(t, err)
	second, err := table.Create("b.shared")
	require.NoError(t, err)

	require.NoError(t, table.RegisterIn(first, KindTemplate, "One", tplNode("One")))
	require.NoError(t, table.RegisterIn(second, KindTemplate, "Two", tplNode("Two")))

	merged := table.AutoMerge("shared")
	require.NotNil(t, merged)
	_, hasOne := merged.Entry(KindTemplate, "One")
	_, hasTwo := merged.Entry(KindTemplate, "Two")
	assert.True(t, hasOne)
	assert.True(t, hasTwo)
}

func TestAutoMergeFirstRegisteredWins(t *testing.T) {
	table := NewTable()
	first, _ := table.Create("a.shared")
	second, _ := table.Create("b.shared")

	winner := tplNode("Dup")
	loser := tplNode("Dup")
	require.NoError(t, table.RegisterIn(first, KindTemplate, "Dup", winner))
	require.NoError(t, table.RegisterIn(second, KindTemplate, "Dup", loser))

	merged := table.AutoMerge("shared")
	got, ok := merged.Entry(KindTemplate, "Dup")
	require.True(t, ok)
	assert.Same(t, winner, got)
}

// Merging namespaces with disjoint names is order-independent in the set
// of entries it produces.
func TestMergeCommutativeForDisjointNames(t *testing.T) {
	build := func(reversed bool) map[string]bool {
		table := NewTable()
		paths := []string{"a.shared", "b.shared"}
		names := []string{"Alpha", "Beta"}
		if reversed {
			paths = []string{"b.shared", "a.shared"}
			names = []string{"Beta", "Alpha"}
		}
		for i, p := range paths {
			ns, _ := table.Create(p)
			_ = table.RegisterIn(ns, KindTemplate, names[i], tplNode(names[i]))
		}
		merged := table.AutoMerge("shared")
		out := map[string]bool{}
		for _, e := range merged.Entries(KindTemplate) {
			out[e.Data] = true
		}
		return out
	}
	assert.Equal(t, build(false), build(true))
}

func TestEntriesPreserveRegistrationOrder(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Register(KindTemplate, "B", tplNode("B")))
	require.NoError(t, table.Register(KindTemplate, "A", tplNode("A")))
	entries := table.Global().Entries(KindTemplate)
	require.Len(t, entries, 2)
	assert.Equal(t, "B", entries[0].Data)
	assert.Equal(t, "A", entries[1].Data)
}
