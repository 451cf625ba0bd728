// Package namespace implements the hierarchical symbol table for
// templates, customs, origins, and configuration blocks. Namespaces form
// a tree rooted at the anonymous global namespace; the tree is held in an
// arena and nodes refer to parents and children by index, never by
// owning pointer.
package namespace

import (
	"fmt"
	"sort"
	"strings"

	chtl "github.com/chtl-lang/compiler/internal"
)

// Kind selects one of a namespace's four entry maps.
type Kind int

const (
	KindTemplate Kind = iota
	KindCustom
	KindOrigin
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindCustom:
		return "custom"
	case KindOrigin:
		return "origin"
	case KindConfig:
		return "config"
	}
	return fmt.Sprintf("Invalid(%d)", int(k))
}

// reservedNames may not be used as namespace path components.
var reservedNames = map[string]bool{
	"global":  true,
	"default": true,
	"system":  true,
	"chtl":    true,
	"temp":    true,
	"tmp":     true,
}

func IsReserved(name string) bool {
	return reservedNames[name]
}

// entryKey identifies an entry within one namespace.
type entryKey struct {
	kind Kind
	name string
}

// A Namespace owns four maps of declarations plus its imports and child
// links. Registration order is preserved; it determines merge tie-breaks.
type Namespace struct {
	Name     string
	parent   int
	children []int

	entries map[entryKey]*chtl.Node
	order   []entryKey

	Imports []*chtl.Node
}

// Entry returns the node registered under (kind, name), if any.
func (ns *Namespace) Entry(kind Kind, name string) (*chtl.Node, bool) {
	n, ok := ns.entries[entryKey{kind, name}]
	return n, ok
}

// Entries returns the namespace's entries of the given kind in
// registration order.
func (ns *Namespace) Entries(kind Kind) []*chtl.Node {
	var out []*chtl.Node
	for _, k := range ns.order {
		if k.kind == kind {
			out = append(out, ns.entries[k])
		}
	}
	return out
}

// Table is the symbol table: an arena of namespaces plus a
// current-namespace cursor stack. Index 0 is always the global root.
type Table struct {
	arena  []*Namespace
	cursor []int
}

func NewTable() *Table {
	t := &Table{}
	t.arena = append(t.arena, &Namespace{Name: "", parent: -1, entries: map[entryKey]*chtl.Node{}})
	t.cursor = []int{0}
	return t
}

// Global returns the root namespace.
func (t *Table) Global() *Namespace {
	return t.arena[0]
}

// Current returns the namespace the cursor points at.
func (t *Table) Current() *Namespace {
	return t.arena[t.cursor[len(t.cursor)-1]]
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Create creates the namespace at the `.`-delimited path, creating
// missing ancestors, and returns the leaf. Reserved components are
// rejected.
func (t *Table) Create(path string) (*Namespace, error) {
	idx := 0
	for _, comp := range splitPath(path) {
		if IsReserved(comp) {
			return nil, fmt.Errorf("namespace name %q is reserved", comp)
		}
		child := t.findChild(idx, comp)
		if child < 0 {
			child = len(t.arena)
			t.arena = append(t.arena, &Namespace{Name: comp, parent: idx, entries: map[entryKey]*chtl.Node{}})
			t.arena[idx].children = append(t.arena[idx].children, child)
		}
		idx = child
	}
	return t.arena[idx], nil
}

func (t *Table) findChild(idx int, name string) int {
	for _, c := range t.arena[idx].children {
		if t.arena[c].Name == name {
			return c
		}
	}
	return -1
}

// Find looks up a namespace. A fully-qualified path is resolved directly
// in O(depth); a bare short name falls back to a depth-first search of
// the whole tree, first match in depth-first (pre-order) child order.
func (t *Table) Find(path string) (*Namespace, bool) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return t.Global(), true
	}
	idx := 0
	for _, comp := range comps {
		if idx = t.findChild(idx, comp); idx < 0 {
			break
		}
	}
	if idx >= 0 {
		return t.arena[idx], true
	}
	if len(comps) == 1 {
		if found := t.dfs(0, comps[0]); found >= 0 {
			return t.arena[found], true
		}
	}
	return nil, false
}

func (t *Table) dfs(idx int, name string) int {
	for _, c := range t.arena[idx].children {
		if t.arena[c].Name == name {
			return c
		}
		if found := t.dfs(c, name); found >= 0 {
			return found
		}
	}
	return -1
}

// Enter moves the cursor to the namespace at path, creating it if
// necessary.
func (t *Table) Enter(path string) (*Namespace, error) {
	ns, err := t.Create(path)
	if err != nil {
		return nil, err
	}
	t.cursor = append(t.cursor, t.index(ns))
	return ns, nil
}

// Exit pops the cursor. Exiting the global namespace is a no-op.
func (t *Table) Exit() {
	if len(t.cursor) > 1 {
		t.cursor = t.cursor[:len(t.cursor)-1]
	}
}

func (t *Table) index(ns *Namespace) int {
	for i, n := range t.arena {
		if n == ns {
			return i
		}
	}
	return -1
}

// Register records node under (kind, name) in the current namespace. It
// fails if the name is taken by a distinct node and succeeds idempotently
// when re-registering the same node.
func (t *Table) Register(kind Kind, name string, node *chtl.Node) error {
	return t.RegisterIn(t.Current(), kind, name, node)
}

func (t *Table) RegisterIn(ns *Namespace, kind Kind, name string, node *chtl.Node) error {
	k := entryKey{kind, name}
	if existing, ok := ns.entries[k]; ok {
		if existing == node {
			return nil
		}
		return fmt.Errorf("%s %q already defined in namespace %q", kind, name, t.QualifiedName(ns))
	}
	ns.entries[k] = node
	ns.order = append(ns.order, k)
	return nil
}

// QualifiedName returns the `.`-joined path from the root.
func (t *Table) QualifiedName(ns *Namespace) string {
	idx := t.index(ns)
	var comps []string
	for idx > 0 {
		comps = append([]string{t.arena[idx].Name}, comps...)
		idx = t.arena[idx].parent
	}
	return strings.Join(comps, ".")
}

// Lookup resolves a bare reference: current namespace, then ancestors up
// to the root, then global.
func (t *Table) Lookup(kind Kind, name string) (*chtl.Node, bool) {
	idx := t.cursor[len(t.cursor)-1]
	for idx >= 0 {
		if n, ok := t.arena[idx].Entry(kind, name); ok {
			return n, true
		}
		idx = t.arena[idx].parent
	}
	return nil, false
}

// LookupFrom resolves `from X.Y.Z name`: lookup starts at the designated
// absolute path.
func (t *Table) LookupFrom(path string, kind Kind, name string) (*chtl.Node, bool) {
	ns, ok := t.Find(path)
	if !ok {
		return nil, false
	}
	return ns.Entry(kind, name)
}

// AutoMerge merges every namespace in the tree sharing the given short
// name into the first-created one: entries and imports are unioned,
// first-registered wins on key conflict, new entries append in source
// order. The merged duplicates are unlinked from their parents.
func (t *Table) AutoMerge(name string) *Namespace {
	var matches []int
	t.collect(0, name, &matches)
	if len(matches) == 0 {
		return nil
	}
	sort.Ints(matches)
	dst := t.arena[matches[0]]
	for _, m := range matches[1:] {
		src := t.arena[m]
		for _, k := range src.order {
			if _, taken := dst.entries[k]; taken {
				continue
			}
			dst.entries[k] = src.entries[k]
			dst.order = append(dst.order, k)
		}
		dst.Imports = append(dst.Imports, src.Imports...)
		for _, c := range src.children {
			t.arena[c].parent = t.index(dst)
			dst.children = append(dst.children, c)
		}
		t.unlink(m)
	}
	return dst
}

func (t *Table) collect(idx int, name string, out *[]int) {
	for _, c := range t.arena[idx].children {
		if t.arena[c].Name == name {
			*out = append(*out, c)
		}
		t.collect(c, name, out)
	}
}

func (t *Table) unlink(idx int) {
	parent := t.arena[idx].parent
	if parent < 0 {
		return
	}
	siblings := t.arena[parent].children
	for i, c := range siblings {
		if c == idx {
			t.arena[parent].children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	t.arena[idx].parent = -1
}

// KindOfNode maps a declaration node to its symbol kind.
func KindOfNode(n *chtl.Node) (Kind, bool) {
	switch n.Type {
	case chtl.TemplateNode:
		return KindTemplate, true
	case chtl.CustomNode:
		return KindCustom, true
	case chtl.OriginNode:
		return KindOrigin, true
	case chtl.ConfigNode:
		return KindConfig, true
	}
	return 0, false
}
