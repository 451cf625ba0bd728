package transform

import (
	"fmt"
	"strings"

	chtl "github.com/chtl-lang/compiler/internal"
	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/loc"
	"github.com/chtl-lang/compiler/internal/namespace"
)

type TransformOptions struct {
	Filename string
	// DefaultNamespace derives an implicit namespace from the base
	// filename; declarations in the file default-live there.
	DefaultNamespace bool

	// Per-direction selector automation switches.
	DisableStyleAutoClass  bool
	DisableStyleAutoID     bool
	DisableScriptAutoClass bool
	DisableScriptAutoID    bool
}

// Transform runs the semantic passes over a parsed document: symbol
// registration, use-site resolution, and selector automation. After it
// returns the tree is read-only apart from the attributes it injected.
func Transform(doc *chtl.Node, table *namespace.Table, opts TransformOptions, h *handler.Handler) *chtl.Node {
	BuildSymbols(doc, table, opts, h)
	ResolveUses(doc, table, h)
	AutomateSelectors(doc, opts)
	return doc
}

// BuildSymbols walks the document and registers every template, custom,
// origin, and configuration declaration into the symbol table. Namespace
// nodes move the cursor for the duration of their subtree.
func BuildSymbols(doc *chtl.Node, table *namespace.Table, opts TransformOptions, h *handler.Handler) {
	if opts.DefaultNamespace && opts.Filename != "" {
		name := baseName(opts.Filename)
		if name != "" && !namespace.IsReserved(name) {
			if _, err := table.Enter(name); err == nil {
				defer table.Exit()
			}
		}
	}
	registerScope(doc, table, h)
}

func registerScope(n *chtl.Node, table *namespace.Table, h *handler.Handler) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case chtl.NamespaceNode:
			if _, err := table.Enter(c.Data); err != nil {
				h.AppendError(&loc.ErrorWithRange{
					Code:  loc.ERROR_RESERVED_NAME,
					Text:  err.Error(),
					Range: loc.Range{Loc: c.Loc, Len: len(c.Data)},
				})
				continue
			}
			registerScope(c, table, h)
			table.Exit()
		case chtl.TemplateNode, chtl.CustomNode, chtl.OriginNode, chtl.ConfigNode:
			kind, _ := namespace.KindOfNode(c)
			name := c.Data
			if name == "" {
				continue // anonymous origins are emitted in place, never referenced
			}
			if err := table.Register(kind, name, c); err != nil {
				h.AppendError(&loc.ErrorWithRange{
					Code:  loc.ERROR_NAME_CONFLICT,
					Text:  err.Error(),
					Range: loc.Range{Loc: c.Loc, Len: len(name)},
				})
			}
		case chtl.ImportNode:
			table.Current().Imports = append(table.Current().Imports, c)
		}
	}
}

// ResolveUses checks every call site against the symbol table, marking
// whether it refers to a [Custom] and reporting undefined references.
func ResolveUses(doc *chtl.Node, table *namespace.Table, h *handler.Handler) {
	chtl.Walk(doc, func(n *chtl.Node) {
		if n.Type != chtl.UseNode {
			return
		}
		if n.Kind == chtl.HtmlKind || n.Kind == chtl.JavaScriptKind || n.Kind == chtl.CustomKind {
			// origin references resolve against the origin map
			if _, ok := table.Lookup(namespace.KindOrigin, n.Data); !ok {
				h.AppendError(&loc.ErrorWithRange{
					Code:  loc.ERROR_UNDEFINED_ORIGIN,
					Text:  fmt.Sprintf("undefined origin %q", n.Data),
					Range: loc.Range{Loc: n.Loc, Len: len(n.Data)},
				})
			}
			return
		}
		var def *chtl.Node
		var ok bool
		if from, hasFrom := n.GetAttribute("from"); hasFrom {
			def, ok = table.LookupFrom(from, namespace.KindTemplate, n.Data)
			if !ok {
				def, ok = table.LookupFrom(from, namespace.KindCustom, n.Data)
			}
		} else {
			def, ok = table.Lookup(namespace.KindTemplate, n.Data)
			if !ok {
				def, ok = table.Lookup(namespace.KindCustom, n.Data)
			}
		}
		if !ok {
			code := loc.ERROR_UNDEFINED_TEMPLATE
			if n.Kind == chtl.StyleKind {
				code = loc.ERROR_UNDEFINED_CUSTOM
			}
			h.AppendError(&loc.ErrorWithRange{
				Code:  code,
				Text:  fmt.Sprintf("undefined %s %q", n.Kind, n.Data),
				Range: loc.Range{Loc: n.Loc, Len: len(n.Data)},
			})
			return
		}
		n.UseCustom = def.Type == chtl.CustomNode
	})
}

func baseName(filename string) string {
	name := filename
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}
