package printer

import (
	"fmt"
	"regexp"
	"strings"

	chtl "github.com/chtl-lang/compiler/internal"
	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/loc"
	"github.com/chtl-lang/compiler/internal/namespace"
	"golang.org/x/net/html/atom"
)

// PrintResult carries the generator's two output streams. Script bodies
// are not translated here; the dispatcher routes them through the JS
// pipeline and collects them via Scripts.
type PrintResult struct {
	HTML    []byte
	CSS     []byte
	Scripts []string
}

// voidElements never take a closing tag.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

// substitution matches `${key}` (whitespace tolerated) in template text
// and attribute values.
var substitution = regexp.MustCompile(`\$\s*\{\s*([A-Za-z_][A-Za-z0-9_-]*)\s*\}`)

// varCall matches `Name(key)` var-group references in CSS values.
var varCall = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\(\s*([A-Za-z_][A-Za-z0-9_-]*)\s*\)`)

// styleUse matches a textual `@Style Name;` use inside a raw local style
// block.
var styleUse = regexp.MustCompile(`@Style\s+([A-Za-z_][A-Za-z0-9_-]*)\s*;`)

const maxExpansionDepth = 32

// PrintDocument walks the semantic-pass-complete tree and emits HTML and
// CSS. Generation is a pure function of the tree: printing the same tree
// twice yields byte-identical output.
func PrintDocument(doc *chtl.Node, table *namespace.Table, opts RenderOptions, h *handler.Handler) PrintResult {
	p := &printer{opts: opts, table: table, handler: h}
	var scripts []string

	if use, ok := doc.GetAttribute("use"); ok && use == "html5" {
		p.print("<!DOCTYPE html>")
		p.newline()
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		p.printNode(c, nil, 0, &scripts)
	}
	return PrintResult{HTML: p.output, CSS: p.css, Scripts: scripts}
}

// subst is the variable-substitution context of the template expansion in
// effect, or nil.
type subst map[string]string

func (p *printer) substitute(s string, ctx subst) string {
	if ctx == nil || !strings.Contains(s, "$") {
		return s
	}
	return substitution.ReplaceAllStringFunc(s, func(m string) string {
		key := substitution.FindStringSubmatch(m)[1]
		if val, ok := ctx[key]; ok {
			return val
		}
		return m
	})
}

func (p *printer) printNode(n *chtl.Node, ctx subst, depth int, scripts *[]string) {
	switch n.Type {
	case chtl.ElementNode:
		p.printElement(n, ctx, depth, scripts)
	case chtl.TextNode:
		p.print(EscapeString(p.substitute(n.Data, ctx)))
	case chtl.CommentNode:
		if n.Generator && p.opts.KeepGeneratorComments {
			p.printf("<!-- %s -->", n.Data)
		}
	case chtl.StyleNode:
		p.collectStyle(n)
	case chtl.ScriptNode:
		if strings.TrimSpace(n.Data) != "" {
			*scripts = append(*scripts, n.Data)
		}
	case chtl.OriginNode:
		p.printOrigin(n, scripts)
	case chtl.UseNode:
		p.expandUse(n, ctx, depth, scripts)
	case chtl.TemplateNode, chtl.CustomNode, chtl.ConfigNode, chtl.ImportNode:
		// declarations produce no output at their declaration site
	case chtl.NamespaceNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.printNode(c, ctx, depth, scripts)
		}
	}
}

func (p *printer) printElement(n *chtl.Node, ctx subst, depth int, scripts *[]string) {
	p.printf("<%s", n.Data)
	for _, attr := range n.Attr {
		p.printf(` %s="%s"`, attr.Key, EscapeString(p.substitute(attr.Val, ctx)))
	}
	// A style-template use directly in the element body folds into an
	// inline style attribute.
	if inline := p.inlineStyleFor(n, ctx); inline != "" {
		p.printf(` style="%s"`, EscapeString(inline))
	}
	if voidElements[n.DataAtom] {
		p.print("/>")
		return
	}
	p.print(">")
	p.depth++
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == chtl.UseNode && c.Kind == chtl.StyleKind {
			continue // already emitted as the inline style attribute
		}
		p.printNode(c, ctx, depth, scripts)
	}
	p.depth--
	p.printf("</%s>", n.Data)
}

// inlineStyleFor merges any `@Style` uses in the element body into one
// inline declaration list.
func (p *printer) inlineStyleFor(n *chtl.Node, ctx subst) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != chtl.UseNode || c.Kind != chtl.StyleKind {
			continue
		}
		decls := p.resolveStyleUse(c, 0)
		for _, d := range decls {
			parts = append(parts, d.Key+": "+p.substituteVars(p.substitute(d.Val, ctx)))
		}
	}
	return strings.Join(parts, "; ")
}

// collectStyle routes a local style block into the CSS stream, expanding
// textual `@Style Name;` uses and var-group references on the way.
func (p *printer) collectStyle(n *chtl.Node) {
	text := n.Data
	text = styleUse.ReplaceAllStringFunc(text, func(m string) string {
		name := styleUse.FindStringSubmatch(m)[1]
		decls, ok := p.lookupStyleDecls(name, 0)
		if !ok {
			p.handler.AppendError(&loc.ErrorWithRange{
				Code:  loc.ERROR_UNDEFINED_TEMPLATE,
				Text:  fmt.Sprintf("undefined style template %q", name),
				Range: loc.Range{Loc: n.Loc, Len: len(name)},
			})
			return ""
		}
		var b strings.Builder
		for _, d := range decls {
			b.WriteString(d.Key)
			b.WriteString(": ")
			b.WriteString(d.Val)
			b.WriteString(";")
		}
		return b.String()
	})
	text = p.substituteVars(text)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	p.printCSS(normalizeCSSBlock(trimmed))
	p.printCSS("\n")
}

// substituteVars resolves `Group(key)` var-template calls in CSS text.
func (p *printer) substituteVars(text string) string {
	if p.table == nil || !strings.Contains(text, "(") {
		return text
	}
	return varCall.ReplaceAllStringFunc(text, func(m string) string {
		sub := varCall.FindStringSubmatch(m)
		group, key := sub[1], sub[2]
		def, ok := p.table.Lookup(namespace.KindTemplate, group)
		if !ok {
			def, ok = p.table.Lookup(namespace.KindCustom, group)
		}
		if !ok || def.Kind != chtl.VarKind {
			return m
		}
		if val, found := def.GetAttribute(key); found {
			return val
		}
		p.handler.AppendError(&loc.ErrorWithRange{
			Code:  loc.ERROR_UNDEFINED_TEMPLATE,
			Text:  fmt.Sprintf("unknown key %q in var group %q", key, group),
			Range: loc.Range{Loc: def.Loc, Len: len(key)},
		})
		return m
	})
}

func normalizeCSSBlock(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	out := strings.Join(lines, " ")
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return out
}

func (p *printer) printOrigin(n *chtl.Node, scripts *[]string) {
	body := ""
	if n.FirstChild != nil {
		body = n.FirstChild.Data
	}
	switch n.Kind {
	case chtl.HtmlKind:
		p.print(strings.TrimSpace(body))
	case chtl.StyleKind:
		p.printCSS(strings.TrimSpace(body))
		p.printCSS("\n")
	case chtl.JavaScriptKind:
		*scripts = append(*scripts, body)
	}
}

// expandUse expands a call site: element templates clone into place with
// a substitution context; style uses emit declarations; origin references
// pass their body through.
func (p *printer) expandUse(n *chtl.Node, ctx subst, depth int, scripts *[]string) {
	if depth > maxExpansionDepth {
		p.handler.AppendError(&loc.ErrorWithRange{
			Code:  loc.ERROR_CONSTRAINT_VIOLATION,
			Text:  fmt.Sprintf("template expansion depth exceeded at %q", n.Data),
			Range: loc.Range{Loc: n.Loc, Len: len(n.Data)},
		})
		return
	}
	switch n.Kind {
	case chtl.ElementKind:
		def, ok := p.lookupDef(n)
		if !ok {
			return
		}
		callCtx := subst{}
		for k, v := range ctx {
			callCtx[k] = v
		}
		for _, arg := range n.Attr {
			if arg.Key == "from" && arg.Val != "" && !arg.Quoted {
				continue
			}
			callCtx[arg.Key] = arg.Val
		}
		for c := def.FirstChild; c != nil; c = c.NextSibling {
			clone := c.CloneDeep()
			p.printNode(clone, callCtx, depth+1, scripts)
		}
	case chtl.StyleKind:
		decls := p.resolveStyleUse(n, depth)
		var b strings.Builder
		for _, d := range decls {
			b.WriteString(d.Key)
			b.WriteString(": ")
			b.WriteString(p.substituteVars(d.Val))
			b.WriteString(";")
		}
		p.printCSS(b.String())
	case chtl.HtmlKind, chtl.JavaScriptKind, chtl.CustomKind:
		if def, ok := p.table.Lookup(namespace.KindOrigin, n.Data); ok {
			p.printOrigin(def, scripts)
		} else {
			p.handler.AppendError(&loc.ErrorWithRange{
				Code:  loc.ERROR_UNDEFINED_ORIGIN,
				Text:  fmt.Sprintf("undefined origin %q", n.Data),
				Range: loc.Range{Loc: n.Loc, Len: len(n.Data)},
			})
		}
	case chtl.VarKind:
		// var groups are referenced through Group(key) calls, not @Var uses
	}
}

func (p *printer) lookupDef(n *chtl.Node) (*chtl.Node, bool) {
	var def *chtl.Node
	var ok bool
	if from, hasFrom := n.GetAttribute("from"); hasFrom {
		def, ok = p.table.LookupFrom(from, namespace.KindTemplate, n.Data)
		if !ok {
			def, ok = p.table.LookupFrom(from, namespace.KindCustom, n.Data)
		}
	} else {
		def, ok = p.table.Lookup(namespace.KindTemplate, n.Data)
		if !ok {
			def, ok = p.table.Lookup(namespace.KindCustom, n.Data)
		}
	}
	if !ok {
		p.handler.AppendError(&loc.ErrorWithRange{
			Code:  loc.ERROR_UNDEFINED_TEMPLATE,
			Text:  fmt.Sprintf("undefined %s %q", n.Kind, n.Data),
			Range: loc.Range{Loc: n.Loc, Len: len(n.Data)},
		})
		return nil, false
	}
	return def, true
}

// resolveStyleUse computes the effective declaration list of a style
// use: the definition's inherited chain, its own declarations, then the
// call site's specialisation overrides and deletes, override winning.
func (p *printer) resolveStyleUse(n *chtl.Node, depth int) []chtl.Attribute {
	def, ok := p.lookupDef(n)
	if !ok {
		return nil
	}
	base := p.resolveStyleDecls(def, depth+1)
	return mergeDecls(base, n, depth)
}

func (p *printer) lookupStyleDecls(name string, depth int) ([]chtl.Attribute, bool) {
	def, ok := p.table.Lookup(namespace.KindTemplate, name)
	if !ok {
		def, ok = p.table.Lookup(namespace.KindCustom, name)
	}
	if !ok || def.Kind != chtl.StyleKind {
		return nil, false
	}
	return p.resolveStyleDecls(def, depth+1), true
}

// resolveStyleDecls flattens a style template/custom definition,
// following inherit statements unless a `delete inherit;` severs the
// chain.
func (p *printer) resolveStyleDecls(def *chtl.Node, depth int) []chtl.Attribute {
	if depth > maxExpansionDepth {
		return nil
	}
	severed := false
	for c := def.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == chtl.DeleteNode && c.Data == "inherit" {
			severed = true
		}
	}
	var decls []chtl.Attribute
	if !severed {
		for c := def.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != chtl.InheritNode {
				continue
			}
			if parent, ok := p.lookupStyleDeclsNamed(c.Data); ok {
				decls = overlayDecls(decls, p.resolveStyleDecls(parent, depth+1))
			}
		}
	}
	decls = overlayDecls(decls, def.Attr)
	for c := def.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == chtl.DeleteNode && c.Data != "inherit" {
			decls = removeDecl(decls, c.Data)
		}
	}
	return decls
}

func (p *printer) lookupStyleDeclsNamed(name string) (*chtl.Node, bool) {
	def, ok := p.table.Lookup(namespace.KindTemplate, name)
	if !ok {
		def, ok = p.table.Lookup(namespace.KindCustom, name)
	}
	if !ok || def.Kind != chtl.StyleKind {
		return nil, false
	}
	return def, true
}

// mergeDecls applies a call site's specialisation onto the resolved base:
// overrides win, deletes remove.
func mergeDecls(base []chtl.Attribute, use *chtl.Node, depth int) []chtl.Attribute {
	decls := overlayDecls(base, use.Attr)
	for c := use.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == chtl.DeleteNode && c.Data != "inherit" {
			decls = removeDecl(decls, c.Data)
		}
	}
	return decls
}

// overlayDecls merges overrides onto base, keeping base order for keys
// already present and appending new keys in override order.
func overlayDecls(base, overrides []chtl.Attribute) []chtl.Attribute {
	out := make([]chtl.Attribute, len(base))
	copy(out, base)
	for _, o := range overrides {
		if o.Key == "from" && !o.Quoted && o.Val != "" {
			continue
		}
		replaced := false
		for i := range out {
			if out[i].Key == o.Key {
				out[i].Val = o.Val
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

func removeDecl(decls []chtl.Attribute, key string) []chtl.Attribute {
	out := decls[:0]
	for _, d := range decls {
		if d.Key != key {
			out = append(out, d)
		}
	}
	return out
}
