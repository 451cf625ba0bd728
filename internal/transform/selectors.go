package transform

import (
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	chtl "github.com/chtl-lang/compiler/internal"
)

// AutomateSelectors injects class/id attributes inferred from an
// element's local style and script blocks. The first class selector in a
// local style block wins; script selector references only fire when the
// style block did not already inject.
func AutomateSelectors(doc *chtl.Node, opts TransformOptions) {
	chtl.Walk(doc, func(n *chtl.Node) {
		if n.Type != chtl.ElementNode {
			return
		}
		var style, script *chtl.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case chtl.StyleNode:
				if style == nil {
					style = c
				}
			case chtl.ScriptNode:
				if script == nil {
					script = c
				}
			}
		}
		if style == nil && script == nil {
			return
		}

		styleInjectedClass, styleInjectedID := false, false
		if style != nil {
			classes, ids := ExtractStyleSelectors(style.Data)
			if len(classes) > 0 && !opts.DisableStyleAutoClass {
				if _, has := n.GetAttribute("class"); !has {
					n.SetAttribute("class", classes[0])
					styleInjectedClass = true
				}
			}
			if len(ids) > 0 && !opts.DisableStyleAutoID {
				if _, has := n.GetAttribute("id"); !has {
					n.SetAttribute("id", ids[0])
					styleInjectedID = true
				}
			}
			style.Data = resolveAmpersand(style.Data, n, true)
		}
		if script != nil {
			classes, ids := ExtractScriptSelectors(script.Data)
			if len(classes) > 0 && !styleInjectedClass && !opts.DisableScriptAutoClass {
				if _, has := n.GetAttribute("class"); !has {
					n.SetAttribute("class", classes[0])
				}
			}
			if len(ids) > 0 && !styleInjectedID && !opts.DisableScriptAutoID {
				if _, has := n.GetAttribute("id"); !has {
					n.SetAttribute("id", ids[0])
				}
			}
			script.Data = resolveScriptAmpersand(script.Data, n)
		}
	})
}

// ExtractStyleSelectors pulls class and id selector names out of a CSS
// block: every selector preceding a `{`. Declaration values never
// contribute.
func ExtractStyleSelectors(src string) (classes, ids []string) {
	p := css.NewParser(parse.NewInputString(src), false)
	for {
		gt, _, _ := p.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			expectClass := false
			for _, val := range p.Values() {
				data := string(val.Data)
				switch val.TokenType {
				case css.DelimToken:
					expectClass = data == "."
				case css.IdentToken:
					if expectClass {
						classes = appendUnique(classes, data)
					}
					expectClass = false
				case css.HashToken:
					ids = appendUnique(ids, strings.TrimPrefix(data, "#"))
					expectClass = false
				default:
					expectClass = false
				}
			}
		}
	}
}

// ExtractScriptSelectors pulls `{{.foo}}` and `{{#bar}}` references out
// of a script body.
func ExtractScriptSelectors(src string) (classes, ids []string) {
	for i := 0; i+1 < len(src); i++ {
		if src[i] != '{' || src[i+1] != '{' {
			continue
		}
		end := strings.Index(src[i+2:], "}}")
		if end < 0 {
			break
		}
		content := strings.TrimSpace(src[i+2 : i+2+end])
		if strings.HasPrefix(content, ".") && !hasSpace(content) {
			classes = appendUnique(classes, content[1:])
		} else if strings.HasPrefix(content, "#") && !hasSpace(content) {
			ids = appendUnique(ids, content[1:])
		}
		i += end + 3
	}
	return
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func hasSpace(s string) bool {
	return strings.ContainsAny(s, " \t")
}

// resolveAmpersand rewrites `&` references in a local style block. In a
// style context class wins over id.
func resolveAmpersand(src string, n *chtl.Node, preferClass bool) string {
	sel := elementSelector(n, preferClass)
	if sel == "" || !strings.Contains(src, "&") {
		return src
	}
	var b strings.Builder
	inString := byte(0)
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString != 0 {
			b.WriteByte(c)
			if c == inString && (i == 0 || src[i-1] != '\\') {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = c
			b.WriteByte(c)
		case '&':
			b.WriteString(sel)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// resolveScriptAmpersand rewrites `{{&}}` references in a local script
// block. In a script context id wins over class.
func resolveScriptAmpersand(src string, n *chtl.Node) string {
	sel := elementSelector(n, false)
	if sel == "" {
		return src
	}
	return strings.ReplaceAll(src, "{{&}}", "{{"+sel+"}}")
}

func elementSelector(n *chtl.Node, preferClass bool) string {
	class, hasClass := n.GetAttribute("class")
	id, hasID := n.GetAttribute("id")
	if preferClass {
		if hasClass {
			return "." + firstField(class)
		}
		if hasID {
			return "#" + id
		}
	} else {
		if hasID {
			return "#" + id
		}
		if hasClass {
			return "." + firstField(class)
		}
	}
	return ""
}

func firstField(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}
