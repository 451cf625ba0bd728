package chtl

import (
	"fmt"
	"strings"

	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/loc"
	"golang.org/x/net/html/atom"
)

type ParseOptions struct {
	// Strict aborts parsing at the first syntax error instead of
	// recovering at the next synchronising token.
	Strict bool
	Lexer  LexerOptions
}

func DefaultParseOptions() ParseOptions {
	return ParseOptions{Lexer: DefaultLexerOptions()}
}

// Parse consumes a CHTL source string and produces a Document node.
// Syntax errors are recorded on the handler; unless Strict is set the
// parser recovers and returns a partial tree with invalid subtrees marked.
func Parse(source string, h *handler.Handler, opts ParseOptions) *Node {
	p := &parser{
		lx:   NewLexer(source, opts.Lexer),
		h:    h,
		opts: opts,
	}
	doc := &Node{Type: DocumentNode}
	p.parseDocument(doc)
	for _, le := range p.lx.Errors() {
		h.AppendError(&loc.ErrorWithRange{
			Code:  lexErrorCode(le),
			Text:  le.Message,
			Range: loc.Range{Loc: le.Loc, Len: len(le.Offending)},
		})
	}
	return doc
}

func lexErrorCode(le LexError) loc.DiagnosticCode {
	switch le.State {
	case "string":
		return loc.ERROR_UNTERMINATED_STRING
	case "comment":
		return loc.ERROR_UNTERMINATED_COMMENT
	case "raw":
		return loc.ERROR_UNTERMINATED_BLOCK
	case "limit":
		return loc.ERROR_TOKEN_LIMIT
	}
	return loc.ERROR_INVALID_CHARACTER
}

type parser struct {
	lx      *Lexer
	h       *handler.Handler
	opts    ParseOptions
	buf     [2]Token
	nbuf    int
	stopped bool
}

func (p *parser) next() Token {
	if p.nbuf > 0 {
		t := p.buf[0]
		p.buf[0] = p.buf[1]
		p.nbuf--
		return t
	}
	return p.lx.Next()
}

func (p *parser) peek() Token {
	if p.nbuf == 0 {
		p.buf[0] = p.lx.Next()
		p.nbuf = 1
	}
	return p.buf[0]
}

func (p *parser) peek2() Token {
	p.peek()
	if p.nbuf == 1 {
		p.buf[1] = p.lx.Next()
		p.nbuf = 2
	}
	return p.buf[1]
}

func (p *parser) errorf(l loc.Loc, code loc.DiagnosticCode, format string, a ...interface{}) {
	p.h.AppendError(&loc.ErrorWithRange{
		Code:  code,
		Text:  fmt.Sprintf(format, a...),
		Range: loc.Range{Loc: l, Len: 1},
	})
	if p.opts.Strict {
		p.stopped = true
	}
}

// sync advances to the next synchronising token: a top-level bracket
// keyword, a closing brace, or a semicolon.
func (p *parser) sync() {
	for {
		t := p.peek()
		switch {
		case t.Type == EOFToken || t.Type == ErrorToken:
			return
		case t.Type == KeywordToken && IsBracketKeyword(t.Data):
			return
		case t.Type == PunctToken && (t.Data == "}" || t.Data == ";"):
			p.next()
			return
		}
		p.next()
	}
}

func (p *parser) expect(data string) (Token, bool) {
	t := p.peek()
	if t.Type == PunctToken && t.Data == data {
		return p.next(), true
	}
	p.errorf(t.Loc, loc.ERROR_MISSING_PUNCTUATION, "expected %q, found %q", data, t.Data)
	return t, false
}

func (p *parser) parseDocument(doc *Node) {
	for !p.stopped {
		t := p.peek()
		switch t.Type {
		case EOFToken, ErrorToken:
			if t.Type == ErrorToken {
				p.next()
			}
			return
		case KeywordToken:
			switch t.Data {
			case "[Template]":
				p.parseTemplateLike(doc, TemplateNode)
			case "[Custom]":
				p.parseTemplateLike(doc, CustomNode)
			case "[Origin]":
				p.parseOrigin(doc)
			case "[Configuration]":
				p.parseConfig(doc)
			case "[Namespace]":
				p.parseNamespace(doc)
			case "[Import]":
				p.parseImport(doc)
			case "use":
				p.parseUseDirective(doc)
			case "style":
				p.parseStyleBlock(doc)
			case "script":
				p.parseScriptBlock(doc)
			default:
				p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected keyword %q at top level", t.Data)
				p.next()
				p.sync()
			}
		case IdentToken:
			p.parseElement(doc)
		case GeneratorCommentToken, LineCommentToken, BlockCommentToken:
			p.parseComment(doc)
		default:
			p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected token %q at top level", t.Data)
			p.next()
			p.sync()
		}
	}
}

func (p *parser) parseComment(parent *Node) {
	t := p.next()
	parent.AppendChild(&Node{
		Type:      CommentNode,
		Data:      t.Data,
		Generator: t.Type == GeneratorCommentToken,
		Loc:       t.Loc,
	})
}

// parseUseDirective handles document directives such as `use html5;`.
func (p *parser) parseUseDirective(doc *Node) {
	t := p.next() // use
	val := p.next()
	if val.Type != IdentToken && val.Type != UnquotedToken {
		p.errorf(val.Loc, loc.ERROR_MALFORMED_DECLARATION, "expected directive name after use")
		p.sync()
		return
	}
	doc.SetAttribute("use", val.Data)
	doc.Loc = t.Loc
	p.expectSemi()
}

func (p *parser) expectSemi() {
	t := p.peek()
	if t.Type == PunctToken && t.Data == ";" {
		p.next()
	}
}

// parseKindName parses `@ Kind Name` and returns the sub-kind and name.
func (p *parser) parseKindName(allowAnonymous bool) (SubKind, string, loc.Loc, bool) {
	at := p.peek()
	if !(at.Type == PunctToken && at.Data == "@") {
		p.errorf(at.Loc, loc.ERROR_MALFORMED_DECLARATION, "expected @Kind, found %q", at.Data)
		return NoKind, "", at.Loc, false
	}
	p.next()
	kindTok := p.next()
	kind := SubKindOf(kindTok.Data)
	if kind == NoKind {
		p.errorf(kindTok.Loc, loc.ERROR_MALFORMED_DECLARATION, "unknown kind @%s", kindTok.Data)
		return NoKind, "", kindTok.Loc, false
	}
	nameTok := p.peek()
	if nameTok.Type != IdentToken {
		if allowAnonymous {
			return kind, "", kindTok.Loc, true
		}
		p.errorf(nameTok.Loc, loc.ERROR_MALFORMED_DECLARATION, "expected name after @%s", kindTok.Data)
		return kind, "", nameTok.Loc, false
	}
	p.next()
	return kind, nameTok.Data, nameTok.Loc, true
}

func (p *parser) parseTemplateLike(parent *Node, typ NodeType) {
	kw := p.next() // [Template] or [Custom]
	kind, name, _, ok := p.parseKindName(false)
	if !ok {
		p.sync()
		return
	}
	n := &Node{Type: typ, Kind: kind, Data: name, Loc: kw.Loc}
	if _, ok := p.expect("{"); !ok {
		n.Invalid = true
		parent.AppendChild(n)
		p.sync()
		return
	}
	switch kind {
	case StyleKind:
		p.parseStyleDecls(n)
	case VarKind:
		p.parseVarPairs(n)
	case ElementKind:
		p.parseElementBody(n)
	}
	p.expect("}")
	parent.AppendChild(n)
}

// parseStyleDecls parses `prop: value;` declarations plus inherit/delete
// statements inside a template/custom @Style body. Declarations land in
// Attr to preserve insertion order for the specialisation merge.
func (p *parser) parseStyleDecls(n *Node) {
	for !p.stopped {
		t := p.peek()
		switch {
		case t.Type == EOFToken || t.Type == ErrorToken:
			return
		case t.Type == PunctToken && t.Data == "}":
			return
		case t.Type == KeywordToken && t.Data == "inherit":
			p.parseInherit(n)
		case t.Type == KeywordToken && t.Data == "delete":
			p.parseDelete(n)
		case t.Type == PunctToken && t.Data == "@":
			p.parseUseNode(n)
		case t.Type == IdentToken || t.Type == UnquotedToken:
			p.next()
			if _, ok := p.expect(":"); !ok {
				p.sync()
				continue
			}
			val, valLoc := p.lx.RawValue()
			n.Attr = append(n.Attr, Attribute{
				Key:    t.Data,
				KeyLoc: t.Loc,
				Val:    unquoteValue(val),
				ValLoc: valLoc,
			})
			p.expectSemi()
		case t.Type == GeneratorCommentToken || t.Type == LineCommentToken || t.Type == BlockCommentToken:
			p.parseComment(n)
		default:
			p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected token %q in style body", t.Data)
			p.next()
		}
	}
}

// parseVarPairs parses `k = v;` pairs inside a @Var body.
func (p *parser) parseVarPairs(n *Node) {
	for !p.stopped {
		t := p.peek()
		switch {
		case t.Type == EOFToken || t.Type == ErrorToken:
			return
		case t.Type == PunctToken && t.Data == "}":
			return
		case t.Type == IdentToken:
			p.next()
			if _, ok := p.expect("="); !ok {
				p.sync()
				continue
			}
			val, valLoc := p.lx.RawValue()
			n.Attr = append(n.Attr, Attribute{
				Key:    t.Data,
				KeyLoc: t.Loc,
				Val:    unquoteValue(val),
				ValLoc: valLoc,
			})
			p.expectSemi()
		case t.Type == GeneratorCommentToken || t.Type == LineCommentToken || t.Type == BlockCommentToken:
			p.parseComment(n)
		default:
			p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected token %q in var body", t.Data)
			p.next()
		}
	}
}

func (p *parser) parseInherit(parent *Node) {
	kw := p.next() // inherit
	kind, name, _, ok := p.parseKindName(false)
	if !ok {
		p.sync()
		return
	}
	parent.AppendChild(&Node{Type: InheritNode, Kind: kind, Data: name, Loc: kw.Loc})
	p.expectSemi()
}

func (p *parser) parseDelete(parent *Node) {
	kw := p.next() // delete
	t := p.next()
	if t.Type != IdentToken && t.Type != UnquotedToken && !(t.Type == KeywordToken && t.Data == "inherit") {
		p.errorf(t.Loc, loc.ERROR_MALFORMED_DECLARATION, "expected property name or inherit after delete")
		p.sync()
		return
	}
	parent.AppendChild(&Node{Type: DeleteNode, Data: t.Data, Loc: kw.Loc})
	p.expectSemi()
}

func (p *parser) parseOrigin(parent *Node) {
	kw := p.next() // [Origin]
	kind, name, _, ok := p.parseKindName(true)
	if !ok {
		p.sync()
		return
	}
	n := &Node{Type: OriginNode, Kind: kind, Data: name, Loc: kw.Loc}
	if _, ok := p.expect("{"); !ok {
		n.Invalid = true
		parent.AppendChild(n)
		p.sync()
		return
	}
	body, bodyLoc, _ := p.lx.RawBalanced()
	n.AppendChild(&Node{Type: TextNode, Data: body, Loc: bodyLoc})
	parent.AppendChild(n)
}

func (p *parser) parseConfig(parent *Node) {
	kw := p.next() // [Configuration]
	n := &Node{Type: ConfigNode, Loc: kw.Loc}
	if t := p.peek(); t.Type == IdentToken {
		p.next()
		n.Data = t.Data
	}
	if _, ok := p.expect("{"); !ok {
		p.sync()
		return
	}
	p.parseVarPairs(n)
	p.expect("}")
	parent.AppendChild(n)
}

func (p *parser) parseNamespace(parent *Node) {
	kw := p.next() // [Namespace]
	var path []string
	for {
		t := p.peek()
		if t.Type != IdentToken {
			break
		}
		p.next()
		path = append(path, t.Data)
		// `.b.c` after the first segment lexes as one unquoted token
		if rest := p.peek(); rest.Type == UnquotedToken && strings.HasPrefix(rest.Data, ".") {
			p.next()
			path = append(path, strings.Split(rest.Data[1:], ".")...)
		}
		break
	}
	if len(path) == 0 {
		p.errorf(kw.Loc, loc.ERROR_MALFORMED_DECLARATION, "expected namespace path after [Namespace]")
		p.sync()
		return
	}
	n := &Node{Type: NamespaceNode, Data: strings.Join(path, "."), Loc: kw.Loc}
	if t := p.peek(); t.Type == PunctToken && t.Data == "{" {
		p.next()
		p.parseNamespaceBody(n)
		p.expect("}")
	}
	parent.AppendChild(n)
}

func (p *parser) parseNamespaceBody(n *Node) {
	for !p.stopped {
		t := p.peek()
		switch {
		case t.Type == EOFToken || t.Type == ErrorToken:
			return
		case t.Type == PunctToken && t.Data == "}":
			return
		case t.Type == KeywordToken && t.Data == "[Template]":
			p.parseTemplateLike(n, TemplateNode)
		case t.Type == KeywordToken && t.Data == "[Custom]":
			p.parseTemplateLike(n, CustomNode)
		case t.Type == KeywordToken && t.Data == "[Origin]":
			p.parseOrigin(n)
		case t.Type == KeywordToken && t.Data == "[Configuration]":
			p.parseConfig(n)
		case t.Type == KeywordToken && t.Data == "[Namespace]":
			p.parseNamespace(n)
		case t.Type == IdentToken:
			p.parseElement(n)
		case t.Type == GeneratorCommentToken || t.Type == LineCommentToken || t.Type == BlockCommentToken:
			p.parseComment(n)
		default:
			p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected token %q in namespace body", t.Data)
			p.next()
			p.sync()
		}
	}
}

func (p *parser) parseImport(parent *Node) {
	kw := p.next() // [Import]
	n := &Node{Type: ImportNode, Loc: kw.Loc}
	if at := p.peek(); at.Type == PunctToken && at.Data == "@" {
		p.next()
		kindTok := p.next()
		n.Attr = append(n.Attr, Attribute{Key: "kind", Val: kindTok.Data, KeyLoc: kindTok.Loc})
	}
	if from := p.peek(); from.Type == KeywordToken && from.Data == "from" {
		p.next()
		pathTok := p.next()
		if pathTok.Type != StringToken && pathTok.Type != IdentToken && pathTok.Type != UnquotedToken {
			p.errorf(pathTok.Loc, loc.ERROR_MALFORMED_DECLARATION, "expected path after from")
			p.sync()
			return
		}
		n.Data = pathTok.Data
	}
	if as := p.peek(); as.Type == KeywordToken && as.Data == "as" {
		p.next()
		aliasTok := p.next()
		n.Attr = append(n.Attr, Attribute{Key: "as", Val: aliasTok.Data, KeyLoc: aliasTok.Loc})
	}
	p.expectSemi()
	parent.AppendChild(n)
}

func (p *parser) parseElement(parent *Node) {
	nameTok := p.next()
	n := &Node{
		Type:     ElementNode,
		Data:     nameTok.Data,
		DataAtom: atom.Lookup([]byte(strings.ToLower(nameTok.Data))),
		Loc:      nameTok.Loc,
	}
	if _, ok := p.expect("{"); !ok {
		n.Invalid = true
		parent.AppendChild(n)
		p.sync()
		return
	}
	p.parseElementBody(n)
	p.expect("}")
	parent.AppendChild(n)
}

func (p *parser) parseElementBody(n *Node) {
	for !p.stopped {
		t := p.peek()
		switch {
		case t.Type == EOFToken || t.Type == ErrorToken:
			return
		case t.Type == PunctToken && t.Data == "}":
			return
		case t.Type == KeywordToken && t.Data == "style":
			p.parseStyleBlock(n)
		case t.Type == KeywordToken && t.Data == "script":
			p.parseScriptBlock(n)
		case t.Type == KeywordToken && t.Data == "text":
			p.parseTextBlock(n)
		case t.Type == KeywordToken && t.Data == "except":
			p.parseExcept(n)
		case t.Type == KeywordToken && t.Data == "inherit":
			p.parseInherit(n)
		case t.Type == KeywordToken && t.Data == "delete":
			p.parseDelete(n)
		case t.Type == PunctToken && t.Data == "@":
			p.parseUseNode(n)
		case t.Type == StringToken:
			p.next()
			n.AppendChild(&Node{Type: TextNode, Data: t.Data, Loc: t.Loc})
		case t.Type == GeneratorCommentToken || t.Type == LineCommentToken || t.Type == BlockCommentToken:
			p.parseComment(n)
		case t.Type == IdentToken:
			if nxt := p.peek2(); nxt.Type == PunctToken && nxt.Data == ":" {
				p.parseAttrAssign(n)
			} else if nxt.Type == PunctToken && nxt.Data == "{" {
				p.parseElement(n)
			} else {
				p.errorf(nxt.Loc, loc.ERROR_UNEXPECTED_TOKEN, "expected : or { after %q", t.Data)
				p.next()
				p.sync()
			}
		default:
			p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected token %q in element body", t.Data)
			p.next()
			p.sync()
		}
	}
}

func (p *parser) parseAttrAssign(n *Node) {
	key := p.next()
	p.next() // ':'
	val, valLoc := p.lx.RawValue()
	quoted := len(val) >= 2 && (val[0] == '"' || val[0] == '\'')
	n.Attr = append(n.Attr, Attribute{
		Key:    key.Data,
		KeyLoc: key.Loc,
		Val:    unquoteValue(val),
		ValLoc: valLoc,
		Quoted: quoted,
	})
	p.expectSemi()
}

func (p *parser) parseStyleBlock(parent *Node) {
	kw := p.next() // style
	if _, ok := p.expect("{"); !ok {
		p.sync()
		return
	}
	body, _, _ := p.lx.RawBalanced()
	parent.AppendChild(&Node{Type: StyleNode, Data: body, Loc: kw.Loc})
}

func (p *parser) parseScriptBlock(parent *Node) {
	kw := p.next() // script
	if _, ok := p.expect("{"); !ok {
		p.sync()
		return
	}
	body, _, _ := p.lx.RawBalanced()
	parent.AppendChild(&Node{Type: ScriptNode, Data: body, Loc: kw.Loc})
}

func (p *parser) parseTextBlock(parent *Node) {
	kw := p.next() // text
	if _, ok := p.expect("{"); !ok {
		p.sync()
		return
	}
	var parts []string
	for !p.stopped {
		t := p.peek()
		if t.Type == PunctToken && t.Data == "}" {
			p.next()
			break
		}
		if t.Type == EOFToken || t.Type == ErrorToken {
			break
		}
		if t.Type == StringToken || t.Type == IdentToken || t.Type == UnquotedToken || t.Type == NumberToken {
			p.next()
			parts = append(parts, t.Data)
			p.expectSemi()
			continue
		}
		p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected token %q in text block", t.Data)
		p.next()
	}
	parent.AppendChild(&Node{Type: TextNode, Data: strings.Join(parts, " "), Loc: kw.Loc})
}

func (p *parser) parseExcept(parent *Node) {
	kw := p.next() // except
	n := &Node{Type: ExceptNode, Loc: kw.Loc}
	for !p.stopped {
		t := p.peek()
		if t.Type == PunctToken && t.Data == ";" {
			p.next()
			break
		}
		if t.Type == EOFToken || t.Type == ErrorToken || (t.Type == PunctToken && t.Data == "}") {
			break
		}
		// entry: literal name, or a qualified form such as [Custom] @Element Box
		switch {
		case t.Type == KeywordToken && IsBracketKeyword(t.Data):
			p.next()
			entry := t.Data
			if at := p.peek(); at.Type == PunctToken && at.Data == "@" {
				p.next()
				kindTok := p.next()
				entry += " @" + kindTok.Data
			}
			if nameTok := p.peek(); nameTok.Type == IdentToken {
				p.next()
				entry += " " + nameTok.Data
			}
			n.Attr = append(n.Attr, Attribute{Key: entry, KeyLoc: t.Loc})
		case t.Type == IdentToken || t.Type == UnquotedToken:
			p.next()
			n.Attr = append(n.Attr, Attribute{Key: t.Data, KeyLoc: t.Loc})
		case t.Type == PunctToken && t.Data == ",":
			p.next()
		default:
			p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected token %q in except clause", t.Data)
			p.next()
		}
	}
	parent.AppendChild(n)
}

// parseUseNode parses a call site: `@Element Card(label="x");`,
// `@Style Base;`, or `@Style Base { override: v; delete prop; }`.
func (p *parser) parseUseNode(parent *Node) {
	at := p.next() // '@'
	kindTok := p.next()
	kind := SubKindOf(kindTok.Data)
	if kind == NoKind {
		p.errorf(kindTok.Loc, loc.ERROR_MALFORMED_DECLARATION, "unknown kind @%s", kindTok.Data)
		p.sync()
		return
	}
	nameTok := p.next()
	if nameTok.Type != IdentToken {
		p.errorf(nameTok.Loc, loc.ERROR_MALFORMED_DECLARATION, "expected name after @%s", kindTok.Data)
		p.sync()
		return
	}
	n := &Node{Type: UseNode, Kind: kind, Data: nameTok.Data, Loc: at.Loc}

	if t := p.peek(); t.Type == PunctToken && t.Data == "(" {
		p.next()
		p.parseUseArgs(n)
		p.expect(")")
	}
	if t := p.peek(); t.Type == KeywordToken && t.Data == "from" {
		p.next()
		var path []string
		for {
			seg := p.peek()
			if seg.Type != IdentToken {
				break
			}
			p.next()
			path = append(path, seg.Data)
			// `.b.c` after the first segment lexes as one unquoted token
			if rest := p.peek(); rest.Type == UnquotedToken && strings.HasPrefix(rest.Data, ".") {
				p.next()
				path = append(path, strings.Split(rest.Data[1:], ".")...)
			}
			break
		}
		n.Attr = append(n.Attr, Attribute{Key: "from", Val: strings.Join(path, ".")})
	}
	if t := p.peek(); t.Type == PunctToken && t.Data == "{" {
		// specialisation body: overrides and delete statements
		p.next()
		p.parseStyleDecls(n)
		p.expect("}")
	} else {
		p.expectSemi()
	}
	parent.AppendChild(n)
}

func (p *parser) parseUseArgs(n *Node) {
	for !p.stopped {
		t := p.peek()
		if t.Type == PunctToken && t.Data == ")" {
			return
		}
		if t.Type == EOFToken || t.Type == ErrorToken {
			return
		}
		if t.Type == IdentToken {
			p.next()
			if eq := p.peek(); eq.Type == PunctToken && eq.Data == "=" {
				p.next()
				val := p.next()
				n.Attr = append(n.Attr, Attribute{Key: t.Data, KeyLoc: t.Loc, Val: val.Data, Quoted: val.Type == StringToken})
			} else {
				// positional argument, e.g. G(key)
				n.Attr = append(n.Attr, Attribute{Key: t.Data, KeyLoc: t.Loc})
			}
			if comma := p.peek(); comma.Type == PunctToken && comma.Data == "," {
				p.next()
			}
			continue
		}
		p.errorf(t.Loc, loc.ERROR_UNEXPECTED_TOKEN, "unexpected token %q in argument list", t.Data)
		p.next()
	}
}

func unquoteValue(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
