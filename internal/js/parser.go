package js

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/loc"
)

// Parse consumes a CHTL-JS source string and produces a Program node.
// Plain JS between CHTL-JS constructs is preserved as Raw children in
// source order.
func Parse(source string, h *handler.Handler) *Node {
	p := &parser{
		lx:  NewLexer(source),
		src: source,
		h:   h,
	}
	prog := &Node{Kind: ProgramNode}
	p.parseProgram(prog)
	for _, le := range p.lx.Errors() {
		h.AppendError(&loc.ErrorWithRange{
			Code:  loc.ERROR_UNTERMINATED_BLOCK,
			Text:  le.Message,
			Range: loc.Range{Loc: le.Loc, Len: 1},
		})
	}
	return prog
}

type parser struct {
	lx  *Lexer
	src string
	h   *handler.Handler

	buf  [2]Token
	nbuf int

	rawStart int // start of the pending raw run, -1 when none
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

func (p *parser) errorf(l loc.Loc, format string, a ...interface{}) {
	p.h.AppendError(&loc.ErrorWithRange{
		Code:  loc.ERROR_UNEXPECTED_TOKEN,
		Text:  fmt.Sprintf(format, a...),
		Range: loc.Range{Loc: l, Len: 1},
	})
}

// flushRaw emits the pending raw run ending at the given offset.
func (p *parser) flushRaw(prog *Node, end int) {
	if p.rawStart < 0 || end <= p.rawStart {
		p.rawStart = -1
		return
	}
	code := p.src[p.rawStart:end]
	if strings.TrimSpace(code) != "" {
		prog.Append(&Node{Kind: RawNode, Code: code, Loc: loc.Loc{Start: p.rawStart}})
	}
	p.rawStart = -1
}

// splitTrailingExpr splits the pending raw run into (prefix, trailing
// expression) so that `el -> listen { … }` can bind to `el`. The trailing
// expression is the suffix after the last statement delimiter.
func (p *parser) splitTrailingExpr(end int) (string, string) {
	if p.rawStart < 0 || end <= p.rawStart {
		return "", ""
	}
	code := p.src[p.rawStart:end]
	cut := strings.LastIndexAny(code, ";\n")
	prefix, expr := "", code
	if cut >= 0 {
		prefix, expr = code[:cut+1], code[cut+1:]
	}
	return prefix, strings.TrimSpace(expr)
}

func (p *parser) parseProgram(prog *Node) {
	p.rawStart = -1
	for {
		t := p.peek()
		switch t.Type {
		case EOFToken:
			p.flushRaw(prog, len(p.src))
			return
		case ErrorToken:
			p.next()
			p.flushRaw(prog, len(p.src))
			return
		case SelectorToken:
			p.flushRaw(prog, t.Loc.Start)
			p.next()
			sel := p.selectorNode(t)
			p.parsePostfix(prog, sel)
		case EventBindToken:
			// ident &-> event { body }
			prefix, expr := p.splitTrailingExpr(t.Loc.Start)
			p.emitPrefix(prog, prefix)
			p.next()
			target := &Node{Kind: RawNode, Code: expr, Loc: t.Loc}
			p.parseEventBinding(prog, target, t.Loc)
		case ArrowToken:
			if nxt := p.peek2(); nxt.Type == KeywordToken && (nxt.Data == "listen" || nxt.Data == "delegate" || nxt.Data == "animate") {
				prefix, expr := p.splitTrailingExpr(t.Loc.Start)
				p.emitPrefix(prog, prefix)
				p.next() // ->
				target := &Node{Kind: RawNode, Code: expr, Loc: t.Loc}
				p.parseBlockAfterArrow(prog, target)
				continue
			}
			// expr -> member flattens to property access
			p.flushRaw(prog, t.Loc.Start)
			p.next()
			member := p.peek()
			if member.Type == IdentToken || member.Type == KeywordToken {
				p.next()
				prog.Append(&Node{Kind: ArrowAccessNode, Member: member.Data, Loc: t.Loc})
			} else {
				prog.Append(&Node{Kind: ArrowAccessNode, Member: "", Loc: t.Loc})
			}
		case KeywordToken:
			switch t.Data {
			case "listen", "delegate", "animate":
				if nxt := p.peek2(); nxt.Type == PunctToken && nxt.Data == "{" {
					p.flushRaw(prog, t.Loc.Start)
					p.parseBlockAfterArrow(prog, nil)
					continue
				}
				p.consumeRaw(t)
			case "vir":
				p.flushRaw(prog, t.Loc.Start)
				p.parseVir(prog)
			case "module":
				if nxt := p.peek2(); nxt.Type == PunctToken && nxt.Data == "{" {
					p.flushRaw(prog, t.Loc.Start)
					p.parseModule(prog)
					continue
				}
				p.consumeRaw(t)
			default:
				p.consumeRaw(t)
			}
		default:
			p.consumeRaw(t)
		}
	}
}

func (p *parser) emitPrefix(prog *Node, prefix string) {
	start := p.rawStart
	p.rawStart = -1
	if strings.TrimSpace(prefix) != "" {
		prog.Append(&Node{Kind: RawNode, Code: prefix, Loc: loc.Loc{Start: start}})
	}
}

// consumeRaw folds the token into the pending raw run.
func (p *parser) consumeRaw(t Token) {
	if p.rawStart < 0 {
		p.rawStart = t.Loc.Start
	}
	p.next()
}

func (p *parser) selectorNode(t Token) *Node {
	content := t.Data
	n := &Node{
		Kind:         SelectorNode,
		Selector:     content,
		SelectorType: ClassifySelector(content),
		Loc:          t.Loc,
	}
	// optional [index] suffix for indexed queries
	if br := p.peek(); br.Type == PunctToken && br.Data == "[" {
		if num := p.peek2(); num.Type == NumberToken {
			p.next()
			p.next()
			if close := p.peek(); close.Type == PunctToken && close.Data == "]" {
				p.next()
			}
			if idx, err := strconv.Atoi(num.Data); err == nil {
				n.Index = idx
				n.HasIndex = true
			}
		}
	}
	return n
}

// parsePostfix handles what follows a parsed enhanced selector.
func (p *parser) parsePostfix(prog *Node, target *Node) {
	for {
		t := p.peek()
		switch t.Type {
		case ArrowToken:
			nxt := p.peek2()
			if nxt.Type == KeywordToken && (nxt.Data == "listen" || nxt.Data == "delegate" || nxt.Data == "animate") {
				p.next() // ->
				p.parseBlockAfterArrow(prog, target)
				return
			}
			if nxt.Type == IdentToken || nxt.Type == KeywordToken {
				p.next()
				p.next()
				target = &Node{Kind: ArrowAccessNode, Target: target, Member: nxt.Data, Loc: t.Loc}
				continue
			}
			p.next()
			prog.Append(target)
			return
		case EventBindToken:
			p.next()
			p.parseEventBinding(prog, target, t.Loc)
			return
		default:
			prog.Append(target)
			return
		}
	}
}

func (p *parser) parseBlockAfterArrow(prog *Node, target *Node) {
	kw := p.next() // listen | delegate | animate
	if open := p.peek(); !(open.Type == PunctToken && open.Data == "{") {
		p.errorf(open.Loc, "expected { after %s", kw.Data)
		return
	}
	p.next() // '{'
	switch kw.Data {
	case "listen":
		prog.Append(p.parseListenBody(target, kw.Loc))
	case "delegate":
		prog.Append(p.parseDelegateBody(target, kw.Loc))
	case "animate":
		prog.Append(p.parseAnimateBody(target, kw.Loc))
	}
}

// parseListenBody parses `event: handler, …` entries. The opening brace
// has been consumed. Trailing commas are accepted.
func (p *parser) parseListenBody(target *Node, l loc.Loc) *Node {
	pop := p.lx.PushState(StateListen)
	defer pop()
	n := &Node{Kind: ListenNode, Target: target, Loc: l}
	p.parseEntryList(n)
	return n
}

func (p *parser) parseDelegateBody(target *Node, l loc.Loc) *Node {
	pop := p.lx.PushState(StateDelegate)
	defer pop()
	n := &Node{Kind: DelegateNode, Target: target, Loc: l}
	p.parseEntryList(n)
	return n
}

func (p *parser) parseAnimateBody(target *Node, l loc.Loc) *Node {
	pop := p.lx.PushState(StateAnimate)
	defer pop()
	n := &Node{Kind: AnimateNode, Target: target, Loc: l}
	p.parseEntryList(n)
	return n
}

// parseEntryList parses `key: value` pairs up to the block's closing
// brace. Values are balanced raw JS expressions; a value that is itself
// an enhanced selector becomes a nested node.
func (p *parser) parseEntryList(n *Node) {
	for {
		t := p.peek()
		switch {
		case t.Type == EOFToken || t.Type == ErrorToken:
			if t.Type == ErrorToken {
				p.next()
			}
			return
		case t.Type == PunctToken && t.Data == "}":
			p.next()
			return
		case t.Type == PunctToken && t.Data == ",":
			p.next()
		case t.Type == IdentToken || t.Type == KeywordToken || t.Type == StringToken:
			p.next()
			key := t.Data
			if t.Type == StringToken {
				key = strings.Trim(key, "\"'`")
			}
			if colon := p.peek(); colon.Type == PunctToken && colon.Data == ":" {
				p.next()
				if sel := p.peek(); sel.Type == SelectorToken {
					p.next()
					n.Entries = append(n.Entries, Entry{Key: key, Block: p.selectorNode(sel), Loc: t.Loc})
					continue
				}
				// hand the peeked token back to the lexer so the raw
				// value starts at its first character
				p.lx.pos = p.buf[0].Loc.Start
				p.nbuf = 0
				val := p.lx.RawExpr()
				n.Entries = append(n.Entries, Entry{Key: key, Val: val, Loc: t.Loc})
				continue
			}
			// bare key without value
			n.Entries = append(n.Entries, Entry{Key: key, Loc: t.Loc})
		default:
			p.errorf(t.Loc, "unexpected token %q in %s block", t.Data, n.Kind)
			p.next()
		}
	}
}

// parseEventBinding parses `target &-> event { body }`, shorthand for a
// single-event listener.
func (p *parser) parseEventBinding(prog *Node, target *Node, l loc.Loc) {
	ev := p.peek()
	if ev.Type != IdentToken && ev.Type != KeywordToken {
		p.errorf(ev.Loc, "expected event name after &->")
		return
	}
	p.next()
	n := &Node{Kind: EventBindingNode, Target: target, Member: ev.Data, Loc: l}
	if open := p.peek(); open.Type == PunctToken && open.Data == "{" {
		p.next()
		body, _ := p.lx.RawBalanced()
		n.Code = strings.TrimSpace(body)
	}
	prog.Append(n)
}

// parseVir parses `vir name = <listen|animate|delegate|iNeverAway block>`.
func (p *parser) parseVir(prog *Node) {
	pop := p.lx.PushState(StateVir)
	defer pop()
	kw := p.next() // vir
	nameTok := p.peek()
	if nameTok.Type != IdentToken {
		p.errorf(nameTok.Loc, "expected name after vir")
		return
	}
	p.next()
	if eq := p.peek(); eq.Type == PunctToken && eq.Data == "=" {
		p.next()
	}
	n := &Node{Kind: VirtualObjectNode, Member: nameTok.Data, Loc: kw.Loc}
	blockTok := p.peek()
	if blockTok.Type == KeywordToken {
		p.next()
		if open := p.peek(); open.Type == PunctToken && open.Data == "{" {
			p.next()
			switch blockTok.Data {
			case "listen":
				n.Target = p.parseListenBody(nil, blockTok.Loc)
			case "delegate":
				n.Target = p.parseDelegateBody(nil, blockTok.Loc)
			case "animate":
				n.Target = p.parseAnimateBody(nil, blockTok.Loc)
			default:
				body, _ := p.lx.RawBalanced()
				n.Target = &Node{Kind: OpaqueBlockNode, Member: blockTok.Data, Code: strings.TrimSpace(body), Loc: blockTok.Loc}
			}
		}
	} else {
		p.errorf(blockTok.Loc, "expected block after vir %s =", nameTok.Data)
	}
	p.expectSemi()
	prog.Append(n)
}

// parseModule parses `module { load: path1, path2, … }`. Both the
// comma-separated and the comma-prefixed chained forms are accepted.
func (p *parser) parseModule(prog *Node) {
	pop := p.lx.PushState(StateModule)
	defer pop()
	kw := p.next() // module
	p.next()       // '{'
	n := &Node{Kind: ModuleNode, Loc: kw.Loc}
	for {
		t := p.peek()
		switch {
		case t.Type == EOFToken || t.Type == ErrorToken:
			if t.Type == ErrorToken {
				p.next()
			}
			prog.Append(n)
			return
		case t.Type == PunctToken && t.Data == "}":
			p.next()
			p.expectSemi()
			prog.Append(n)
			return
		case t.Type == PunctToken && (t.Data == "," || t.Data == ";"):
			p.next()
		case t.Type == KeywordToken && t.Data == "load":
			p.next()
			if colon := p.peek(); colon.Type == PunctToken && colon.Data == ":" {
				p.next()
			}
			p.parseLoadTargets(n)
		default:
			p.errorf(t.Loc, "unexpected token %q in module block", t.Data)
			p.next()
		}
	}
}

func (p *parser) parseLoadTargets(n *Node) {
	for {
		t := p.peek()
		switch {
		case t.Type == StringToken:
			p.next()
			n.Entries = append(n.Entries, Entry{Key: "load", Val: strings.Trim(t.Data, "\"'`"), Loc: t.Loc})
		case t.Type == IdentToken || t.Type == NumberToken:
			// unquoted path segments, e.g. ./utils.cjjs
			p.next()
			path := t.Data
			for {
				nt := p.peek()
				if nt.Type == PunctToken && nt.Data == "." {
					p.next()
					path += "."
					continue
				}
				if nt.Type == IdentToken || nt.Type == RawToken || nt.Type == NumberToken {
					if nt.Loc.Start == t.Loc.Start+len(path) {
						p.next()
						path += nt.Data
						continue
					}
				}
				break
			}
			n.Entries = append(n.Entries, Entry{Key: "load", Val: path, Loc: t.Loc})
		case t.Type == RawToken:
			p.next()
			path := t.Data
			for {
				nt := p.peek()
				if nt.Loc.Start == t.Loc.Start+len(path) &&
					(nt.Type == IdentToken || nt.Type == NumberToken || nt.Type == RawToken || (nt.Type == PunctToken && nt.Data == ".")) {
					p.next()
					path += nt.Data
					continue
				}
				break
			}
			n.Entries = append(n.Entries, Entry{Key: "load", Val: path, Loc: t.Loc})
		default:
			return
		}
		if comma := p.peek(); comma.Type == PunctToken && comma.Data == "," {
			p.next()
			continue
		}
		return
	}
}

func (p *parser) expectSemi() {
	if t := p.peek(); t.Type == PunctToken && t.Data == ";" {
		p.next()
	}
}
