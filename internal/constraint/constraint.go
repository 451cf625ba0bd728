// Package constraint evaluates scope and usage restrictions against the
// CHTL syntax tree. Rules are data; matching is delegated to Matcher
// values so wildcard and kind-qualified targets do not grow the rule tag
// set.
package constraint

import (
	"fmt"
	"sort"
	"strings"

	chtl "github.com/chtl-lang/compiler/internal"
	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/loc"
)

// RuleType says what category of node a rule restricts.
type RuleType int

const (
	RuleElement RuleType = iota
	RuleTemplate
	RuleCustom
	RuleOrigin
	RuleGlobal
	RuleProperty
)

func (t RuleType) String() string {
	switch t {
	case RuleElement:
		return "ELEMENT"
	case RuleTemplate:
		return "TEMPLATE"
	case RuleCustom:
		return "CUSTOM"
	case RuleOrigin:
		return "ORIGIN"
	case RuleGlobal:
		return "GLOBAL"
	case RuleProperty:
		return "PROPERTY"
	}
	return fmt.Sprintf("Invalid(%d)", int(t))
}

// Context is the evaluation scope derived from a node's enclosing block.
type Context int

const (
	ContextGlobal Context = iota
	ContextNamespace
	ContextElement
	ContextStyle
	ContextScript
	ContextTemplate
	ContextCustom
)

func (c Context) String() string {
	switch c {
	case ContextGlobal:
		return "global"
	case ContextNamespace:
		return "namespace"
	case ContextElement:
		return "element"
	case ContextStyle:
		return "style"
	case ContextScript:
		return "script"
	case ContextTemplate:
		return "template"
	case ContextCustom:
		return "custom"
	}
	return fmt.Sprintf("Invalid(%d)", int(c))
}

// admissible is the scope admissibility table: which rule types may fire
// in which context. The global context admits every rule type, and so
// does a context absent from the table (namespace).
var admissible = map[Context][]RuleType{
	ContextGlobal:   {RuleElement, RuleTemplate, RuleCustom, RuleOrigin, RuleGlobal, RuleProperty},
	ContextStyle:    {RuleProperty, RuleTemplate, RuleCustom},
	ContextScript:   {RuleTemplate, RuleOrigin},
	ContextElement:  {RuleElement, RuleTemplate, RuleCustom},
	ContextTemplate: {RuleTemplate, RuleCustom},
	ContextCustom:   {RuleTemplate, RuleCustom},
}

// A Matcher decides whether a rule's target matches a node.
type Matcher interface {
	Matches(n *chtl.Node) bool
	String() string
}

// LiteralMatcher matches a node by exact name.
type LiteralMatcher struct {
	Name string
}

func (m LiteralMatcher) Matches(n *chtl.Node) bool {
	return n.Data == m.Name
}

func (m LiteralMatcher) String() string { return m.Name }

// WildcardMatcher matches a `foo*` prefix target.
type WildcardMatcher struct {
	Prefix string
}

func (m WildcardMatcher) Matches(n *chtl.Node) bool {
	return strings.HasPrefix(n.Data, m.Prefix)
}

func (m WildcardMatcher) String() string { return m.Prefix + "*" }

// QualifiedMatcher matches a `[Template] @Kind Name` form: node type,
// sub-kind, and (optionally) name must all agree.
type QualifiedMatcher struct {
	NodeType chtl.NodeType
	Kind     chtl.SubKind
	Name     string
}

func (m QualifiedMatcher) Matches(n *chtl.Node) bool {
	typ := n.Type
	if typ == chtl.UseNode {
		// a call site stands in for the declaration kind it refers to
		typ = chtl.TemplateNode
		if n.UseCustom {
			typ = chtl.CustomNode
		}
	}
	if typ != m.NodeType {
		return false
	}
	if m.Kind != chtl.NoKind && n.Kind != m.Kind {
		return false
	}
	return m.Name == "" || n.Data == m.Name
}

func (m QualifiedMatcher) String() string {
	name := ""
	switch m.NodeType {
	case chtl.TemplateNode:
		name = "[Template]"
	case chtl.CustomNode:
		name = "[Custom]"
	case chtl.OriginNode:
		name = "[Origin]"
	}
	if m.Kind != chtl.NoKind {
		name += " " + m.Kind.String()
	}
	if m.Name != "" {
		name += " " + m.Name
	}
	return name
}

// NewMatcher builds a matcher from a textual target: a literal name, a
// wildcard prefix `foo*`, or a qualified `[Template] @Kind Name` form.
func NewMatcher(target string) Matcher {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, "[") {
		fields := strings.Fields(target)
		m := QualifiedMatcher{}
		switch fields[0] {
		case "[Template]":
			m.NodeType = chtl.TemplateNode
		case "[Custom]":
			m.NodeType = chtl.CustomNode
		case "[Origin]":
			m.NodeType = chtl.OriginNode
		}
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "@") {
				m.Kind = chtl.SubKindOf(f[1:])
				continue
			}
			m.Name = f
		}
		return m
	}
	if strings.HasSuffix(target, "*") {
		return WildcardMatcher{Prefix: strings.TrimSuffix(target, "*")}
	}
	return LiteralMatcher{Name: target}
}

// A Rule restricts where a target may appear.
type Rule struct {
	Type     RuleType
	Target   Matcher
	Context  Context
	Global   bool
	Priority int
	Message  string
	// Exceptions lists matchers exempted from this rule.
	Exceptions []Matcher
}

func (r Rule) exempt(n *chtl.Node) bool {
	for _, e := range r.Exceptions {
		if e.Matches(n) {
			return true
		}
	}
	return false
}

// DefaultRules is the declarative base rule set: structural restrictions
// every document is checked against.
var DefaultRules = []Rule{
	{Type: RuleTemplate, Target: QualifiedMatcher{NodeType: chtl.TemplateNode, Kind: chtl.ElementKind}, Context: ContextStyle, Priority: 10,
		Message: "element templates cannot be used inside style blocks"},
	{Type: RuleCustom, Target: QualifiedMatcher{NodeType: chtl.CustomNode, Kind: chtl.ElementKind}, Context: ContextStyle, Priority: 10,
		Message: "element customs cannot be used inside style blocks"},
	{Type: RuleOrigin, Target: QualifiedMatcher{NodeType: chtl.OriginNode, Kind: chtl.HtmlKind}, Context: ContextScript, Priority: 10,
		Message: "HTML origins cannot be embedded in script blocks"},
}

type Options struct {
	// Strict aborts on the first violation.
	Strict bool
	// MaxViolations bounds accumulation; zero means 100.
	MaxViolations int
	Rules         []Rule
}

// A Violation pairs the broken rule with the offending node.
type Violation struct {
	Rule Rule
	Node *chtl.Node
}

// Check traverses the tree, derives each node's context, and evaluates
// every admissible rule against it, in priority order. Violations are
// reported on the handler and returned.
func Check(doc *chtl.Node, h *handler.Handler, opts Options) []Violation {
	maxV := opts.MaxViolations
	if maxV == 0 {
		maxV = 100
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules
	}
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	var violations []Violation
	var check func(n *chtl.Node, ctx Context, exceptions []Matcher) bool
	check = func(n *chtl.Node, ctx Context, exceptions []Matcher) bool {
		for _, r := range sorted {
			if len(violations) >= maxV {
				return false
			}
			if !r.Global && r.Context != ctx {
				continue
			}
			if !ruleAdmissible(r.Type, ctx) {
				continue
			}
			if !r.Target.Matches(n) || r.exempt(n) {
				continue
			}
			if excepted(exceptions, n) {
				continue
			}
			violations = append(violations, Violation{Rule: r, Node: n})
			h.AppendError(&loc.ErrorWithRange{
				Code:  loc.ERROR_CONSTRAINT_VIOLATION,
				Text:  r.Message,
				Range: loc.Range{Loc: n.Loc, Len: 1},
			})
			if opts.Strict {
				return false
			}
		}
		childCtx := deriveContext(n, ctx)
		// except clauses attach to the enclosing scope: they exempt every
		// node in this block, not just what follows them
		scoped := exceptions
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == chtl.ExceptNode {
				for _, attr := range c.Attr {
					scoped = append(scoped, NewMatcher(attr.Key))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !check(c, childCtx, scoped) {
				return false
			}
		}
		return true
	}
	check(doc, ContextGlobal, nil)
	return violations
}

func excepted(exceptions []Matcher, n *chtl.Node) bool {
	for _, e := range exceptions {
		if e.Matches(n) {
			return true
		}
	}
	return false
}

func ruleAdmissible(t RuleType, ctx Context) bool {
	allowed, ok := admissible[ctx]
	if !ok {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

// deriveContext maps a node to the context its children evaluate in.
func deriveContext(n *chtl.Node, parent Context) Context {
	switch n.Type {
	case chtl.DocumentNode:
		return ContextGlobal
	case chtl.NamespaceNode:
		return ContextNamespace
	case chtl.ElementNode:
		return ContextElement
	case chtl.StyleNode:
		return ContextStyle
	case chtl.ScriptNode:
		return ContextScript
	case chtl.TemplateNode:
		return ContextTemplate
	case chtl.CustomNode:
		return ContextCustom
	case chtl.UseNode:
		if n.Kind == chtl.StyleKind {
			return ContextStyle
		}
		return parent
	}
	return parent
}
