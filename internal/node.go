package chtl

import (
	"strconv"

	"github.com/chtl-lang/compiler/internal/loc"
	"golang.org/x/net/html/atom"
)

// A NodeType is the type of a Node.
type NodeType uint32

const (
	ErrorNode NodeType = iota
	DocumentNode
	ElementNode
	TextNode
	CommentNode
	StyleNode
	ScriptNode
	TemplateNode
	CustomNode
	OriginNode
	NamespaceNode
	ImportNode
	ConfigNode
	// UseNode is a call site: `@Element Card(label="x");` or `@Style Base;`
	// inside an element or style body.
	UseNode
	// DeleteNode removes an inherited declaration (`delete color;`) or
	// severs the inheritance chain (`delete inherit;`).
	DeleteNode
	// InheritNode is `inherit @Style Base;` inside a template/custom body.
	InheritNode
	// ExceptNode carries a local constraint exception list.
	ExceptNode
)

func (t NodeType) String() string {
	switch t {
	case ErrorNode:
		return "Error"
	case DocumentNode:
		return "Document"
	case ElementNode:
		return "Element"
	case TextNode:
		return "Text"
	case CommentNode:
		return "Comment"
	case StyleNode:
		return "Style"
	case ScriptNode:
		return "Script"
	case TemplateNode:
		return "Template"
	case CustomNode:
		return "Custom"
	case OriginNode:
		return "Origin"
	case NamespaceNode:
		return "Namespace"
	case ImportNode:
		return "Import"
	case ConfigNode:
		return "Configuration"
	case UseNode:
		return "Use"
	case DeleteNode:
		return "Delete"
	case InheritNode:
		return "Inherit"
	case ExceptNode:
		return "Except"
	}
	return "Invalid(" + strconv.Itoa(int(t)) + ")"
}

// SubKind distinguishes the @-qualified sub-kinds of Template, Custom,
// Origin, and Use nodes.
type SubKind uint32

const (
	NoKind SubKind = iota
	StyleKind
	ElementKind
	VarKind
	HtmlKind
	JavaScriptKind
	CustomKind
)

func (k SubKind) String() string {
	switch k {
	case NoKind:
		return ""
	case StyleKind:
		return "@Style"
	case ElementKind:
		return "@Element"
	case VarKind:
		return "@Var"
	case HtmlKind:
		return "@Html"
	case JavaScriptKind:
		return "@JavaScript"
	case CustomKind:
		return "@Custom"
	}
	return "Invalid(" + strconv.Itoa(int(k)) + ")"
}

// SubKindOf maps an @-kind spelling to its SubKind.
func SubKindOf(name string) SubKind {
	switch name {
	case "Style":
		return StyleKind
	case "Element":
		return ElementKind
	case "Var":
		return VarKind
	case "Html":
		return HtmlKind
	case "JavaScript":
		return JavaScriptKind
	case "Custom":
		return CustomKind
	}
	return NoKind
}

// An Attribute is an ordered key-value pair. Insertion order is preserved
// through to emission. The same shape carries element attributes, style
// declarations inside template bodies, and call-site arguments.
type Attribute struct {
	Key    string
	KeyLoc loc.Loc
	Val    string
	ValLoc loc.Loc
	Quoted bool
}

// A Node is an element in the CHTL document tree. Ownership is a strict
// tree: every child has exactly one parent, and sibling links are
// maintained by the mutation methods below.
type Node struct {
	Parent, FirstChild, LastChild, PrevSibling, NextSibling *Node

	Type NodeType
	// DataAtom is the atom for Data, or zero if Data is not a known HTML
	// tag name.
	DataAtom atom.Atom
	// Data holds the tag name for elements, text for text/comment nodes,
	// the declared name for templates/customs/origins/namespaces, the raw
	// body for style/script nodes, and the target for delete nodes.
	// An origin's verbatim body lives in its single text child.
	Data string
	// Kind is the @-qualified sub-kind for Template/Custom/Origin/Use and
	// Inherit nodes.
	Kind SubKind
	// UseCustom marks a UseNode that refers to a [Custom] rather than a
	// [Template].
	UseCustom bool
	// Generator marks a CommentNode produced by a `--` generator comment.
	Generator bool
	// Invalid marks subtrees the parser recovered past.
	Invalid bool

	Attr []Attribute
	Loc  loc.Loc
}

// AppendChild adds c as the last child of n. It panics if c already has a
// parent or siblings.
func (n *Node) AppendChild(c *Node) {
	if c.Parent != nil || c.PrevSibling != nil || c.NextSibling != nil {
		panic("chtl: AppendChild called for an attached child Node")
	}
	last := n.LastChild
	if last != nil {
		last.NextSibling = c
	} else {
		n.FirstChild = c
	}
	n.LastChild = c
	c.Parent = n
	c.PrevSibling = last
}

// InsertBefore inserts newChild as a child of n, immediately before
// oldChild. It panics if newChild already has a parent or siblings.
func (n *Node) InsertBefore(newChild, oldChild *Node) {
	if newChild.Parent != nil || newChild.PrevSibling != nil || newChild.NextSibling != nil {
		panic("chtl: InsertBefore called for an attached child Node")
	}
	var prev, next *Node
	if oldChild != nil {
		prev, next = oldChild.PrevSibling, oldChild
	} else {
		prev = n.LastChild
	}
	if prev != nil {
		prev.NextSibling = newChild
	} else {
		n.FirstChild = newChild
	}
	if next != nil {
		next.PrevSibling = newChild
	} else {
		n.LastChild = newChild
	}
	newChild.Parent = n
	newChild.PrevSibling = prev
	newChild.NextSibling = next
}

// RemoveChild removes c, a child of n. It panics otherwise.
func (n *Node) RemoveChild(c *Node) {
	if c.Parent != n {
		panic("chtl: RemoveChild called for a non-child Node")
	}
	if n.FirstChild == c {
		n.FirstChild = c.NextSibling
	}
	if c.NextSibling != nil {
		c.NextSibling.PrevSibling = c.PrevSibling
	}
	if n.LastChild == c {
		n.LastChild = c.PrevSibling
	}
	if c.PrevSibling != nil {
		c.PrevSibling.NextSibling = c.NextSibling
	}
	c.Parent = nil
	c.PrevSibling = nil
	c.NextSibling = nil
}

// CloneDeep produces an independent copy of the subtree rooted at n. The
// clone shares no child ownership with the original.
func (n *Node) CloneDeep() *Node {
	clone := &Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Kind:      n.Kind,
		UseCustom: n.UseCustom,
		Generator: n.Generator,
		Invalid:   n.Invalid,
		Loc:       n.Loc,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]Attribute, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(c.CloneDeep())
	}
	return clone
}

// GetAttribute returns the value of the named attribute and whether it
// was present.
func (n *Node) GetAttribute(key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// SetAttribute sets the named attribute, overwriting in place to keep
// insertion order, or appending if absent.
func (n *Node) SetAttribute(key, val string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, Attribute{Key: key, Val: val})
}

func (n *Node) RemoveAttribute(key string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Closest walks up the parent chain and returns the first node matching
// the predicate, or nil.
func (n *Node) Closest(match func(*Node) bool) *Node {
	for p := n; p != nil; p = p.Parent {
		if match(p) {
			return p
		}
	}
	return nil
}

// Walk calls cb for every node in the subtree in depth-first order.
func Walk(n *Node, cb func(*Node)) {
	cb(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, cb)
	}
}

// A Visitor's Visit method is invoked for each node encountered by
// VisitNode. If the returned visitor is non-nil, VisitNode is invoked with
// it for each child, followed by a call of Visit(nil).
type Visitor interface {
	Visit(n *Node) Visitor
}

// VisitNode traverses the tree rooted at n in depth-first order,
// dispatching each node to v.
func VisitNode(v Visitor, n *Node) {
	if v = v.Visit(n); v == nil {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		VisitNode(v, c)
	}
	v.Visit(nil)
}
