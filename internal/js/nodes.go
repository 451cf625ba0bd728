package js

import (
	"strconv"

	"github.com/chtl-lang/compiler/internal/loc"
)

type NodeKind uint32

const (
	ProgramNode NodeKind = iota
	// RawNode is a run of plain JS passed through verbatim.
	RawNode
	SelectorNode
	ArrowAccessNode
	EventBindingNode
	ListenNode
	DelegateNode
	AnimateNode
	VirtualObjectNode
	ModuleNode
	// OpaqueBlockNode is a named block captured whole, e.g. iNeverAway.
	OpaqueBlockNode
)

func (k NodeKind) String() string {
	switch k {
	case ProgramNode:
		return "Program"
	case RawNode:
		return "Raw"
	case SelectorNode:
		return "EnhancedSelector"
	case ArrowAccessNode:
		return "ArrowAccess"
	case EventBindingNode:
		return "EventBinding"
	case ListenNode:
		return "ListenBlock"
	case DelegateNode:
		return "DelegateBlock"
	case AnimateNode:
		return "AnimateBlock"
	case VirtualObjectNode:
		return "VirtualObject"
	case ModuleNode:
		return "ModuleBlock"
	case OpaqueBlockNode:
		return "OpaqueBlock"
	}
	return "Invalid(" + strconv.Itoa(int(k)) + ")"
}

// SelectorType classifies an enhanced selector's leading syntax.
type SelectorType uint32

const (
	SelectorCompound SelectorType = iota
	SelectorClass
	SelectorID
	SelectorTag
	SelectorReference // `&`
)

// An Entry is an ordered key-value pair inside a structured block:
// an event-handler binding in listen/delegate, a property in animate, a
// load target in module.
type Entry struct {
	Key string
	// Val is the raw JS expression for scalar entries.
	Val string
	// Block is set instead of Val when the value is itself a structured
	// node (a nested selector target, a when-state, …).
	Block *Node
	Loc   loc.Loc
}

// A Node is a CHTL-JS syntax tree node.
type Node struct {
	Kind NodeKind
	Loc  loc.Loc

	// Code is the verbatim text for RawNode and OpaqueBlockNode bodies.
	Code string

	// Selector fields.
	Selector     string
	SelectorType SelectorType
	Index        int
	HasIndex     bool

	// Target is the left-hand side of arrow access, event bindings, and
	// listen attachments.
	Target *Node

	// Member is the accessed property for ArrowAccessNode, the event name
	// for EventBindingNode, the declared name for VirtualObjectNode, and
	// the block keyword for OpaqueBlockNode.
	Member string

	// Entries are the block's ordered key-value pairs.
	Entries []Entry

	Children []*Node
}

// Append adds a child to a program node.
func (n *Node) Append(c *Node) {
	n.Children = append(n.Children, c)
}

// ClassifySelector derives the selector type from its content.
func ClassifySelector(content string) SelectorType {
	switch {
	case content == "&":
		return SelectorReference
	case len(content) > 0 && content[0] == '.':
		if hasSpace(content) {
			return SelectorCompound
		}
		return SelectorClass
	case len(content) > 0 && content[0] == '#':
		if hasSpace(content) {
			return SelectorCompound
		}
		return SelectorID
	case hasSpace(content):
		return SelectorCompound
	default:
		return SelectorTag
	}
}

func hasSpace(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' {
			return true
		}
	}
	return false
}
