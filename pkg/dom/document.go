// Package dom implements the arena-backed virtual document tree that the
// client renders server fragments into.
//
// The tree has three node kinds: a single Root container, named Elements
// carrying ordered attributes and children, and Leaf content nodes. Nodes
// live in a flat arena indexed by NodeRef; parent and child relations are
// kept in side tables so that the common operations avoid chasing
// pointers. Elements whose source markup carried an "id" attribute are
// additionally indexed by that id, which is what makes keyed diffing
// cheap.
package dom

import (
	"strings"
)

// Document is a tree of nodes backed by an arena.
//
// All but the root node have exactly one parent, and appear exactly once
// in that parent's child list. Child order is significant and stable under
// all mutations other than explicit reorder. Deleting a subtree eagerly
// drops it from the parent/children/id indices; its arena slots stay
// allocated and are not reused, since PushNode always appends a new slot.
type Document struct {
	root     NodeRef
	nodes    []NodeData
	parents  []NodeRef
	children [][]NodeRef
	ids      map[string]NodeRef
}

// Empty creates a new document containing only the root node.
func Empty() *Document {
	return WithCapacity(1)
}

// WithCapacity creates an empty document with preallocated room for cap
// nodes.
func WithCapacity(cap int) *Document {
	d := &Document{
		nodes:    make([]NodeData, 0, cap),
		parents:  make([]NodeRef, 0, cap),
		children: make([][]NodeRef, 0, cap),
		ids:      make(map[string]NodeRef),
	}
	d.root = d.PushNode(RootData())
	return d
}

// Root returns the root node of the document. The root can be used in
// insertion operations but cannot carry attributes.
func (d *Document) Root() NodeRef { return d.root }

// IsEmpty reports whether the document has no nodes besides the root.
func (d *Document) IsEmpty() bool { return len(d.children[d.root]) == 0 }

// Get returns the data for node. The returned pointer aliases document
// storage and is invalidated by PushNode.
func (d *Document) Get(node NodeRef) *NodeData { return &d.nodes[node] }

// Parent returns the parent of node, if it has one.
func (d *Document) Parent(node NodeRef) (NodeRef, bool) {
	p := d.parents[node]
	return p, p != NilNode
}

// Children returns node's children. The slice aliases document storage.
func (d *Document) Children(node NodeRef) []NodeRef { return d.children[node] }

// GetByID resolves the node registered under the given id attribute value.
func (d *Document) GetByID(id string) (NodeRef, bool) {
	n, ok := d.ids[id]
	return n, ok
}

// RegisterID registers node under id. The last registration wins; if id
// was previously bound to a different node, that node is returned.
func (d *Document) RegisterID(node NodeRef, id string) (NodeRef, bool) {
	prev, had := d.ids[id]
	d.ids[id] = node
	return prev, had
}

// Attributes returns a copy of the attribute list of node, or nil if node
// is not an element.
func (d *Document) Attributes(node NodeRef) []Attribute {
	data := &d.nodes[node]
	if data.Kind != KindElement {
		return nil
	}
	out := make([]Attribute, len(data.Element.Attributes))
	copy(out, data.Element.Attributes)
	return out
}

// GetAttributeByName returns the attribute with the given name on node.
func (d *Document) GetAttributeByName(node NodeRef, name AttributeName) (Attribute, bool) {
	data := &d.nodes[node]
	if data.Kind != KindElement {
		return Attribute{}, false
	}
	for _, attr := range data.Element.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return Attribute{}, false
}

// PushNode adds a node to the arena without inserting it into the tree;
// the node is initially detached.
func (d *Document) PushNode(data NodeData) NodeRef {
	ref := NodeRef(len(d.nodes))
	d.nodes = append(d.nodes, data)
	d.parents = append(d.parents, NilNode)
	d.children = append(d.children, nil)
	return ref
}

// AppendChild appends child to the end of parent's children.
// It panics if child already has a parent; detach it first to reparent.
func (d *Document) AppendChild(parent, child NodeRef) {
	d.mustBeDetached(child)
	d.children[parent] = append(d.children[parent], child)
	d.parents[child] = parent
}

// PrependChild inserts child at the start of parent's children.
// It panics if child already has a parent.
func (d *Document) PrependChild(parent, child NodeRef) {
	d.mustBeDetached(child)
	d.children[parent] = append([]NodeRef{child}, d.children[parent]...)
	d.parents[child] = parent
}

// InsertBefore inserts node as the immediately preceding sibling of before.
// It panics if node has a parent or before does not.
func (d *Document) InsertBefore(node, before NodeRef) {
	if node == before {
		panic("dom: insert of node relative to itself")
	}
	d.mustBeDetached(node)
	parent := d.parents[before]
	if parent == NilNode {
		panic("dom: insert relative to detached node")
	}
	siblings := d.children[parent]
	pos := indexOf(siblings, before)
	siblings = append(siblings, 0)
	copy(siblings[pos+1:], siblings[pos:])
	siblings[pos] = node
	d.children[parent] = siblings
	d.parents[node] = parent
}

// InsertAfter inserts node as the immediately following sibling of after.
// It panics if node has a parent or after does not.
func (d *Document) InsertAfter(node, after NodeRef) {
	if node == after {
		panic("dom: insert of node relative to itself")
	}
	d.mustBeDetached(node)
	parent := d.parents[after]
	if parent == NilNode {
		panic("dom: insert relative to detached node")
	}
	siblings := d.children[parent]
	pos := indexOf(siblings, after)
	if pos == len(siblings)-1 {
		d.children[parent] = append(siblings, node)
	} else {
		siblings = append(siblings, 0)
		copy(siblings[pos+2:], siblings[pos+1:])
		siblings[pos+1] = node
		d.children[parent] = siblings
	}
	d.parents[node] = parent
}

// Detach removes node from its parent's children but leaves the subtree
// intact, ready to be re-attached elsewhere.
func (d *Document) Detach(node NodeRef) {
	parent := d.parents[node]
	if parent == NilNode {
		return
	}
	d.parents[node] = NilNode
	siblings := d.children[parent]
	if pos := indexOf(siblings, node); pos >= 0 {
		d.children[parent] = append(siblings[:pos], siblings[pos+1:]...)
	}
}

// Delete detaches node and removes its subtree breadth-first, dropping
// every removed node from the id index.
func (d *Document) Delete(node NodeRef) {
	queue := []NodeRef{node}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		d.Detach(n)
		if id, ok := d.nodes[n].ID(); ok {
			if reg, had := d.ids[id]; had && reg == n {
				delete(d.ids, id)
			}
		}
		queue = append(queue, d.children[n]...)
		d.children[n] = nil
	}
}

// SetAttribute sets name to value on node, replacing an existing value.
// It reports whether node was an element and the attribute could be set.
func (d *Document) SetAttribute(node NodeRef, name AttributeName, value *string) bool {
	data := &d.nodes[node]
	if data.Kind != KindElement {
		return false
	}
	data.Element.SetAttribute(name, value)
	return true
}

// RemoveAttribute removes the attribute named name from node.
func (d *Document) RemoveAttribute(node NodeRef, name AttributeName) {
	data := &d.nodes[node]
	if data.Kind == KindElement {
		data.Element.RemoveAttribute(name)
	}
}

// ReplaceAttributes swaps node's attribute list for attrs and returns the
// previous list, or nil when node is not an element.
func (d *Document) ReplaceAttributes(node NodeRef, attrs []Attribute) []Attribute {
	data := &d.nodes[node]
	if data.Kind != KindElement {
		return nil
	}
	prev := data.Element.Attributes
	data.Element.Attributes = attrs
	return prev
}

// Replace swaps the data stored for node. Children and identity are
// unaffected.
func (d *Document) Replace(node NodeRef, data NodeData) {
	d.nodes[node] = data
}

// Edit returns an editor positioned at the document root.
func (d *Document) Edit() *Editor {
	return NewEditor(d)
}

// String renders the document in its indented form.
func (d *Document) String() string {
	var sb strings.Builder
	_ = d.Print(&sb, PrintPretty)
	return sb.String()
}

// RenderCompact renders the document without insignificant whitespace.
func (d *Document) RenderCompact() string {
	var sb strings.Builder
	_ = d.Print(&sb, PrintMinified)
	return sb.String()
}

func (d *Document) mustBeDetached(node NodeRef) {
	if d.parents[node] != NilNode {
		panic("dom: node already attached; detach it before reparenting")
	}
}

func indexOf(nodes []NodeRef, want NodeRef) int {
	for i, n := range nodes {
		if n == want {
			return i
		}
	}
	return -1
}

// ChangeType classifies a change applied to a document node.
type ChangeType uint8

const (
	ChangeChange ChangeType = iota
	ChangeAdd
	ChangeRemove
	ChangeReplace
)

func (c ChangeType) String() string {
	switch c {
	case ChangeChange:
		return "change"
	case ChangeAdd:
		return "add"
	case ChangeRemove:
		return "remove"
	case ChangeReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// ChangeHandler receives per-node notifications as patches are applied to
// a document. Implementations run on the client's event loop and must be
// brief; long-running work has to be offloaded.
type ChangeHandler interface {
	HandleChange(change ChangeType, node NodeRef, data NodeData, parent NodeRef)
}
