package dom

// Editor mutates a document relative to a movable insertion point. Patch
// application and document construction both go through it, so every
// structural invariant is enforced in one place.
type Editor struct {
	doc *Document
	pos NodeRef
}

// NewEditor returns an editor over doc positioned at the root.
func NewEditor(doc *Document) *Editor {
	return &Editor{doc: doc, pos: doc.Root()}
}

// Document returns the underlying document.
func (e *Editor) Document() *Document { return e.doc }

// InsertionPoint returns the node the editor is currently pointing at.
func (e *Editor) InsertionPoint() NodeRef { return e.pos }

// SetInsertionPoint moves the editor to node.
func (e *Editor) SetInsertionPoint(node NodeRef) { e.pos = node }

// Guard captures the current insertion point and returns a func that
// restores it. Use with defer to scope a sequence of traversals.
func (e *Editor) Guard() func() {
	ip := e.pos
	return func() { e.pos = ip }
}

// Parent returns the parent of the current node, if any.
func (e *Editor) Parent() (NodeRef, bool) { return e.doc.Parent(e.pos) }

// Children returns the children of the current node.
func (e *Editor) Children() []NodeRef { return e.doc.Children(e.pos) }

// CurrentNode returns the data of the node at the insertion point.
func (e *Editor) CurrentNode() *NodeData { return e.doc.Get(e.pos) }

// ToParent moves the editor to the parent of the current node.
// It panics if the current node has no parent.
func (e *Editor) ToParent() {
	parent, ok := e.doc.Parent(e.pos)
	if !ok {
		panic("dom: editor has no parent to move to")
	}
	e.pos = parent
}

// ToChild moves the editor to the nth child of the current node.
func (e *Editor) ToChild(n int) {
	e.pos = e.doc.Children(e.pos)[n]
}

// ToChildReverse moves the editor to the nth-from-last child of the
// current node.
func (e *Editor) ToChildReverse(n int) {
	children := e.doc.Children(e.pos)
	e.pos = children[len(children)-(1+n)]
}

// ToSibling moves the editor to the nth sibling (absolute position in the
// sibling list) of the current node.
func (e *Editor) ToSibling(n int) {
	e.ToParent()
	e.ToChild(n)
}

// ToSiblingReverse moves the editor to the nth-from-last sibling of the
// current node.
func (e *Editor) ToSiblingReverse(n int) {
	e.ToParent()
	e.ToChildReverse(n)
}

// PushNode creates a detached node and returns its ref.
func (e *Editor) PushNode(data NodeData) NodeRef {
	return e.doc.PushNode(data)
}

// AttachNode makes the current node the parent of node.
// It panics if node is already attached.
func (e *Editor) AttachNode(node NodeRef) {
	e.doc.AppendChild(e.pos, node)
}

// DetachNode detaches node from the tree, preserving its subtree.
func (e *Editor) DetachNode(node NodeRef) {
	e.doc.Detach(node)
}

// Append creates a node from data and appends it as the last child of the
// current node.
func (e *Editor) Append(data NodeData) NodeRef {
	return e.AppendChild(e.pos, data)
}

// AppendChild creates a node from data and appends it to the children of
// to.
func (e *Editor) AppendChild(to NodeRef, data NodeData) NodeRef {
	node := e.doc.PushNode(data)
	e.doc.AppendChild(to, node)
	e.registerID(node, data)
	return node
}

// InsertBeforeNode creates a node from data as the immediately preceding
// sibling of before.
func (e *Editor) InsertBeforeNode(data NodeData, before NodeRef) NodeRef {
	node := e.doc.PushNode(data)
	e.doc.InsertBefore(node, before)
	e.registerID(node, data)
	return node
}

// InsertAfterNode creates a node from data as the immediately following
// sibling of after.
func (e *Editor) InsertAfterNode(data NodeData, after NodeRef) NodeRef {
	node := e.doc.PushNode(data)
	e.doc.InsertAfter(node, after)
	e.registerID(node, data)
	return node
}

// Remove deletes node and its subtree from the document.
func (e *Editor) Remove(node NodeRef) {
	e.doc.Delete(node)
}

// ReplaceData replaces the payload of node with data, keeping its position
// and children.
func (e *Editor) ReplaceData(node NodeRef, data NodeData) {
	e.doc.Replace(node, data)
	e.registerID(node, data)
}

// SetAttribute sets an attribute on the current node.
// It panics when the current node cannot carry attributes.
func (e *Editor) SetAttribute(name AttributeName, value *string) {
	if !e.doc.SetAttribute(e.pos, name, value) {
		panic("dom: set attribute on non-element node")
	}
	if name == NewAttributeName("id") && value != nil {
		e.doc.RegisterID(e.pos, *value)
	}
}

// RemoveAttribute removes the attribute named name from the current node.
func (e *Editor) RemoveAttribute(name AttributeName) {
	e.doc.RemoveAttribute(e.pos, name)
}

// ReplaceAttributes swaps the attribute list of the current node.
func (e *Editor) ReplaceAttributes(attrs []Attribute) []Attribute {
	prev := e.doc.ReplaceAttributes(e.pos, attrs)
	for _, attr := range attrs {
		if attr.Name == NewAttributeName("id") && attr.Value != nil {
			e.doc.RegisterID(e.pos, *attr.Value)
		}
	}
	return prev
}

func (e *Editor) registerID(node NodeRef, data NodeData) {
	if id, ok := data.ID(); ok {
		e.doc.RegisterID(node, id)
	}
}

// Builder constructs a new document from scratch. It is an editor that
// owns its document until Finish is called.
type Builder struct {
	Editor
}

// Build starts a fresh document builder positioned at the root.
func Build() *Builder {
	doc := Empty()
	return &Builder{Editor{doc: doc, pos: doc.Root()}}
}

// Finish returns the built document.
func (b *Builder) Finish() *Document { return b.doc }
