package diff

import (
	"github.com/livenative-dev/livenative/pkg/dom"
)

// cursor walks a document depth-first, tracking the child-index path from
// the node it was created at.
type cursor struct {
	doc  *dom.Document
	path []uint16
	node dom.NodeRef
}

func newCursor(doc *dom.Document, node dom.NodeRef) cursor {
	return cursor{doc: doc, node: node}
}

func (c *cursor) data() *dom.NodeData { return c.doc.Get(c.node) }

func (c *cursor) depth() int { return len(c.path) }

func (c *cursor) clone() cursor {
	out := *c
	out.path = append([]uint16(nil), c.path...)
	return out
}

// fork returns a cursor rooted at the current node, iterating its
// descendants.
func (c *cursor) fork() cursor {
	return cursor{doc: c.doc, node: c.node}
}

// forkRelative returns a cursor whose path is relative to the ancestor at
// the given depth.
func (c *cursor) forkRelative(ancestorDepth int) cursor {
	out := cursor{doc: c.doc, node: c.node}
	if ancestorDepth < len(c.path) {
		out.path = append([]uint16(nil), c.path[ancestorDepth:]...)
	}
	return out
}

// at returns a fresh cursor rooted at node.
func (c *cursor) at(node dom.NodeRef) cursor {
	return cursor{doc: c.doc, node: node}
}

func (c *cursor) children() []dom.NodeRef { return c.doc.Children(c.node) }

func (c *cursor) id() (string, bool) { return c.data().ID() }

func (c *cursor) nextSibling() (cursor, bool) {
	parent, ok := c.doc.Parent(c.node)
	if !ok {
		return cursor{}, false
	}
	siblings := c.doc.Children(parent)
	pos := -1
	for i, n := range siblings {
		if n == c.node {
			pos = i
			break
		}
	}
	if pos < 0 || pos+1 >= len(siblings) {
		return cursor{}, false
	}
	return cursor{doc: c.doc, node: siblings[pos+1]}, true
}

func (c *cursor) moveToParent() bool {
	if len(c.path) == 0 {
		return false
	}
	parent, ok := c.doc.Parent(c.node)
	if !ok {
		return false
	}
	c.node = parent
	c.path = c.path[:len(c.path)-1]
	return true
}

// advance moves the cursor in depth-first order, staying within the
// subtree it was created at.
func (c *cursor) advance(skipChildren bool) bool {
	if !skipChildren {
		if children := c.children(); len(children) > 0 {
			c.path = append(c.path, 0)
			c.node = children[0]
			return true
		}
	}

	path := append([]uint16(nil), c.path...)
	parent, ok := c.doc.Parent(c.node)
	if !ok {
		return false
	}

	for {
		if len(path) == 0 {
			return false
		}
		index := path[len(path)-1] + 1
		if siblings := c.doc.Children(parent); int(index) < len(siblings) {
			path[len(path)-1] = index
			c.path = path
			c.node = siblings[index]
			return true
		}
		if len(path) <= 1 {
			return false
		}
		path = path[:len(path)-1]
		parent, ok = c.doc.Parent(parent)
		if !ok {
			return false
		}
	}
}

// compatible reports whether two nodes can be morphed into one another:
// same kind, and for elements the same name and the same id (or both
// unidentified).
func compatible(a, b *dom.NodeData) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != dom.KindElement {
		return true
	}
	if a.Element.Name != b.Element.Name {
		return false
	}
	aid, _ := a.ID()
	bid, _ := b.ID()
	return aid == bid
}

type opKind uint8

const (
	opContinue opKind = iota
	// Detach keyed descendants that survive in the target, then remove the
	// node.
	opRemoveNode
	// Remove all remaining `from` nodes.
	opRemoveNodes
	// Append the node under the cursor relative to the parent pushed on the
	// patch stack.
	opAppend
	// Append `to` nodes relative to the insertion point.
	opAppendNodes
	// Append the cursor node and each following sibling.
	opAppendSiblings
	// Insert the cursor's subtree before the current `from` node.
	opInsertBefore
	// Detach node if not already detached.
	opMaybeDetach
	opMorph
	opPatch
)

type op struct {
	kind      opKind
	node      dom.NodeRef
	cursor    cursor
	from      cursor
	to        cursor
	insertion cursor
	patch     Patch
}

type advanceKind uint8

const (
	advanceBoth advanceKind = iota
	advanceTo
	advanceFrom
)

// Morph lazily produces the patch sequence that transforms one document
// into another. It runs a cursor-based depth-first traversal with a work
// stack; each step decides to reuse, remove, insert, or relocate.
type Morph struct {
	stack    []*op
	queue    []*op
	detached map[dom.NodeRef]bool
}

// NewMorph prepares a morph from one document to another.
func NewMorph(from, to *dom.Document) *Morph {
	return &Morph{
		stack: []*op{{
			kind: opMorph,
			from: newCursor(from, from.Root()),
			to:   newCursor(to, to.Root()),
		}},
		detached: make(map[dom.NodeRef]bool),
	}
}

// Diff computes the ordered patch sequence that, applied to from, yields a
// document textually equivalent to to.
func Diff(from, to *dom.Document) []Patch {
	m := NewMorph(from, to)
	var out []Patch
	for p, ok := m.Next(); ok; p, ok = m.Next() {
		out = append(out, p)
	}
	return out
}

func (m *Morph) advance(adv advanceKind, skipChildren bool) {
	o := m.stack[len(m.stack)-1]
	if o.kind != opMorph {
		return
	}
	from, to := &o.from, &o.to
	insertionPoint := from.clone()

	var fromOK, toOK bool
	switch adv {
	case advanceBoth:
		fromOK = from.advance(skipChildren)
		toOK = to.advance(skipChildren)
	case advanceTo:
		fromOK = true
		toOK = to.advance(skipChildren)
	case advanceFrom:
		fromOK = from.advance(skipChildren)
		toOK = true
	}

	switch {
	case fromOK && toOK:
		if to.depth() <= from.depth() {
			// A node detached earlier has already been reattached elsewhere
			// and can be skipped over.
			if m.detached[from.node] {
				m.advance(advanceFrom, true)
			}
			return
		}
		// The target is deeper: new nodes were added under the previous
		// position.
		depth := from.depth()
		ip := insertionPoint.forkRelative(depth)
		m.queue = append(m.queue, &op{
			kind:      opAppendNodes,
			insertion: ip,
			to:        to.forkRelative(depth),
		})
		for to.depth() > depth {
			if !to.moveToParent() {
				break
			}
		}
		if !to.advance(true) {
			*o = op{kind: opRemoveNodes, from: from.clone(), to: to.clone()}
		}

	case fromOK && !toOK:
		if m.detached[from.node] {
			m.advance(advanceFrom, true)
		} else {
			*o = op{kind: opRemoveNodes, from: from.clone(), to: to.clone()}
		}

	case !fromOK && toOK:
		*o = op{kind: opAppendNodes, insertion: insertionPoint, to: to.clone()}

	default:
		*o = op{kind: opContinue}
	}
}

// Next returns the next patch in the sequence; the second result is false
// when the morph is complete.
func (m *Morph) Next() (Patch, bool) {
	for {
		for len(m.stack) > 0 && m.stack[len(m.stack)-1].kind == opContinue {
			m.stack = m.stack[:len(m.stack)-1]
		}
		for i := len(m.queue) - 1; i >= 0; i-- {
			m.stack = append(m.stack, m.queue[i])
		}
		m.queue = m.queue[:0]

		if len(m.stack) == 0 {
			return Patch{}, false
		}
		o := m.stack[len(m.stack)-1]

		switch o.kind {
		case opRemoveNode:
			if o.cursor.advance(false) {
				data := o.cursor.data()
				if id, ok := data.ID(); ok && data.Kind == dom.KindElement {
					if _, inTo := o.to.doc.GetByID(id); inTo {
						// Only detach a keyed descendant once.
						if !m.detached[o.cursor.node] {
							m.detached[o.cursor.node] = true
							m.queue = append(m.queue, patchOp(Patch{Kind: PatchDetach, Node: o.cursor.node}))
							continue
						}
					}
				}
				continue
			}
			*o = *patchOp(Patch{Kind: PatchRemove, Node: o.node})

		case opRemoveNodes:
			if !m.detached[o.from.node] {
				m.queue = append(m.queue, &op{
					kind:   opRemoveNode,
					node:   o.from.node,
					cursor: o.from.fork(),
					to:     o.to.fork(),
				})
			}
			if !o.from.advance(true) {
				o.kind = opContinue
			}

		case opAppend:
			if id, ok := o.cursor.id(); ok {
				if node, found := o.from.doc.GetByID(id); found {
					m.queue = append(m.queue,
						&op{kind: opMaybeDetach, node: node},
						// The parent is already on the stack; push the child and
						// let Attach pop both.
						patchOp(Patch{Kind: PatchPush, Node: node}),
						patchOp(Patch{Kind: PatchAttach}),
						&op{kind: opMorph, from: o.from.at(node), to: o.cursor.fork()},
					)
					o.kind = opContinue
					continue
				}
			}

			data := o.cursor.data().Clone()
			if o.cursor.advance(false) {
				m.queue = append(m.queue,
					patchOp(Patch{Kind: PatchCreateAndMoveTo, Data: data}),
					patchOp(Patch{Kind: PatchAttach}),
					patchOp(Patch{Kind: PatchMove, Move: MoveTo{Kind: MoveReverseChild}}),
					patchOp(Patch{Kind: PatchPushCurrent}),
					&op{kind: opAppendSiblings, from: o.from.clone(), cursor: o.cursor.fork()},
					patchOp(Patch{Kind: PatchPop}),
				)
			} else {
				m.queue = append(m.queue,
					patchOp(Patch{Kind: PatchCreate, Data: data}),
					patchOp(Patch{Kind: PatchAttach}),
				)
			}
			o.kind = opContinue

		case opAppendNodes:
			for o.insertion.depth() >= o.to.depth() {
				if !o.insertion.moveToParent() {
					break
				}
			}
			m.queue = append(m.queue,
				patchOp(Patch{Kind: PatchPush, Node: o.insertion.node}),
				&op{kind: opAppendSiblings, from: o.insertion.clone(), cursor: o.to.clone()},
				patchOp(Patch{Kind: PatchPop}),
			)
			for {
				if o.to.moveToParent() {
					if o.to.advance(true) {
						break
					}
				} else {
					o.kind = opContinue
					break
				}
			}

		case opAppendSiblings:
			m.queue = append(m.queue, &op{kind: opAppend, from: o.from.clone(), cursor: o.cursor.fork()})
			if next, ok := o.cursor.nextSibling(); ok {
				o.cursor = next
			} else {
				o.kind = opContinue
			}

		case opInsertBefore:
			data := o.cursor.data().Clone()
			if o.cursor.advance(false) {
				m.queue = append(m.queue,
					patchOp(Patch{Kind: PatchCreateAndMoveTo, Data: data}),
					patchOp(Patch{Kind: PatchPrependBefore, Node: o.from.node}),
					patchOp(Patch{Kind: PatchPushCurrent}),
					&op{kind: opAppendSiblings, from: o.from.clone(), cursor: o.cursor.fork()},
					patchOp(Patch{Kind: PatchPop}),
				)
				o.kind = opContinue
			} else {
				*o = *patchOp(Patch{Kind: PatchInsertBefore, Node: o.from.node, Data: data})
			}

		case opMaybeDetach:
			// A node that was already moved is tracked as detached and can be
			// ignored.
			if !m.detached[o.node] {
				m.detached[o.node] = true
				*o = *patchOp(Patch{Kind: PatchDetach, Node: o.node})
			} else {
				o.kind = opContinue
			}

		case opMorph:
			m.stepMorph(o)

		case opPatch:
			patch := o.patch
			o.kind = opContinue
			return patch, true

		case opContinue:
			// handled at the top of the loop
		}
	}
}

// stepMorph executes one morph decision, emitting patches via the queue.
func (m *Morph) stepMorph(o *op) {
	from, to := &o.from, &o.to

	if to.depth() < from.depth() {
		// The target has moved shallower: the current from node is surplus.
		m.queue = append(m.queue, &op{
			kind:   opRemoveNode,
			node:   from.node,
			cursor: from.fork(),
			to:     to.fork(),
		})
		m.advance(advanceFrom, true)
		return
	}

	fromData, toData := from.data(), to.data()

	switch {
	case fromData.Kind == dom.KindRoot || toData.Kind == dom.KindRoot:
		m.advance(advanceBoth, false)

	case fromData.Kind == dom.KindLeaf && toData.Kind == dom.KindLeaf:
		if fromData.Text != toData.Text {
			m.queue = append(m.queue, patchOp(Patch{
				Kind: PatchReplace,
				Node: from.node,
				Data: dom.LeafData(toData.Text),
			}))
		}
		m.advance(advanceBoth, false)

	case fromData.Kind == dom.KindLeaf && toData.Kind == dom.KindElement:
		m.queue = append(m.queue, patchOp(Patch{Kind: PatchRemove, Node: from.node}))
		m.advance(advanceFrom, true)

	case fromData.Kind == dom.KindElement && toData.Kind == dom.KindLeaf:
		m.queue = append(m.queue, patchOp(Patch{
			Kind: PatchInsertBefore,
			Node: from.node,
			Data: dom.LeafData(toData.Text),
		}))
		m.advance(advanceTo, true)

	default:
		m.stepMorphElements(o, fromData, toData)
	}
}

func (m *Morph) stepMorphElements(o *op, fromData, toData *dom.NodeData) {
	from, to := &o.from, &o.to

	// Compatible nodes morph in place: fix up attributes and descend.
	if compatible(fromData, toData) {
		if !dom.AttributesEqual(fromData.Element.Attributes, toData.Element.Attributes) {
			m.queue = append(m.queue, patchOp(Patch{
				Kind:       PatchSetAttributes,
				Node:       from.node,
				Attributes: to.doc.Attributes(to.node),
			}))
		}
		m.advance(advanceBoth, false)
		return
	}

	// A keyed node that doesn't belong here: detach it if the target still
	// wants it somewhere, otherwise remove it.
	if id, ok := fromData.ID(); ok {
		if _, inTo := to.doc.GetByID(id); inTo {
			m.queue = append(m.queue, &op{kind: opMaybeDetach, node: from.node})
		} else {
			m.queue = append(m.queue, &op{
				kind:   opRemoveNode,
				node:   from.node,
				cursor: from.fork(),
				to:     to.fork(),
			})
		}
		m.advance(advanceFrom, true)
		return
	}

	// The target is keyed: relocate the existing subtree into position, or
	// insert it fresh.
	if id, ok := toData.ID(); ok {
		if node, found := from.doc.GetByID(id); found {
			m.queue = append(m.queue,
				patchOp(Patch{Kind: PatchPush, Node: node}),
				&op{kind: opMaybeDetach, node: node},
				patchOp(Patch{Kind: PatchPrependBefore, Node: from.node}),
				&op{kind: opMorph, from: from.at(node), to: to.fork()},
			)
			m.advance(advanceTo, true)
		} else {
			m.queue = append(m.queue, &op{kind: opInsertBefore, from: from.clone(), cursor: to.fork()})
			m.advance(advanceTo, true)
		}
		return
	}

	// If the next existing node can morph into the target, the current one
	// is surplus.
	if next, ok := from.nextSibling(); ok {
		if compatible(next.data(), toData) {
			m.queue = append(m.queue, &op{
				kind:   opRemoveNode,
				node:   from.node,
				cursor: from.fork(),
				to:     to.fork(),
			})
			m.advance(advanceFrom, true)
			return
		}
	}

	// If the next target can morph into the current node, insert the target
	// before it.
	if next, ok := to.nextSibling(); ok {
		if compatible(fromData, next.data()) {
			m.queue = append(m.queue, &op{kind: opInsertBefore, from: from.clone(), cursor: to.fork()})
			m.advance(advanceTo, true)
			return
		}
	}

	m.queue = append(m.queue, patchOp(Patch{
		Kind: PatchReplace,
		Node: from.node,
		Data: toData.Clone(),
	}))
	m.advance(advanceBoth, false)
}

func patchOp(p Patch) *op {
	return &op{kind: opPatch, patch: p}
}
