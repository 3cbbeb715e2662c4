package diff

import (
	"github.com/livenative-dev/livenative/pkg/dom"
)

// PatchKind enumerates the atomic structural edits the differ emits.
type PatchKind uint8

const (
	// PatchInsertBefore inserts Data as the preceding sibling of Node.
	PatchInsertBefore PatchKind = iota
	// PatchInsertAfter inserts Data as the following sibling of Node.
	PatchInsertAfter
	// PatchCreate creates Data detached and pushes its ref on the argument
	// stack for later ops.
	PatchCreate
	// PatchCreateAndMoveTo is Create plus making the new node current.
	PatchCreateAndMoveTo
	// PatchPushCurrent pushes the current node on the argument stack.
	PatchPushCurrent
	// PatchPush pushes Node on the argument stack.
	PatchPush
	// PatchPop pops and discards the top of the argument stack.
	PatchPop
	// PatchAttach pops child then parent, appends child to parent, and
	// pushes the parent back.
	PatchAttach
	// PatchDetach detaches Node so it can be re-attached later.
	PatchDetach
	// PatchPrependBefore pops a node and inserts it before Node.
	PatchPrependBefore
	// PatchAppend appends Data under the current node.
	PatchAppend
	// PatchAppendAfter pops a node and inserts it after Node.
	PatchAppendAfter
	// PatchAppendTo appends Data to the children of Node.
	PatchAppendTo
	// PatchRemove removes Node and its subtree.
	PatchRemove
	// PatchReplace swaps the payload of Node for Data.
	PatchReplace
	// PatchAddAttribute adds Name=Value to the current node.
	PatchAddAttribute
	// PatchAddAttributeTo adds Name=Value to Node.
	PatchAddAttributeTo
	// PatchUpdateAttribute sets Name=Value on Node.
	PatchUpdateAttribute
	// PatchRemoveAttributeByName removes Name from Node.
	PatchRemoveAttributeByName
	// PatchSetAttributes replaces the attribute list of Node.
	PatchSetAttributes
	// PatchMove relocates the cursor without touching the tree.
	PatchMove
)

func (k PatchKind) String() string {
	switch k {
	case PatchInsertBefore:
		return "InsertBefore"
	case PatchInsertAfter:
		return "InsertAfter"
	case PatchCreate:
		return "Create"
	case PatchCreateAndMoveTo:
		return "CreateAndMoveTo"
	case PatchPushCurrent:
		return "PushCurrent"
	case PatchPush:
		return "Push"
	case PatchPop:
		return "Pop"
	case PatchAttach:
		return "Attach"
	case PatchDetach:
		return "Detach"
	case PatchPrependBefore:
		return "PrependBefore"
	case PatchAppend:
		return "Append"
	case PatchAppendAfter:
		return "AppendAfter"
	case PatchAppendTo:
		return "AppendTo"
	case PatchRemove:
		return "Remove"
	case PatchReplace:
		return "Replace"
	case PatchAddAttribute:
		return "AddAttribute"
	case PatchAddAttributeTo:
		return "AddAttributeTo"
	case PatchUpdateAttribute:
		return "UpdateAttribute"
	case PatchRemoveAttributeByName:
		return "RemoveAttributeByName"
	case PatchSetAttributes:
		return "SetAttributes"
	case PatchMove:
		return "Move"
	default:
		return "Unknown"
	}
}

// MoveKind enumerates cursor relocation targets.
type MoveKind uint8

const (
	// MoveNode moves the cursor to a specific node.
	MoveNode MoveKind = iota
	// MoveParent moves the cursor to the parent of the current node.
	MoveParent
	// MoveChild moves the cursor to child N.
	MoveChild
	// MoveReverseChild moves the cursor to the Nth-from-last child.
	MoveReverseChild
	// MoveSibling moves the cursor to sibling N.
	MoveSibling
	// MoveReverseSibling moves the cursor to the Nth-from-last sibling.
	MoveReverseSibling
)

// MoveTo describes a cursor relocation.
type MoveTo struct {
	Kind MoveKind
	Node dom.NodeRef
	N    int
}

// Patch is one atomic edit. Which fields are meaningful depends on Kind.
type Patch struct {
	Kind       PatchKind
	Node       dom.NodeRef
	Data       dom.NodeData
	Name       dom.AttributeName
	Value      *string
	Attributes []dom.Attribute
	Move       MoveTo
}

// PatchResult describes the observable document change a patch produced,
// forwarded to the client's change callback. Parent is NilNode when not
// applicable.
type PatchResult struct {
	Type   dom.ChangeType
	Node   dom.NodeRef
	Parent dom.NodeRef
	Data   dom.NodeData
}

// Apply applies the patch to the document behind ed, using stack for the
// ops that pass arguments between patches. It returns a PatchResult when
// the patch changed the document observably, else nil.
func (p Patch) Apply(ed *dom.Editor, stack *[]dom.NodeRef) *PatchResult {
	doc := ed.Document()
	switch p.Kind {
	case PatchInsertBefore:
		node := ed.InsertBeforeNode(p.Data, p.Node)
		parent, _ := doc.Parent(node)
		return &PatchResult{Type: dom.ChangeAdd, Node: node, Parent: parent, Data: p.Data}

	case PatchInsertAfter:
		node := ed.InsertAfterNode(p.Data, p.Node)
		parent, _ := doc.Parent(node)
		return &PatchResult{Type: dom.ChangeAdd, Node: node, Parent: parent, Data: p.Data}

	case PatchCreate:
		node := ed.PushNode(p.Data)
		*stack = append(*stack, node)
		// A later op parents the node; that op reports the add.
		return nil

	case PatchCreateAndMoveTo:
		node := ed.PushNode(p.Data)
		*stack = append(*stack, node)
		ed.SetInsertionPoint(node)
		return nil

	case PatchPushCurrent:
		*stack = append(*stack, ed.InsertionPoint())
		return nil

	case PatchPush:
		*stack = append(*stack, p.Node)
		return nil

	case PatchPop:
		popStack(stack)
		return nil

	case PatchAttach:
		child := popStack(stack)
		parent := popStack(stack)
		data := doc.Get(child).Clone()
		ed.SetInsertionPoint(parent)
		ed.AttachNode(child)
		*stack = append(*stack, parent)
		return &PatchResult{Type: dom.ChangeAdd, Node: child, Parent: parent, Data: data}

	case PatchDetach:
		ed.DetachNode(p.Node)
		return nil

	case PatchPrependBefore:
		node := popStack(stack)
		doc.InsertBefore(node, p.Node)
		parent, _ := doc.Parent(p.Node)
		return &PatchResult{Type: dom.ChangeAdd, Node: node, Parent: parent, Data: doc.Get(node).Clone()}

	case PatchAppend:
		node := ed.Append(p.Data)
		return &PatchResult{Type: dom.ChangeAdd, Node: node, Parent: ed.InsertionPoint(), Data: p.Data}

	case PatchAppendTo:
		node := ed.AppendChild(p.Node, p.Data)
		return &PatchResult{Type: dom.ChangeAdd, Node: node, Parent: p.Node, Data: p.Data}

	case PatchAppendAfter:
		node := popStack(stack)
		doc.InsertAfter(node, p.Node)
		parent, _ := doc.Parent(p.Node)
		return &PatchResult{Type: dom.ChangeAdd, Node: node, Parent: parent, Data: doc.Get(node).Clone()}

	case PatchRemove:
		data := doc.Get(p.Node).Clone()
		parent, ok := doc.Parent(p.Node)
		ed.Remove(p.Node)
		if !ok {
			return nil
		}
		return &PatchResult{Type: dom.ChangeRemove, Node: p.Node, Parent: parent, Data: data}

	case PatchReplace:
		data := doc.Get(p.Node).Clone()
		parent, ok := doc.Parent(p.Node)
		if !ok {
			return nil
		}
		ed.ReplaceData(p.Node, p.Data)
		return &PatchResult{Type: dom.ChangeReplace, Node: p.Node, Parent: parent, Data: data}

	case PatchAddAttribute:
		ed.SetAttribute(p.Name, p.Value)
		node := ed.InsertionPoint()
		return &PatchResult{Type: dom.ChangeChange, Node: node, Parent: dom.NilNode, Data: doc.Get(node).Clone()}

	case PatchAddAttributeTo, PatchUpdateAttribute:
		data := doc.Get(p.Node).Clone()
		restore := ed.Guard()
		ed.SetInsertionPoint(p.Node)
		ed.SetAttribute(p.Name, p.Value)
		restore()
		return &PatchResult{Type: dom.ChangeChange, Node: p.Node, Parent: dom.NilNode, Data: data}

	case PatchRemoveAttributeByName:
		data := doc.Get(p.Node).Clone()
		restore := ed.Guard()
		ed.SetInsertionPoint(p.Node)
		ed.RemoveAttribute(p.Name)
		restore()
		return &PatchResult{Type: dom.ChangeChange, Node: p.Node, Parent: dom.NilNode, Data: data}

	case PatchSetAttributes:
		data := doc.Get(p.Node).Clone()
		restore := ed.Guard()
		ed.SetInsertionPoint(p.Node)
		ed.ReplaceAttributes(p.Attributes)
		restore()
		return &PatchResult{Type: dom.ChangeChange, Node: p.Node, Parent: dom.NilNode, Data: data}

	case PatchMove:
		switch p.Move.Kind {
		case MoveNode:
			ed.SetInsertionPoint(p.Move.Node)
		case MoveParent:
			ed.ToParent()
		case MoveChild:
			ed.ToChild(p.Move.N)
		case MoveReverseChild:
			ed.ToChildReverse(p.Move.N)
		case MoveSibling:
			ed.ToSibling(p.Move.N)
		case MoveReverseSibling:
			ed.ToSiblingReverse(p.Move.N)
		}
		return nil
	}
	return nil
}

func popStack(stack *[]dom.NodeRef) dom.NodeRef {
	s := *stack
	if len(s) == 0 {
		panic("diff: patch argument stack underflow")
	}
	node := s[len(s)-1]
	*stack = s[:len(s)-1]
	return node
}
