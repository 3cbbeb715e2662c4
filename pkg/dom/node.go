package dom

import (
	"strings"

	"github.com/livenative-dev/livenative/internal/intern"
)

// NodeRef identifies a node within a Document. Refs are dense indices into
// the document's arena and are only meaningful for the document that issued
// them.
type NodeRef uint32

// NilNode is the absent NodeRef, used where a parent may not exist.
const NilNode NodeRef = ^NodeRef(0)

// NodeKind discriminates the variants of NodeData.
type NodeKind uint8

const (
	// KindRoot marks the document root. A document has exactly one root;
	// it carries no attributes and no text, it only contains.
	KindRoot NodeKind = iota
	// KindElement is a named node carrying attributes and children.
	KindElement
	// KindLeaf is an untyped content node, typically text. Leaves have no
	// attributes and no children.
	KindLeaf
)

func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "Root"
	case KindElement:
		return "Element"
	case KindLeaf:
		return "Leaf"
	default:
		return "Unknown"
	}
}

// NodeData is the payload stored for each node in a Document.
// Element is meaningful only when Kind is KindElement, Text only when Kind
// is KindLeaf.
type NodeData struct {
	Kind    NodeKind
	Element Element
	Text    string
}

// RootData returns the data for a root node.
func RootData() NodeData { return NodeData{Kind: KindRoot} }

// ElementData returns the data for an element node named tag.
// A "ns:local" tag is split into namespace and local name.
func ElementData(tag string) NodeData {
	return NodeData{Kind: KindElement, Element: NewElement(tag)}
}

// LeafData returns the data for a leaf node with the given content.
func LeafData(text string) NodeData {
	return NodeData{Kind: KindLeaf, Text: text}
}

// ID returns the value of the "id" attribute when this node is an element
// that carries one.
func (n *NodeData) ID() (string, bool) {
	if n.Kind != KindElement {
		return "", false
	}
	return n.Element.ID()
}

// HasAttribute reports whether the node carries an attribute with the given
// local name and namespace ("" for none).
func (n *NodeData) HasAttribute(name, namespace string) bool {
	if n.Kind != KindElement {
		return false
	}
	want := AttributeName{Namespace: intern.Intern(namespace), Name: intern.Intern(name)}
	for _, attr := range n.Element.Attributes {
		if attr.Name == want {
			return true
		}
	}
	return false
}

// Attributes returns the node's attributes, or nil for non-elements.
func (n *NodeData) Attributes() []Attribute {
	if n.Kind != KindElement {
		return nil
	}
	return n.Element.Attributes
}

// IsLeaf reports whether the node is a leaf.
func (n *NodeData) IsLeaf() bool { return n.Kind == KindLeaf }

// Clone returns a deep copy of the node data.
func (n NodeData) Clone() NodeData {
	out := n
	if n.Kind == KindElement {
		out.Element = n.Element.Clone()
	}
	return out
}

// ElementName is the fully-qualified name of an element. Both parts are
// interned; Namespace is the zero Symbol when the element is not
// namespaced.
type ElementName struct {
	Namespace intern.Symbol
	Name      intern.Symbol
}

// NewElementName builds an ElementName from a raw tag, splitting on the
// first ':' when present.
func NewElementName(tag string) ElementName {
	if ns, local, ok := strings.Cut(tag, ":"); ok {
		return ElementName{Namespace: intern.Intern(ns), Name: intern.Intern(local)}
	}
	return ElementName{Name: intern.Intern(tag)}
}

func (n ElementName) String() string {
	if n.Namespace != 0 {
		return intern.Resolve(n.Namespace) + ":" + intern.Resolve(n.Name)
	}
	return intern.Resolve(n.Name)
}

// Element is a typed node with attributes. Attribute order is significant
// and preserved.
type Element struct {
	Name       ElementName
	Attributes []Attribute
}

// NewElement creates an element named tag without attributes.
func NewElement(tag string) Element {
	return Element{Name: NewElementName(tag)}
}

// ID returns the value of the element's "id" attribute, if set.
func (e *Element) ID() (string, bool) {
	idName := intern.Intern("id")
	for _, attr := range e.Attributes {
		if attr.Name.Namespace == 0 && attr.Name.Name == idName {
			if attr.Value == nil {
				return "", true
			}
			return *attr.Value, true
		}
	}
	return "", false
}

// SetAttribute sets name to value, replacing an existing attribute of the
// same name in place.
func (e *Element) SetAttribute(name AttributeName, value *string) {
	for i := range e.Attributes {
		if e.Attributes[i].Name == name {
			e.Attributes[i].Value = value
			return
		}
	}
	e.Attributes = append(e.Attributes, Attribute{Name: name, Value: value})
}

// RemoveAttribute removes the first attribute with the given name.
func (e *Element) RemoveAttribute(name AttributeName) {
	for i := range e.Attributes {
		if e.Attributes[i].Name == name {
			e.Attributes = append(e.Attributes[:i], e.Attributes[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	out := e
	out.Attributes = make([]Attribute, len(e.Attributes))
	copy(out.Attributes, e.Attributes)
	return out
}

// AttributesEqual compares two attribute lists, order included.
func AttributesEqual(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
