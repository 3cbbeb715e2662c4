package dom

import (
	"strings"

	"github.com/livenative-dev/livenative/internal/intern"
)

// Selector matches elements in a document. Selectors compose; build them
// with the constructors below.
type Selector interface {
	// Matches reports whether node satisfies the selector within doc.
	Matches(doc *Document, node NodeRef) bool
	// isUnique reports whether the selector can match at most one node,
	// which lets the iterator stop after the first hit.
	isUnique() bool
}

// Tag selects elements with the given tag name, e.g. `foo`.
func Tag(tag string) Selector { return tagSelector(NewElementName(tag)) }

// ID selects the element registered under the given unique id, e.g. `#id`.
func ID(id string) Selector { return idSelector(id) }

// All selects every element, e.g. `*`.
func All() Selector { return allSelector{} }

// And selects elements matching both sub-selectors.
func And(l, r Selector) Selector { return andSelector{l, r} }

// Or selects elements matching either sub-selector.
func Or(l, r Selector) Selector { return orSelector{l, r} }

// Descendant selects elements matching sel that descend from an element
// matching ancestor, e.g. `ul.foo li`.
func Descendant(ancestor, sel Selector) Selector { return descendantSelector{ancestor, sel} }

// Child selects elements matching sel whose direct parent matches parent,
// e.g. `ul.foo > li`.
func Child(parent, sel Selector) Selector { return childSelector{parent, sel} }

// Attr selects elements carrying an attribute with the given name, e.g.
// `a[href]`.
func Attr(name string) Selector { return attrSelector(NewAttributeName(name)) }

// AttrEquals selects elements whose attribute name has exactly the given
// value, e.g. `a[href="/home"]`.
func AttrEquals(name, value string) Selector {
	return attrValueSelector{NewAttributeName(name), value}
}

// AttrWhitespaceContains selects elements whose attribute value, split on
// whitespace, contains the given word, e.g. `[attr~=value]`.
func AttrWhitespaceContains(name, word string) Selector {
	return attrWordSelector{NewAttributeName(name), word}
}

// AttrStartsWith selects elements whose attribute value has the given
// prefix, e.g. `[attr^=value]`.
func AttrStartsWith(name, prefix string) Selector {
	return attrAffixSelector{NewAttributeName(name), prefix, affixPrefix}
}

// AttrEndsWith selects elements whose attribute value has the given
// suffix, e.g. `[attr$=value]`.
func AttrEndsWith(name, suffix string) Selector {
	return attrAffixSelector{NewAttributeName(name), suffix, affixSuffix}
}

// AttrSubstring selects elements whose attribute value contains the given
// substring, e.g. `[attr*=value]`.
func AttrSubstring(name, substring string) Selector {
	return attrAffixSelector{NewAttributeName(name), substring, affixSubstring}
}

type tagSelector ElementName

func (s tagSelector) Matches(doc *Document, node NodeRef) bool {
	data := doc.Get(node)
	return data.Kind == KindElement && data.Element.Name == ElementName(s)
}
func (s tagSelector) isUnique() bool { return false }

type idSelector string

func (s idSelector) Matches(doc *Document, node NodeRef) bool {
	if doc.Get(node).Kind != KindElement {
		return false
	}
	identified, ok := doc.GetByID(string(s))
	return ok && identified == node
}
func (s idSelector) isUnique() bool { return true }

type allSelector struct{}

func (allSelector) Matches(doc *Document, node NodeRef) bool {
	return doc.Get(node).Kind == KindElement
}
func (allSelector) isUnique() bool { return false }

type andSelector struct{ l, r Selector }

func (s andSelector) Matches(doc *Document, node NodeRef) bool {
	return s.l.Matches(doc, node) && s.r.Matches(doc, node)
}
func (s andSelector) isUnique() bool { return s.l.isUnique() || s.r.isUnique() }

type orSelector struct{ l, r Selector }

func (s orSelector) Matches(doc *Document, node NodeRef) bool {
	return s.l.Matches(doc, node) || s.r.Matches(doc, node)
}
func (s orSelector) isUnique() bool { return false }

type descendantSelector struct{ ancestor, sel Selector }

func (s descendantSelector) Matches(doc *Document, node NodeRef) bool {
	if !s.sel.Matches(doc, node) {
		return false
	}
	parent, ok := doc.Parent(node)
	for ok {
		if s.ancestor.Matches(doc, parent) {
			return true
		}
		parent, ok = doc.Parent(parent)
	}
	return false
}
func (s descendantSelector) isUnique() bool { return s.sel.isUnique() }

type childSelector struct{ parent, sel Selector }

func (s childSelector) Matches(doc *Document, node NodeRef) bool {
	if !s.sel.Matches(doc, node) {
		return false
	}
	parent, ok := doc.Parent(node)
	return ok && s.parent.Matches(doc, parent)
}
func (s childSelector) isUnique() bool { return s.sel.isUnique() }

type attrSelector AttributeName

func (s attrSelector) Matches(doc *Document, node NodeRef) bool {
	data := doc.Get(node)
	if data.Kind != KindElement {
		return false
	}
	for _, attr := range data.Element.Attributes {
		if attr.Name == AttributeName(s) {
			return true
		}
	}
	return false
}
func (s attrSelector) isUnique() bool { return false }

type attrValueSelector struct {
	name  AttributeName
	value string
}

func (s attrValueSelector) Matches(doc *Document, node NodeRef) bool {
	data := doc.Get(node)
	if data.Kind != KindElement {
		return false
	}
	for _, attr := range data.Element.Attributes {
		if attr.Name == s.name && attr.ValueString() == s.value {
			return true
		}
	}
	return false
}
func (s attrValueSelector) isUnique() bool {
	return s.name == AttributeName{Name: intern.Intern("id")}
}

type attrWordSelector struct {
	name AttributeName
	word string
}

func (s attrWordSelector) Matches(doc *Document, node NodeRef) bool {
	data := doc.Get(node)
	if data.Kind != KindElement {
		return false
	}
	for _, attr := range data.Element.Attributes {
		if attr.Name != s.name {
			continue
		}
		for _, split := range strings.Fields(attr.ValueString()) {
			if split == s.word {
				return true
			}
		}
	}
	return false
}
func (s attrWordSelector) isUnique() bool { return false }

type affixKind uint8

const (
	affixPrefix affixKind = iota
	affixSuffix
	affixSubstring
)

type attrAffixSelector struct {
	name  AttributeName
	affix string
	kind  affixKind
}

func (s attrAffixSelector) Matches(doc *Document, node NodeRef) bool {
	data := doc.Get(node)
	if data.Kind != KindElement {
		return false
	}
	for _, attr := range data.Element.Attributes {
		if attr.Name != s.name {
			continue
		}
		value := attr.ValueString()
		switch s.kind {
		case affixPrefix:
			if strings.HasPrefix(value, s.affix) {
				return true
			}
		case affixSuffix:
			if strings.HasSuffix(value, s.affix) {
				return true
			}
		case affixSubstring:
			if strings.Contains(value, s.affix) {
				return true
			}
		}
	}
	return false
}
func (s attrAffixSelector) isUnique() bool { return false }

// SelectionIter lazily walks the document depth-first and yields nodes
// matching the selector. The iterator stops after the first result when
// the selector can match at most one node.
type SelectionIter struct {
	doc      *Document
	sel      Selector
	stack    []NodeRef
	isUnique bool
	done     bool
}

// Select returns an iterator over the whole document matching sel.
// Nodes are yielded in depth-first discovery order.
func (d *Document) Select(sel Selector) *SelectionIter {
	return d.SelectFrom(d.root, sel)
}

// SelectFrom returns an iterator over the subtree rooted at node matching
// sel.
func (d *Document) SelectFrom(node NodeRef, sel Selector) *SelectionIter {
	return &SelectionIter{
		doc:      d,
		sel:      sel,
		stack:    []NodeRef{node},
		isUnique: sel.isUnique(),
	}
}

// Next yields the next matching node. The second result is false when the
// iteration is exhausted.
func (it *SelectionIter) Next() (NodeRef, bool) {
	if it.done {
		return NilNode, false
	}
	for len(it.stack) > 0 {
		node := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]

		children := it.doc.Children(node)
		for i := len(children) - 1; i >= 0; i-- {
			it.stack = append(it.stack, children[i])
		}

		if it.sel.Matches(it.doc, node) {
			if it.isUnique {
				it.done = true
			}
			return node, true
		}
	}
	it.done = true
	return NilNode, false
}

// Collect exhausts the iterator and returns all matches.
func (it *SelectionIter) Collect() []NodeRef {
	var out []NodeRef
	for node, ok := it.Next(); ok; node, ok = it.Next() {
		out = append(out, node)
	}
	return out
}

// First returns the first match, if any.
func (it *SelectionIter) First() (NodeRef, bool) {
	return it.Next()
}
