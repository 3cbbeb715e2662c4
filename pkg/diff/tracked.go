package diff

import (
	"encoding/json"

	"github.com/livenative-dev/livenative/pkg/clientmetrics"
	"github.com/livenative-dev/livenative/pkg/dom"
)

// TrackedDocument pairs a parsed document with the Root fragment that
// produced it. Subsequent diffs merge into the root, render to a string,
// reparse, and a structural diff against the old document yields the
// patches applied in place. This keeps merge logic off the live tree.
type TrackedDocument struct {
	Doc  *dom.Document
	Root *Root
}

// ParseFragmentJSON decodes a first-generation diff payload, renders it,
// and parses the result into a tracked document.
func ParseFragmentJSON(data []byte) (*TrackedDocument, error) {
	rootDiff, err := ParseRootDiff(data)
	if err != nil {
		return nil, err
	}
	root, err := NewRoot(rootDiff)
	if err != nil {
		return nil, err
	}
	rendered, err := root.Render()
	if err != nil {
		return nil, err
	}
	doc, err := dom.Parse(rendered)
	if err != nil {
		return nil, err
	}
	return &TrackedDocument{Doc: doc, Root: root}, nil
}

// MergeFragment merges a decoded diff into the tracked root, re-renders,
// and applies the resulting patches to the live document. Each applied
// patch's result is forwarded to handler in traversal order; handler may
// be nil.
func (t *TrackedDocument) MergeFragment(rootDiff *RootDiff, handler dom.ChangeHandler) error {
	var root *Root
	var err error
	if t.Root != nil {
		root, err = t.Root.Merge(rootDiff)
	} else {
		root, err = NewRoot(rootDiff)
	}
	if err != nil {
		return err
	}
	t.Root = root

	rendered, err := root.Render()
	if err != nil {
		return err
	}
	newDoc, err := dom.Parse(rendered)
	if err != nil {
		return err
	}

	patches := Diff(t.Doc, newDoc)
	if len(patches) == 0 {
		return nil
	}

	ed := t.Doc.Edit()
	var stack []dom.NodeRef
	for _, patch := range patches {
		result := patch.Apply(ed, &stack)
		if result == nil || handler == nil {
			continue
		}
		handler.HandleChange(result.Type, result.Node, result.Data, result.Parent)
	}
	clientmetrics.PatchesApplied.Add(float64(len(patches)))
	return nil
}

// MergeFragmentJSON decodes and merges a raw diff payload.
func (t *TrackedDocument) MergeFragmentJSON(data []byte, handler dom.ChangeHandler) error {
	rootDiff, err := ParseRootDiff(data)
	if err != nil {
		return err
	}
	return t.MergeFragment(rootDiff, handler)
}

// MergeFragmentValue merges a diff that was already decoded as a generic
// JSON value, as happens when the diff rides inside a larger reply object.
func (t *TrackedDocument) MergeFragmentValue(value any, handler dom.ChangeHandler) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.MergeFragmentJSON(raw, handler)
}
