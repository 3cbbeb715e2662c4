package diff

import (
	"fmt"
	"strconv"
	"strings"
)

// NewRoot converts a first-generation diff directly into a resolved Root.
func NewRoot(diff *RootDiff) (*Root, error) {
	frag, err := diff.Fragment.toFragment()
	if err != nil {
		return nil, err
	}
	components := make(map[string]Component, len(diff.Components))
	for key, cd := range diff.Components {
		comp, err := cd.toComponent()
		if err != nil {
			return nil, err
		}
		components[key] = comp
	}
	root := &Root{Fragment: *frag, Components: components}
	if err := root.resolveComponents(nil); err != nil {
		return nil, err
	}
	return root, nil
}

// Merge applies diff to the root, producing the next generation. The
// receiver is not modified.
func (r *Root) Merge(diff *RootDiff) (*Root, error) {
	oldComponents := r.Components
	frag, err := r.Fragment.merge(&diff.Fragment)
	if err != nil {
		return nil, err
	}
	components, err := mergeComponents(cloneComponents(r.Components), diff.Components)
	if err != nil {
		return nil, err
	}
	out := &Root{Fragment: *frag, Components: components}
	if err := out.resolveComponents(oldComponents); err != nil {
		return nil, err
	}
	return out, nil
}

// shouldReplaceCurrent reports whether the diff replaces the fragment at
// this position wholesale. Detection is by presence of statics.
func (f *FragmentDiff) shouldReplaceCurrent() bool {
	return f.Statics != nil
}

// toFragment converts a diff into a fresh fragment, used when there is no
// current fragment to merge into or when statics force a replacement.
func (f *FragmentDiff) toFragment() (*Fragment, error) {
	if f.Kind == FragmentComprehension {
		dynamics, err := toDynamics(f.Dynamics)
		if err != nil {
			return nil, err
		}
		frag := &Fragment{
			Kind:      FragmentComprehension,
			Dynamics:  dynamics,
			Statics:   f.Statics,
			Templates: f.Templates,
			Reply:     f.Reply,
		}
		if f.Stream != nil {
			frag.Stream = &Stream{ID: f.Stream.ID}
			if !f.Stream.Reset {
				frag.Stream.Items = append(frag.Stream.Items, f.Stream.Inserts...)
			}
		}
		return frag, nil
	}

	children := make(map[string]Child, len(f.Children))
	for key, cd := range f.Children {
		child, err := cd.toChild()
		if err != nil {
			return nil, err
		}
		children[key] = child
	}
	statics := f.Statics
	if statics == nil {
		// A fragment created from a child-only diff has no statics of its
		// own; fill with empties so that statics always wrap children.
		statics = &Statics{Parts: make([]string, len(children)+1)}
	}
	return &Fragment{
		Kind:     FragmentRegular,
		Children: children,
		Statics:  statics,
		Reply:    f.Reply,
	}, nil
}

func toDynamics(diff [][]ChildDiff) ([][]Child, error) {
	out := make([][]Child, len(diff))
	for i, row := range diff {
		newRow := make([]Child, len(row))
		for j, cd := range row {
			child, err := cd.toChild()
			if err != nil {
				return nil, err
			}
			newRow[j] = child
		}
		out[i] = newRow
	}
	return out, nil
}

func (c *ChildDiff) toChild() (Child, error) {
	switch {
	case c.Literal != nil:
		return Child{Literal: c.Literal}, nil
	case c.ComponentID != nil:
		return Child{ComponentID: c.ComponentID}, nil
	case c.Fragment != nil:
		frag, err := c.Fragment.toFragment()
		if err != nil {
			return Child{}, err
		}
		return Child{Fragment: frag}, nil
	default:
		return Child{}, fmt.Errorf("empty child diff")
	}
}

// merge combines a fragment with a diff per the merge contract: a diff
// carrying statics replaces; regular children merge key-wise; a
// comprehension takes the diff's dynamics, unions templates, and applies
// stream updates.
func (f *Fragment) merge(diff *FragmentDiff) (*Fragment, error) {
	if diff.shouldReplaceCurrent() {
		return diff.toFragment()
	}

	switch {
	case f.Kind == FragmentRegular && diff.Kind == FragmentRegular:
		children, err := mergeChildren(f.Children, diff.Children)
		if err != nil {
			return nil, err
		}
		reply := diff.Reply
		if reply == nil {
			reply = f.Reply
		}
		return &Fragment{
			Kind:     FragmentRegular,
			Children: children,
			Statics:  f.Statics,
			Reply:    reply,
		}, nil

	case f.Kind == FragmentComprehension && diff.Kind == FragmentComprehension:
		return f.mergeComprehension(diff)

	default:
		return nil, ErrFragmentTypeMismatch
	}
}

func (f *Fragment) mergeComprehension(diff *FragmentDiff) (*Fragment, error) {
	reply := diff.Reply
	if reply == nil {
		reply = f.Reply
	}
	templates := mergeTemplates(cloneTemplates(f.Templates), diff.Templates)
	newDynamics, err := toDynamics(diff.Dynamics)
	if err != nil {
		return nil, err
	}

	out := &Fragment{
		Kind:      FragmentComprehension,
		Statics:   f.Statics,
		Templates: templates,
		Reply:     reply,
	}

	switch {
	case f.Stream == nil && diff.Stream == nil:
		out.Dynamics = newDynamics

	case f.Stream == nil && diff.Stream != nil:
		stream := &Stream{ID: diff.Stream.ID}
		if !diff.Stream.Reset {
			stream.Items = append(stream.Items, diff.Stream.Inserts...)
		}
		out.Stream = stream
		out.Dynamics = newDynamics

	case f.Stream != nil && diff.Stream == nil:
		out.Stream = f.Stream
		out.Dynamics = f.Dynamics

	default:
		stream := &Stream{ID: f.Stream.ID, Items: append([]StreamItem(nil), f.Stream.Items...)}
		update := diff.Stream
		if update.ID != "" && update.ID != stream.ID {
			return nil, ErrStreamIDMismatch
		}
		current := append([][]Child(nil), f.Dynamics...)

		if update.Reset {
			stream.Items = nil
			current = append([][]Child(nil), newDynamics...)
		} else {
			for _, insert := range update.Inserts {
				row, ok := findStreamRow(newDynamics, insert.ID)
				if !ok {
					continue
				}
				if insert.Index == -1 {
					current = append(current, row)
				}
				stream.Items = append(stream.Items, insert)
			}
			for _, deleteID := range update.DeleteIDs {
				if pos, ok := streamRowIndex(current, deleteID); ok {
					current = append(current[:pos], current[pos+1:]...)
				}
			}
		}
		out.Stream = stream
		out.Dynamics = current
	}

	return out, nil
}

// findStreamRow locates the dynamic row whose rendered output carries
// id="<id>".
func findStreamRow(dynamics [][]Child, id string) ([]Child, bool) {
	if pos, ok := streamRowIndex(dynamics, id); ok {
		return dynamics[pos], true
	}
	return nil, false
}

func streamRowIndex(dynamics [][]Child, id string) (int, bool) {
	needle := fmt.Sprintf(" id=%q", id)
	for i, row := range dynamics {
		for _, child := range row {
			if strings.Contains(renderCellLoose(child), needle) {
				return i, true
			}
		}
	}
	return -1, false
}

// renderCellLoose renders a single dynamic cell for stream row matching.
// Errors are swallowed; an unrenderable cell simply does not match.
func renderCellLoose(child Child) string {
	if child.Literal != nil {
		return *child.Literal
	}
	out, err := child.render(nil, nil, nil)
	if err != nil {
		return ""
	}
	return out
}

func (c Child) merge(diff ChildDiff) (Child, error) {
	switch {
	case diff.Literal != nil:
		return Child{Literal: diff.Literal}, nil
	case diff.ComponentID != nil:
		return Child{ComponentID: diff.ComponentID}, nil
	case diff.Fragment != nil:
		if c.Fragment != nil {
			merged, err := c.Fragment.merge(diff.Fragment)
			if err != nil {
				return Child{}, err
			}
			return Child{Fragment: merged}, nil
		}
		// Any other child kind updated with a fragment diff becomes a
		// fragment; component ids in particular convert.
		frag, err := diff.Fragment.toFragment()
		if err != nil {
			return Child{}, err
		}
		return Child{Fragment: frag}, nil
	default:
		return Child{}, fmt.Errorf("empty child diff")
	}
}

func mergeChildren(current map[string]Child, diff map[string]ChildDiff) (map[string]Child, error) {
	out := make(map[string]Child, len(current))
	for k, v := range current {
		out[k] = v.clone()
	}
	for key, cd := range diff {
		child, ok := out[key]
		if !ok {
			if len(out) > 0 {
				return nil, ErrAddChildToExisting
			}
			created, err := cd.toChild()
			if err != nil {
				return nil, err
			}
			out[key] = created
			continue
		}
		merged, err := child.merge(cd)
		if err != nil {
			return nil, err
		}
		out[key] = merged
	}
	return out, nil
}

func mergeTemplates(current, incoming map[string][]string) map[string][]string {
	if incoming == nil {
		return current
	}
	if current == nil {
		return cloneTemplates(incoming)
	}
	for key, val := range incoming {
		current[key] = append([]string(nil), val...)
	}
	return current
}

func (c *ComponentDiff) toComponent() (Component, error) {
	if c.Statics == nil {
		return Component{}, ErrCreateComponentFromUpdate
	}
	children := make(map[string]Child, len(c.Children))
	for key, cd := range c.Children {
		child, err := cd.toChild()
		if err != nil {
			return Component{}, err
		}
		children[key] = child
	}
	return Component{Children: children, Statics: *c.Statics}.fixStatics(), nil
}

// fixStatics rewrites a previous-generation component reference to its
// current-generation counterpart; a replaced component always refers
// forward.
func (c Component) fixStatics() Component {
	if c.Statics.IsRef && c.Statics.Ref < 0 {
		c.Statics.Ref = -c.Statics.Ref
	}
	return c
}

func (c Component) merge(diff ComponentDiff) (Component, error) {
	if diff.Statics != nil {
		return (&diff).toComponent()
	}
	children, err := mergeChildren(c.Children, diff.Children)
	if err != nil {
		return Component{}, err
	}
	return Component{Children: children, Statics: c.Statics}, nil
}

func mergeComponents(current map[string]Component, diff map[string]ComponentDiff) (map[string]Component, error) {
	if current == nil {
		current = make(map[string]Component, len(diff))
	}
	for cid, cd := range diff {
		if existing, ok := current[cid]; ok {
			merged, err := existing.merge(cd)
			if err != nil {
				return nil, err
			}
			current[cid] = merged
			continue
		}
		created, err := cd.toComponent()
		if err != nil {
			return nil, err
		}
		current[cid] = created
	}
	return current, nil
}

// resolveComponents walks the merged root and resolves component
// references. Negative ids denote the previous generation, whose table
// is gone after this merge, so those children are flattened into regular
// fragments carrying the referenced component's statics and deep-resolved
// children. Positive ids stay as references and resolve against the
// current table at render time, so later component updates keep showing.
// Components themselves have their reference chains resolved to concrete
// statics.
func (r *Root) resolveComponents(oldComponents map[string]Component) error {
	res := &resolver{old: oldComponents, new: r.Components}

	for key, comp := range r.Components {
		resolved, err := res.resolveComponent(comp, nil)
		if err != nil {
			return err
		}
		r.Components[key] = resolved
	}
	return res.resolveFragment(&r.Fragment)
}

type resolver struct {
	old map[string]Component
	new map[string]Component
}

func (res *resolver) lookup(id int32) (Component, error) {
	table := res.new
	if id < 0 {
		table = res.old
	}
	abs := id
	if abs < 0 {
		abs = -abs
	}
	comp, ok := table[strconv.Itoa(int(abs))]
	if !ok {
		return Component{}, &MissingComponentError{ID: id}
	}
	return comp, nil
}

func (res *resolver) resolveFragment(f *Fragment) error {
	if f.Kind != FragmentRegular {
		return nil
	}
	for key, child := range f.Children {
		resolved, err := res.resolveFragmentChild(child)
		if err != nil {
			return err
		}
		f.Children[key] = resolved
	}
	return nil
}

// resolveFragmentChild handles children of the root tree: negative ids
// are flattened, positive ids are verified and kept dynamic.
func (res *resolver) resolveFragmentChild(c Child) (Child, error) {
	switch {
	case c.Literal != nil:
		return c, nil
	case c.Fragment != nil:
		if err := res.resolveFragment(c.Fragment); err != nil {
			return Child{}, err
		}
		return c, nil
	default:
		id := *c.ComponentID
		if id >= 0 {
			if _, err := res.lookup(id); err != nil {
				return Child{}, err
			}
			return c, nil
		}
		return res.inlineComponent(id, nil)
	}
}

// resolveChild handles children inside components, which are always
// flattened.
func (res *resolver) resolveChild(c Child, seen []int32) (Child, error) {
	switch {
	case c.Literal != nil:
		return c, nil
	case c.Fragment != nil:
		if err := res.resolveFragment(c.Fragment); err != nil {
			return Child{}, err
		}
		return c, nil
	default:
		return res.inlineComponent(*c.ComponentID, seen)
	}
}

// inlineComponent replaces a component reference with a regular fragment
// carrying the component's statics and deep-resolved children.
func (res *resolver) inlineComponent(id int32, seen []int32) (Child, error) {
	for _, prev := range seen {
		if prev == id {
			return Child{}, ErrUnresolvedComponent
		}
	}
	comp, err := res.lookup(id)
	if err != nil {
		return Child{}, err
	}
	resolved, err := res.resolveComponent(comp.clone(), append(seen, id))
	if err != nil {
		return Child{}, err
	}
	if resolved.Statics.IsRef {
		return Child{}, ErrUnresolvedComponent
	}
	statics := &Statics{Parts: resolved.Statics.Parts}
	return Child{Fragment: &Fragment{
		Kind:     FragmentRegular,
		Statics:  statics,
		Children: resolved.Children,
	}}, nil
}

// resolveComponent deep-resolves a component's children and follows its
// statics chain to a concrete statics array. When statics come from a
// cousin component, comprehension children lacking statics of their own
// inherit the cousin child's so that template-sharing components keep the
// outer skeleton.
func (res *resolver) resolveComponent(c Component, seen []int32) (Component, error) {
	for key, child := range c.Children {
		resolved, err := res.resolveChild(child, seen)
		if err != nil {
			return Component{}, err
		}
		c.Children[key] = resolved
	}

	if !c.Statics.IsRef {
		return c, nil
	}

	id := c.Statics.Ref
	var cousin Component
	for {
		for _, prev := range seen {
			if prev == id {
				return Component{}, ErrUnresolvedComponent
			}
		}
		seen = append(seen, id)
		comp, err := res.lookup(id)
		if err != nil {
			return Component{}, err
		}
		if !comp.Statics.IsRef {
			cousin = comp
			break
		}
		id = comp.Statics.Ref
	}

	c.Statics = ComponentStatics{Parts: append([]string(nil), cousin.Statics.Parts...)}
	for key, child := range c.Children {
		if child.Fragment == nil || child.Fragment.Kind != FragmentComprehension || child.Fragment.Statics != nil {
			continue
		}
		cousinChild, ok := cousin.Children[key]
		if !ok {
			continue
		}
		if parts := cousinChild.statics(); parts != nil {
			child.Fragment.Statics = &Statics{Parts: append([]string(nil), parts...)}
			c.Children[key] = child
		}
	}
	return c, nil
}
