package diff

import (
	"strconv"
	"strings"
)

// Render flattens the resolved root into a markup string: statics
// interleaved with rendered children, comprehension rows expanded against
// their statics or templates.
func (r *Root) Render() (string, error) {
	var sb strings.Builder
	if err := r.Fragment.render(&sb, r.Components, nil, nil); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (f *Fragment) render(
	sb *strings.Builder,
	components map[string]Component,
	cousinStatics []string,
	parentTemplates map[string][]string,
) error {
	switch f.Kind {
	case FragmentRegular:
		return f.renderRegular(sb, components, cousinStatics, parentTemplates)
	case FragmentComprehension:
		return f.renderComprehension(sb, components, cousinStatics, parentTemplates)
	}
	return nil
}

func (f *Fragment) renderRegular(
	sb *strings.Builder,
	components map[string]Component,
	cousinStatics []string,
	parentTemplates map[string][]string,
) error {
	switch {
	case f.Statics == nil:
		return nil
	case !f.Statics.IsRef:
		statics := f.Statics.Parts
		if len(statics) == 0 {
			return nil
		}
		sb.WriteString(statics[0])
		// Statics wrap the inner contents, so children sit between
		// consecutive statics starting at index 1.
		for i := 1; i < len(statics); i++ {
			if child, ok := f.Children[strconv.Itoa(i-1)]; ok {
				if err := child.renderInto(sb, components, cousinStatics, parentTemplates); err != nil {
					return err
				}
			}
			sb.WriteString(statics[i])
		}
		return nil
	default:
		if parentTemplates == nil {
			return ErrNoTemplates
		}
		template, ok := parentTemplates[strconv.Itoa(int(f.Statics.TemplateRef))]
		if !ok {
			return &TemplateNotFoundError{ID: f.Statics.TemplateRef}
		}
		sb.WriteString(template[0])
		for i := 1; i < len(template); i++ {
			child, ok := f.Children[strconv.Itoa(i-1)]
			if !ok {
				return &ChildNotFoundError{Index: int32(i - 1)}
			}
			if err := child.renderInto(sb, components, cousinStatics, parentTemplates); err != nil {
				return err
			}
			sb.WriteString(template[i])
		}
		return nil
	}
}

func (f *Fragment) renderComprehension(
	sb *strings.Builder,
	components map[string]Component,
	cousinStatics []string,
	parentTemplates map[string][]string,
) error {
	templates := mergeTemplates(cloneTemplates(parentTemplates), f.Templates)

	// Statics priority: cousin statics handed down by the caller, then the
	// fragment's own, then a template referenced by id.
	switch {
	case cousinStatics != nil:
		return f.renderRows(sb, components, cousinStatics, templates)
	case f.Statics == nil:
		for _, row := range f.Dynamics {
			for _, child := range row {
				if err := child.renderInto(sb, components, nil, templates); err != nil {
					return err
				}
			}
		}
		return nil
	case !f.Statics.IsRef:
		return f.renderRows(sb, components, f.Statics.Parts, templates)
	default:
		if templates == nil {
			return ErrNoTemplates
		}
		statics, ok := templates[strconv.Itoa(int(f.Statics.TemplateRef))]
		if !ok {
			return &TemplateNotFoundError{ID: f.Statics.TemplateRef}
		}
		return f.renderRows(sb, components, statics, templates)
	}
}

func (f *Fragment) renderRows(
	sb *strings.Builder,
	components map[string]Component,
	statics []string,
	templates map[string][]string,
) error {
	for _, row := range f.Dynamics {
		if len(statics) == 0 {
			continue
		}
		sb.WriteString(statics[0])
		for i := 1; i < len(statics); i++ {
			if i-1 >= len(row) {
				return &ChildNotFoundError{Index: int32(i - 1)}
			}
			if err := row[i-1].renderInto(sb, components, nil, templates); err != nil {
				return err
			}
			sb.WriteString(statics[i])
		}
	}
	return nil
}

// render returns the rendered string of a single child, used by stream
// row matching.
func (c Child) render(
	components map[string]Component,
	cousinStatics []string,
	templates map[string][]string,
) (string, error) {
	var sb strings.Builder
	if err := c.renderInto(&sb, components, cousinStatics, templates); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (c Child) renderInto(
	sb *strings.Builder,
	components map[string]Component,
	cousinStatics []string,
	templates map[string][]string,
) error {
	switch {
	case c.Literal != nil:
		sb.WriteString(*c.Literal)
		return nil
	case c.Fragment != nil:
		return c.Fragment.render(sb, components, cousinStatics, templates)
	case c.ComponentID != nil:
		if components == nil {
			return ErrNoComponents
		}
		comp, ok := components[strconv.Itoa(int(*c.ComponentID))]
		if !ok {
			return &ComponentNotFoundError{ID: *c.ComponentID}
		}
		return comp.render(sb, components)
	default:
		return nil
	}
}

func (c *Component) render(sb *strings.Builder, components map[string]Component) error {
	if !c.Statics.IsRef {
		statics := c.Statics.Parts
		if len(statics) == 0 {
			return nil
		}
		sb.WriteString(statics[0])
		for i := 1; i < len(statics); i++ {
			child, ok := c.Children[strconv.Itoa(i-1)]
			if !ok {
				return &ChildNotFoundError{Index: int32(i - 1)}
			}
			if err := child.renderInto(sb, components, nil, nil); err != nil {
				return err
			}
			sb.WriteString(statics[i])
		}
		return nil
	}

	// Follow the reference chain until a component with concrete statics
	// is found; its children provide the cousin statics for ours.
	cid := c.Statics.Ref
	var cousin Component
	for hops := 0; ; hops++ {
		if components == nil {
			return ErrNoComponents
		}
		if hops > len(components) {
			return ErrUnresolvedComponent
		}
		comp, ok := components[strconv.Itoa(int(cid))]
		if !ok {
			return &ComponentNotFoundError{ID: cid}
		}
		if !comp.Statics.IsRef {
			cousin = comp
			break
		}
		cid = comp.Statics.Ref
	}

	outer := cousin.Statics.Parts
	if len(outer) == 0 {
		return nil
	}
	sb.WriteString(outer[0])
	for i := 1; i < len(outer); i++ {
		key := strconv.Itoa(i - 1)
		child, ok := c.Children[key]
		if !ok {
			return &ChildNotFoundError{Index: int32(i - 1)}
		}
		cousinChild, ok := cousin.Children[key]
		if !ok {
			return &CousinNotFoundError{Index: int32(i - 1)}
		}
		if err := child.renderInto(sb, components, cousinChild.statics(), nil); err != nil {
			return err
		}
		sb.WriteString(outer[i])
	}
	return nil
}
