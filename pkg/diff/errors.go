package diff

import (
	"errors"
	"fmt"
)

// Merge failures. These surface to the host wrapped in the client's
// DocumentMerge error kind.
var (
	ErrFragmentTypeMismatch      = errors.New("fragment type mismatch")
	ErrCreateComponentFromUpdate = errors.New("cannot create component from a child-only update")
	ErrAddChildToExisting        = errors.New("diff adds a child key unknown to the current fragment")
	ErrStreamIDMismatch          = errors.New("stream update for a different stream id")
	ErrUnresolvedComponent       = errors.New("component statics chain does not terminate")
)

// MissingComponentError reports a component reference that resolves
// against neither generation of the component table.
type MissingComponentError struct {
	ID int32
}

func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("component %d not found", e.ID)
}

// Render failures.
var (
	ErrNoComponents = errors.New("no components available when one was referenced")
	ErrNoTemplates  = errors.New("no templates in scope when one was referenced")
)

// TemplateNotFoundError reports a template id missing from the templates
// map in scope.
type TemplateNotFoundError struct {
	ID int32
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %d not found", e.ID)
}

// ComponentNotFoundError reports a component id missing from the component
// table at render time.
type ComponentNotFoundError struct {
	ID int32
}

func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component %d not found in components", e.ID)
}

// ChildNotFoundError reports a dynamic slot that statics demand but the
// fragment does not carry.
type ChildNotFoundError struct {
	Index int32
}

func (e *ChildNotFoundError) Error() string {
	return fmt.Sprintf("child %d not found", e.Index)
}

// CousinNotFoundError reports a missing counterpart child while rendering
// a component that borrows another component's statics.
type CousinNotFoundError struct {
	Index int32
}

func (e *CousinNotFoundError) Error() string {
	return fmt.Sprintf("cousin child %d not found", e.Index)
}
