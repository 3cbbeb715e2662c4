package dom

import (
	"strings"

	"github.com/livenative-dev/livenative/internal/intern"
)

// AttributeName is the fully-qualified name of an attribute. Both parts are
// interned; Namespace is the zero Symbol when the attribute is not
// namespaced (namespaces show up for svg-style attributes, e.g.
// xlink:href).
type AttributeName struct {
	Namespace intern.Symbol
	Name      intern.Symbol
}

// NewAttributeName builds an AttributeName from a raw name, splitting on
// the first ':' when present.
func NewAttributeName(name string) AttributeName {
	if ns, local, ok := strings.Cut(name, ":"); ok {
		return AttributeName{Namespace: intern.Intern(ns), Name: intern.Intern(local)}
	}
	return AttributeName{Name: intern.Intern(name)}
}

func (n AttributeName) String() string {
	if n.Namespace != 0 {
		return intern.Resolve(n.Namespace) + ":" + intern.Resolve(n.Name)
	}
	return intern.Resolve(n.Name)
}

// Local returns the attribute's local name without namespace.
func (n AttributeName) Local() string { return intern.Resolve(n.Name) }

// Attribute is a name/value pair on an element. A nil Value represents an
// attribute that is present without a value (e.g. `hidden`).
type Attribute struct {
	Name  AttributeName
	Value *string
}

// NewAttribute builds an attribute with a value.
func NewAttribute(name, value string) Attribute {
	return Attribute{Name: NewAttributeName(name), Value: &value}
}

// FlagAttribute builds a value-less attribute.
func FlagAttribute(name string) Attribute {
	return Attribute{Name: NewAttributeName(name)}
}

// ValueString returns the attribute value, treating an absent value as the
// empty string.
func (a Attribute) ValueString() string {
	if a.Value == nil {
		return ""
	}
	return *a.Value
}

// Equal compares two attributes. Absent values compare equal to empty
// strings, mirroring how valueless attributes round-trip through markup.
func (a Attribute) Equal(b Attribute) bool {
	return a.Name == b.Name && a.ValueString() == b.ValueString()
}

// appendQuoted renders the attribute value double-quoted, escaping unescaped
// inner quotes and preserving pre-existing backslash escapes.
func appendQuoted(sb *strings.Builder, value string) {
	sb.WriteByte('"')
	escaped := false
	for _, c := range value {
		switch {
		case c == '"' && !escaped:
			sb.WriteString(`\"`)
		case escaped:
			sb.WriteByte('\\')
			sb.WriteRune(c)
			escaped = false
		case c == '\\':
			escaped = true
		default:
			sb.WriteRune(c)
		}
	}
	if escaped {
		sb.WriteByte('\\')
	}
	sb.WriteByte('"')
}
