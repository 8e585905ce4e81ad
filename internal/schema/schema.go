// Package schema declares the configurable sections of a retina-node and the
// constraints on every field. The registry is a static table built once at
// init; nothing mutates it at runtime.
package schema

import "strings"

// Type is the semantic type of a configuration field. It determines both the
// form decoding rule and the validation rule.
type Type int

const (
	String Type = iota
	Int
	Float
	Bool
)

// InputKind returns the HTML input kind used to render a field of this type.
func (t Type) InputKind() string {
	switch t {
	case Bool:
		return "checkbox"
	case Int, Float:
		return "number"
	default:
		return "text"
	}
}

// Field is one scalar configurable item within a section.
//
// Name is the flat form name (unique within the section); Path is the dotted
// path of the stored value relative to the section. For composite parts
// (fields edited separately but stored joined), Composite names the stored
// leaf and Part gives the position within the joined string.
type Field struct {
	Name        string
	Path        []string
	Type        Type
	Title       string
	Description string
	ReadOnly    bool
	Group       string

	// Bounds. Min/Max are inclusive; ExclusiveMin is "must be > x".
	// Only meaningful for Int and Float fields. A field never carries both
	// Min and ExclusiveMin.
	Min          *float64
	Max          *float64
	ExclusiveMin *float64

	Composite string
	Part      int
}

// DottedPath returns the field's stored path relative to its section
// ("device.gainReduction"). Composite parts have no stored path of their own;
// for them this returns the flat name.
func (f *Field) DottedPath() string {
	if f.Composite != "" {
		return f.Name
	}
	return strings.Join(f.Path, ".")
}

// Numeric reports whether the field holds a number.
func (f *Field) Numeric() bool {
	return f.Type == Int || f.Type == Float
}

// Composite describes a stored leaf assembled from several form fields after
// validation (e.g. tar1090's "host,port,protocol" source string).
type Composite struct {
	Path  string
	Parts []string
	Sep   string
}

// Section is a named group of fields sharing a top-level key in the
// configuration tree.
type Section struct {
	Name       string
	Title      string
	Fields     []Field
	Composites []Composite

	byName map[string]*Field
}

// Field returns the field with the given flat name.
func (s *Section) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// FlatKey returns the fully qualified form key for a field of this section
// ("capture.device_gainReduction").
func (s *Section) FlatKey(f *Field) string {
	return s.Name + "." + f.Name
}

// PathKey returns the fully qualified dotted path for a field of this section
// ("capture.device.gainReduction").
func (s *Section) PathKey(f *Field) string {
	return s.Name + "." + f.DottedPath()
}
