package form

import (
	"strings"

	"github.com/offworldlabs/retina-gui/internal/layered"
	"github.com/offworldlabs/retina-gui/internal/schema"
)

// FieldDisplay is the read-only projection of one field for rendering: the
// schema metadata plus the current value from the merged configuration. Group
// records carry only Title and mark a nested-group heading.
type FieldDisplay struct {
	Key         string
	Title       string
	Description string
	Kind        string
	Value       any
	Min         *float64
	Max         *float64
	Step        string
	ReadOnly    bool
	Group       bool
	Error       string
}

// SectionDisplay is one section ready for rendering.
type SectionDisplay struct {
	Name   string
	Title  string
	Fields []FieldDisplay
}

// SectionFields projects a section's fields with their current values from
// the merged tree. Composite leaves are split into their declared parts so
// the form edits them separately.
func SectionFields(sec *schema.Section, merged map[string]any) []FieldDisplay {
	out := make([]FieldDisplay, 0, len(sec.Fields))
	group := ""
	for i := range sec.Fields {
		f := &sec.Fields[i]
		if f.Group != group {
			group = f.Group
			if group != "" {
				out = append(out, FieldDisplay{Title: group, Group: true})
			}
		}

		fd := FieldDisplay{
			Key:         sec.FlatKey(f),
			Title:       f.Title,
			Description: f.Description,
			Kind:        f.Type.InputKind(),
			Min:         f.Min,
			Max:         f.Max,
			ReadOnly:    f.ReadOnly,
		}
		if f.Type == schema.Float {
			fd.Step = "any"
		}
		if f.Composite != "" {
			fd.Value = compositePart(sec, f, merged)
		} else if v, ok := layered.Get(merged, sec.PathKey(f)); ok {
			fd.Value = v
		}
		out = append(out, fd)
	}
	return out
}

// Sections projects every registry section against the merged tree.
func Sections(reg *schema.Registry, merged map[string]any) []SectionDisplay {
	secs := reg.Sections()
	out := make([]SectionDisplay, 0, len(secs))
	for _, s := range secs {
		out = append(out, SectionDisplay{
			Name:   s.Name,
			Title:  s.Title,
			Fields: SectionFields(s, merged),
		})
	}
	return out
}

// ApplyRaw overlays a failed submission onto display records so the operator
// sees exactly what they typed next to the per-field errors. Checkbox state
// follows presence in the raw input.
func ApplyRaw(sections []SectionDisplay, raw map[string]string, errs ErrorMap) {
	for si := range sections {
		for fi := range sections[si].Fields {
			fd := &sections[si].Fields[fi]
			if fd.Group {
				continue
			}
			if v, ok := raw[fd.Key]; ok {
				if fd.Kind == "checkbox" {
					fd.Value = true
				} else {
					fd.Value = v
				}
			} else if fd.Kind == "checkbox" && submittedSection(raw, fd.Key) {
				fd.Value = false
			}
			fd.Error = errs[fd.Key]
		}
	}
}

// submittedSection reports whether any raw key belongs to the same section as
// the given flat key.
func submittedSection(raw map[string]string, key string) bool {
	i := strings.IndexByte(key, '.')
	if i < 0 {
		return false
	}
	prefix := key[:i+1]
	for k := range raw {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func compositePart(sec *schema.Section, f *schema.Field, merged map[string]any) any {
	v, ok := layered.Get(merged, sec.Name+"."+f.Composite)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	var comp *schema.Composite
	for i := range sec.Composites {
		if sec.Composites[i].Path == f.Composite {
			comp = &sec.Composites[i]
			break
		}
	}
	if comp == nil {
		return nil
	}
	parts := strings.Split(s, comp.Sep)
	if f.Part >= len(parts) {
		return nil
	}
	return parts[f.Part]
}
