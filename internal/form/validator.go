package form

import (
	"sort"
	"strconv"

	"github.com/offworldlabs/retina-gui/internal/schema"
)

// ErrorMap collects validation failures keyed by the fully qualified form key
// ("capture.device_gainReduction"). It is rebuilt per validation attempt and
// never persisted.
type ErrorMap map[string]string

// Keys returns the error keys in stable order.
func (m ErrorMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateSection checks the decoded values of one submitted section against
// its schema. values is keyed by flat field name relative to the section.
//
// Before the type and bounds checks run, checkbox completion injects an
// explicit false for every boolean field absent from the input: unchecked
// HTML checkboxes are simply not submitted, and when the section was
// submitted at all their absence always means false, never "unchanged".
//
// On success the returned map holds every submitted field with its final
// type. On any violation the map is nil and the ErrorMap holds one message
// per offending field, each naming the concrete violated bound.
func ValidateSection(sec *schema.Section, values map[string]any) (map[string]any, ErrorMap) {
	errs := make(ErrorMap)
	typed := make(map[string]any, len(values))

	for i := range sec.Fields {
		f := &sec.Fields[i]
		v, present := values[f.Name]
		if !present {
			if f.Type == schema.Bool {
				typed[f.Name] = false
			}
			continue
		}

		key := sec.FlatKey(f)
		switch f.Type {
		case schema.Bool:
			b, ok := v.(bool)
			if !ok {
				errs[key] = "must be a boolean"
				continue
			}
			typed[f.Name] = b
		case schema.Int:
			n, ok := v.(int)
			if !ok {
				errs[key] = "must be an integer"
				continue
			}
			if msg := checkBounds(f, float64(n)); msg != "" {
				errs[key] = msg
				continue
			}
			typed[f.Name] = n
		case schema.Float:
			var x float64
			switch n := v.(type) {
			case float64:
				x = n
			case int:
				x = float64(n)
			default:
				errs[key] = "must be a number"
				continue
			}
			if msg := checkBounds(f, x); msg != "" {
				errs[key] = msg
				continue
			}
			typed[f.Name] = x
		default:
			typed[f.Name] = stringify(v)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return typed, errs
}

func checkBounds(f *schema.Field, x float64) string {
	if f.ExclusiveMin != nil && x <= *f.ExclusiveMin {
		return "must be greater than " + formatBound(*f.ExclusiveMin)
	}
	if f.Min != nil && x < *f.Min {
		return "must be greater than or equal to " + formatBound(*f.Min)
	}
	if f.Max != nil && x > *f.Max {
		return "must be less than or equal to " + formatBound(*f.Max)
	}
	return ""
}

func formatBound(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// stringify renders a decoded scalar back to its string form for string
// fields: a name like "42" decodes numeric but must be stored as text.
func stringify(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}
