package layered

import (
	"math"
	"strconv"
	"strings"

	"github.com/offworldlabs/retina-gui/internal/schema"
)

// floatTolerance bounds the absolute difference under which two floats count
// as equal. YAML round-trips and form re-parsing can wobble the last bits.
const floatTolerance = 1e-9

// SaveSection writes a validated section into the override file, persisting
// only fields whose new value differs from the current merged view. Unchanged
// fields are not written, so they keep tracking the merged default; stale
// overrides from earlier saves are left in place. The result deep-merges into
// the existing override tree — sections not submitted are untouched.
//
// typed is keyed by flat field name as returned by form validation. The
// returned tree is the override tree that was persisted.
func (s *Store) SaveSection(sec *schema.Section, typed map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := loadTree(s.mergedPath)
	if err != nil {
		return nil, err
	}
	overrides, err := loadTree(s.overridePath)
	if err != nil {
		return nil, err
	}

	for i := range sec.Fields {
		f := &sec.Fields[i]
		if f.Composite != "" {
			continue
		}
		v, ok := typed[f.Name]
		if !ok {
			continue
		}
		writeDelta(overrides, merged, sec.PathKey(f), v)
	}

	for _, c := range sec.Composites {
		joined, ok := joinComposite(c, typed)
		if !ok {
			continue
		}
		writeDelta(overrides, merged, sec.Name+"."+c.Path, joined)
	}

	if err := s.saveOverridesLocked(overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

// writeDelta sets path in overrides only when value differs from the merged
// view (or the merged view has no value at all).
func writeDelta(overrides, merged map[string]any, path string, value any) {
	current, present := Get(merged, path)
	if present && !valuesDiffer(value, current) {
		return
	}
	setPath(overrides, path, value)
}

// joinComposite recomposes a stored leaf from its validated parts. All parts
// must be present; a partial submission leaves the leaf alone.
func joinComposite(c schema.Composite, typed map[string]any) (string, bool) {
	parts := make([]string, 0, len(c.Parts))
	for _, name := range c.Parts {
		v, ok := typed[name]
		if !ok {
			return "", false
		}
		parts = append(parts, formatScalar(v))
	}
	return strings.Join(parts, c.Sep), true
}

// valuesDiffer implements value-aware inequality: floats compare within
// floatTolerance, numeric kinds compare cross-kind, and a present value never
// equals an absent one (handled by the caller).
func valuesDiffer(a, b any) bool {
	if a == nil || b == nil {
		return a != b
	}
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return math.Abs(af-bf) > floatTolerance
	}
	return a != b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func setPath(tree map[string]any, dotted string, value any) {
	parts := strings.Split(dotted, ".")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[p] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
}

func formatScalar(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	default:
		return ""
	}
}
