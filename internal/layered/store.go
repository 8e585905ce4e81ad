// Package layered reconciles the two halves of the retina-node configuration:
// the merged (effective) tree produced by the external config-merger, and the
// user override tree this console owns. Overrides mask merged values; saves
// persist only true deltas so untouched fields keep tracking future defaults.
package layered

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/offworldlabs/retina-gui/internal/fsutil"
)

// ErrMalformed marks a backing file that exists but cannot be parsed. This is
// a fatal configuration error, distinct from absence (which is normal before
// first deployment and yields an empty tree).
var ErrMalformed = errors.New("malformed config file")

// Store reads the merged configuration and owns the override file. Backing
// files are re-read on every access; saves are serialized so concurrent
// read-modify-write cycles cannot interleave.
type Store struct {
	mergedPath   string
	overridePath string

	mu sync.Mutex
}

// NewStore creates a store over the two backing file paths.
func NewStore(mergedPath, overridePath string) *Store {
	return &Store{
		mergedPath:   mergedPath,
		overridePath: overridePath,
	}
}

// MergedPath returns the path of the merged configuration file.
func (s *Store) MergedPath() string { return s.mergedPath }

// OverridePath returns the path of the user override file.
func (s *Store) OverridePath() string { return s.overridePath }

// LoadMerged reads the merged configuration tree. A missing file means "not
// yet deployed" and returns an empty tree.
func (s *Store) LoadMerged() (map[string]any, error) {
	return loadTree(s.mergedPath)
}

// LoadOverrides reads the user override tree. A missing file returns an
// empty tree.
func (s *Store) LoadOverrides() (map[string]any, error) {
	return loadTree(s.overridePath)
}

// SaveOverrides persists the full override tree atomically: temp file in the
// destination directory, permissions set, rename last. The file is written
// world-readable because the privileged config-merger reads it.
func (s *Store) SaveOverrides(tree map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveOverridesLocked(tree)
}

func (s *Store) saveOverridesLocked(tree map[string]any) error {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encoding overrides: %w", err)
	}
	dir := filepath.Dir(s.overridePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := renameio.WriteFile(s.overridePath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.overridePath, err)
	}
	return nil
}

// Get performs a safe nested lookup of a dotted path. The boolean result
// distinguishes "absent" from "present but null": a present nil value
// returns (nil, true).
func Get(tree map[string]any, dotted string) (any, bool) {
	node := any(tree)
	parts := strings.Split(dotted, ".")
	for _, p := range parts {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func loadTree(path string) (map[string]any, error) {
	data, err := fsutil.ReadFileScoped(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}
