// Package sshkeys manages the authorized_keys file consumed by the device's
// sshd. Writes are atomic and world-readable so sshd can read the file for
// any user.
package sshkeys

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/offworldlabs/retina-gui/internal/fsutil"
)

// maxKeyLength bounds a submitted key line. RSA 4096 keys run ~750
// characters; the headroom covers long comments.
const maxKeyLength = 2000

// validKeyTypes is the exact-match allowlist of accepted key types; exact
// match prevents prefix tricks.
var validKeyTypes = map[string]bool{
	"ssh-rsa":                            true,
	"ssh-ed25519":                        true,
	"ssh-dss":                            true,
	"ecdsa-sha2-nistp256":                true,
	"ecdsa-sha2-nistp384":                true,
	"ecdsa-sha2-nistp521":                true,
	"sk-ssh-ed25519@openssh.com":         true,
	"sk-ecdsa-sha2-nistp256@openssh.com": true,
}

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)

// shellChars are rejected anywhere in a key line.
const shellChars = "|;&$`(){}<>!#"

// IsValid reports whether key is an acceptable SSH public key line:
// no newlines (blocks injecting extra keys), bounded length, no shell
// metacharacters, an allowlisted type and a base64 payload.
func IsValid(key string) bool {
	if strings.ContainsAny(key, "\n\r") {
		return false
	}
	if len(key) > maxKeyLength {
		return false
	}
	if strings.ContainsAny(key, shellChars) {
		return false
	}

	parts := strings.Fields(key)
	if len(parts) < 2 {
		return false
	}
	if !validKeyTypes[parts[0]] {
		return false
	}
	return base64Pattern.MatchString(parts[1])
}

// Store edits one authorized_keys file.
type Store struct {
	path string
}

// NewStore creates a store over the authorized_keys path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the authorized_keys file path.
func (s *Store) Path() string { return s.path }

// List returns the current key lines, blank lines dropped. A missing file is
// an empty list.
func (s *Store) List() ([]string, error) {
	data, err := fsutil.ReadFileScoped(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			keys = append(keys, line)
		}
	}
	return keys, nil
}

// Add appends a key if not already present. The caller validates first.
func (s *Store) Add(key string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.write(append(keys, key))
}

// Remove deletes a key line if present.
func (s *Store) Remove(key string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}
	kept := keys[:0]
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	return s.write(kept)
}

func (s *Store) write(keys []string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	var content string
	if len(keys) > 0 {
		content = strings.Join(keys, "\n") + "\n"
	}
	return renameio.WriteFile(s.path, []byte(content), 0o644)
}
