// Package prefs persists the user's link-filtering toggles between sessions.
//
// Preferences are stored in a TOML file (default ~/.wikichain/prefs.toml).
// A toggle that was never saved stays nil so callers can fall back to the
// configured default.
//
// TOML format:
//
//	include_infobox = true
//	include_navbox = false
package prefs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/latebit/wikichain/internal/config"
)

type values struct {
	IncludeInfobox *bool `toml:"include_infobox,omitempty"`
	IncludeNavbox  *bool `toml:"include_navbox,omitempty"`
}

// Store manages the persisted link-filtering preferences.
type Store struct {
	path string
	v    values
}

// DefaultPath returns the default preferences file path (~/.wikichain/prefs.toml).
func DefaultPath() string {
	return filepath.Join(config.Dir(), "prefs.toml")
}

// Load reads a preferences file from disk. Returns an empty store if the file
// does not exist yet. Returns an error if path is empty.
func Load(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("prefs file path is empty (could not determine home directory)")
	}
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read prefs file %q: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if _, err := toml.Decode(string(data), &s.v); err != nil {
		return nil, fmt.Errorf("parse prefs file %q: %w", path, err)
	}
	return s, nil
}

// Apply overwrites infobox and navbox with any saved preference.
func (s *Store) Apply(infobox, navbox *bool) {
	if s.v.IncludeInfobox != nil {
		*infobox = *s.v.IncludeInfobox
	}
	if s.v.IncludeNavbox != nil {
		*navbox = *s.v.IncludeNavbox
	}
}

// Save stores both toggles and writes to disk.
func (s *Store) Save(infobox, navbox bool) error {
	s.v.IncludeInfobox = &infobox
	s.v.IncludeNavbox = &navbox
	return s.save()
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// save writes to a temporary file next to the target and renames it into
// place, so a crash never leaves a truncated file behind.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create prefs directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("create prefs file: %w", err)
	}
	tmp := f.Name()
	if err := toml.NewEncoder(f).Encode(s.v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write prefs file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write prefs file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace prefs file: %w", err)
	}
	return nil
}
