// Package state persists the last-known-applied resource snapshot between
// runs. Writes go through a temp-file-then-rename so a crash mid-write never
// corrupts previously recorded entries.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/stackform-io/stackform/internal/ir"
)

const storeVersion = 1

type document struct {
	Version   int                          `json:"version"`
	Serial    int                          `json:"serial"`
	Lineage   string                       `json:"lineage"`
	UpdatedAt time.Time                    `json:"updatedAt"`
	Resources map[string]*ir.ResourceState `json:"resources"`
}

// Store is the on-disk state store. It is not safe for concurrent use; a
// run holds the lock file (see lock.go) for its duration.
type Store struct {
	path string
	doc  *document
}

// Open loads the store at path, or initializes an empty one with a fresh
// lineage if no file exists yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.doc = &document{
			Version:   storeVersion,
			Lineage:   uuid.NewString(),
			Resources: make(map[string]*ir.ResourceState),
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if doc.Resources == nil {
		doc.Resources = make(map[string]*ir.ResourceState)
	}
	s.doc = &doc
	return s, nil
}

// Snapshot returns a copy of the recorded resource map. Mutating the copy
// does not affect the store.
func (s *Store) Snapshot() ir.Snapshot {
	snap := make(ir.Snapshot, len(s.doc.Resources))
	for name, rs := range s.doc.Resources {
		cp := *rs
		if rs.Outputs != nil {
			cp.Outputs = make(map[string]string, len(rs.Outputs))
			for k, v := range rs.Outputs {
				cp.Outputs[k] = v
			}
		}
		cp.Dependencies = append([]string(nil), rs.Dependencies...)
		snap[name] = &cp
	}
	return snap
}

// Record upserts one entry and flushes. Called by the executor immediately
// after each operation resolves, success or terminal failure.
func (s *Store) Record(name string, rs *ir.ResourceState) error {
	s.doc.Resources[name] = rs
	return s.flush()
}

// Remove drops one entry and flushes.
func (s *Store) Remove(name string) error {
	delete(s.doc.Resources, name)
	return s.flush()
}

// Serial returns the number of completed runs against this lineage.
func (s *Store) Serial() int { return s.doc.Serial }

// Lineage identifies the store across its lifetime.
func (s *Store) Lineage() string { return s.doc.Lineage }

// IncrementSerial marks a run as completed.
func (s *Store) IncrementSerial() error {
	s.doc.Serial++
	return s.flush()
}

// Len returns the number of recorded entries.
func (s *Store) Len() int { return len(s.doc.Resources) }

func (s *Store) flush() error {
	s.doc.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	raw = append(raw, '\n')

	// Write-new-then-rename keeps the previous file intact until the new
	// one is fully on disk.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
