// Package checkpoint persists per-table migration progress so an interrupted run can resume.
package checkpoint

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/louiss0/access-sharepoint-migrator/access"
)

// FormatVersion is written into every state file.
const FormatVersion = 1

// TableState is the progress of one table.
type TableState struct {
	SchemaHash   string    `yaml:"schema_hash"`
	ListID       string    `yaml:"list_id,omitempty"`
	RowsMigrated int       `yaml:"rows_migrated"`
	Completed    bool      `yaml:"completed"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

type state struct {
	Version int                   `yaml:"version"`
	Tables  map[string]TableState `yaml:"tables"`
}

// Store is a YAML state file guarded for concurrent table workers.
// A Store with an empty path keeps state in memory only.
type Store struct {
	mu    sync.Mutex
	path  string
	state state
}

// SchemaHash fingerprints the columns and keys of table. A changed hash invalidates saved progress.
func SchemaHash(table access.Table) string {
	lines := lo.Map(table.Columns, func(c access.Column, _ int) string {
		return fmt.Sprintf("%s:%s:%t", c.Name, c.Type, c.Nullable)
	})
	lines = append(lines, "pk="+strings.Join(table.PrimaryKeys, ","))

	hash := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("%x", hash)
}

// Open loads the state file at path. A missing file is an empty state.
func Open(path string) (*Store, error) {
	s := &Store{path: path, state: state{Version: FormatVersion, Tables: map[string]TableState{}}}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	if s.state.Version != FormatVersion {
		return nil, fmt.Errorf("checkpoint %s has version %d, expected %d", path, s.state.Version, FormatVersion)
	}
	if s.state.Tables == nil {
		s.state.Tables = map[string]TableState{}
	}

	return s, nil
}

// Path returns the backing file, "" for an in-memory store.
func (s *Store) Path() string { return s.path }

// Get returns the saved state of table.
func (s *Store) Get(table string) (TableState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.state.Tables[table]
	return ts, ok
}

// Resume returns the saved state of table when it was recorded for the same schema;
// otherwise the stale entry is dropped and a fresh state is returned.
func (s *Store) Resume(table, schemaHash string) TableState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.state.Tables[table]
	if ok && ts.SchemaHash == schemaHash {
		return ts
	}
	delete(s.state.Tables, table)
	return TableState{SchemaHash: schemaHash}
}

// Save records ts for table and rewrites the state file.
func (s *Store) Save(table string, ts TableState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts.UpdatedAt = time.Now().UTC()
	s.state.Tables[table] = ts

	return s.flush()
}

// flush writes through a temporary file so a crash never leaves a truncated state.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}
