package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const DefaultStatePath = "~/.clerk/import-state.json"

// State tracks progress for resumable import runs.
type State struct {
	StartedAt       time.Time `json:"started_at"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	FilesProcessed  []string  `json:"files_processed"`
	// Lines holds, per file still in progress, the last line already handled.
	Lines      map[string]int `json:"lines,omitempty"`
	Inserted   int            `json:"inserted"`
	Duplicates int            `json:"duplicates"`
	Skipped    int            `json:"skipped"`
	Errors     []string       `json:"errors"`

	path string
	now  func() time.Time
}

// LoadState loads the import state from path, or starts a new one.
func LoadState(path string) (*State, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt: time.Now().UTC(),
				Lines:     make(map[string]int),
				path:      p,
				now:       time.Now,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.Lines == nil {
		s.Lines = make(map[string]int)
	}
	s.path = p
	s.now = time.Now
	return &s, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.LastProcessedAt = s.now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed returns true if the given file has been fully imported.
func (s *State) IsProcessed(path string) bool {
	for _, f := range s.FilesProcessed {
		if f == path {
			return true
		}
	}
	return false
}

// MarkProcessed records a file as fully imported.
func (s *State) MarkProcessed(path string) {
	s.FilesProcessed = append(s.FilesProcessed, path)
	delete(s.Lines, path)
}

// Resume returns the last handled line of a partially imported file.
func (s *State) Resume(path string) int {
	return s.Lines[path]
}

// Advance records line as handled for path.
func (s *State) Advance(path string, line int) {
	if s.Lines == nil {
		s.Lines = make(map[string]int)
	}
	if line > s.Lines[path] {
		s.Lines[path] = line
	}
}

// AddError records a processing error.
func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
