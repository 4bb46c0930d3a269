// Package state persists the set of product ids already loaded downstream.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// State is the msgpack-encoded ingest progress.
type State struct {
	IDs       []int64   `msgpack:"ids"`
	UpdatedAt time.Time `msgpack:"updated_at"`

	index map[int64]struct{}
}

// Load reads the state file at path. A missing file yields an empty state.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if errors.Is(err, fs.ErrNotExist) {
		return &State{index: map[int64]struct{}{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	var st State
	if err := msgpack.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", path, err)
	}
	st.index = make(map[int64]struct{}, len(st.IDs))
	for _, id := range st.IDs {
		st.index[id] = struct{}{}
	}
	return &st, nil
}

// Has reports whether id was recorded.
func (s *State) Has(id int64) bool {
	_, ok := s.index[id]
	return ok
}

// Add records ids and returns how many were new.
func (s *State) Add(ids ...int64) int {
	if s.index == nil {
		s.index = map[int64]struct{}{}
	}
	added := 0
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			continue
		}
		s.index[id] = struct{}{}
		s.IDs = append(s.IDs, id)
		added++
	}
	return added
}

// Len returns the number of recorded ids.
func (s *State) Len() int { return len(s.index) }

// Save writes the state to path through a temp file and rename.
func (s *State) Save(path string, now time.Time) error {
	slices.Sort(s.IDs)
	s.UpdatedAt = now.UTC()
	data, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state %s: %w", path, err)
	}
	return nil
}
