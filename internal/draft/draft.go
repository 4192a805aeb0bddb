// Package draft holds a writer's in-progress capsule on the client side and
// decides when it should be saved.
//
// State is plain data with explicit Marshal/Unmarshal; callers own where it
// lives. Autosaver models the debounced save as a pending deadline so the
// caller's loop decides when to flush.
package draft

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
)

// FileName is the default draft file inside the Katha data directory.
const FileName = "draft.json"

// State is the recoverable draft of one capsule.
type State struct {
	// CapsuleID is the server-side draft row, empty until the first save.
	CapsuleID   string               `json:"capsule_id,omitempty"`
	RawText     string               `json:"raw_text"`
	ChildID     *string              `json:"child_id,omitempty"`
	Policy      capsule.UnlockPolicy `json:"policy"`
	IsPrivate   bool                 `json:"is_private,omitempty"`
	LastSavedAt *time.Time           `json:"last_saved_at,omitempty"`
}

// Empty reports whether there is nothing worth keeping.
func (s *State) Empty() bool {
	return s == nil || (s.CapsuleID == "" && s.RawText == "")
}

// Marshal encodes the state.
func (s *State) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Unmarshal decodes a state produced by Marshal.
func Unmarshal(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &s, nil
}

// Load reads the draft at path. A missing file is an empty draft.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Save writes the draft to path atomically.
func Save(path string, s *State) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".draft-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Clear removes the draft at path. A missing file is not an error.
func Clear(path string) error {
	err := os.Remove(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
