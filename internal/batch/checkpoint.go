package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint records how far a batch run got through its input.
// Processed and Failed are totals across every run of the same input.
type Checkpoint struct {
	Input         string    `json:"input"`
	Line          uint64    `json:"line"`
	LastRequestID string    `json:"last_request_id,omitempty"`
	Processed     int       `json:"processed"`
	Failed        int       `json:"failed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CheckpointStore keeps one checkpoint file. A store without a path never reads or writes.
type CheckpointStore struct {
	path string
	now  func() time.Time
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	if !enabled {
		path = ""
	}
	return &CheckpointStore{path: path, now: time.Now}
}

func (c *CheckpointStore) enabled() bool {
	return c.path != ""
}

// Load returns the stored checkpoint. ok is false when there is none.
func (c *CheckpointStore) Load() (cp Checkpoint, ok bool, err error) {
	if !c.enabled() {
		return Checkpoint{}, false, nil
	}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint %s: %w", c.path, err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", c.path, err)
	}
	return cp, true, nil
}

// Save stamps cp and replaces the stored checkpoint through a rename.
func (c *CheckpointStore) Save(cp Checkpoint) error {
	if !c.enabled() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	cp.UpdatedAt = c.now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, c.path)
}
