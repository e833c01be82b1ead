package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JsonlStorage appends one snapshot per line to a file.
// The file is opened on the first write and stays open until Close.
type JsonlStorage struct {
	path string

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) open() error {
	if s.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	s.file = file
	s.enc = json.NewEncoder(file)
	return nil
}

// WriteSnapshot encodes the snapshot as one JSON line.
func (s *JsonlStorage) WriteSnapshot(_ context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}
	if err := s.enc.Encode(snapshot); err != nil {
		return fmt.Errorf("write snapshot %s: %w", snapshot.RequestID, err)
	}
	return nil
}

func (s *JsonlStorage) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		_ = s.file.Close()
		s.file, s.enc = nil, nil
	}
}
