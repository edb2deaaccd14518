// Package checkpoint persists the progress of the squaring loop so that a
// run lasting months survives crashes and reboots.
//
// A save never damages the previous record: the new record is written to a
// temporary file in the same directory, synced, and renamed over the old one.
// There is a single writer per checkpoint file; nothing here locks against a
// second process.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"TimeLock/puzzle"
)

var (
	// ErrCorrupt means a record exists but cannot be trusted. Starting over
	// would throw away real elapsed work, so callers must stop.
	ErrCorrupt = errors.New("corrupt checkpoint")
	// ErrStorage means the file system failed. The last good record is intact.
	ErrStorage = errors.New("checkpoint storage failure")
)

// State tells whether Load found a saved record.
type State int

const (
	Fresh State = iota
	Resumed
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Resumed:
		return "resumed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Store is a file-backed checkpoint for one puzzle.
type Store struct {
	path   string
	params puzzle.Parameters
}

func NewStore(path string, params puzzle.Parameters) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("checkpoint path is required")
	}
	return &Store{path: path, params: params}, nil
}

func (s *Store) Path() string { return s.path }

// Load returns the saved record, or the initial record if none exists yet.
func (s *Store) Load() (Record, State, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Initial(), Fresh, nil
		}
		return Record{}, Fresh, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer f.Close()

	var w wire
	if err := decodeStrict(f, &w); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return Record{}, Fresh, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return Record{}, Fresh, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	r, err := w.toRecord(s.params)
	if err != nil {
		return Record{}, Fresh, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return r, Resumed, nil
}

// Save atomically replaces the saved record.
func (s *Store) Save(r Record) error {
	if err := r.Validate(s.params); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}
	data, err := json.MarshalIndent(r.toWire(s.params), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomicDurable(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func decodeStrict(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
