package cartstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type Persister interface {
	Load() (State, error)
	Save(State) error
	Clear() error
}

// FilePersister stores the state as JSON in a single file.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Path() string {
	return p.path
}

// Load returns an empty state when nothing has been saved yet.
func (p *FilePersister) Load() (State, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read cart state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("failed to decode cart state: %w", err)
	}
	return s, nil
}

func (p *FilePersister) Save(s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cart state: %w", err)
	}
	return os.Rename(tmp, p.path)
}

func (p *FilePersister) Clear() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cart state: %w", err)
	}
	return nil
}

type memoryPersister struct {
	state State
}

func (m *memoryPersister) Load() (State, error) { return m.state, nil }
func (m *memoryPersister) Save(s State) error   { m.state = s; return nil }
func (m *memoryPersister) Clear() error         { m.state = State{}; return nil }
