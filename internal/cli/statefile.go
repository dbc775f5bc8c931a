package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wolfman30/astracare/internal/agent"
)

// loadState reads the session file. A missing file is an empty session.
func loadState(path string) (agent.State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return agent.State{}, nil
	}
	if err != nil {
		return agent.State{}, fmt.Errorf("read state: %w", err)
	}
	var s agent.State
	if err := json.Unmarshal(data, &s); err != nil {
		return agent.State{}, fmt.Errorf("decode state %s: %w", path, err)
	}
	return s, nil
}

// saveState replaces the session file atomically.
func saveState(path string, s agent.State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".concierge-*.json")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
