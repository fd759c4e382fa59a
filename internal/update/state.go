package update

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pyeasyenv/pyez/internal/paths"
)

// State is the last release check, cached in the pyez state directory so the
// CLI asks GitHub at most once per update.interval.
type State struct {
	CheckedAt time.Time `json:"checkedAt"`
	Channel   Channel   `json:"channel,omitempty"`
	Current   string    `json:"current,omitempty"`
	Latest    string    `json:"latest,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// LoadState reads the cache. A missing or unreadable JSON file is an empty State.
func LoadState() (*State, error) {
	path, err := paths.UpdateStateFile()
	if err != nil {
		return &State{}, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return &State{}, nil
	case err != nil:
		return nil, fmt.Errorf("read update state: %w", err)
	}

	var s State
	if json.Unmarshal(data, &s) != nil {
		return &State{}, nil
	}

	return &s, nil
}

// Save writes the cache through a temp file and a rename.
func (s *State) Save() error {
	path, err := paths.UpdateStateFile()
	if err != nil {
		return fmt.Errorf("resolve update state path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode update state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write update state: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace update state: %w", err)
	}

	return nil
}

// Stale reports whether the cache cannot answer for settings at now: it was
// never filled, it is older than the interval, or it was filled for another
// channel.
func (s *State) Stale(settings Settings, now time.Time) bool {
	if s.CheckedAt.IsZero() || s.Channel != settings.channel() {
		return true
	}

	return now.Sub(s.CheckedAt) >= settings.interval()
}

// Newer reports whether the cached release is ahead of current. Unlike a live
// check, a dev build never sees a cached release as newer.
func (s *State) Newer(current string) bool {
	if s.Latest == "" || current == "" || current == "dev" {
		return false
	}

	return newer(s.Latest, current)
}

// Record stores a fresh check.
func (s *State) Record(info *Info, now time.Time) {
	s.CheckedAt = now
	s.Channel = info.Channel
	s.Current = info.CurrentVersion
	s.Latest = info.LatestVersion
	s.URL = info.ReleaseURL
}
