package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// SettingsFile is the per-project settings file name.
const SettingsFile = "project.toml"

// Settings are stored in project.toml inside each project directory.
type Settings struct {
	// Source is the scan target, relative to the directory pyez runs in.
	Source    string    `toml:"source"`
	CreatedAt time.Time `toml:"created_at"`
}

func readSettings(dir string) (Settings, error) {
	s := Settings{Source: "."}

	data, err := os.ReadFile(filepath.Join(dir, SettingsFile))
	if isNotExist(err) {
		return s, nil
	}

	if err != nil {
		return s, fmt.Errorf("read %s: %w", SettingsFile, err)
	}

	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", SettingsFile, err)
	}

	if s.Source == "" {
		s.Source = "."
	}

	return s, nil
}

func writeSettings(dir string, s Settings) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", SettingsFile, err)
	}

	return writeAtomic(filepath.Join(dir, SettingsFile), data)
}
