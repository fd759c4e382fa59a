// Package paths resolves the per-user directories pyez reads and writes.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "pyez"

func configRoot() (string, error) {
	return rootWithFallback("XDG_CONFIG_HOME", os.UserConfigDir, ".config")
}

func stateRoot() (string, error) {
	noOSDefault := func() (string, error) {
		return "", fmt.Errorf("no OS state directory function")
	}

	return rootWithFallback("XDG_STATE_HOME", noOSDefault, filepath.Join(".local", "state"))
}

func rootWithFallback(xdgEnv string, osFn func() (string, error), fallbackDir string) (string, error) {
	if xdg := os.Getenv(xdgEnv); xdg != "" && filepath.IsAbs(xdg) {
		return filepath.Join(xdg, appName), nil
	}

	root, err := osFn()
	if err == nil && root != "" {
		return filepath.Join(root, appName), nil
	}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil && home != "" {
		return filepath.Join(home, fallbackDir, appName), nil
	}

	if err != nil {
		return "", err
	}

	return "", fmt.Errorf("resolve user home directory")
}

func under(rootFn func() (string, error), elem ...string) (string, error) {
	root, err := rootFn()
	if err != nil {
		return "", err
	}

	return filepath.Join(append([]string{root}, elem...)...), nil
}

// ConfigRoot returns the user config root directory.
func ConfigRoot() (string, error) {
	return configRoot()
}

// StateRoot returns the user state root directory.
func StateRoot() (string, error) {
	return stateRoot()
}

// ConfigFile returns the path of the user config.yaml.
func ConfigFile() (string, error) {
	return under(configRoot, "config.yaml")
}

// CollaboratorsDir returns the directory holding user collaborator overrides.
func CollaboratorsDir() (string, error) {
	return under(configRoot, "collaborators")
}

// CredentialsFile returns the index token fallback file path.
func CredentialsFile() (string, error) {
	return under(configRoot, "index-token")
}

// LogsDir returns the default log directory.
func LogsDir() (string, error) {
	return under(stateRoot, "logs")
}

// DefaultLogFile returns the default log file path.
func DefaultLogFile() (string, error) {
	return under(stateRoot, "logs", "pyez.log")
}

// UpdateStateFile returns the update state file path.
func UpdateStateFile() (string, error) {
	return under(stateRoot, "update-check.json")
}

// HistoryDir returns the default run history directory.
func HistoryDir() (string, error) {
	return under(stateRoot, "history")
}
