// Package config handles pyez configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (PYEZ_*)
//  2. Config file (<config root>/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pyeasyenv/pyez/internal/paths"
)

// Layouts.
const (
	LayoutSingle = "single"
	LayoutMulti  = "multi"
)

const (
	// DefaultProjectsRoot is the multi-layout projects root, relative to the working dir.
	DefaultProjectsRoot = ".pyeasyenv_projects"
	// DefaultManifest is the manifest file name.
	DefaultManifest = "requirements.in"
	// DefaultLockfile is the lockfile file name.
	DefaultLockfile = "requirements.txt"
	// DefaultPollInterval is how often the log channel is drained.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultHistoryRetention is how long run history is kept by `history prune`.
	DefaultHistoryRetention = 720 * time.Hour
	// DefaultUpdateChannel is the release channel pyez updates from.
	DefaultUpdateChannel = "stable"
	// DefaultUpdateInterval is how long a cached release check stays fresh.
	DefaultUpdateInterval = 24 * time.Hour
)

// Keys lists every supported configuration key.
var Keys = []string{
	"layout",
	"projects.root",
	"python.exec",
	"files.manifest",
	"files.lockfile",
	"ui.poll_interval",
	"history.enabled",
	"history.dir",
	"history.retention",
	"index.url",
	"update.check",
	"update.channel",
	"update.interval",
}

// Config holds the pyez configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	v.SetDefault("layout", LayoutMulti)
	v.SetDefault("projects.root", DefaultProjectsRoot)
	v.SetDefault("python.exec", "")
	v.SetDefault("files.manifest", DefaultManifest)
	v.SetDefault("files.lockfile", DefaultLockfile)
	v.SetDefault("ui.poll_interval", DefaultPollInterval)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dir", "")
	v.SetDefault("history.retention", DefaultHistoryRetention)
	v.SetDefault("index.url", "")
	v.SetDefault("update.check", true)
	v.SetDefault("update.channel", DefaultUpdateChannel)
	v.SetDefault("update.interval", DefaultUpdateInterval)

	if dir, err := paths.ConfigRoot(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PYEZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// IsKnownKey reports whether key is a supported configuration key.
func IsKnownKey(key string) bool {
	return slices.Contains(Keys, key)
}

// Get returns a configuration value.
func (c *Config) Get(key string) any {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// Set sets a configuration value and persists it to config.yaml.
func (c *Config) Set(key string, value any) error {
	c.v.Set(key, value)

	configFile, err := paths.ConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return err
	}

	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]any {
	return c.v.AllSettings()
}

// Layout returns the project layout, falling back to multi for unknown values.
func (c *Config) Layout() string {
	if c.GetString("layout") == LayoutSingle {
		return LayoutSingle
	}

	return LayoutMulti
}

// ProjectsRoot returns the multi-layout projects root.
func (c *Config) ProjectsRoot() string {
	return c.GetString("projects.root")
}

// PythonExec returns the configured interpreter, or "" to auto-detect.
func (c *Config) PythonExec() string {
	return c.GetString("python.exec")
}

// ManifestName returns the manifest file name.
func (c *Config) ManifestName() string {
	return c.GetString("files.manifest")
}

// LockfileName returns the lockfile file name.
func (c *Config) LockfileName() string {
	return c.GetString("files.lockfile")
}

// PollInterval returns the log channel drain interval.
func (c *Config) PollInterval() time.Duration {
	d := c.v.GetDuration("ui.poll_interval")
	if d <= 0 {
		return DefaultPollInterval
	}

	return d
}

// HistoryEnabled reports whether finished runs are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.v.GetBool("history.enabled")
}

// HistoryDir returns the run history directory override, or "".
func (c *Config) HistoryDir() string {
	return c.GetString("history.dir")
}

// HistoryRetention returns the default prune age.
func (c *Config) HistoryRetention() time.Duration {
	d := c.v.GetDuration("history.retention")
	if d <= 0 {
		return DefaultHistoryRetention
	}

	return d
}

// IndexURL returns the private package index URL, or "".
func (c *Config) IndexURL() string {
	return c.GetString("index.url")
}

// UpdateCheck reports whether pyez looks for new releases of itself.
func (c *Config) UpdateCheck() bool {
	return c.v.GetBool("update.check")
}

// UpdateChannel returns the release channel name.
func (c *Config) UpdateChannel() string {
	return c.GetString("update.channel")
}

// UpdateInterval returns how long a cached release check stays fresh.
func (c *Config) UpdateInterval() time.Duration {
	d := c.v.GetDuration("update.interval")
	if d <= 0 {
		return DefaultUpdateInterval
	}

	return d
}
