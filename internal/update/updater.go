// Package update keeps the pyez binary current. Releases come from GitHub,
// are checksum-verified, and replace the running executable. The update.*
// configuration keys choose whether to look, how often, and which release
// channel counts.
package update

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	selfupdate "github.com/creativeprojects/go-selfupdate"

	"github.com/pyeasyenv/pyez/internal/config"
)

const repoSlug = "pyeasyenv/pyez"

// DisableEnv turns every release check off when set to 1 or true, whatever
// update.check says.
const DisableEnv = "PYEZ_UPDATE_DISABLED"

// Channel selects which releases count as updates.
type Channel string

const (
	ChannelStable     Channel = "stable"
	ChannelPrerelease Channel = "prerelease"
)

// ParseChannel validates a channel name. Empty means stable.
func ParseChannel(name string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(name))); c {
	case "":
		return ChannelStable, nil
	case ChannelStable, ChannelPrerelease:
		return c, nil
	default:
		return "", fmt.Errorf("unknown update channel %q (use %s or %s)", name, ChannelStable, ChannelPrerelease)
	}
}

// Settings controls release checks.
type Settings struct {
	Check    bool
	Channel  Channel
	Interval time.Duration
}

// SettingsFrom reads the update.* keys. An unknown channel falls back to stable.
func SettingsFrom(cfg *config.Config) Settings {
	channel, err := ParseChannel(cfg.UpdateChannel())
	if err != nil {
		channel = ChannelStable
	}

	return Settings{
		Check:    cfg.UpdateCheck(),
		Channel:  channel,
		Interval: cfg.UpdateInterval(),
	}
}

// Disabled returns why release checks are off, or "" when they are on.
func (s Settings) Disabled() string {
	if v := os.Getenv(DisableEnv); v == "1" || strings.EqualFold(v, "true") {
		return DisableEnv + " is set"
	}

	if !s.Check {
		return "update.check is false"
	}

	return ""
}

func (s Settings) channel() Channel {
	if s.Channel == "" {
		return ChannelStable
	}

	return s.Channel
}

func (s Settings) interval() time.Duration {
	if s.Interval <= 0 {
		return config.DefaultUpdateInterval
	}

	return s.Interval
}

// Info is the outcome of asking GitHub for the newest release.
type Info struct {
	CurrentVersion  string  `json:"currentVersion"`
	LatestVersion   string  `json:"latestVersion"`
	UpdateAvailable bool    `json:"updateAvailable"`
	Channel         Channel `json:"channel"`
	ReleaseURL      string  `json:"releaseURL,omitempty"`

	Release *selfupdate.Release `json:"-"`
}

// Updater finds and installs pyez releases.
type Updater struct {
	source  *selfupdate.Updater
	repo    selfupdate.Repository
	channel Channel
}

// NewUpdater builds an Updater for the channel in s. GITHUB_TOKEN, when set,
// lifts the anonymous API rate limit.
func NewUpdater(s Settings) (*Updater, error) {
	gh, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{APIToken: os.Getenv("GITHUB_TOKEN")})
	if err != nil {
		return nil, fmt.Errorf("create github source: %w", err)
	}

	return newUpdater(gh, s.channel())
}

func newUpdater(src selfupdate.Source, channel Channel) (*Updater, error) {
	su, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     src,
		Validator:  &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Prerelease: channel == ChannelPrerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("create updater: %w", err)
	}

	return &Updater{source: su, repo: selfupdate.ParseSlug(repoSlug), channel: channel}, nil
}

// CheckLatest compares current with the newest release on the channel. A
// current version that is not semver, such as a dev build, is always behind.
func (u *Updater) CheckLatest(ctx context.Context, current string) (*Info, error) {
	rel, found, err := u.source.DetectLatest(ctx, u.repo)
	if err != nil {
		return nil, fmt.Errorf("detect latest release: %w", err)
	}

	info := &Info{CurrentVersion: current, LatestVersion: current, Channel: u.channel}
	if !found {
		return info, nil
	}

	info.LatestVersion = rel.Version()
	info.ReleaseURL = rel.URL
	info.Release = rel
	info.UpdateAvailable = newer(rel.Version(), current)

	return info, nil
}

// Apply replaces the running binary with rel.
func (u *Updater) Apply(ctx context.Context, rel *selfupdate.Release) error {
	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("find executable path: %w", err)
	}

	if err := u.source.UpdateTo(ctx, rel, exe); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	return nil
}

// ApplyVersion installs the release tagged version.
func (u *Updater) ApplyVersion(ctx context.Context, version string) (*selfupdate.Release, error) {
	rel, found, err := u.source.DetectVersion(ctx, u.repo, version)
	if err != nil {
		return nil, fmt.Errorf("detect version %s: %w", version, err)
	}

	if !found {
		return nil, fmt.Errorf("version %s not found", version)
	}

	if err := u.Apply(ctx, rel); err != nil {
		return nil, err
	}

	return rel, nil
}

// newer reports whether latest is ahead of current. An unparseable current
// counts as behind and an unparseable latest never wins.
func newer(latest, current string) bool {
	l, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}

	c, err := semver.NewVersion(current)
	if err != nil {
		return true
	}

	return l.GreaterThan(c)
}
