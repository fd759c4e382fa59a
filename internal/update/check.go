package update

import (
	"context"
	"time"
)

// Report is what pyez knows about its own freshness.
type Report struct {
	Current   string    `json:"current"`
	Latest    string    `json:"latest,omitempty"`
	Channel   Channel   `json:"channel"`
	Newer     bool      `json:"updateAvailable"`
	URL       string    `json:"releaseURL,omitempty"`
	CheckedAt time.Time `json:"checkedAt,omitzero"`
	// Cached is set when the answer came from the state file.
	Cached bool `json:"cached"`
	// Disabled holds the reason checks are off, if they are.
	Disabled string `json:"disabled,omitempty"`
}

// Checker answers from the cache while it is fresh and from GitHub otherwise.
type Checker struct {
	Settings Settings
	Current  string
	// Latest asks for the newest release. Nil uses a GitHub Updater.
	Latest func(ctx context.Context) (*Info, error)
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewChecker returns a Checker for the running version.
func NewChecker(settings Settings, current string) *Checker {
	return &Checker{Settings: settings, Current: current}
}

// Check returns the cached report when it is fresh, or fetches, records and
// returns a new one. refresh skips the cache.
func (c *Checker) Check(ctx context.Context, refresh bool) (Report, error) {
	if why := c.Settings.Disabled(); why != "" {
		return Report{Current: c.Current, Channel: c.Settings.channel(), Disabled: why}, nil
	}

	state, err := LoadState()
	if err != nil {
		return Report{}, err
	}

	now := c.now()
	if !refresh && !state.Stale(c.Settings, now) {
		return c.report(state, true), nil
	}

	info, err := c.latest(ctx)
	if err != nil {
		return Report{}, err
	}

	state.Record(info, now)
	if err := state.Save(); err != nil {
		return Report{}, err
	}

	rep := c.report(state, false)
	rep.Newer = info.UpdateAvailable

	return rep, nil
}

// Cached returns the last recorded report without touching the network. ok
// is false when checks are off or nothing was recorded for this channel.
func (c *Checker) Cached() (rep Report, ok bool) {
	if c.Settings.Disabled() != "" {
		return Report{}, false
	}

	state, err := LoadState()
	if err != nil || state.CheckedAt.IsZero() || state.Channel != c.Settings.channel() {
		return Report{}, false
	}

	return c.report(state, true), true
}

// Record caches a check that was made elsewhere, such as by `pyez update`.
func (c *Checker) Record(info *Info) error {
	state, err := LoadState()
	if err != nil {
		return err
	}

	state.Record(info, c.now())

	return state.Save()
}

func (c *Checker) report(s *State, cached bool) Report {
	return Report{
		Current:   c.Current,
		Latest:    s.Latest,
		Channel:   s.Channel,
		Newer:     s.Newer(c.Current),
		URL:       s.URL,
		CheckedAt: s.CheckedAt,
		Cached:    cached,
	}
}

func (c *Checker) latest(ctx context.Context) (*Info, error) {
	if c.Latest != nil {
		return c.Latest(ctx)
	}

	u, err := NewUpdater(c.Settings)
	if err != nil {
		return nil, err
	}

	return u.CheckLatest(ctx, c.Current)
}

func (c *Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}

	return time.Now()
}
