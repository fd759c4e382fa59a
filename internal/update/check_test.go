package update

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fakeLatest(calls *int, info *Info, err error) func(context.Context) (*Info, error) {
	return func(context.Context) (*Info, error) {
		*calls++
		return info, err
	}
}

func TestChecker_Check(t *testing.T) {
	isolate(t)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	calls := 0

	c := &Checker{
		Settings: Settings{Check: true, Channel: ChannelStable, Interval: time.Hour},
		Current:  "1.0.0",
		Latest:   fakeLatest(&calls, &Info{CurrentVersion: "1.0.0", LatestVersion: "1.1.0", UpdateAvailable: true, Channel: ChannelStable}, nil),
		Now:      func() time.Time { return now },
	}

	rep, err := c.Check(context.Background(), false)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if !rep.Newer || rep.Latest != "1.1.0" || rep.Cached {
		t.Errorf("first Check() = %+v, want a live report of 1.1.0", rep)
	}

	now = now.Add(30 * time.Minute)

	rep, err = c.Check(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}

	if !rep.Cached || calls != 1 {
		t.Errorf("second Check() = %+v after %d fetches, want the cached answer", rep, calls)
	}

	if _, err := c.Check(context.Background(), true); err != nil || calls != 2 {
		t.Errorf("refresh made %d fetches (err %v), want 2", calls, err)
	}

	now = now.Add(2 * time.Hour)

	if _, err := c.Check(context.Background(), false); err != nil || calls != 3 {
		t.Errorf("expired cache made %d fetches (err %v), want 3", calls, err)
	}
}

func TestChecker_Disabled(t *testing.T) {
	isolate(t)

	calls := 0
	c := &Checker{
		Settings: Settings{Check: false},
		Current:  "1.0.0",
		Latest:   fakeLatest(&calls, nil, errors.New("must not be called")),
	}

	rep, err := c.Check(context.Background(), true)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if rep.Disabled != "update.check is false" || calls != 0 {
		t.Errorf("Check() = %+v after %d fetches", rep, calls)
	}

	if _, ok := c.Cached(); ok {
		t.Error("Cached() ok while checks are disabled")
	}
}

func TestChecker_FetchErrorKeepsCache(t *testing.T) {
	isolate(t)

	prev := &State{CheckedAt: time.Now().Add(-48 * time.Hour), Channel: ChannelStable, Latest: "1.1.0"}
	if err := prev.Save(); err != nil {
		t.Fatal(err)
	}

	calls := 0
	c := &Checker{
		Settings: Settings{Check: true},
		Current:  "1.0.0",
		Latest:   fakeLatest(&calls, nil, errors.New("rate limited")),
	}

	if _, err := c.Check(context.Background(), false); err == nil {
		t.Fatal("Check() error = nil, want the fetch error")
	}

	rep, ok := c.Cached()
	if !ok || rep.Latest != "1.1.0" || !rep.Newer {
		t.Errorf("Cached() = %+v, %v; want the previous 1.1.0 report", rep, ok)
	}
}

func TestChecker_CachedIgnoresOtherChannel(t *testing.T) {
	isolate(t)

	s := &State{CheckedAt: time.Now(), Channel: ChannelPrerelease, Latest: "2.0.0-rc.1"}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	c := NewChecker(Settings{Check: true, Channel: ChannelStable}, "1.0.0")
	if rep, ok := c.Cached(); ok {
		t.Errorf("Cached() = %+v, want nothing for the stable channel", rep)
	}
}

func TestChecker_Record(t *testing.T) {
	isolate(t)

	c := NewChecker(Settings{Check: true}, "1.0.0")
	if err := c.Record(&Info{CurrentVersion: "1.0.0", LatestVersion: "1.0.0", Channel: ChannelStable}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	rep, ok := c.Cached()
	if !ok || rep.Newer || rep.Latest != "1.0.0" {
		t.Errorf("Cached() = %+v, %v", rep, ok)
	}
}
