package history

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Session is one stored session.
type Session struct {
	Meta
	Path string
}

// ListSessions returns sessions under rootDir, newest first.
func ListSessions(rootDir string) ([]Session, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("list history sessions: %w", err)
	}

	sessions := make([]Session, 0, len(entries))

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}

		dir := filepath.Join(rootDir, ent.Name())

		data, err := os.ReadFile(filepath.Join(dir, metaFileName)) //nolint:gosec // controlled directory
		if err != nil {
			continue
		}

		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		sessions = append(sessions, Session{Meta: meta, Path: dir})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	return sessions, nil
}

// FindSession resolves a full session id or a unique prefix of one.
func FindSession(rootDir, idOrPrefix string) (Session, error) {
	sessions, err := ListSessions(rootDir)
	if err != nil {
		return Session{}, err
	}

	var matches []Session

	for _, s := range sessions {
		if s.SessionID == idOrPrefix {
			return s, nil
		}

		if idOrPrefix != "" && strings.HasPrefix(s.SessionID, idOrPrefix) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return Session{}, fmt.Errorf("history session not found: %s", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return Session{}, fmt.Errorf("history session prefix %q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}

// ReadRuns returns the runs of a session in record order. A session that
// never closed is read from its live file.
func ReadRuns(rootDir, sessionID string) (entries []Entry, err error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	dir := filepath.Join(rootDir, sessionID)

	closed, err := isClosed(dir)
	if err != nil {
		return nil, err
	}

	if !closed {
		return readLive(filepath.Join(dir, runsLiveFileName))
	}

	file, err := os.Open(filepath.Join(dir, runsFileName)) //nolint:gosec // controlled path
	if err != nil {
		if os.IsNotExist(err) {
			return readLive(filepath.Join(dir, runsLiveFileName))
		}

		return nil, fmt.Errorf("open history runs: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("create gzip reader: %w", err)
	}

	defer func() {
		if closeErr := gzipReader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return scanEntries(gzipReader)
}

func isClosed(dir string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFileName)) //nolint:gosec // controlled path
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("history session not found: %s", filepath.Base(dir))
		}

		return false, fmt.Errorf("read history meta: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return false, fmt.Errorf("parse history meta: %w", err)
	}

	return meta.ClosedAt != nil, nil
}

func readLive(path string) (entries []Entry, err error) {
	file, err := os.Open(path) //nolint:gosec // controlled path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("open live history runs: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return scanEntries(file)
}

func scanEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		trimmed := bytes.TrimSpace(scanner.Bytes())
		if len(trimmed) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			continue
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return entries, fmt.Errorf("scan history runs: %w", err)
	}

	return entries, nil
}

// PruneOlderThan removes sessions that closed (or started, if never closed)
// before cutoff.
func PruneOlderThan(rootDir string, cutoff time.Time) (int, error) {
	sessions, err := ListSessions(rootDir)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, session := range sessions {
		ref := session.StartedAt
		if session.ClosedAt != nil {
			ref = *session.ClosedAt
		}

		if !ref.Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(session.Path); err != nil {
			return removed, fmt.Errorf("prune history session %q: %w", session.SessionID, err)
		}

		removed++
	}

	return removed, nil
}
