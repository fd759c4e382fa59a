// Package history persists collaborator runs per CLI session.
//
// Each session is a directory holding meta.json, a gzip JSONL file written
// on Close, and a plain JSONL file flushed after every run so a crashed
// session can still be read back.
package history

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pyeasyenv/pyez/internal/runner"
)

const (
	runsFileName     = "runs.jsonl.gz"
	runsLiveFileName = "runs.live.jsonl"
	metaFileName     = "meta.json"
)

// Entry is one recorded run.
type Entry struct {
	SessionID string `json:"sessionId"`
	Seq       uint64 `json:"seq"`
	runner.Run
}

// Meta describes a session for listing and pruning.
type Meta struct {
	SessionID string     `json:"sessionId"`
	Command   string     `json:"command,omitempty"`
	Project   string     `json:"project,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	Runs      int        `json:"runs"`
	Failed    int        `json:"failed"`
}

// Options configures a Store.
type Options struct {
	SessionID string
	Dir       string
	Command   string
	Project   string
}

// Store records the runs of one session. It implements runner.Recorder.
type Store struct {
	mu sync.Mutex

	dir    string
	meta   Meta
	seq    uint64
	closed bool

	file     *os.File
	gz       *gzip.Writer
	bw       *bufio.Writer
	liveFile *os.File
	liveBW   *bufio.Writer
}

var _ runner.Recorder = (*Store)(nil)

// NewStore creates the session directory and opens its run files.
func NewStore(opts Options) (*Store, error) {
	if err := validateSessionID(opts.SessionID); err != nil {
		return nil, err
	}

	if opts.Dir == "" {
		return nil, errors.New("history dir is required")
	}

	sessionDir := filepath.Join(opts.Dir, opts.SessionID)
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(sessionDir, runsFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // session id is validated
	if err != nil {
		return nil, fmt.Errorf("open history runs: %w", err)
	}

	liveFile, err := os.OpenFile(filepath.Join(sessionDir, runsLiveFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // session id is validated
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open live history runs: %w", err)
	}

	gz := gzip.NewWriter(f)

	s := &Store{
		dir: sessionDir,
		meta: Meta{
			SessionID: opts.SessionID,
			Command:   opts.Command,
			Project:   opts.Project,
			StartedAt: time.Now().UTC(),
		},
		file:     f,
		gz:       gz,
		bw:       bufio.NewWriterSize(gz, 64*1024),
		liveFile: liveFile,
		liveBW:   bufio.NewWriterSize(liveFile, 64*1024),
	}

	if err := s.writeMetaLocked(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// SessionID returns the store's session id.
func (s *Store) SessionID() string {
	return s.meta.SessionID
}

// SetProject updates the project name stored in the session metadata.
func (s *Store) SetProject(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta.Project = name
}

// Record appends one finished run.
func (s *Store) Record(run runner.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("history store is closed")
	}

	s.seq++

	line, err := json.Marshal(&Entry{SessionID: s.meta.SessionID, Seq: s.seq, Run: run})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	line = append(line, '\n')

	if _, err := s.bw.Write(line); err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	if _, err := s.liveBW.Write(line); err != nil {
		return fmt.Errorf("encode live history entry: %w", err)
	}

	if err := s.liveBW.Flush(); err != nil {
		return fmt.Errorf("flush live history entry: %w", err)
	}

	s.meta.Runs++
	if run.Status == runner.StatusFailed {
		s.meta.Failed++
	}

	return s.writeMetaLocked()
}

func (s *Store) writeMetaLocked() error {
	data, err := json.Marshal(&s.meta)
	if err != nil {
		return fmt.Errorf("marshal history meta: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, metaFileName), data, 0o600); err != nil {
		return fmt.Errorf("write history meta: %w", err)
	}

	return nil
}

// Close flushes the compressed file and marks the session closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	now := time.Now().UTC()
	s.meta.ClosedAt = &now

	var errs []error

	if err := s.writeMetaLocked(); err != nil {
		errs = append(errs, err)
	}

	if err := s.bw.Flush(); err != nil {
		errs = append(errs, err)
	}

	if err := s.gz.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := s.liveBW.Flush(); err != nil {
		errs = append(errs, err)
	}

	if err := s.liveFile.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	if sessionID != filepath.Base(sessionID) || strings.Contains(sessionID, "..") || strings.ContainsAny(sessionID, `/\`) {
		return errors.New("invalid session id")
	}

	return nil
}
