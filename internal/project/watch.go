package project

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is an edit to a project's manifest or lockfile.
type Change struct {
	Path string
	Op   string
}

// Watcher reports edits to a project's manifest and lockfile that happen
// while no workflow is running.
type Watcher struct {
	watcher  *fsnotify.Watcher
	project  *Project
	busy     func() bool
	onChange func(Change)
	logger   *slog.Logger

	debounce time.Duration

	mu      sync.Mutex
	pending map[string]Change
	quietAt time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher watches p's directory. busy reports whether a workflow is
// active; changes made while busy (and shortly after) are attributed to the
// workflow and dropped.
func NewWatcher(p *Project, busy func() bool, onChange func(Change)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(p.Dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", p.Dir, err)
	}

	return &Watcher{
		watcher:  fw,
		project:  p,
		busy:     busy,
		onChange: onChange,
		logger:   slog.Default(),
		debounce: 300 * time.Millisecond,
		pending:  make(map[string]Change),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop ends the event loop and releases the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		_ = w.watcher.Close()
	})
}

// Quiet drops events until the debounce window after now has passed. Workflows
// call it when they finish so their own late events are not reported.
func (w *Watcher) Quiet() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.quietAt = time.Now()
	clear(w.pending)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	var lastEvent time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if w.handle(event) {
				lastEvent = time.Now()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.logger.Warn("project watcher error", "project", w.project.Name, "error", err)
		case <-ticker.C:
			if !lastEvent.IsZero() && time.Since(lastEvent) >= w.debounce {
				w.flush()

				lastEvent = time.Time{}
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)
	if name != w.project.ManifestPath && name != w.project.LockfilePath {
		return false
	}

	var op string

	switch {
	case event.Op&fsnotify.Create != 0:
		op = "created"
	case event.Op&fsnotify.Write != 0:
		op = "modified"
	case event.Op&fsnotify.Remove != 0:
		op = "deleted"
	case event.Op&fsnotify.Rename != 0:
		op = "renamed"
	default:
		return false
	}

	if w.busy != nil && w.busy() {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.quietAt.IsZero() && time.Since(w.quietAt) < w.debounce {
		return false
	}

	w.pending[name] = Change{Path: name, Op: op}

	return true
}

func (w *Watcher) flush() {
	w.mu.Lock()

	changes := make([]Change, 0, len(w.pending))
	for _, c := range w.pending {
		changes = append(changes, c)
	}

	clear(w.pending)
	w.mu.Unlock()

	if w.busy != nil && w.busy() {
		return
	}

	for _, c := range changes {
		w.onChange(c)
	}
}
