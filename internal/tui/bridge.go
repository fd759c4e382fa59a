package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pyeasyenv/pyez/internal/logchan"
	"github.com/pyeasyenv/pyez/internal/recovery"
)

// Bridge carries events from background goroutines (scheduler, log pump,
// recovery prompts) into the bubbletea loop. Senders never block.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	ready  chan struct{}
	done   chan struct{}
	closed sync.Once
}

var _ recovery.Confirmer = (*Bridge)(nil)

// NewBridge returns an open Bridge. Pass it as the workflow Confirmer and
// in Options.
func NewBridge() *Bridge {
	return &Bridge{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

type (
	controlsMsg struct{ enabled bool }
	linesMsg    []logchan.Line
	eventsMsg   []tea.Msg
)

// confirmRequestMsg asks the operator whether to reinstall tool.
type confirmRequestMsg struct {
	tool  string
	reply chan bool
}

// ConfirmInstall shows the reinstall modal and waits for the answer. It
// declines once the UI has gone away.
func (b *Bridge) ConfirmInstall(ctx context.Context, tool string) bool {
	req := confirmRequestMsg{tool: tool, reply: make(chan bool, 1)}
	if !b.send(req) {
		return false
	}

	select {
	case answer := <-req.reply:
		return answer
	case <-b.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Controls is the scheduler hook.
func (b *Bridge) Controls(enabled bool) {
	b.send(controlsMsg{enabled: enabled})
}

// Lines is a logchan.Pump sink.
func (b *Bridge) Lines(lines []logchan.Line) {
	if len(lines) > 0 {
		b.send(linesMsg(lines))
	}
}

// Close releases waiters. Later sends are dropped.
func (b *Bridge) Close() {
	b.closed.Do(func() { close(b.done) })
}

func (b *Bridge) send(msg tea.Msg) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}

	return true
}

// next waits for queued events and delivers them as one batch.
func (b *Bridge) next() tea.Cmd {
	return func() tea.Msg {
		for {
			b.mu.Lock()
			if len(b.queue) > 0 {
				batch := b.queue
				b.queue = nil
				b.mu.Unlock()

				return eventsMsg(batch)
			}
			b.mu.Unlock()

			select {
			case <-b.ready:
			case <-b.done:
				return nil
			}
		}
	}
}
