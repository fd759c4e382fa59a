// Package logchan carries progress lines from background workflows to the
// single interactive consumer.
//
// Producers never block. The consumer either drains on its own schedule or
// waits on Ready, and Pump combines both with a fixed tick.
package logchan

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Stream identifies where a line came from.
type Stream string

// Streams.
const (
	StreamInfo   Stream = "info"
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	StreamError  Stream = "error"
)

// StderrPrefix marks collaborator stderr lines in the transcript.
const StderrPrefix = "Log: "

// Line is one transcript entry.
type Line struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"time"`
	Stream Stream    `json:"stream"`
	Text   string    `json:"text"`
}

// Display returns the text as shown in a transcript.
func (l Line) Display() string {
	if l.Stream == StreamStderr {
		return StderrPrefix + l.Text
	}

	return l.Text
}

// Channel is an unbounded FIFO of Lines, safe for concurrent producers.
type Channel struct {
	mu      sync.Mutex
	pending []Line
	seq     uint64
	ready   chan struct{}
	now     func() time.Time
}

// New returns an empty Channel.
func New() *Channel {
	return &Channel{
		ready: make(chan struct{}, 1),
		now:   time.Now,
	}
}

// Send enqueues a line.
func (c *Channel) Send(stream Stream, text string) {
	c.mu.Lock()
	c.seq++
	c.pending = append(c.pending, Line{
		Seq:    c.seq,
		Time:   c.now(),
		Stream: stream,
		Text:   text,
	})
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Infof enqueues a formatted informational line.
func (c *Channel) Infof(format string, args ...any) {
	c.Send(StreamInfo, fmt.Sprintf(format, args...))
}

// Errorf enqueues a formatted error line.
func (c *Channel) Errorf(format string, args ...any) {
	c.Send(StreamError, fmt.Sprintf(format, args...))
}

// Drain removes and returns all pending lines in enqueue order.
func (c *Channel) Drain() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}

	lines := c.pending
	c.pending = nil

	return lines
}

// Len returns the number of pending lines.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// Ready is signaled after a Send. A single signal may cover many lines.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// Pump delivers batches to sink on every tick or ready signal until ctx is
// done, then performs a final drain. sink is never called with an empty batch.
func (c *Channel) Pump(ctx context.Context, interval time.Duration, sink func([]Line)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flush := func() {
		if lines := c.Drain(); len(lines) > 0 {
			sink(lines)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case <-c.ready:
			flush()
		}
	}
}
