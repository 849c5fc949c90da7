// Package runner contains the streaming executors that drive agent work:
// the video pipeline runner, the HITL compiler runner, and the interactive
// editor runner. All three share one bridge: a worker goroutine produces
// events synchronously and a bounded channel carries them to the consumer,
// with backpressure by blocking send and cooperative cancellation.
package runner

import (
	"context"

	"github.com/stubborncoder/vdocs/internal/events"
)

// DefaultQueueSize bounds the event channel when the caller does not
// configure one.
const DefaultQueueSize = 64

// Stream is the consumer side of one run. Events() is closed when the run
// reaches its end-of-stream; Cancel() tells the worker to stop at its next
// checkpoint and drops events emitted after that.
type Stream struct {
	ch     chan events.Event
	cancel context.CancelFunc
}

// Events returns the event channel. It is closed at end-of-stream.
func (s *Stream) Events() <-chan events.Event { return s.ch }

// Cancel signals cancellation. The worker is never force-killed; it drains
// naturally at its next checkpoint, and later events are dropped.
func (s *Stream) Cancel() { s.cancel() }

// Drain consumes and returns all remaining events. Test and CLI helper.
func (s *Stream) Drain() []events.Event {
	var all []events.Event
	for event := range s.ch {
		all = append(all, event)
	}
	return all
}

// EmitFunc delivers one event from the worker goroutine. It blocks when the
// queue is full and silently drops after cancellation.
type EmitFunc func(events.Event)

// startRun launches work on a worker goroutine and returns the consumer
// stream. The channel is closed when work returns; that close is the
// end-of-stream sentinel.
func startRun(ctx context.Context, queueSize int, work func(ctx context.Context, emit EmitFunc)) *Stream {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(ctx)
	stream := &Stream{ch: make(chan events.Event, queueSize), cancel: cancel}

	emit := func(event events.Event) {
		select {
		case stream.ch <- event:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(stream.ch)
		work(ctx, emit)
	}()

	return stream
}
