package stream

import (
	"context"
	"iter"
	"sync"
)

// Sink is the producer half of a session stream. Write never blocks for
// unbounded time under normal operation: it returns once the message is
// enqueued, not once it is delivered.
type Sink interface {
	Write(ctx context.Context, msg Message) error
	Close() error
}

// Pipe is a full session stream: the producer Sink plus the consumer side
// that drains it. Buffer is the in-process implementation, NatsBuffer the
// cross-process one; the server picks which per deployment.
type Pipe interface {
	Sink
	Stream(ctx context.Context) iter.Seq[Message]
}

// Buffer is the in-process session stream: an unbounded FIFO bridging the
// agent-execution task (producer) and the response writer (consumer). It is
// the only mutable state intentionally shared between the two; delivery order
// equals write order, with no loss and no duplicates.
type Buffer struct {
	mu    sync.Mutex
	queue []Message
	wake  chan struct{}

	closeOnce sync.Once
}

var _ Pipe = (*Buffer)(nil)

// NewBuffer creates an open, empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{wake: make(chan struct{}, 1)}
}

// Write enqueues a message. It only fails when ctx is already done.
func (b *Buffer) Write(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.push(msg)
	return nil
}

// Close enqueues the end-of-stream sentinel. It is idempotent so every exit
// path of an agent run can close defensively without double-terminating the
// consumer.
func (b *Buffer) Close() error {
	b.closeOnce.Do(func() {
		b.push(EndStream())
	})
	return nil
}

func (b *Buffer) push(msg Message) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Buffer) pop() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Message{}, false
	}
	msg := b.queue[0]
	b.queue = b.queue[1:]
	return msg, true
}

// Stream yields messages in write order until the end-of-stream sentinel is
// dequeued (the sentinel itself is yielded last so the transport can emit it)
// or ctx is cancelled. The sequence is lazy, finite once closed, and not
// restartable: consumed messages are gone. An empty-but-open buffer suspends;
// it never terminates early.
func (b *Buffer) Stream(ctx context.Context) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for {
			msg, ok := b.pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-b.wake:
					continue
				}
			}
			if !yield(msg) {
				return
			}
			if msg.Kind == KindEndStream {
				return
			}
		}
	}
}
