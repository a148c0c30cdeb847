package stream

import (
	"context"
	"iter"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/kawashishu/spec-agent/pkg/slogx"
)

const subjectPrefix = "spec-agent.stream."

// NatsBuffer is the cross-process variant of the session stream: messages are
// published to a per-session subject instead of an in-memory queue, so a
// response writer in another process can serve the stream. Core NATS gives no
// replay, so the consumer must be subscribed before the agent run starts;
// the chat flow guarantees this by attaching the stream before launching
// the run.
type NatsBuffer struct {
	conn    *nats.Conn
	subject string

	closeOnce sync.Once
	closeErr  error
}

var _ Pipe = (*NatsBuffer)(nil)

func NewNatsBuffer(conn *nats.Conn, sessionID string) *NatsBuffer {
	return &NatsBuffer{conn: conn, subject: subjectPrefix + sessionID}
}

func (b *NatsBuffer) Write(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := msg.Encode()
	if err != nil {
		return err
	}
	return b.conn.Publish(b.subject, line)
}

func (b *NatsBuffer) Close() error {
	b.closeOnce.Do(func() {
		line, err := EndStream().Encode()
		if err != nil {
			b.closeErr = err
			return
		}
		b.closeErr = b.conn.Publish(b.subject, line)
	})
	return b.closeErr
}

// Stream subscribes to the session subject and yields messages until the
// end-of-stream sentinel arrives or ctx is cancelled. Transport failures
// terminate the sequence; they are logged, not surfaced, matching the
// best-effort contract of the streaming path.
func (b *NatsBuffer) Stream(ctx context.Context) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		sub, err := b.conn.SubscribeSync(b.subject)
		if err != nil {
			slog.Error("subscribing to session stream", slogx.Error(err))
			return
		}
		defer func() {
			if err := sub.Unsubscribe(); err != nil {
				slog.Debug("unsubscribing from session stream", slogx.Error(err))
			}
		}()

		for {
			natsMsg, err := sub.NextMsgWithContext(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("reading session stream", slogx.Error(err))
				}
				return
			}
			var msg Message
			if err := msg.decode(natsMsg.Data); err != nil {
				slog.Error("decoding session stream message", slogx.Error(err))
				continue
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
