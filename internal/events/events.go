package events

import (
	"context"
	"errors"
)

// ErrPublish wraps any broker-side failure to append a message. Callers
// decide whether to retry, log or drop; the error is never swallowed here.
var ErrPublish = errors.New("publish failed")

// Message is one delivered payload. Ack marks it consumed; an unacked
// message is redelivered after a consumer restart (at-least-once).
type Message struct {
	ID      string
	Key     string
	Payload []byte

	ack func(ctx context.Context) error
}

func (m *Message) Ack(ctx context.Context) error {
	if m.ack == nil {
		return nil
	}
	return m.ack(ctx)
}

// Publisher appends a payload to a named topic. Key is the partition
// routing hint (the source account id in this system).
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Consumer delivers messages from a topic to handle, one at a time, until
// ctx is cancelled. Delivery is at-least-once: the handler owns the ack
// decision and anything left unacked comes back later.
type Consumer interface {
	Consume(ctx context.Context, topic, group string, handle func(Message)) error
}
