package events

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Publisher/Consumer used by tests and local runs
// without a broker. It mimics the at-least-once contract: an entry stays
// pending for its group until acked, and Redeliver puts every unacked entry
// back in line, like a consumer restart would.
type Memory struct {
	mu      sync.Mutex
	streams map[string][]*memEntry
	nextID  int64
}

type memEntry struct {
	id      string
	key     string
	payload []byte
	// per consumer group
	delivered map[string]bool
	acked     map[string]bool
}

func NewMemory() *Memory {
	return &Memory{streams: make(map[string][]*memEntry)}
}

func (m *Memory) Publish(_ context.Context, topic, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	p := make([]byte, len(payload))
	copy(p, payload)
	m.streams[topic] = append(m.streams[topic], &memEntry{
		id:        strconv.FormatInt(m.nextID, 10),
		key:       key,
		payload:   p,
		delivered: make(map[string]bool),
		acked:     make(map[string]bool),
	})
	return nil
}

func (m *Memory) Consume(ctx context.Context, topic, group string, handle func(Message)) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, ok := m.next(topic, group)
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}
		handle(msg)
	}
}

func (m *Memory) next(topic, group string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.streams[topic] {
		if e.acked[group] || e.delivered[group] {
			continue
		}
		e.delivered[group] = true
		entry := e
		return Message{
			ID:      entry.id,
			Key:     entry.key,
			Payload: entry.payload,
			ack: func(context.Context) error {
				m.mu.Lock()
				defer m.mu.Unlock()
				entry.acked[group] = true
				return nil
			},
		}, true
	}
	return Message{}, false
}

// Redeliver clears delivery state for every unacked entry on the topic, so
// the next Consume pass sees them again.
func (m *Memory) Redeliver(topic, group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.streams[topic] {
		if e.delivered[group] && !e.acked[group] {
			e.delivered[group] = false
			n++
		}
	}
	return n
}

// Entries returns the payloads published to a topic, in order.
func (m *Memory) Entries(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, 0, len(m.streams[topic]))
	for _, e := range m.streams[topic] {
		out = append(out, e.payload)
	}
	return out
}

// Pending counts entries not yet acked by the group.
func (m *Memory) Pending(topic, group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.streams[topic] {
		if !e.acked[group] {
			n++
		}
	}
	return n
}
