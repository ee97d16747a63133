package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"antifraud/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

const (
	fieldKey     = "key"
	fieldPayload = "payload"
)

// Stream is a Redis Streams implementation of Publisher and Consumer.
// Consumer groups give per-stream ordering and at-least-once delivery:
// entries read with XREADGROUP stay in the pending entries list until
// XACK, and stale pending entries from dead consumers are reclaimed with
// XAUTOCLAIM on the next loop.
type Stream struct {
	client       *redis.Client
	consumerName string
	block        time.Duration
	claimMinIdle time.Duration
}

func NewStream(client *redis.Client, consumerName string) *Stream {
	return &Stream{
		client:       client,
		consumerName: consumerName,
		block:        5 * time.Second,
		claimMinIdle: time.Minute,
	}
}

func (s *Stream) Publish(ctx context.Context, topic, key string, payload []byte) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			fieldKey:     key,
			fieldPayload: payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: topic %s: %v", ErrPublish, topic, err)
	}
	return nil
}

func (s *Stream) Consume(ctx context.Context, topic, group string, handle func(Message)) error {
	if err := s.ensureGroup(ctx, topic, group); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Reclaim entries a dead consumer read but never acked.
		claimed, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   topic,
			Group:    group,
			Consumer: s.consumerName,
			MinIdle:  s.claimMinIdle,
			Start:    "0",
			Count:    16,
		}).Result()
		if err != nil && ctx.Err() == nil {
			logger.Warn("autoclaim failed", "topic", topic, "error", err)
		}
		for i := range claimed {
			handle(s.toMessage(topic, group, claimed[i]))
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: s.consumerName,
			Streams:  []string{topic, ">"},
			Count:    16,
			Block:    s.block,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("read group failed", "topic", topic, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, st := range streams {
			for i := range st.Messages {
				handle(s.toMessage(topic, group, st.Messages[i]))
			}
		}
	}
}

func (s *Stream) ensureGroup(ctx context.Context, topic, group string) error {
	err := s.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, topic, err)
	}
	return nil
}

func (s *Stream) toMessage(topic, group string, m redis.XMessage) Message {
	msg := Message{
		ID: m.ID,
		ack: func(ctx context.Context) error {
			return s.client.XAck(ctx, topic, group, m.ID).Err()
		},
	}
	if v, ok := m.Values[fieldKey].(string); ok {
		msg.Key = v
	}
	if v, ok := m.Values[fieldPayload].(string); ok {
		msg.Payload = []byte(v)
	}
	return msg
}
