package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client is the subset of redis command methods the stream adapter needs.
// *redis.Client, *redis.ClusterClient, and redis.UniversalClient all
// satisfy it.
type Client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XLen(ctx context.Context, stream string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Stream is the production Broker backed by a Redis Streams consumer
// group. Redis streams have no native delayed delivery, so delayed
// payloads park in a sorted set scored by not_before and are promoted
// onto the stream once due, which keeps the visible contract identical
// to the in-process adapter. Re-adding a future message to the stream
// instead would make every subsequent XREADGROUP return it again
// immediately, busy-looping for the whole delay.
type Stream struct {
	client   Client
	stream   string
	group    string
	consumer string
	logger   *zap.Logger
}

// NewStream creates the adapter and idempotently creates the consumer
// group (an existing group is not an error).
func NewStream(ctx context.Context, client Client, stream, group, consumer string, logger *zap.Logger) (*Stream, error) {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &Stream{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		logger:   logger,
	}, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (s *Stream) Publish(ctx context.Context, p Payload, delay time.Duration) (string, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.NotBefore = now.Add(delay)

	if delay > 0 {
		return s.park(ctx, p)
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: encodePayload(p),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// park stores a not-yet-due payload in the delayed sorted set, scored by
// its not_before instant. Identical payloads collapse into one member,
// which only dedupes an already duplicate delayed copy.
func (s *Stream) park(ctx context.Context, p Payload) (string, error) {
	member, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode delayed payload: %w", err)
	}
	err = s.client.ZAdd(ctx, s.delayedSet(), redis.Z{
		Score:  unixScore(p.NotBefore),
		Member: string(member),
	}).Err()
	if err != nil {
		return "", fmt.Errorf("zadd delayed: %w", err)
	}
	return "delayed:" + p.OutboxID, nil
}

// promoteDue moves parked payloads whose not_before has passed back onto
// the stream. ZREM is the claim: with several consumers promoting, only
// the one whose ZREM removed the member re-enqueues it.
func (s *Stream) promoteDue(ctx context.Context, count int) {
	members, err := s.client.ZRangeByScore(ctx, s.delayedSet(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatUnix(time.Now().UTC()),
		Count: int64(count),
	}).Result()
	if err != nil {
		s.logger.Error("read delayed set", zap.Error(err))
		return
	}

	for _, member := range members {
		n, err := s.client.ZRem(ctx, s.delayedSet(), member).Result()
		if err != nil {
			s.logger.Error("claim delayed member", zap.Error(err))
			continue
		}
		if n == 0 {
			continue
		}
		var p Payload
		if err := json.Unmarshal([]byte(member), &p); err != nil {
			s.logger.Error("undecodable delayed member", zap.Error(err))
			if derr := s.client.XAdd(ctx, &redis.XAddArgs{
				Stream: s.deadStream(),
				Values: map[string]any{
					fieldBody:     member,
					fieldReason:   "undecodable: " + err.Error(),
					fieldFailedAt: formatUnix(time.Now().UTC()),
				},
			}).Err(); derr != nil {
				s.logger.Error("dead-letter delayed member", zap.Error(derr))
			}
			continue
		}
		if err := s.client.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			Values: encodePayload(p),
		}).Err(); err != nil {
			s.logger.Error("promote delayed message", zap.Error(err))
			// Put the member back so the payload is not lost.
			_ = s.client.ZAdd(ctx, s.delayedSet(), redis.Z{
				Score:  unixScore(p.NotBefore),
				Member: member,
			}).Err()
		}
	}
}

func (s *Stream) Read(ctx context.Context, count int, block time.Duration) ([]Message, error) {
	s.promoteDue(ctx, count)

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var due []Message
	now := time.Now()
	for _, str := range streams {
		for _, xm := range str.Messages {
			msg, err := s.decode(xm)
			if err != nil {
				// Malformed entries go to the dead-letter channel with
				// their original fields intact, so an operator can inspect
				// what was actually on the stream.
				s.logger.Error("undecodable stream entry",
					zap.String("entry_id", xm.ID), zap.Error(err))
				_ = s.deadLetterValues(ctx, xm.ID, xm.Values, "undecodable: "+err.Error())
				continue
			}
			if msg.Payload.NotBefore.After(now) {
				if err := s.deferUntilDue(ctx, msg); err != nil {
					s.logger.Error("defer future message",
						zap.String("entry_id", xm.ID), zap.Error(err))
				}
				continue
			}
			due = append(due, msg)
		}
	}
	return due, nil
}

func (s *Stream) decode(xm redis.XMessage) (Message, error) {
	p, err := decodePayload(xm.Values)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: xm.ID, Payload: p}, nil
}

// deferUntilDue parks a not-yet-due message and acks the delivered copy.
// The attempt counter is not touched; the message was never handed to a
// consumer.
func (s *Stream) deferUntilDue(ctx context.Context, msg Message) error {
	if _, err := s.park(ctx, msg.Payload); err != nil {
		return err
	}
	return s.Ack(ctx, msg.ID)
}

func (s *Stream) Ack(ctx context.Context, id string) error {
	if err := s.client.XAck(ctx, s.stream, s.group, id).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := s.client.XDel(ctx, s.stream, id).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

func (s *Stream) Requeue(ctx context.Context, msg Message, delay time.Duration) (string, error) {
	p := msg.Payload
	p.Attempt++
	id, err := s.Publish(ctx, p, delay)
	if err != nil {
		return "", err
	}
	return id, s.Ack(ctx, msg.ID)
}

func (s *Stream) DeadLetter(ctx context.Context, msg Message, reason string) error {
	return s.deadLetterValues(ctx, msg.ID, encodePayload(msg.Payload), reason)
}

// deadLetterValues copies arbitrary entry fields onto the dead-letter
// stream and acks the original. Taking raw values rather than a Payload
// means undecodable entries keep their content.
func (s *Stream) deadLetterValues(ctx context.Context, id string, values map[string]any, reason string) error {
	dead := make(map[string]any, len(values)+2)
	for k, v := range values {
		dead[k] = v
	}
	dead[fieldReason] = reason
	dead[fieldFailedAt] = formatUnix(time.Now().UTC())

	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.deadStream(),
		Values: dead,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dead letter: %w", err)
	}
	return s.Ack(ctx, id)
}

func (s *Stream) ClaimStale(ctx context.Context, minIdle time.Duration, count int) ([]Message, error) {
	claimed, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}

	msgs := make([]Message, 0, len(claimed))
	for _, xm := range claimed {
		msg, err := s.decode(xm)
		if err != nil {
			s.logger.Error("undecodable claimed entry",
				zap.String("entry_id", xm.ID), zap.Error(err))
			_ = s.deadLetterValues(ctx, xm.ID, xm.Values, "undecodable: "+err.Error())
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// DeadLetterDepth reports the dead-letter stream length for the pipeline
// snapshot.
func (s *Stream) DeadLetterDepth(ctx context.Context) (int64, error) {
	return s.client.XLen(ctx, s.deadStream()).Result()
}

func (s *Stream) deadStream() string { return s.stream + ":dead" }
func (s *Stream) delayedSet() string { return s.stream + ":delayed" }

var _ Broker = (*Stream)(nil)
