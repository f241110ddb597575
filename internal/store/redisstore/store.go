// Package redisstore keeps handoff rows in Redis for deployments without a
// SQL database.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/poppy-relay/internal/handoff"
)

// Key layout:
//
//	poppy:conversation:{id}          string, created_at
//	poppy:handoff:{id}               hash, thread link
//	poppy:reply:{reply id}           hash, reply row
//	poppy:replies:{id}:pending       zset of reply ids scored by created_at (µs)
const prefix = "poppy:"

var _ handoff.Store = (*Store)(nil)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb), nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error { return s.rdb.Close() }

func conversationKey(id string) string { return prefix + "conversation:" + id }
func handoffKey(id string) string      { return prefix + "handoff:" + id }
func replyKey(id string) string        { return prefix + "reply:" + id }
func pendingKey(id string) string      { return prefix + "replies:" + id + ":pending" }

func (s *Store) EnsureConversation(ctx context.Context, id string) error {
	return s.rdb.SetNX(ctx, conversationKey(id), time.Now().UTC().Format(time.RFC3339Nano), 0).Err()
}

func (s *Store) UpsertHandoff(ctx context.Context, h handoff.Handoff) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	key := handoffKey(h.ConversationID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, key, "created_at", now)
		p.HSet(ctx, key,
			"conversation_id", h.ConversationID,
			"slack_channel", h.SlackChannel,
			"slack_thread_ts", h.SlackThreadTS,
			"updated_at", now,
		)
		return nil
	})
	return err
}

func (s *Store) PendingReplies(ctx context.Context, conversationID string) ([]handoff.Reply, error) {
	ids, err := s.rdb.ZRange(ctx, pendingKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	if _, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, replyKey(id))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	out := make([]handoff.Reply, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 || fields["delivered"] == "1" {
			continue
		}
		created, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
		out = append(out, handoff.Reply{
			ID:             ids[i],
			ConversationID: fields["conversation_id"],
			Text:           fields["text"],
			Author:         fields["author"],
			CreatedAt:      created,
		})
	}
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	convs := make([]*redis.StringCmd, len(ids))
	if _, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			convs[i] = p.HGet(ctx, replyKey(id), "conversation_id")
		}
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			conv, err := convs[i].Result()
			if err != nil {
				continue
			}
			p.HSet(ctx, replyKey(id), "delivered", "1")
			p.ZRem(ctx, pendingKey(conv), id)
		}
		return nil
	})
	return err
}

// AddReply records a staff reply the way the Slack bridge does.
func (s *Store) AddReply(ctx context.Context, conversationID, author, text string) (*handoff.Reply, error) {
	r := &handoff.Reply{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Author:         author,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, replyKey(r.ID),
			"conversation_id", r.ConversationID,
			"text", r.Text,
			"author", r.Author,
			"delivered", "0",
			"created_at", r.CreatedAt.Format(time.RFC3339Nano),
		)
		p.ZAdd(ctx, pendingKey(conversationID), redis.Z{
			Score:  float64(r.CreatedAt.UnixMicro()),
			Member: r.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetHandoff reads the thread link, or returns (nil, nil) when none exists.
func (s *Store) GetHandoff(ctx context.Context, conversationID string) (*handoff.Handoff, error) {
	fields, err := s.rdb.HGetAll(ctx, handoffKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	h := &handoff.Handoff{
		ConversationID: fields["conversation_id"],
		SlackChannel:   fields["slack_channel"],
		SlackThreadTS:  fields["slack_thread_ts"],
	}
	h.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	h.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return h, nil
}
