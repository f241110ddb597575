// Package handoff hands a chat over to staff in a Slack thread and relays
// their replies back to the widget.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
)

const DefaultSummary = "A visitor asked to speak to a grown-up."

var (
	ErrMissingConversationID = errors.New("handoff: missing conversationId")
	ErrStoreNotConfigured    = errors.New("handoff: store not configured")
	ErrSlackNotConfigured    = errors.New("handoff: slack not configured")
	ErrNotify                = errors.New("handoff: slack post failed")
)

// Store is the row store holding conversations, thread links and replies.
type Store interface {
	EnsureConversation(ctx context.Context, id string) error
	UpsertHandoff(ctx context.Context, h Handoff) error
	// PendingReplies returns undelivered replies, oldest first.
	PendingReplies(ctx context.Context, conversationID string) ([]Reply, error)
	MarkDelivered(ctx context.Context, ids []string) error
}

type ThreadPoster interface {
	Configured() bool
	PostThreadParent(ctx context.Context, text string) (channel string, ts string, err error)
}

type EventPublisher interface {
	PublishHandoffOpened(ctx context.Context, ev OpenedEvent) error
}

type Service struct {
	log    *logger.Logger
	store  Store
	slack  ThreadPoster
	events EventPublisher
	now    func() time.Time
}

// NewService wires the flow. store or events may be nil: a nil store makes
// every call fail with ErrStoreNotConfigured, nil events disables publishing.
func NewService(log *logger.Logger, store Store, slack ThreadPoster, events EventPublisher) *Service {
	return &Service{
		log:    log.With("component", "handoff"),
		store:  store,
		slack:  slack,
		events: events,
		now:    time.Now,
	}
}

type Result struct {
	ConversationID string
	Channel        string
	ThreadTS       string
}

// Open links conversationID to a new Slack thread. If Slack refuses the post
// nothing is persisted beyond the conversation row.
func (s *Service) Open(ctx context.Context, conversationID, summary string) (*Result, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, ErrMissingConversationID
	}
	if s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	if s.slack == nil || !s.slack.Configured() {
		return nil, ErrSlackNotConfigured
	}
	if strings.TrimSpace(summary) == "" {
		summary = DefaultSummary
	}

	if err := s.store.EnsureConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("handoff: ensure conversation: %w", err)
	}

	text := fmt.Sprintf("Poppy handoff :seedling:\n*Conversation:* %s\n%s", conversationID, summary)
	channel, ts, err := s.slack.PostThreadParent(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotify, err)
	}

	if err := s.store.UpsertHandoff(ctx, Handoff{
		ConversationID: conversationID,
		SlackChannel:   channel,
		SlackThreadTS:  ts,
	}); err != nil {
		return nil, fmt.Errorf("handoff: store thread link: %w", err)
	}

	if s.events != nil {
		ev := OpenedEvent{ConversationID: conversationID, Channel: channel, ThreadTS: ts, OpenedAt: s.now().UTC()}
		if err := s.events.PublishHandoffOpened(ctx, ev); err != nil {
			s.log.Warn("publish handoff event failed", "conversation_id", conversationID, "err", err)
		}
	}

	s.log.Info("handoff opened", "conversation_id", conversationID, "channel", channel, "thread_ts", ts)
	return &Result{ConversationID: conversationID, Channel: channel, ThreadTS: ts}, nil
}

// Poll returns the conversation's undelivered replies and marks them
// delivered. A failed mark is logged only; those replies come back on the
// next poll.
func (s *Service) Poll(ctx context.Context, conversationID string) ([]Reply, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, ErrMissingConversationID
	}
	if s.store == nil {
		return nil, ErrStoreNotConfigured
	}

	replies, err := s.store.PendingReplies(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("handoff: pending replies: %w", err)
	}
	if len(replies) == 0 {
		return []Reply{}, nil
	}

	ids := make([]string, 0, len(replies))
	for _, r := range replies {
		ids = append(ids, r.ID)
	}
	if err := s.store.MarkDelivered(ctx, ids); err != nil {
		s.log.Warn("mark replies delivered failed", "conversation_id", conversationID, "count", len(ids), "err", err)
	}
	return replies, nil
}
