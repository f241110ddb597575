// Package gormstore keeps handoff rows in MySQL or SQLite through gorm.
package gormstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/poppy-relay/internal/handoff"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ handoff.Store = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&handoff.Conversation{}, &handoff.Handoff{}, &handoff.Reply{})
}

func (s *Store) EnsureConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&handoff.Conversation{ID: id, CreatedAt: time.Now().UTC()}).Error
}

// UpsertHandoff inserts or replaces the thread link for h.ConversationID.
func (s *Store) UpsertHandoff(ctx context.Context, h handoff.Handoff) error {
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"slack_channel", "slack_thread_ts", "updated_at"}),
		}).
		Create(&h).Error
}

func (s *Store) GetHandoff(ctx context.Context, conversationID string) (*handoff.Handoff, error) {
	var h handoff.Handoff
	if err := s.db.WithContext(ctx).First(&h, "conversation_id = ?", conversationID).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// PendingReplies returns undelivered replies in ASC created_at order (oldest -> newest).
func (s *Store) PendingReplies(ctx context.Context, conversationID string) ([]handoff.Reply, error) {
	var out []handoff.Reply
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND delivered = ?", conversationID, false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&handoff.Reply{}).
		Where("id IN ?", ids).
		Update("delivered", true).Error
}

// AddReply records a staff reply. The Slack bridge writes these; tests and
// local tooling use this helper.
func (s *Store) AddReply(ctx context.Context, conversationID, author, text string) (*handoff.Reply, error) {
	r := &handoff.Reply{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Author:         author,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}
