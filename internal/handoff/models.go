package handoff

import "time"

type Conversation struct {
	ID        string    `gorm:"primaryKey;size:128" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Handoff links a conversation to the Slack thread staff reply in. One row per
// conversation; a repeated handoff overwrites the thread.
type Handoff struct {
	ConversationID string    `gorm:"primaryKey;size:128" json:"conversation_id"`
	SlackChannel   string    `gorm:"size:32;not null" json:"slack_channel"`
	SlackThreadTS  string    `gorm:"size:32;not null" json:"slack_thread_ts"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Handoff) TableName() string { return "handoffs" }

// Reply is a staff answer written by the Slack bridge. This service only reads
// undelivered rows and flips Delivered.
type Reply struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"size:128;not null;index:idx_replies_conv_pending,priority:1" json:"conversation_id"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	Author         string    `gorm:"size:128" json:"author,omitempty"`
	Delivered      bool      `gorm:"not null;default:false;index:idx_replies_conv_pending,priority:2" json:"delivered"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (Reply) TableName() string { return "replies" }

// OpenedEvent is published after a handoff thread is linked.
type OpenedEvent struct {
	ConversationID string
	Channel        string
	ThreadTS       string
	OpenedAt       time.Time
}
