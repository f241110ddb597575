// Package supabase keeps handoff rows in Supabase through its PostgREST API,
// authenticated with the service key.
package supabase

import (
	"context"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	"github.com/suPer8Hu/poppy-relay/internal/handoff"
)

// Error is a failed PostgREST call. Err carries PostgREST's code and message.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var _ handoff.Store = (*Client)(nil)

type Client struct {
	rest *postgrest.Client
}

// New targets <baseURL>/rest/v1.
func New(baseURL, serviceKey string) *Client {
	rest := postgrest.NewClient(baseURL+"/rest/v1", "public", map[string]string{
		"apikey":        serviceKey,
		"Authorization": "Bearer " + serviceKey,
	})
	return &Client{rest: rest}
}

func (c *Client) EnsureConversation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := c.rest.From("conversations").
		Upsert(map[string]any{"id": id}, "id", "minimal", "").
		Execute()
	return wrap("ensure conversation", err)
}

// UpsertHandoff writes only the thread link columns; timestamps are the
// table's defaults.
func (c *Client) UpsertHandoff(ctx context.Context, h handoff.Handoff) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := map[string]any{
		"conversation_id": h.ConversationID,
		"slack_channel":   h.SlackChannel,
		"slack_thread_ts": h.SlackThreadTS,
	}
	_, _, err := c.rest.From("handoffs").
		Upsert(row, "conversation_id", "minimal", "").
		Execute()
	return wrap("upsert handoff", err)
}

func (c *Client) PendingReplies(ctx context.Context, conversationID string) ([]handoff.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []handoff.Reply
	_, err := c.rest.From("replies").
		Select("*", "", false).
		Eq("conversation_id", conversationID).
		Eq("delivered", "false").
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&out)
	if err != nil {
		return nil, wrap("pending replies", err)
	}
	return out, nil
}

func (c *Client) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := c.rest.From("replies").
		Update(map[string]any{"delivered": true}, "minimal", "").
		In("id", ids).
		Execute()
	return wrap("mark delivered", err)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
