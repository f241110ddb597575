package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/poppy-relay/internal/common"
	"github.com/suPer8Hu/poppy-relay/internal/handoff"
)

const RoutingHandoffOpened = "handoff.opened"

// Publisher emits handoff events on a fanout exchange. Messages are transient;
// nothing in this service consumes them.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

var _ handoff.EventPublisher = (*Publisher)(nil)

type HandoffMessage struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	SlackChannel   string    `json:"slack_channel"`
	SlackThreadTS  string    `json:"slack_thread_ts"`
	OpenedAt       time.Time `json:"opened_at"`
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		false, // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishHandoffOpened(ctx context.Context, ev handoff.OpenedEvent) error {
	eventID, err := common.NewULID()
	if err != nil {
		return err
	}
	body, err := json.Marshal(HandoffMessage{
		EventID:        eventID,
		Type:           RoutingHandoffOpened,
		ConversationID: ev.ConversationID,
		SlackChannel:   ev.Channel,
		SlackThreadTS:  ev.ThreadTS,
		OpenedAt:       ev.OpenedAt,
	})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		p.exchange,
		RoutingHandoffOpened,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
