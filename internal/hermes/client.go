package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectInboundMessage carries new email messages from the mailroom.
const SubjectInboundMessage = "swarm.mailroom.message.received"

// SubjectOutboundReply carries composed replies back to the mailroom for
// delivery.
const SubjectOutboundReply = "swarm.assistant.reply.outbound"

// SubjectMessageRead asks the mailroom to mark the inbound message as
// handled.
const SubjectMessageRead = "swarm.assistant.message.read"

// SubjectBookingConfirmed is emitted once per completed booking.
const SubjectBookingConfirmed = "swarm.assistant.booking.confirmed"

// OutboundReply is the delivery request for one composed reply.
type OutboundReply struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// MessageRead marks one inbound message as handled by the assistant.
type MessageRead struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
}

// BookingConfirmed announces a committed calendar booking.
type BookingConfirmed struct {
	ThreadID  string `json:"thread_id"`
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`
	Slot      string `json:"slot"`
	Instant   string `json:"instant"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
