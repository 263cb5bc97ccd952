package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/otl-fi/assistant/internal/conversation"
	"github.com/otl-fi/assistant/internal/hermes"
)

// InboundMessage is the mailroom event for one new email message.
type InboundMessage struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	FromName  string `json:"from_name"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// StateStore persists conversation state between turns.
type StateStore interface {
	LoadConversation(ctx context.Context, threadID string) (*conversation.State, error)
	SaveConversation(ctx context.Context, st *conversation.State) error
}

// Bus publishes outbound signals.
type Bus interface {
	Publish(subject string, data any) error
}

// Notifier posts booking notices to the owner. Optional.
type Notifier interface {
	PostBookingNotice(ctx context.Context, userName, userEmail, slot string) error
}

// Processor wires inbound mailroom events through the conversation engine:
// load state, run the turn, persist, publish the reply.
type Processor struct {
	store        StateStore
	orchestrator *conversation.Orchestrator
	bus          Bus
	notifier     Notifier
	logger       *slog.Logger
}

func New(store StateStore, o *conversation.Orchestrator, bus Bus, notifier Notifier, logger *slog.Logger) *Processor {
	return &Processor{
		store:        store,
		orchestrator: o,
		bus:          bus,
		notifier:     notifier,
		logger:       logger,
	}
}

// HandleInboundMessage is the NATS handler for swarm.mailroom.message.received.
func (p *Processor) HandleInboundMessage(subject string, data []byte) {
	ctx := context.Background()

	var evt InboundMessage
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse inbound message", "error", err)
		return
	}
	if evt.ThreadID == "" || evt.From == "" {
		p.logger.Error("inbound message missing thread or sender", "message_id", evt.MessageID)
		return
	}

	p.logger.Info("processing message",
		"thread_id", evt.ThreadID,
		"message_id", evt.MessageID,
		"from", evt.From,
	)

	st, err := p.store.LoadConversation(ctx, evt.ThreadID)
	if err != nil {
		p.logger.Error("failed to load conversation", "thread_id", evt.ThreadID, "error", err)
		return
	}
	if st == nil {
		st = &conversation.State{
			ThreadID:  evt.ThreadID,
			UserEmail: evt.From,
			UserName:  evt.FromName,
		}
	}
	if st.UserName == "" && evt.FromName != "" {
		st.UserName = evt.FromName
	}

	st = p.orchestrator.ProcessTurn(ctx, st, evt.Body)

	if err := p.store.SaveConversation(ctx, st); err != nil {
		p.logger.Error("failed to save conversation", "thread_id", evt.ThreadID, "error", err)
		return
	}

	if st.Reply != "" {
		reply := hermes.OutboundReply{
			ThreadID:  evt.ThreadID,
			MessageID: evt.MessageID,
			To:        evt.From,
			Subject:   replySubject(evt.Subject),
			Body:      st.Reply,
		}
		if err := p.bus.Publish(hermes.SubjectOutboundReply, reply); err != nil {
			p.logger.Error("failed to publish reply", "thread_id", evt.ThreadID, "error", err)
			return
		}
	}

	read := hermes.MessageRead{ThreadID: evt.ThreadID, MessageID: evt.MessageID}
	if err := p.bus.Publish(hermes.SubjectMessageRead, read); err != nil {
		p.logger.Error("failed to publish read marker", "thread_id", evt.ThreadID, "error", err)
	}

	if st.BookedThisTurn && st.BookedSlot != nil {
		p.announceBooking(ctx, st)
	}
}

func (p *Processor) announceBooking(ctx context.Context, st *conversation.State) {
	confirmed := hermes.BookingConfirmed{
		ThreadID:  st.ThreadID,
		UserEmail: st.UserEmail,
		UserName:  st.UserName,
		Slot:      st.BookedSlot.Display,
		Instant:   st.BookedSlot.Instant.UTC().Format(time.RFC3339),
	}
	if err := p.bus.Publish(hermes.SubjectBookingConfirmed, confirmed); err != nil {
		p.logger.Error("failed to publish booking confirmation", "thread_id", st.ThreadID, "error", err)
	}

	if p.notifier != nil {
		if err := p.notifier.PostBookingNotice(ctx, st.UserName, st.UserEmail, st.BookedSlot.Display); err != nil {
			p.logger.Error("slack notice failed", "thread_id", st.ThreadID, "error", err)
		}
	}

	p.logger.Info("booking confirmed",
		"thread_id", st.ThreadID,
		"user", st.UserEmail,
		"slot", st.BookedSlot.Display,
	)
}

// replySubject prefixes "Re:" unless the thread subject already carries one.
func replySubject(subject string) string {
	if subject == "" {
		return "Re: your message"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
