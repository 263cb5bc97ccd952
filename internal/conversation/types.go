package conversation

import (
	"time"
)

// Intent is the classified purpose of the user's latest message.
type Intent string

const (
	IntentRequestBooking        Intent = "request_booking"
	IntentBookMeeting           Intent = "book_a_meeting"
	IntentGreeting              Intent = "greeting"
	IntentProvideInfo           Intent = "provide_info"
	IntentQuestionServices      Intent = "question_services"
	IntentFollowUp              Intent = "follow_up"
	IntentNotInterestedBuying   Intent = "not_interested_buying"
	IntentInterestedSellingToUs Intent = "interested_selling_to_us"
	IntentUnsure                Intent = "unsure"
)

// AllIntents lists every classifiable intent, in the order presented to the
// language oracle.
var AllIntents = []Intent{
	IntentRequestBooking,
	IntentBookMeeting,
	IntentGreeting,
	IntentProvideInfo,
	IntentQuestionServices,
	IntentFollowUp,
	IntentNotInterestedBuying,
	IntentInterestedSellingToUs,
	IntentUnsure,
}

// Known reports whether v is one of the closed intent set.
func (i Intent) Known() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the conversation transcript. Immutable once
// appended; ordering is significant.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Slot is a single offered meeting time. Display is the locale-formatted
// label shown to the user; Instant is the canonical value used for equality
// and for the booking call.
type Slot struct {
	Display string    `json:"display"`
	Instant time.Time `json:"instant"`
}

// instantTolerance absorbs serialization round-trip drift when comparing
// slot instants.
const instantTolerance = time.Second

// Matches reports whether t refers to the same slot instant, within a one
// second tolerance after normalizing both to a common reference.
func (s Slot) Matches(t time.Time) bool {
	d := s.Instant.Sub(t)
	if d < 0 {
		d = -d
	}
	return d <= instantTolerance
}

// StateSchemaVersion tags persisted records so future field changes are
// migrated explicitly instead of guessed at read time.
const StateSchemaVersion = 1

// State is the aggregate conversation record for one thread. Prior history
// (already persisted) and new history (produced this turn) are kept distinct
// so a turn's effects can be persisted incrementally.
type State struct {
	Schema      int       `json:"schema_version"`
	ThreadID    string    `json:"thread_id"`
	UserEmail   string    `json:"user_email"`
	UserName    string    `json:"user_name"`
	LastUpdated time.Time `json:"last_updated"`

	PriorHistory []Message `json:"prior_history"`
	NewHistory   []Message `json:"new_history"`

	// Turn-scoped fields, recomputed every turn.
	UserInput      string `json:"-"`
	Language       string `json:"language"`
	Intent         Intent `json:"classified_intent"`
	AvailableSlots []Slot `json:"available_slots"`
	BookedSlot     *Slot  `json:"booked_slot"`
	Reply          string `json:"generated_reply"`
	ErrorMsg       string `json:"error"`
	BookedThisTurn bool   `json:"-"`

	// Booking target, lazily defaulted from configuration.
	EventTypeSlug string `json:"event_type_slug"`
	BookingLink   string `json:"booking_link"`
}

// History returns the full transcript, prior entries first.
func (s *State) History() []Message {
	out := make([]Message, 0, len(s.PriorHistory)+len(s.NewHistory))
	out = append(out, s.PriorHistory...)
	out = append(out, s.NewHistory...)
	return out
}

func (s *State) appendUser(content string) {
	s.NewHistory = append(s.NewHistory, Message{Role: RoleUser, Content: content})
}

func (s *State) appendAssistant(content string) {
	s.NewHistory = append(s.NewHistory, Message{Role: RoleAssistant, Content: content})
}
