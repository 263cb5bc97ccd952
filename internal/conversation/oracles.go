package conversation

import (
	"context"
	"time"
)

// SlotPick is the language oracle's structured answer to "which offered slot
// did the user mean".
type SlotPick struct {
	Instant    time.Time
	Confidence float64
}

// GenerateRequest carries the context the language oracle needs to compose a
// reply for one turn.
type GenerateRequest struct {
	Intent      Intent
	UserInput   string
	History     []Message
	UserName    string
	Slots       []Slot
	BookingLink string
	Language    string
	ErrorMsg    string
}

// LanguageOracle is the natural-language capability consumed by the
// orchestrator. Every call may fail and is treated as recoverable.
type LanguageOracle interface {
	Classify(ctx context.Context, userInput string, history []Message) (Intent, error)
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	PickSlot(ctx context.Context, userInput string, history []Message, slots []Slot, now time.Time, feedback string) (SlotPick, error)
	Summarize(ctx context.Context, userInput string, history []Message, language string) (string, error)
}

// Offering is a bookable meeting type resolved on the calendar side.
type Offering struct {
	ID         int
	Slug       string
	Title      string
	BookingURL string
}

// BookingRequest is the commit payload for a calendar booking.
type BookingRequest struct {
	OfferingID int
	Slug       string
	Start      time.Time
	Email      string
	Name       string
	Timezone   string
	Language   string
	Notes      string
}

// CalendarOracle is the scheduling capability consumed by the orchestrator
// and the booking coordinator.
type CalendarOracle interface {
	ResolveOffering(ctx context.Context, slug string) (Offering, error)
	ListAvailability(ctx context.Context, offeringID int, horizonDays int, timezone string) ([]string, error)
	Commit(ctx context.Context, req BookingRequest) error
}
