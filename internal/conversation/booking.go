package conversation

import (
	"context"
	"log/slog"
	"time"
)

// Coordinator disambiguates which offered slot the user meant and commits it
// on the calendar, with bounded retries against the language oracle.
type Coordinator struct {
	language LanguageOracle
	calendar CalendarOracle

	threshold   float64
	maxAttempts int
	timezone    string
	logger      *slog.Logger
}

func NewCoordinator(language LanguageOracle, calendar CalendarOracle, threshold float64, maxAttempts int, timezone string, logger *slog.Logger) *Coordinator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Coordinator{
		language:    language,
		calendar:    calendar,
		threshold:   threshold,
		maxAttempts: maxAttempts,
		timezone:    timezone,
		logger:      logger,
	}
}

// Book resolves the user's slot choice and commits the booking. On success it
// sets st.BookedSlot and appends a transcript note; on any failure it returns
// a Failure and leaves st.BookedSlot untouched. Partial success is never
// recorded as success: a valid pick with a failed commit stays unbooked.
func (c *Coordinator) Book(ctx context.Context, st *State, now time.Time) *Failure {
	if st.BookedSlot != nil {
		return failf(KindAlreadyBooked, "a meeting is already booked for this conversation")
	}
	if len(st.AvailableSlots) == 0 {
		return failf(KindNoSlots, "no available slots to book")
	}

	slot, fail := c.resolveSlot(ctx, st, now)
	if fail != nil {
		return fail
	}

	offering, err := c.calendar.ResolveOffering(ctx, st.EventTypeSlug)
	if err != nil {
		return failWrap(KindOffering, "resolve offering "+st.EventTypeSlug, err)
	}

	notes := c.meetingNotes(ctx, st)

	err = c.calendar.Commit(ctx, BookingRequest{
		OfferingID: offering.ID,
		Slug:       offering.Slug,
		Start:      slot.Instant,
		Email:      st.UserEmail,
		Name:       st.UserName,
		Timezone:   c.timezone,
		Language:   st.Language,
		Notes:      notes,
	})
	if err != nil {
		return failWrap(KindCommit, "commit booking", err)
	}

	booked := *slot
	st.BookedSlot = &booked
	st.BookedThisTurn = true
	st.appendAssistant("I have successfully booked a meeting slot for " + booked.Display + " for " + st.UserEmail)
	c.logger.Info("booking committed",
		"thread_id", st.ThreadID,
		"slot", booked.Instant.Format(time.RFC3339),
		"email", st.UserEmail,
	)
	return nil
}

// resolveSlot asks the language oracle for a structured pick and validates it
// against the offered slots, feeding validation failures back to the oracle
// for up to maxAttempts tries.
func (c *Coordinator) resolveSlot(ctx context.Context, st *State, now time.Time) (*Slot, *Failure) {
	feedback := ""
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		pick, err := c.language.PickSlot(ctx, st.UserInput, st.History(), st.AvailableSlots, now, feedback)
		if err != nil {
			c.logger.Warn("slot pick failed", "attempt", attempt, "error", err)
			feedback = "An error occurred: " + err.Error() + ". Please try again."
			continue
		}

		if pick.Instant.IsZero() {
			feedback = "Previous attempt failed: no slot was selected. Please try again with a valid slot from the list."
			continue
		}
		if pick.Confidence < 0 || pick.Confidence > 1 {
			feedback = "Previous attempt failed: confidence must be between 0 and 1. Please try again."
			continue
		}

		match := matchSlot(st.AvailableSlots, pick.Instant)
		if match == nil {
			feedback = "Previous attempt failed: selected slot " + pick.Instant.Format(time.RFC3339) +
				" does not match any available slot. Please try again with a valid slot from the list."
			continue
		}

		if pick.Confidence < c.threshold {
			c.logger.Info("slot pick below confidence threshold",
				"attempt", attempt,
				"confidence", pick.Confidence,
				"threshold", c.threshold,
			)
			feedback = "Previous attempt failed: confidence was too low. Please try again and be more certain of your selection."
			continue
		}

		return match, nil
	}

	if feedback == "" {
		return nil, failf(KindRetriesSpent, "failed to parse suitable slot for the booking after %d attempts", c.maxAttempts)
	}
	return nil, failf(KindRetriesSpent, "failed to parse suitable slot for the booking after %d attempts: %s", c.maxAttempts, feedback)
}

// matchSlot finds the offered slot whose instant equals t within the shared
// tolerance, comparing in a common time reference.
func matchSlot(slots []Slot, t time.Time) *Slot {
	utc := t.UTC()
	for i := range slots {
		if slots[i].Matches(utc) {
			return &slots[i]
		}
	}
	return nil
}

// meetingNotes summarizes the meeting purpose for the organizer. Best effort:
// an oracle failure falls back to a truncated copy of the user's message.
func (c *Coordinator) meetingNotes(ctx context.Context, st *State) string {
	summary, err := c.language.Summarize(ctx, st.UserInput, st.History(), st.Language)
	if err != nil || summary == "" {
		c.logger.Warn("meeting summary failed, using truncated input", "error", err)
		return truncate(st.UserInput, 200)
	}
	return summary
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
