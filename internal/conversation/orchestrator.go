package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// phase is one node of the per-turn state machine. The transition table is
// total: every intent maps to exactly one next phase.
type phase int

const (
	phaseNewInteraction phase = iota
	phaseClassifyIntent
	phaseGatherInformation
	phaseBookMeeting
	phaseGenerateResponse
	phaseEndInteraction
	phaseDone
)

const apologyReply = "I apologize, I encountered an error while trying to generate a response. " +
	"Please try again or contact us directly."

// Options carries the booking-target defaults and tuning for the turn
// state machine.
type Options struct {
	EventTypeSlug string
	CalUsername   string
	HorizonDays   int
	Timezone      string
	Signature     string
}

// Orchestrator sequences one conversation turn: intent classification,
// availability gathering, slot negotiation, booking and reply composition.
// All I/O happens through the injected collaborators; delivery and
// persistence are the caller's concern.
type Orchestrator struct {
	language LanguageOracle
	calendar CalendarOracle
	selector *Selector
	booking  *Coordinator
	detect   func(string) string
	clock    func() time.Time
	opts     Options
	logger   *slog.Logger
}

func NewOrchestrator(language LanguageOracle, calendar CalendarOracle, selector *Selector, booking *Coordinator, detect func(string) string, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		language: language,
		calendar: calendar,
		selector: selector,
		booking:  booking,
		detect:   detect,
		clock:    time.Now,
		opts:     opts,
		logger:   logger,
	}
}

// SetClock fixes the orchestrator's time source. Used by tests.
func (o *Orchestrator) SetClock(clock func() time.Time) {
	o.clock = clock
}

// ProcessTurn runs one full turn for an inbound message and returns the
// updated state. It is synchronous and single-threaded; concurrent turns for
// the same thread must be serialized by the caller. Every collaborator
// failure is converted to state fields before the next transition; nothing
// escapes as an error.
func (o *Orchestrator) ProcessTurn(ctx context.Context, st *State, userText string) *State {
	ph := phaseNewInteraction
	for ph != phaseDone {
		switch ph {
		case phaseNewInteraction:
			o.newInteraction(st, userText)
			ph = phaseClassifyIntent
		case phaseClassifyIntent:
			o.classifyIntent(ctx, st)
			ph = o.afterClassification(st)
		case phaseGatherInformation:
			o.gatherInformation(ctx, st)
			ph = phaseGenerateResponse
		case phaseBookMeeting:
			o.bookMeeting(ctx, st)
			ph = phaseGenerateResponse
		case phaseGenerateResponse:
			o.generateResponse(ctx, st)
			ph = phaseEndInteraction
		case phaseEndInteraction:
			o.endInteraction(st)
			ph = phaseDone
		}
	}
	return st
}

// afterClassification is the transition function out of the classify phase.
func (o *Orchestrator) afterClassification(st *State) phase {
	switch st.Intent {
	case IntentRequestBooking, IntentQuestionServices:
		return phaseGatherInformation
	case IntentBookMeeting:
		return phaseBookMeeting
	case IntentGreeting, IntentProvideInfo, IntentFollowUp,
		IntentNotInterestedBuying, IntentInterestedSellingToUs, IntentUnsure:
		return phaseGenerateResponse
	default:
		st.ErrorMsg = fmt.Sprintf("unhandled intent %q", st.Intent)
		st.appendAssistant("I encountered an error: " + st.ErrorMsg)
		o.logger.Error("unhandled intent, ending turn", "thread_id", st.ThreadID, "intent", st.Intent)
		return phaseEndInteraction
	}
}

func (o *Orchestrator) newInteraction(st *State, userText string) {
	st.Schema = StateSchemaVersion
	st.LastUpdated = o.clock()

	if st.EventTypeSlug == "" {
		st.EventTypeSlug = o.opts.EventTypeSlug
	}
	if st.BookingLink == "" && o.opts.CalUsername != "" && st.EventTypeSlug != "" {
		st.BookingLink = "https://cal.com/" + o.opts.CalUsername + "/" + st.EventTypeSlug
	}

	st.UserInput = userText
	if userText != "" {
		st.appendUser(userText)
		st.Language = o.detect(userText)
	}

	// Turn-scoped fields are recomputed, never inherited. Available slots are
	// deliberately carried over: a BookMeeting turn books against the slots
	// shown in the previous turn.
	st.Intent = ""
	st.Reply = ""
	st.ErrorMsg = ""
	st.BookedThisTurn = false
}

func (o *Orchestrator) classifyIntent(ctx context.Context, st *State) {
	if st.UserInput == "" {
		st.ErrorMsg = "no user input to classify"
		st.Intent = IntentUnsure
		st.appendAssistant("I encountered an error: " + st.ErrorMsg)
		return
	}

	intent, err := o.language.Classify(ctx, st.UserInput, st.PriorHistory)
	if err != nil {
		fail := failWrap(KindClassification, "classify intent", err)
		st.ErrorMsg = fail.Error()
		st.Intent = IntentUnsure
		st.appendAssistant("I encountered an error while classifying intent: " + st.ErrorMsg)
		o.logger.Warn("intent classification failed", "thread_id", st.ThreadID, "error", err)
		return
	}

	st.Intent = intent
	st.appendAssistant("I have classified the user's intent as " + string(intent))
}

func (o *Orchestrator) gatherInformation(ctx context.Context, st *State) {
	slug := st.EventTypeSlug
	if slug == "" {
		o.recordAvailabilityFailure(st, failf(KindAvailability, "event type slug not configured"))
		return
	}

	offering, err := o.calendar.ResolveOffering(ctx, slug)
	if err != nil {
		o.recordAvailabilityFailure(st, failWrap(KindAvailability, "resolve offering "+slug, err))
		return
	}

	raw, err := o.calendar.ListAvailability(ctx, offering.ID, o.opts.HorizonDays, o.opts.Timezone)
	if err != nil {
		o.recordAvailabilityFailure(st, failWrap(KindAvailability, "list availability", err))
		return
	}

	st.AvailableSlots = o.selector.Select(raw, o.clock(), st.Language)
	st.appendAssistant(fmt.Sprintf("Fetched %d available slots", len(st.AvailableSlots)))
	o.logger.Info("availability gathered",
		"thread_id", st.ThreadID,
		"raw", len(raw),
		"offered", len(st.AvailableSlots),
	)
}

// recordAvailabilityFailure converts a lookup failure into state: error
// recorded, slots set to empty (never left unset), turn continues.
func (o *Orchestrator) recordAvailabilityFailure(st *State, fail *Failure) {
	st.ErrorMsg = fail.Error()
	st.AvailableSlots = []Slot{}
	st.appendAssistant("I encountered an error: " + st.ErrorMsg)
	o.logger.Warn("availability lookup failed", "thread_id", st.ThreadID, "kind", fail.Kind, "error", fail)
}

func (o *Orchestrator) bookMeeting(ctx context.Context, st *State) {
	if fail := o.booking.Book(ctx, st, o.clock()); fail != nil {
		st.ErrorMsg = fail.Error()
		st.appendAssistant("Error - " + fail.Msg)
		o.logger.Warn("booking failed", "thread_id", st.ThreadID, "kind", fail.Kind, "error", fail)
	}
}

func (o *Orchestrator) generateResponse(ctx context.Context, st *State) {
	if st.Intent == "" {
		st.Reply = "I'm sorry, I wasn't able to understand your request. Could you please rephrase?"
		st.ErrorMsg = "cannot generate response: intent not classified"
		st.appendAssistant("Error - " + st.ErrorMsg)
		return
	}

	// A booking completed this turn gets a fixed confirmation, never a
	// paraphrased one.
	if st.BookedThisTurn && st.BookedSlot != nil {
		st.Reply = confirmationMessage(st.UserName, st.BookedSlot.Display, o.opts.Signature)
		st.appendAssistant("I have generated a booking confirmation message for the meeting scheduled at " + st.BookedSlot.Display)
		return
	}

	reply, err := o.language.Generate(ctx, GenerateRequest{
		Intent:      st.Intent,
		UserInput:   st.UserInput,
		History:     st.History(),
		UserName:    st.UserName,
		Slots:       st.AvailableSlots,
		BookingLink: st.BookingLink,
		Language:    st.Language,
		ErrorMsg:    st.ErrorMsg,
	})
	if err != nil {
		fail := failWrap(KindGeneration, "generate response", err)
		st.ErrorMsg = fail.Error()
		st.Reply = apologyReply
		st.appendAssistant("I encountered an error while generating a response: " + st.ErrorMsg)
		o.logger.Warn("response generation failed", "thread_id", st.ThreadID, "error", err)
		return
	}

	st.Reply = reply
	st.appendAssistant("I have generated a response based on the user's intent and context: " + reply)
}

func (o *Orchestrator) endInteraction(st *State) {
	st.LastUpdated = o.clock()
	st.appendAssistant("I have completed processing this interaction")
}

func confirmationMessage(userName, slotDisplay, signature string) string {
	greeting := "Hi"
	if userName != "" {
		greeting += " " + userName
	}
	return greeting + ",\n\nYour meeting has been booked for " + slotDisplay +
		". You will receive a confirmation email shortly.\n\nBest regards,\n" + signature
}
