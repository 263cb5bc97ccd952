package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var (
	slotTue = Slot{Display: "Tuesday, 01.07. at 13:00", Instant: mustParse("2025-07-01T13:00:00+03:00")}
	slotWed = Slot{Display: "Wednesday, 02.07. at 14:00", Instant: mustParse("2025-07-02T14:00:00+03:00")}
)

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func bookingState() *State {
	return &State{
		ThreadID:       "thread-1",
		UserEmail:      "anna@example.com",
		UserName:       "Anna",
		UserInput:      "the first one works for me",
		Language:       "en",
		EventTypeSlug:  "30min",
		AvailableSlots: []Slot{slotTue, slotWed},
	}
}

func newTestCoordinator(lang *fakeLanguage, cal *fakeCalendar) *Coordinator {
	return NewCoordinator(lang, cal, 0.7, 3, "Europe/Helsinki", testLogger())
}

func TestBook_EmptySlotsFailsFastWithoutOracleCalls(t *testing.T) {
	lang := &fakeLanguage{}
	cal := &fakeCalendar{}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	st.AvailableSlots = nil

	fail := c.Book(context.Background(), st, time.Now())
	if fail == nil {
		t.Fatal("expected failure for empty slots")
	}
	if fail.Kind != KindNoSlots {
		t.Errorf("expected kind no_slots, got %s", fail.Kind)
	}
	if lang.pickCalls != 0 {
		t.Errorf("expected no oracle calls, got %d", lang.pickCalls)
	}
	if st.BookedSlot != nil {
		t.Error("booked_slot must stay unset")
	}
}

func TestBook_HighConfidencePickCommits(t *testing.T) {
	lang := &fakeLanguage{
		picks:   []SlotPick{{Instant: slotTue.Instant, Confidence: 0.9}},
		summary: "Intro call about AI audit.",
	}
	cal := &fakeCalendar{offering: Offering{ID: 202, Slug: "30min"}}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	fail := c.Book(context.Background(), st, mustParse("2025-06-30T10:00:00+03:00"))
	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}

	if st.BookedSlot == nil {
		t.Fatal("expected booked_slot to be set")
	}
	if !st.BookedSlot.Instant.Equal(slotTue.Instant) {
		t.Errorf("expected booked instant %v, got %v", slotTue.Instant, st.BookedSlot.Instant)
	}
	if !st.BookedThisTurn {
		t.Error("expected BookedThisTurn to be set")
	}
	if len(cal.commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(cal.commits))
	}
	commit := cal.commits[0]
	if commit.OfferingID != 202 {
		t.Errorf("expected offering 202, got %d", commit.OfferingID)
	}
	if commit.Email != "anna@example.com" {
		t.Errorf("unexpected attendee email %s", commit.Email)
	}
	if commit.Notes != "Intro call about AI audit." {
		t.Errorf("unexpected notes %q", commit.Notes)
	}
}

func TestBook_CommitFailureLeavesBookedSlotUnset(t *testing.T) {
	lang := &fakeLanguage{picks: []SlotPick{{Instant: slotTue.Instant, Confidence: 0.9}}}
	cal := &fakeCalendar{
		offering:  Offering{ID: 202, Slug: "30min"},
		commitErr: errors.New("slot no longer available"),
	}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	fail := c.Book(context.Background(), st, time.Now())
	if fail == nil {
		t.Fatal("expected failure for rejected commit")
	}
	if fail.Kind != KindCommit {
		t.Errorf("expected kind commit, got %s", fail.Kind)
	}
	if st.BookedSlot != nil {
		t.Error("a failed commit must never set booked_slot")
	}
	if st.BookedThisTurn {
		t.Error("BookedThisTurn must stay false on commit failure")
	}
}

func TestBook_LowConfidenceRetriesThreeTimesThenFails(t *testing.T) {
	lang := &fakeLanguage{picks: []SlotPick{{Instant: slotTue.Instant, Confidence: 0.3}}}
	cal := &fakeCalendar{offering: Offering{ID: 202}}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	fail := c.Book(context.Background(), st, time.Now())
	if fail == nil {
		t.Fatal("expected failure after exhausted retries")
	}
	if fail.Kind != KindRetriesSpent {
		t.Errorf("expected kind retries_spent, got %s", fail.Kind)
	}
	if lang.pickCalls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", lang.pickCalls)
	}
	if st.BookedSlot != nil {
		t.Error("booked_slot must stay unset")
	}
	if len(cal.commits) != 0 {
		t.Errorf("expected no commit attempts, got %d", len(cal.commits))
	}
}

func TestBook_MismatchFeedbackThenValidPick(t *testing.T) {
	lang := &fakeLanguage{
		picks: []SlotPick{
			{Instant: mustParse("2025-07-09T09:00:00+03:00"), Confidence: 0.9},
			{Instant: slotWed.Instant, Confidence: 0.85},
		},
	}
	cal := &fakeCalendar{offering: Offering{ID: 202, Slug: "30min"}}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	fail := c.Book(context.Background(), st, time.Now())
	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if lang.pickCalls != 2 {
		t.Fatalf("expected 2 attempts, got %d", lang.pickCalls)
	}
	if !strings.Contains(lang.feedbacks[1], "does not match any available slot") {
		t.Errorf("second attempt missing mismatch feedback: %q", lang.feedbacks[1])
	}
	if st.BookedSlot == nil || !st.BookedSlot.Instant.Equal(slotWed.Instant) {
		t.Errorf("expected booked slot %v, got %+v", slotWed.Instant, st.BookedSlot)
	}
}

func TestBook_InstantMatchToleratesSerializationDrift(t *testing.T) {
	// Same instant expressed in UTC, off by less than a second.
	utcDrift := slotTue.Instant.UTC().Add(500 * time.Millisecond)
	lang := &fakeLanguage{picks: []SlotPick{{Instant: utcDrift, Confidence: 0.9}}}
	cal := &fakeCalendar{offering: Offering{ID: 202, Slug: "30min"}}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	if fail := c.Book(context.Background(), st, time.Now()); fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if st.BookedSlot == nil || !st.BookedSlot.Instant.Equal(slotTue.Instant) {
		t.Errorf("expected the offered slot to be booked, got %+v", st.BookedSlot)
	}
}

func TestBook_OracleErrorFeedsBackAndRetries(t *testing.T) {
	lang := &fakeLanguage{
		pickErrs: []error{errors.New("timeout"), nil},
		picks: []SlotPick{
			{},
			{Instant: slotTue.Instant, Confidence: 0.9},
		},
	}
	cal := &fakeCalendar{offering: Offering{ID: 202, Slug: "30min"}}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	if fail := c.Book(context.Background(), st, time.Now()); fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if lang.pickCalls != 2 {
		t.Errorf("expected 2 attempts, got %d", lang.pickCalls)
	}
	if !strings.Contains(lang.feedbacks[1], "An error occurred") {
		t.Errorf("expected error feedback on retry, got %q", lang.feedbacks[1])
	}
}

func TestBook_SummaryFailureFallsBackToTruncatedInput(t *testing.T) {
	lang := &fakeLanguage{
		picks:        []SlotPick{{Instant: slotTue.Instant, Confidence: 0.9}},
		summarizeErr: errors.New("oracle down"),
	}
	cal := &fakeCalendar{offering: Offering{ID: 202, Slug: "30min"}}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	st.UserInput = strings.Repeat("let's talk about the audit ", 20)

	if fail := c.Book(context.Background(), st, time.Now()); fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if len(cal.commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(cal.commits))
	}
	notes := cal.commits[0].Notes
	if len(notes) != 200 {
		t.Errorf("expected notes truncated to 200 chars, got %d", len(notes))
	}
	if !strings.HasPrefix(st.UserInput, notes) {
		t.Error("notes should be a prefix of the user input")
	}
}

func TestBook_OfferingResolutionFailure(t *testing.T) {
	lang := &fakeLanguage{picks: []SlotPick{{Instant: slotTue.Instant, Confidence: 0.9}}}
	cal := &fakeCalendar{offeringErr: errors.New("not found")}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	fail := c.Book(context.Background(), st, time.Now())
	if fail == nil || fail.Kind != KindOffering {
		t.Fatalf("expected offering failure, got %v", fail)
	}
	if st.BookedSlot != nil {
		t.Error("booked_slot must stay unset")
	}
}

func TestBook_AlreadyBookedIsGuarded(t *testing.T) {
	lang := &fakeLanguage{picks: []SlotPick{{Instant: slotTue.Instant, Confidence: 0.9}}}
	cal := &fakeCalendar{offering: Offering{ID: 202}}
	c := newTestCoordinator(lang, cal)

	st := bookingState()
	existing := slotTue
	st.BookedSlot = &existing

	fail := c.Book(context.Background(), st, time.Now())
	if fail == nil || fail.Kind != KindAlreadyBooked {
		t.Fatalf("expected already_booked failure, got %v", fail)
	}
	if lang.pickCalls != 0 {
		t.Errorf("expected no oracle calls, got %d", lang.pickCalls)
	}
	if !st.BookedSlot.Instant.Equal(slotTue.Instant) {
		t.Error("existing booking must never be replaced")
	}
}
