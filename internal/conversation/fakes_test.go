package conversation

import (
	"context"
	"log/slog"
	"time"
)

// fakeLanguage is a scriptable language oracle.
type fakeLanguage struct {
	classifyIntent Intent
	classifyErr    error

	generateReply string
	generateErr   error
	generateReqs  []GenerateRequest

	picks     []SlotPick
	pickErrs  []error
	pickCalls int
	feedbacks []string

	summary      string
	summarizeErr error
}

func (f *fakeLanguage) Classify(ctx context.Context, userInput string, history []Message) (Intent, error) {
	return f.classifyIntent, f.classifyErr
}

func (f *fakeLanguage) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	f.generateReqs = append(f.generateReqs, req)
	return f.generateReply, f.generateErr
}

func (f *fakeLanguage) PickSlot(ctx context.Context, userInput string, history []Message, slots []Slot, now time.Time, feedback string) (SlotPick, error) {
	f.feedbacks = append(f.feedbacks, feedback)
	i := f.pickCalls
	f.pickCalls++
	var err error
	if i < len(f.pickErrs) {
		err = f.pickErrs[i]
	}
	var pick SlotPick
	if i < len(f.picks) {
		pick = f.picks[i]
	} else if len(f.picks) > 0 {
		pick = f.picks[len(f.picks)-1]
	}
	return pick, err
}

func (f *fakeLanguage) Summarize(ctx context.Context, userInput string, history []Message, language string) (string, error) {
	return f.summary, f.summarizeErr
}

// fakeCalendar is a scriptable calendar oracle that records commits.
type fakeCalendar struct {
	offering    Offering
	offeringErr error

	rawSlots []string
	listErr  error

	commitErr error
	commits   []BookingRequest

	resolveCalls int
	listCalls    int
}

func (f *fakeCalendar) ResolveOffering(ctx context.Context, slug string) (Offering, error) {
	f.resolveCalls++
	return f.offering, f.offeringErr
}

func (f *fakeCalendar) ListAvailability(ctx context.Context, offeringID int, horizonDays int, timezone string) ([]string, error) {
	f.listCalls++
	return f.rawSlots, f.listErr
}

func (f *fakeCalendar) Commit(ctx context.Context, req BookingRequest) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, req)
	return nil
}

func testLogger() *slog.Logger {
	return slog.Default()
}
