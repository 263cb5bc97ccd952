package conversation

import "fmt"

// ErrorKind distinguishes collaborator failures so transition logic can match
// on the failure kind instead of inspecting error strings.
type ErrorKind string

const (
	KindClassification ErrorKind = "classification"
	KindAvailability   ErrorKind = "availability"
	KindNoSlots        ErrorKind = "no_slots"
	KindSlotMatch      ErrorKind = "slot_match"
	KindLowConfidence  ErrorKind = "low_confidence"
	KindRetriesSpent   ErrorKind = "retries_spent"
	KindOffering       ErrorKind = "offering"
	KindCommit         ErrorKind = "commit"
	KindGeneration     ErrorKind = "generation"
	KindAlreadyBooked  ErrorKind = "already_booked"
)

// Failure is a recoverable collaborator failure. Nothing in this package is
// fatal to the host; every Failure degrades to a user-visible message plus a
// recorded error field on the state.
type Failure struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Failure) Unwrap() error { return f.Err }

func failf(kind ErrorKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func failWrap(kind ErrorKind, msg string, err error) *Failure {
	return &Failure{Kind: kind, Msg: msg, Err: err}
}
