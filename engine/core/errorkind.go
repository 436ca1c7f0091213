package core

import "fmt"

// ErrorKind is the closed taxonomy from which every ErrorRecord draws its
// Kind. See spec §7 for the propagation policy between kinds.
type ErrorKind string

const (
	ErrKindUtil     ErrorKind = "Util"
	ErrKindResult   ErrorKind = "Result"
	ErrKindStage    ErrorKind = "Stage"
	ErrKindJob      ErrorKind = "Job"
	ErrKindWorkflow ErrorKind = "Workflow"
	ErrKindParam    ErrorKind = "Param"
	ErrKindSchedule ErrorKind = "Schedule"
)

// ErrorRecord is one flat entry in a Result's Errors list: a failure
// location (Name), its rendered Message, and the Kind of component that
// raised it.
type ErrorRecord struct {
	Name    string    `json:"name"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

func (r ErrorRecord) Error() string {
	return fmt.Sprintf("%s[%s]: %s", r.Kind, r.Name, r.Message)
}

// NewErrorRecord builds an ErrorRecord from a failure location name, the
// underlying error, and the kind of component that raised it. A nil err
// yields an empty-message record (used when a skip/cancel needs a
// placeholder location with no failure text).
func NewErrorRecord(name string, kind ErrorKind, err error) ErrorRecord {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ErrorRecord{Name: name, Message: msg, Kind: kind}
}

// KindError wraps an arbitrary error with an ErrorKind, letting call sites
// use %w-wrapping while still carrying the taxonomy through to the
// boundary where it is flattened into a Result's ErrorRecord list.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func NewKindError(kind ErrorKind, err error) *KindError {
	return &KindError{Kind: kind, Err: err}
}

func (e *KindError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *KindError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
