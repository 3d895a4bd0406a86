package portal

import (
	"fmt"

	"github.com/go-errors/errors"
)

var (
	// ErrSubmissionRejected is returned for submissions arriving while
	// the session is not awaiting input. They never mutate the session.
	ErrSubmissionRejected = errors.New("submission rejected: session is not awaiting input")
	// ErrRescanRejected is returned for rescan requests arriving while
	// the session is not awaiting input.
	ErrRescanRejected = errors.New("rescan rejected: session is not awaiting input")
)

type FailureKind int

const (
	// KindScanFailure means the initial network scan failed. Fatal to
	// the session.
	KindScanFailure FailureKind = iota
	// KindAccessPointStartFailure means the access point or the local
	// web server could not be raised. Fatal to the session.
	KindAccessPointStartFailure
)

func (k FailureKind) String() string {
	switch k {
	case KindScanFailure:
		return "scan failure"
	case KindAccessPointStartFailure:
		return "access point start failure"
	default:
		return "unknown failure"
	}
}

// FatalError ends a session. Join failures are never fatal; they stay
// inside the session as its lastError.
type FatalError struct {
	Kind FailureKind
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
