package network

import (
	"fmt"
)

type JoinReason int

const (
	// ReasonCredentialInvalid means the network rejected the supplied
	// passphrase or identity during authentication.
	ReasonCredentialInvalid JoinReason = iota
	// ReasonAssociationFailure means the radio could not associate
	// with the network at all.
	ReasonAssociationFailure
	// ReasonTimeout means the join attempt exceeded its deadline.
	ReasonTimeout
)

func (r JoinReason) String() string {
	switch r {
	case ReasonCredentialInvalid:
		return "invalid credentials"
	case ReasonAssociationFailure:
		return "association failure"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// JoinError reports a failed join attempt. All join failures are
// recoverable within a portal session; the reason is shown to the user
// so they can correct their input before retrying.
type JoinError struct {
	Reason JoinReason
	Ssid   string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("could not join %v: %v", e.Ssid, e.Reason)
}
