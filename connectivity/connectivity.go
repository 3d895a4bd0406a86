package connectivity

import (
	"context"
)

type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	switch s {
	case Offline:
		return "OFFLINE"
	case Online:
		return "ONLINE"
	default:
		return "INVALID STATE"
	}
}

// Checker determines whether the device currently has working internet
// access. A probe is bounded by its own timeout and must never block
// the caller beyond that. Any failure reads as Offline.
type Checker interface {
	Check(ctx context.Context) State
}
