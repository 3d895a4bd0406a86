package portal

type State int

const (
	// StateScanning scans for networks and raises the access point.
	StateScanning State = iota
	// StateAwaitingSubmission serves the portal and waits for input.
	StateAwaitingSubmission
	// StateApplying hands an accepted submission to the radio.
	StateApplying
	// StateSucceeded ends the session with connectivity established.
	StateSucceeded
	// StateFailed ends the session without connectivity.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "SCANNING"
	case StateAwaitingSubmission:
		return "AWAITING_SUBMISSION"
	case StateApplying:
		return "APPLYING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return "INVALID STATE"
	}
}
