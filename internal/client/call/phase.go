package call

// Phase is the call state machine's position. Only one call session
// exists per client; every inbound event and local action is guarded
// by the current phase.
type Phase int

const (
	PhaseIdle    Phase = iota
	PhaseDialing       // call-user sent, waiting for accept/reject
	PhaseRinging       // incoming-call received, accept/reject pending
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDialing:
		return "dialing"
	case PhaseRinging:
		return "ringing"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}
