package oauth

// Phase is the position of a flow instance in its lifecycle.
//
//	Initiated -> AwaitingCallback -> Validated -> Exchanging -> Fetching -> Completed
//	                              \-> Rejected            \-> Failed  \-> Failed
type Phase int

const (
	PhaseInitiated Phase = iota
	PhaseAwaitingCallback
	PhaseValidated
	PhaseExchanging
	PhaseFetching
	PhaseCompleted
	PhaseRejected
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseInitiated:        "initiated",
	PhaseAwaitingCallback: "awaiting_callback",
	PhaseValidated:        "validated",
	PhaseExchanging:       "exchanging",
	PhaseFetching:         "fetching",
	PhaseCompleted:        "completed",
	PhaseRejected:         "rejected",
	PhaseFailed:           "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// phaseFor maps a callback outcome to its terminal phase.
func phaseFor(err error) Phase {
	if err == nil {
		return PhaseCompleted
	}
	if KindOf(err).IsValidation() {
		return PhaseRejected
	}
	return PhaseFailed
}
