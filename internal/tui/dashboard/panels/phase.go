package panels

// Phase is the render state of one widget slot.
type Phase int

const (
	// PhaseLoading shows a skeleton: data is in flight and nothing is
	// cached for this slot.
	PhaseLoading Phase = iota
	// PhaseError shows the error presentation with bounded retry.
	PhaseError
	// PhaseEmpty shows the slot's "nothing here" message.
	PhaseEmpty
	// PhaseSuccess renders the payload.
	PhaseSuccess
)

// Slot is the store-selected input to the phase decision.
type Slot struct {
	// Loading is true while an agent update for this slot is in flight.
	Loading bool
	// ErrMsg is the agent data error for this slot, if any.
	ErrMsg string
	// HasPayload is true once the slot has ever received good data.
	HasPayload bool
	// Empty is true when the payload is present but empty by the
	// widget's own rule.
	Empty bool
}

// PhaseOf decides what a widget slot renders. A cached payload always
// wins over loading or error: a slot that has previously received good
// data keeps showing it while a refresh is in flight or failing, rather
// than flashing to a spinner or error box.
func PhaseOf(s Slot) Phase {
	if !s.HasPayload {
		if s.Loading {
			return PhaseLoading
		}
		if s.ErrMsg != "" {
			return PhaseError
		}
		return PhaseEmpty
	}
	if s.Empty {
		return PhaseEmpty
	}
	return PhaseSuccess
}
