package server

// State is a connection's position in the relay state machine.
type State int

// Connection states.
const (
	StateAccepted State = iota
	StateParsed
	StateSelecting
	StateSelected
	StateForwarding
	StateRelayed
	StateRejected
	StateFailed
	StateClosed
)

var stateNames = map[State]string{
	StateAccepted:   "accepted",
	StateParsed:     "parsed",
	StateSelecting:  "selecting",
	StateSelected:   "selected",
	StateForwarding: "forwarding",
	StateRelayed:    "relayed",
	StateRejected:   "rejected",
	StateFailed:     "failed",
	StateClosed:     "closed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether s ends a connection's handling.
func (s State) Terminal() bool {
	return s == StateRelayed || s == StateRejected || s == StateFailed
}
