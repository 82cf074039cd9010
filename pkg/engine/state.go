package engine

// State is the lifecycle state of an Engine.
type State int

const (
	// Created is the state between construction and Start.
	Created State = iota
	// Joining means a join request has been sent and no response has arrived yet.
	Joining
	// Active means the node is a member of the group and performs protocol duties.
	Active
	// Stopped is terminal, the node neither sends nor handles messages.
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Joining:
		return "JOINING"
	case Active:
		return "ACTIVE"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// handlesMessages reports if inbound messages are processed in this state.
func (s State) handlesMessages() bool {
	return s == Joining || s == Active
}
