package session

// State is the lifecycle state of a session handle.
//
// Disconnected → Connecting → Connected → Executing → Connected →
// Disconnecting → Disconnected, with Failed terminal from any
// non-terminal state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Executing
	Disconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Executing:
		return "executing"
	case Disconnecting:
		return "disconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
