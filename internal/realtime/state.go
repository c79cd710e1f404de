package realtime

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
