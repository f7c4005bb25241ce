package session

// State describes the channel lifecycle. Transitions:
//
//	Idle ──Connect──> Connecting ──setup ok──> Open
//	Connecting ──device/dial failure──> Idle / Failed
//	Open ──Close──> Closing ──drained──> Closed
//	Open ──transport error──> Failed
//	Closed / Failed ──Connect──> Connecting
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
