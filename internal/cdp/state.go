package cdp

// ConnectionState is the lifecycle position of a Connection.
type ConnectionState int

const (
	// StateUnconnected is the initial state; Connect may be called.
	StateUnconnected ConnectionState = iota
	// StateConnecting indicates discovery or the channel dial is in progress.
	StateConnecting
	// StateOpen indicates the channel is open and frames flow both ways.
	StateOpen
	// StateClosed is terminal.
	StateClosed
)

// String returns a human-readable name for the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
