package netsync

// Status is the session's connection and round state as a UI would show it.
type Status int

const (
	StatusConnecting Status = iota
	// StatusWaiting means assigned but the round is not running, usually
	// because the room is waiting for a second player.
	StatusWaiting
	StatusRunning
	// StatusRejected means the room was full.
	StatusRejected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusWaiting:
		return "waiting for players"
	case StatusRunning:
		return "running"
	case StatusRejected:
		return "room full"
	case StatusDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// remoteState tracks what this client knows about another player.
type remoteState int

const (
	remoteUnknown remoteState = iota
	remoteMirrored
	remoteDeparted
)
