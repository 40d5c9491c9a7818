package voice

// ConnectionState is the lifecycle state of one agent connection.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// AudioState is the desired microphone and speaker state. It outlives the
// connection: toggles made while disconnected are cached here and applied
// on the next attach.
type AudioState struct {
	MicrophoneEnabled bool
	SpeakerEnabled    bool
}
