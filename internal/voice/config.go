package voice

import "time"

// Config tunes the live connection engine. Zero values take the defaults
// below via withDefaults.
type Config struct {
	// AgentBaseURL is the websocket endpoint of the conversational agent
	// service, ex: "wss://agent.internal/ws".
	AgentBaseURL string
	AgentType    string

	// PresenceInterval is how often the human-agent presence check runs.
	PresenceInterval time.Duration

	// BotFlushTimeout bounds how long a finished bot turn may wait for a
	// stopped-speaking signal before its text is flushed anyway.
	BotFlushTimeout time.Duration

	// Readiness probe: the data channel is considered ready once a probe
	// message goes through without error.
	ProbeInitialDelay time.Duration
	ProbeInterval     time.Duration
	ProbeMaxAttempts  int

	ConnectTimeout time.Duration
}

const (
	defaultPresenceInterval  = 5 * time.Second
	defaultBotFlushTimeout   = 500 * time.Millisecond
	defaultProbeInitialDelay = 2 * time.Second
	defaultProbeInterval     = time.Second
	defaultProbeMaxAttempts  = 10
	defaultConnectTimeout    = 15 * time.Second
)

func withDefaults(c Config) Config {
	if c.AgentType == "" {
		c.AgentType = "support"
	}
	if c.PresenceInterval <= 0 {
		c.PresenceInterval = defaultPresenceInterval
	}
	if c.BotFlushTimeout <= 0 {
		c.BotFlushTimeout = defaultBotFlushTimeout
	}
	if c.ProbeInitialDelay <= 0 {
		c.ProbeInitialDelay = defaultProbeInitialDelay
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = defaultProbeInterval
	}
	if c.ProbeMaxAttempts <= 0 {
		c.ProbeMaxAttempts = defaultProbeMaxAttempts
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return c
}
