package voice

import (
	"context"
	"encoding/json"

	"github.com/dallosh/livedesk/internal/models"
)

// Turn is one conversation turn forwarded to the agent service.
type Turn struct {
	Role    string `json:"role"` // customer|bot|agent
	Content string `json:"content"`
}

// Identity is the customer on whose behalf the connection runs.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConnectRequest carries the session context the agent service needs to
// resume a conversation: prior turns, agent settings and the caller.
type ConnectRequest struct {
	SessionID string
	AgentType string
	History   []Turn
	Settings  *models.BotSettings
	User      Identity
	Token     string
}

type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventBotReady     EventType = "bot_ready"

	EventUserStartedSpeaking EventType = "user_started_speaking"
	EventUserStoppedSpeaking EventType = "user_stopped_speaking"
	EventUserTranscript      EventType = "user_transcript"

	EventBotLLMStarted      EventType = "bot_llm_started"
	EventBotLLMStopped      EventType = "bot_llm_stopped"
	EventBotToken           EventType = "bot_token"
	EventBotStartedSpeaking EventType = "bot_started_speaking"
	EventBotStoppedSpeaking EventType = "bot_stopped_speaking"

	EventServerMessage EventType = "server_message"
	EventError         EventType = "error"
)

// Event is one signal from the agent transport. Text carries transcript
// or token payloads, Name and Payload carry server messages.
type Event struct {
	Type    EventType
	Text    string
	Final   bool
	Name    string
	Payload json.RawMessage
	Err     error
}

// Transport is the wire to the remote agent service. Implementations must
// deliver events in arrival order on the Events channel and close it when
// the connection ends.
type Transport interface {
	Connect(ctx context.Context, req ConnectRequest) error
	Disconnect(ctx context.Context) error
	Events() <-chan Event

	// AppendTurn adds a turn to the agent's context. When runImmediately
	// is set the agent responds to it right away.
	AppendTurn(ctx context.Context, t Turn, runImmediately bool) error
	SendClientMessage(ctx context.Context, name string, payload any) error
	EnableMic(ctx context.Context, enabled bool) error
}
