package voice

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/dallosh/livedesk/internal/utils"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// wsFrame is the JSON envelope on the agent service socket, both ways.
type wsFrame struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Final   bool            `json:"final,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	Turn           *Turn `json:"turn,omitempty"`
	RunImmediately bool  `json:"run_immediately,omitempty"`
	Enabled        bool  `json:"enabled,omitempty"`
}

// WSTransport speaks the agent service's websocket protocol. Writes are
// serialized behind a mutex since gorilla allows one writer at a time.
type WSTransport struct {
	baseURL string
	log     *logrus.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}
}

func NewWSTransport(baseURL string, log *logrus.Logger) *WSTransport {
	return &WSTransport{baseURL: baseURL, log: log}
}

// Connect dials the agent service with the full session context in the
// query string and waits for the connected acknowledgement frame.
func (t *WSTransport) Connect(ctx context.Context, req ConnectRequest) error {
	const op = "WSTransport.Connect"

	u, err := url.Parse(t.baseURL)
	if err != nil {
		return utils.E(utils.CodeInvalidArgument, op, "bad agent base url", err)
	}

	q := u.Query()
	q.Set("session_id", req.SessionID)
	q.Set("agent_type", req.AgentType)
	q.Set("token", req.Token)

	if b, err := json.Marshal(req.History); err == nil {
		q.Set("messages", string(b))
	}
	if req.Settings != nil {
		if b, err := json.Marshal(req.Settings); err == nil {
			q.Set("bot_settings", string(b))
		}
	}
	if b, err := json.Marshal(req.User); err == nil {
		q.Set("user", string(b))
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "dial agent service", err)
	}

	// The service acknowledges before streaming anything else.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var ack wsFrame
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return utils.E(utils.CodeUnavailable, op, "read connect ack", err)
	}
	if ack.Type != string(EventConnected) {
		_ = conn.Close()
		return utils.E(utils.CodeUnavailable, op, "unexpected first frame: "+ack.Type, nil)
	}
	_ = conn.SetReadDeadline(time.Time{})

	events := make(chan Event, 64)
	done := make(chan struct{})

	t.mu.Lock()
	t.conn = conn
	t.events = events
	t.done = done
	t.mu.Unlock()

	events <- Event{Type: EventConnected}
	go t.readLoop(conn, events, done)
	return nil
}

// readLoop pumps frames into the event channel until the socket or the
// done signal ends the connection. Sends select on done so an abandoned
// consumer cannot strand the goroutine on a full buffer.
func (t *WSTransport) readLoop(conn *websocket.Conn, events chan Event, done chan struct{}) {
	defer func() {
		select {
		case events <- Event{Type: EventDisconnected}:
		case <-done:
		}
		close(events)
	}()

	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.WithError(err).Debug("agent socket closed")
			}
			return
		}
		ev := Event{
			Type:    EventType(f.Type),
			Text:    f.Text,
			Final:   f.Final,
			Name:    f.Name,
			Payload: f.Payload,
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

// Events returns the event channel of the current connection. Call after
// Connect; the channel is closed when the connection ends.
func (t *WSTransport) Events() <-chan Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// Disconnect closes the socket. Safe to call repeatedly.
func (t *WSTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

func (t *WSTransport) writeFrame(f wsFrame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return utils.E(utils.CodeUnavailable, "WSTransport.write", "not connected", nil)
	}
	return t.conn.WriteJSON(f)
}

func (t *WSTransport) AppendTurn(ctx context.Context, turn Turn, runImmediately bool) error {
	return t.writeFrame(wsFrame{Type: "append_turn", Turn: &turn, RunImmediately: runImmediately})
}

func (t *WSTransport) SendClientMessage(ctx context.Context, name string, payload any) error {
	f := wsFrame{Type: "client_message", Name: name}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		f.Payload = b
	}
	return t.writeFrame(f)
}

func (t *WSTransport) EnableMic(ctx context.Context, enabled bool) error {
	return t.writeFrame(wsFrame{Type: "enable_mic", Enabled: enabled})
}
