package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newAgentStub serves the agent side of the socket: ack, then the given
// number of token frames. With hold set it keeps the socket open until
// the client closes it; otherwise it closes after the last frame.
func newAgentStub(t *testing.T, frames int, hold bool) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteJSON(wsFrame{Type: string(EventConnected)}); err != nil {
			return
		}
		for i := 0; i < frames; i++ {
			if err := conn.WriteJSON(wsFrame{Type: string(EventBotToken), Text: "tok"}); err != nil {
				return
			}
		}
		if !hold {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWSTransportStreamsEvents(t *testing.T) {
	srv := newAgentStub(t, 3, false)
	defer srv.Close()

	tr := NewWSTransport(wsURL(srv), testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx, ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Disconnect(context.Background())

	var got []EventType
	for ev := range tr.Events() {
		got = append(got, ev.Type)
	}
	want := []EventType{EventConnected, EventBotToken, EventBotToken, EventBotToken, EventDisconnected}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWSTransportDisconnectUnblocksReader(t *testing.T) {
	// Far more frames than the event buffer holds, and no consumer.
	srv := newAgentStub(t, 200, true)
	defer srv.Close()

	tr := NewWSTransport(wsURL(srv), testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx, ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	events := tr.Events()

	// Give the read loop time to fill the buffer and block.
	time.Sleep(100 * time.Millisecond)

	if err := tr.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return // read loop exited and closed the channel
			}
		case <-deadline:
			t.Fatal("event channel never closed after disconnect")
		}
	}
}
