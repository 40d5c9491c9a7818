package voice

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/services"
	"gorm.io/datatypes"
)

type fakeChat struct {
	mu          sync.Mutex
	saved       []services.AddMessageInput
	agentJoined bool
}

func (f *fakeChat) AddMessage(ctx context.Context, in services.AddMessageInput) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, in)
	return &models.Message{MessageID: "m-test", SessionID: in.SessionID, Content: in.Content}, nil
}

func (f *fakeChat) HasAgentJoined(ctx context.Context, sessionID string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.agentJoined {
		return true, "agent-1", nil
	}
	return false, "", nil
}

func (f *fakeChat) savedMessages() []services.AddMessageInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]services.AddMessageInput, len(f.saved))
	copy(out, f.saved)
	return out
}

func (f *fakeChat) setAgentJoined(v bool) {
	f.mu.Lock()
	f.agentJoined = v
	f.mu.Unlock()
}

func (f *fakeChat) CreateSession(ctx context.Context, in services.CreateSessionInput) (*models.Session, error) {
	return nil, nil
}
func (f *fakeChat) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return nil, nil
}
func (f *fakeChat) ListSessions(ctx context.Context, authorID string, limit int) ([]models.Session, error) {
	return nil, nil
}
func (f *fakeChat) CloseSession(ctx context.Context, sessionID string) error  { return nil }
func (f *fakeChat) DeleteSession(ctx context.Context, sessionID string) error { return nil }
func (f *fakeChat) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	return nil, nil
}
func (f *fakeChat) EditMessage(ctx context.Context, messageID, content string) (*models.Message, []string, error) {
	return nil, nil, nil
}
func (f *fakeChat) DeleteMessage(ctx context.Context, messageID string) ([]string, error) {
	return nil, nil
}
func (f *fakeChat) AssignAgent(ctx context.Context, sessionID, agentID string) error { return nil }
func (f *fakeChat) ReleaseAgent(ctx context.Context, sessionID string) error         { return nil }
func (f *fakeChat) SeedFromSource(ctx context.Context, sessionID string) (*models.Message, error) {
	return nil, nil
}

type fakeArchive struct {
	mu   sync.Mutex
	rows []string
}

func (f *fakeArchive) Append(ctx context.Context, sessionID, userID, role, content string, meta datatypes.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, role+": "+content)
	return nil
}

func (f *fakeArchive) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error) {
	return nil, nil
}

type fakeEscalator struct {
	mu     sync.Mutex
	raised []Escalation
}

func (f *fakeEscalator) Raise(ctx context.Context, e Escalation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised = append(f.raised, e)
	return nil
}

type engineHarness struct {
	engine    *Engine
	transport *fakeTransport
	chat      *fakeChat
	archive   *fakeArchive
	escalator *fakeEscalator
	audio     *AudioController
	manager   *Manager
	cancel    context.CancelFunc
	done      chan struct{}
}

func newEngineHarness(t *testing.T, cfg Config) *engineHarness {
	t.Helper()

	tr := newFakeTransport()
	chat := &fakeChat{}
	archive := &fakeArchive{}
	escalator := &fakeEscalator{}
	audio := NewAudioController(testLogger())
	manager := NewManager(cfg, tr, NewSoftDevices(true), audio, testLogger())

	eng := NewEngine(EngineDeps{
		SessionID: "s1",
		User:      Identity{ID: "u1", Name: "Avery"},
		Config:    cfg,
		Manager:   manager,
		Transport: tr,
		Audio:     audio,
		Chat:      chat,
		Archive:   archive,
		Escalator: escalator,
		Log:       testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	h := &engineHarness{
		engine: eng, transport: tr, chat: chat, archive: archive,
		escalator: escalator, audio: audio, manager: manager,
		cancel: cancel, done: done,
	}
	t.Cleanup(func() {
		cancel()
		close(tr.events)
		<-done
	})
	return h
}

func (h *engineHarness) emit(ev Event) { h.transport.events <- ev }

func (h *engineHarness) waitSaved(t *testing.T, n int) []services.AddMessageInput {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		h.engine.Queue().Flush()
		if got := h.chat.savedMessages(); len(got) >= n {
			return got
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d saved messages, have %d", n, len(h.chat.savedMessages()))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngineSavesFinalUserTranscript(t *testing.T) {
	h := newEngineHarness(t, Config{})

	h.emit(Event{Type: EventUserStartedSpeaking})
	h.emit(Event{Type: EventUserTranscript, Text: "hel"})
	h.emit(Event{Type: EventUserTranscript, Text: "hello ther"})
	h.emit(Event{Type: EventUserTranscript, Text: "hello there there", Final: true})

	saved := h.waitSaved(t, 1)
	if saved[0].Content != "hello there" {
		t.Fatalf("saved %q, want %q", saved[0].Content, "hello there")
	}
	if saved[0].SenderRole != models.RoleCustomer {
		t.Fatalf("role = %q", saved[0].SenderRole)
	}
	if saved[0].SenderID != "u1" {
		t.Fatalf("sender = %q", saved[0].SenderID)
	}
}

func TestEngineDropsTranscriptWhileMicOff(t *testing.T) {
	h := newEngineHarness(t, Config{})
	if err := h.audio.SetMicrophone(context.Background(), false); err != nil {
		t.Fatalf("mic off: %v", err)
	}

	h.emit(Event{Type: EventUserStartedSpeaking})
	h.emit(Event{Type: EventUserTranscript, Text: "buffered echo", Final: true})

	time.Sleep(50 * time.Millisecond)
	h.engine.Queue().Flush()
	if got := h.chat.savedMessages(); len(got) != 0 {
		t.Fatalf("saved %d messages with mic off, want 0", len(got))
	}
}

func TestEngineDuplicateFinalSavedOnce(t *testing.T) {
	h := newEngineHarness(t, Config{})

	h.emit(Event{Type: EventUserTranscript, Text: "my card was charged twice", Final: true})
	h.emit(Event{Type: EventUserTranscript, Text: "my card was charged twice", Final: true})

	saved := h.waitSaved(t, 1)
	time.Sleep(50 * time.Millisecond)
	h.engine.Queue().Flush()
	if got := h.chat.savedMessages(); len(got) != len(saved) {
		t.Fatalf("duplicate final was saved: %d messages", len(got))
	}
}

func TestEngineBotTurnFlushedOnStoppedSpeaking(t *testing.T) {
	h := newEngineHarness(t, Config{})

	h.emit(Event{Type: EventBotLLMStarted})
	h.emit(Event{Type: EventBotToken, Text: "Let me check"})
	h.emit(Event{Type: EventBotToken, Text: "your order."})
	h.emit(Event{Type: EventBotStoppedSpeaking})

	saved := h.waitSaved(t, 1)
	if saved[0].Content != "Let me check your order." {
		t.Fatalf("saved %q", saved[0].Content)
	}
	if saved[0].SenderRole != models.RoleBot {
		t.Fatalf("role = %q", saved[0].SenderRole)
	}
}

func TestEngineBotFallbackTimerFlushes(t *testing.T) {
	h := newEngineHarness(t, Config{BotFlushTimeout: 20 * time.Millisecond})

	h.emit(Event{Type: EventBotLLMStarted})
	h.emit(Event{Type: EventBotToken, Text: "Your refund is on the way."})
	h.emit(Event{Type: EventBotLLMStopped})
	// No stopped-speaking event arrives; the timer must flush.

	saved := h.waitSaved(t, 1)
	if saved[0].Content != "Your refund is on the way." {
		t.Fatalf("saved %q", saved[0].Content)
	}
}

func TestEngineBotTurnSavedAtMostOnce(t *testing.T) {
	h := newEngineHarness(t, Config{BotFlushTimeout: 20 * time.Millisecond})

	h.emit(Event{Type: EventBotLLMStarted})
	h.emit(Event{Type: EventBotToken, Text: "Done."})
	h.emit(Event{Type: EventBotLLMStopped})
	h.emit(Event{Type: EventBotStoppedSpeaking}) // beats the timer

	h.waitSaved(t, 1)
	time.Sleep(60 * time.Millisecond) // past the timer
	h.engine.Queue().Flush()
	if got := h.chat.savedMessages(); len(got) != 1 {
		t.Fatalf("bot turn saved %d times, want 1", len(got))
	}
}

func TestEngineSendTextSkipsBotWhenAgentHolds(t *testing.T) {
	h := newEngineHarness(t, Config{})
	h.chat.setAgentJoined(true)

	if err := h.engine.SendText(context.Background(), "hello?", false); err != nil {
		t.Fatalf("send: %v", err)
	}

	saved := h.chat.savedMessages()
	if len(saved) != 1 || saved[0].Content != "hello?" {
		t.Fatalf("message not saved: %v", saved)
	}
	if turns := h.transport.turns(); len(turns) != 0 {
		t.Fatalf("text forwarded to the bot while an agent holds the session: %v", turns)
	}
}

func TestEngineSendTextForwardsWhenConnected(t *testing.T) {
	h := newEngineHarness(t, Config{ProbeInitialDelay: time.Hour})

	if err := h.manager.Connect(context.Background(), ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := h.engine.SendText(context.Background(), "where is my order", false); err != nil {
		t.Fatalf("send: %v", err)
	}

	turns := h.transport.turns()
	if len(turns) != 1 || turns[0].Content != "where is my order" {
		t.Fatalf("turns = %v", turns)
	}
}

func TestEngineEscalatesOnServerMessage(t *testing.T) {
	h := newEngineHarness(t, Config{})

	payload, _ := json.Marshal(map[string]string{
		"title":       "Refund dispute",
		"description": "Customer disputes a double charge",
		"label":       "urgent",
	})
	h.emit(Event{Type: EventServerMessage, Name: "send_user_request", Payload: payload})

	deadline := time.After(time.Second)
	for {
		h.escalator.mu.Lock()
		n := len(h.escalator.raised)
		h.escalator.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("escalation never raised")
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.escalator.mu.Lock()
	got := h.escalator.raised[0]
	h.escalator.mu.Unlock()
	if got.Title != "Refund dispute" || got.SessionID != "s1" || got.Label != "urgent" {
		t.Fatalf("escalation = %+v", got)
	}
}

func TestEngineForwardsEventsToBus(t *testing.T) {
	h := newEngineHarness(t, Config{})

	ch, cancel := h.engine.Events().Subscribe()
	defer cancel()

	h.emit(Event{Type: EventUserTranscript, Text: "partial"})

	select {
	case ev := <-ch:
		if ev.Type != EventUserTranscript || ev.Text != "partial" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event never reached the bus")
	}
}
