package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/realtime"
	"github.com/dallosh/livedesk/internal/services"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/dallosh/livedesk/internal/voice"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// WSHandler drives the customer's live session socket. One socket per
// session: commands come in (connect, disconnect, text, audio toggles),
// engine events and status updates go out.
type WSHandler struct {
	chat      services.ChatService
	settings  services.SettingsService
	archive   services.ArchiveService
	escalator voice.Escalator
	notifier  realtime.Notifier
	registry  *voice.Registry
	redis     *redis.Client
	cfg       voice.Config
	log       *logrus.Logger
	upgrader  websocket.Upgrader
}

func NewWSHandler(
	chat services.ChatService,
	settings services.SettingsService,
	archive services.ArchiveService,
	escalator voice.Escalator,
	notifier realtime.Notifier,
	registry *voice.Registry,
	rdb *redis.Client,
	cfg voice.Config,
	log *logrus.Logger,
) *WSHandler {
	return &WSHandler{
		chat:      chat,
		settings:  settings,
		archive:   archive,
		escalator: escalator,
		notifier:  notifier,
		registry:  registry,
		redis:     rdb,
		cfg:       cfg,
		log:       log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type string `json:"type"` // connect|disconnect|send_text|set_mic|set_speaker

	Text         string `json:"text,omitempty"`
	AlreadySaved bool   `json:"already_saved,omitempty"`
	Enabled      bool   `json:"enabled,omitempty"`
}

type wsServerMsg struct {
	Type    string          `json:"type"`
	State   string          `json:"state,omitempty"`
	Event   string          `json:"event,omitempty"`
	Text    string          `json:"text,omitempty"`
	Final   bool            `json:"final,omitempty"`
	Code    utils.Code      `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

func (h *WSHandler) SessionWS(c *gin.Context) {
	const op = "WSHandler.SessionWS"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing session_id", nil))
		return
	}

	sess, err := h.chat.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	role, _ := c.Get("role")
	if sess.AuthorID != userID && role != "agent" && role != "admin" {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return
	}

	token, _ := c.Get("token")
	tokenStr, _ := token.(string)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := h.registry.GetOrCreate(sessionID, func() *voice.Engine {
		transport := voice.NewWSTransport(h.cfg.AgentBaseURL, h.log)
		audio := voice.NewAudioController(h.log)
		manager := voice.NewManager(h.cfg, transport, voice.NewSoftDevices(true), audio, h.log)
		return voice.NewEngine(voice.EngineDeps{
			SessionID: sessionID,
			User:      voice.Identity{ID: sess.AuthorID, Name: sess.AuthorName},
			Config:    h.cfg,
			Manager:   manager,
			Transport: transport,
			Audio:     audio,
			Chat:      h.chat,
			Archive:   h.archive,
			Escalator: h.escalator,
			Log:       h.log,
		})
	})
	sc := newSessionConn(h, engine, sess, tokenStr, wc)

	// engine events -> UI
	events, cancelEvents := engine.Events().Subscribe()
	defer cancelEvents()
	go func() {
		for ev := range events {
			_ = wc.writeJSON(wsServerMsg{
				Type:    "event",
				Event:   string(ev.Type),
				Text:    ev.Text,
				Final:   ev.Final,
				Payload: ev.Payload,
			})
		}
	}()

	// lifecycle transitions -> UI
	states, cancelStates := sc.manager().Transitions().Subscribe()
	defer cancelStates()
	go func() {
		for st := range states {
			_ = wc.writeJSON(wsServerMsg{Type: "state", State: st.String()})
		}
	}()

	// status channel (worker notifications) -> UI
	statusCh := "session:" + sessionID + ":status"
	pubsub := h.redis.Subscribe(ctx, statusCh)
	defer pubsub.Close()
	go func() {
		for m := range pubsub.Channel() {
			_ = wc.writeJSON(wsServerMsg{Type: "status", Payload: json.RawMessage(m.Payload)})
		}
	}()

	// store notifications (REST mutations by agents or other tabs) -> UI
	storeEvents, serr := h.notifier.Subscribe(ctx, "messages", "sessions")
	if serr != nil {
		h.log.WithError(serr).WithField("session_id", sessionID).Warn("store subscription failed")
	} else {
		go forwardStoreEvents(storeEvents, sessionID, engine.ShouldApply, func(m wsServerMsg) error { return wc.writeJSON(m) })
	}

	// presence poll: kick the bot out once a human agent joins
	presence := voice.NewPresenceCoordinator(
		h.cfg.PresenceInterval,
		func(pctx context.Context) (bool, string, error) {
			return h.chat.HasAgentJoined(pctx, sessionID)
		},
		sc.manager(),
		func(joined bool, agentID string) {
			sc.setAgentJoined(joined)
			_ = wc.writeJSON(wsServerMsg{Type: "presence", Text: agentID, Final: joined})
		},
		h.log,
	)
	go presence.Run(ctx)

	// reader: UI commands
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeJSON(wsServerMsg{Type: "error", Code: utils.CodeInvalidArgument, Message: "bad frame"})
			continue
		}
		sc.handle(ctx, msg)
	}

	// Socket gone: tear the agent connection down, flush writes, and let
	// the registry drop the engine once no socket holds it.
	_ = sc.manager().Disconnect(context.Background())
	sc.stopRun()
	engine.Queue().Flush()
	h.registry.Release(sessionID)
}

// forwardStoreEvents relays store change notifications for one session to
// the UI. The notifier delivers at least once, so every event passes
// through the engine's dedup gate before it reaches the socket.
func forwardStoreEvents(events <-chan realtime.StoreEvent, sessionID string, apply func(string) bool, send func(wsServerMsg) error) {
	for ev := range events {
		if ev.SessionID != sessionID {
			continue
		}
		if !apply(ev.Kind + ":" + ev.ID) {
			continue
		}
		_ = send(wsServerMsg{
			Type:    "store",
			Event:   ev.Collection + "." + ev.Kind,
			Text:    ev.ID,
			Payload: ev.Data,
		})
	}
}

// sessionConn is the per-socket command processor.
type sessionConn struct {
	h      *WSHandler
	engine *voice.Engine
	sess   *models.Session
	token  string
	wc     *wsConn

	mu          sync.Mutex
	agentJoined bool
	runCancel   context.CancelFunc
}

func newSessionConn(h *WSHandler, engine *voice.Engine, sess *models.Session, token string, wc *wsConn) *sessionConn {
	return &sessionConn{h: h, engine: engine, sess: sess, token: token, wc: wc}
}

func (s *sessionConn) manager() *voice.Manager { return s.engine.Manager() }

func (s *sessionConn) setAgentJoined(v bool) {
	s.mu.Lock()
	s.agentJoined = v
	s.mu.Unlock()
}

func (s *sessionConn) isAgentJoined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentJoined
}

func (s *sessionConn) stopRun() {
	s.mu.Lock()
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	s.mu.Unlock()
}

func (s *sessionConn) handle(ctx context.Context, msg wsClientMsg) {
	switch msg.Type {
	case "connect":
		s.connect(ctx)
	case "disconnect":
		if err := s.manager().Disconnect(ctx); err != nil {
			s.fail(err)
		}
		s.stopRun()
	case "send_text":
		if err := s.engine.SendText(ctx, msg.Text, msg.AlreadySaved); err != nil {
			s.fail(err)
		}
	case "set_mic":
		if err := s.engine.Audio().SetMicrophone(ctx, msg.Enabled); err != nil {
			s.fail(err)
		}
	case "set_speaker":
		if err := s.engine.Audio().SetSpeaker(msg.Enabled); err != nil {
			s.fail(err)
		}
	default:
		_ = s.wc.writeJSON(wsServerMsg{Type: "error", Code: utils.CodeInvalidArgument, Message: "unknown command"})
	}
}

func (s *sessionConn) connect(ctx context.Context) {
	const op = "WSHandler.connect"

	if s.isAgentJoined() {
		s.fail(utils.E(utils.CodeConflict, op, "a human agent holds this session", nil))
		return
	}

	// Seed the originating post as the first message, at most once.
	if _, err := s.h.chat.SeedFromSource(ctx, s.sess.SessionID); err != nil {
		s.h.log.WithError(err).Warn("seed from source failed")
	}

	history, err := s.h.chat.History(ctx, s.sess.SessionID, 0)
	if err != nil {
		s.fail(err)
		return
	}
	turns := make([]voice.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, voice.Turn{Role: m.SenderRole, Content: m.Content})
	}

	settings, err := s.h.settings.Get(ctx)
	if err != nil {
		s.fail(err)
		return
	}

	err = s.manager().Connect(ctx, voice.ConnectRequest{
		SessionID: s.sess.SessionID,
		AgentType: s.h.cfg.AgentType,
		History:   turns,
		Settings:  settings,
		User:      voice.Identity{ID: s.sess.AuthorID, Name: s.sess.AuthorName},
		Token:     s.token,
	})
	if utils.IsCode(err, utils.CodeAlreadyConnected) {
		return // benign: the engine is already live
	}
	if err != nil {
		s.fail(err)
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.runCancel != nil {
		s.runCancel()
	}
	s.runCancel = cancel
	s.mu.Unlock()
	go s.engine.Run(runCtx)
}

func (s *sessionConn) fail(err error) {
	var code utils.Code = utils.CodeInternal
	msg := "internal error"
	if ae, ok := err.(*utils.AppError); ok {
		code = ae.Code
		msg = ae.Message
	}
	_ = s.wc.writeJSON(wsServerMsg{Type: "error", Code: code, Message: msg})
}
