package voice

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/realtime"
	"github.com/dallosh/livedesk/internal/services"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Escalation is a human-intervention ticket raised from the live path.
type Escalation struct {
	SessionID   string `json:"session_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Label       string `json:"label"`
}

// Escalator hands escalations to the async ticket pipeline.
type Escalator interface {
	Raise(ctx context.Context, e Escalation) error
}

// Engine ties one session's transport events to transcript accumulation,
// persistence and escalation. One Engine per active session.
type Engine struct {
	sessionID string
	user      Identity
	cfg       Config

	manager   *Manager
	transport Transport
	audio     *AudioController
	userAcc   *Accumulator
	botAcc    *Accumulator
	queue     *PersistQueue
	dedup     *realtime.Dedup

	chat      services.ChatService
	archive   services.ArchiveService
	escalator Escalator

	bus *realtime.Bus[Event]
	log *logrus.Logger

	mu       sync.Mutex
	botTimer *clockTimer
}

type EngineDeps struct {
	SessionID string
	User      Identity
	Config    Config

	Manager   *Manager
	Transport Transport
	Audio     *AudioController
	Chat      services.ChatService
	Archive   services.ArchiveService
	Escalator Escalator
	Log       *logrus.Logger
}

func NewEngine(d EngineDeps) *Engine {
	e := &Engine{
		sessionID: d.SessionID,
		user:      d.User,
		cfg:       withDefaults(d.Config),
		manager:   d.Manager,
		transport: d.Transport,
		audio:     d.Audio,
		userAcc:   NewAccumulator(),
		botAcc:    NewAccumulator(),
		queue:     NewPersistQueue(d.Log),
		dedup:     realtime.NewDedup(),
		chat:      d.Chat,
		archive:   d.Archive,
		escalator: d.Escalator,
		bus:       realtime.NewBus[Event](64),
		log:       d.Log,
	}
	e.dedup.Reset(d.SessionID)
	return e
}

// Events exposes the engine's fan-out bus for UI forwarders.
func (e *Engine) Events() *realtime.Bus[Event] { return e.bus }

// Manager exposes the connection lifecycle.
func (e *Engine) Manager() *Manager { return e.manager }

// Audio exposes the mic and speaker controls.
func (e *Engine) Audio() *AudioController { return e.audio }

// Queue exposes the persistence queue, mainly so shutdown can flush it.
func (e *Engine) Queue() *PersistQueue { return e.queue }

// Run consumes transport events until the channel closes or ctx is done.
func (e *Engine) Run(ctx context.Context) {
	events := e.transport.Events()
	for {
		select {
		case <-ctx.Done():
			e.stopBotTimer()
			return
		case ev, ok := <-events:
			if !ok {
				e.stopBotTimer()
				e.flushBotTurn()
				return
			}
			e.handle(ctx, ev)
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventUserStartedSpeaking:
		e.userAcc.Begin()

	case EventUserTranscript:
		if ev.Final {
			// Utterances spoken while the mic is off are echoes of old
			// buffered audio; drop them.
			if e.audio.MicEnabled() {
				if text, ok := e.userAcc.Finalize(ev.Text); ok {
					e.saveTurn(models.RoleCustomer, e.user.ID, e.user.Name, text)
				}
			} else {
				e.userAcc.Begin()
			}
		} else {
			e.userAcc.Add(ev.Text)
		}

	case EventBotLLMStarted:
		e.stopBotTimer()
		e.botAcc.Begin()

	case EventBotToken:
		e.botAcc.Add(ev.Text)

	case EventBotLLMStopped:
		// The stopped-speaking signal usually follows and finalizes the
		// turn; the timer covers streams where it never arrives.
		e.startBotTimer()

	case EventBotStoppedSpeaking:
		e.stopBotTimer()
		e.flushBotTurn()

	case EventServerMessage:
		e.handleServerMessage(ctx, ev)

	case EventError:
		e.log.WithError(ev.Err).Warn("transport error event")
	}

	e.bus.Publish(ev)
}

func (e *Engine) startBotTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.botTimer != nil {
		e.botTimer.Stop()
	}
	e.botTimer = newClockTimer(e.cfg.BotFlushTimeout, e.flushBotTurn)
}

func (e *Engine) stopBotTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.botTimer != nil {
		e.botTimer.Stop()
		e.botTimer = nil
	}
}

func (e *Engine) flushBotTurn() {
	if text, ok := e.botAcc.Flush(); ok {
		e.saveTurn(models.RoleBot, "", "Assistant", text)
	}
}

// saveTurn persists one finalized turn without blocking the event loop.
func (e *Engine) saveTurn(role, senderID, senderName, text string) {
	e.queue.Enqueue(func(ctx context.Context) error {
		msg, err := e.chat.AddMessage(ctx, services.AddMessageInput{
			SessionID:  e.sessionID,
			Content:    text,
			SenderID:   senderID,
			SenderName: senderName,
			SenderRole: role,
		})
		if err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]string{"message_id": msg.MessageID, "origin": "live"})
		if err := e.archive.Append(ctx, e.sessionID, senderID, role, text, datatypes.JSON(meta)); err != nil {
			e.log.WithError(err).Warn("archive append failed")
		}
		return nil
	})
}

func (e *Engine) handleServerMessage(ctx context.Context, ev Event) {
	switch ev.Name {
	case "send_user_request":
		var payload struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Label       string `json:"label"`
		}
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				e.log.WithError(err).Warn("bad escalation payload")
				return
			}
		}
		if payload.Title == "" {
			payload.Title = "Customer needs human assistance"
		}
		esc := Escalation{
			SessionID:   e.sessionID,
			Title:       payload.Title,
			Description: payload.Description,
			UserID:      e.user.ID,
			UserName:    e.user.Name,
			Label:       payload.Label,
		}
		if err := e.escalator.Raise(ctx, esc); err != nil {
			e.log.WithError(err).Warn("raise escalation failed")
		}

	case "attachment_uploaded":
		var payload struct {
			URL  string `json:"url"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.URL == "" {
			return
		}
		content := "Shared attachment: " + payload.URL
		if payload.Name != "" {
			content = "Shared attachment " + payload.Name + ": " + payload.URL
		}
		e.saveTurn(models.RoleCustomer, e.user.ID, e.user.Name, content)

	default:
		e.log.WithField("name", ev.Name).Debug("unhandled server message")
	}
}

// SendText persists a typed customer message and forwards it to the
// agent unless a human agent holds the session. alreadySaved skips the
// store write for messages created through the REST surface first.
func (e *Engine) SendText(ctx context.Context, text string, alreadySaved bool) error {
	const op = "Engine.SendText"

	if !alreadySaved {
		if _, err := e.chat.AddMessage(ctx, services.AddMessageInput{
			SessionID:  e.sessionID,
			Content:    text,
			SenderID:   e.user.ID,
			SenderName: e.user.Name,
			SenderRole: models.RoleCustomer,
		}); err != nil {
			return err
		}
	}

	joined, _, err := e.chat.HasAgentJoined(ctx, e.sessionID)
	if err != nil {
		return err
	}
	if joined {
		// The human agent answers; the bot must not see this turn.
		return nil
	}

	if e.manager.State() != StateConnected {
		return utils.E(utils.CodeUnavailable, op, "agent connection is down", nil)
	}
	return e.transport.AppendTurn(ctx, Turn{Role: models.RoleCustomer, Content: text}, true)
}

// ShouldApply reports whether a store notification is new to this engine
// and marks it applied.
func (e *Engine) ShouldApply(eventID string) bool {
	if !e.dedup.ShouldProcess(eventID) {
		return false
	}
	e.dedup.MarkProcessed(eventID)
	return true
}
