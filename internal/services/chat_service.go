package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/realtime"
	repo "github.com/dallosh/livedesk/internal/repositories/mongo"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CreateSessionInput struct {
	AuthorID   string
	AuthorName string
	Content    string
	Source     string
	SourceID   string
}

type AddMessageInput struct {
	SessionID  string
	Content    string
	SenderID   string
	SenderName string
	SenderRole string
	AgentID    string
}

type ChatService interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	ListSessions(ctx context.Context, authorID string, limit int) ([]models.Session, error)
	CloseSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error

	AddMessage(ctx context.Context, in AddMessageInput) (*models.Message, error)
	History(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
	// EditMessage replaces the content of a customer message and removes
	// every message created after it, so the conversation can be replayed
	// from the edited turn. Returns the ids of the removed messages.
	EditMessage(ctx context.Context, messageID, content string) (*models.Message, []string, error)
	// DeleteMessage removes a message together with everything after it.
	DeleteMessage(ctx context.Context, messageID string) ([]string, error)

	HasAgentJoined(ctx context.Context, sessionID string) (bool, string, error)
	AssignAgent(ctx context.Context, sessionID, agentID string) error
	ReleaseAgent(ctx context.Context, sessionID string) error

	// SeedFromSource sends the session's originating post text as the
	// first customer message, at most once per session.
	SeedFromSource(ctx context.Context, sessionID string) (*models.Message, error)
}

type chatSvc struct {
	sessions repo.SessionRepository
	messages repo.MessageRepository
	requests repo.RequestRepository
	notifier realtime.Notifier
	log      *logrus.Logger
}

func NewChatService(
	sessions repo.SessionRepository,
	messages repo.MessageRepository,
	requests repo.RequestRepository,
	notifier realtime.Notifier,
	log *logrus.Logger,
) ChatService {
	return &chatSvc{
		sessions: sessions,
		messages: messages,
		requests: requests,
		notifier: notifier,
		log:      log,
	}
}

func (s *chatSvc) CreateSession(ctx context.Context, in CreateSessionInput) (*models.Session, error) {
	const op = "ChatService.CreateSession"

	if in.AuthorID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "author_id is required", nil)
	}

	sess := &models.Session{
		SessionID:  uuid.NewString(),
		AuthorID:   in.AuthorID,
		AuthorName: in.AuthorName,
		Content:    strings.TrimSpace(in.Content),
		Source:     in.Source,
		SourceID:   in.SourceID,
		Status:     models.SessionStatusOpen,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "create session", err)
	}

	s.publish(ctx, "sessions", realtime.KindCreated, sess.SessionID, sess.SessionID, sess)
	return sess, nil
}

func (s *chatSvc) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "ChatService.GetSession"

	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err == utils.ErrNotFound {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "load session", err)
	}
	return sess, nil
}

func (s *chatSvc) ListSessions(ctx context.Context, authorID string, limit int) ([]models.Session, error) {
	const op = "ChatService.ListSessions"

	out, err := s.sessions.ListByAuthor(ctx, authorID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "list sessions", err)
	}
	return out, nil
}

func (s *chatSvc) CloseSession(ctx context.Context, sessionID string) error {
	const op = "ChatService.CloseSession"

	if err := s.sessions.SetStatus(ctx, sessionID, models.SessionStatusClosed); err != nil {
		return utils.E(utils.CodeInternal, op, "close session", err)
	}
	s.publish(ctx, "sessions", realtime.KindPatched, sessionID, sessionID, nil)
	return nil
}

// DeleteSession removes child rows first, then the session row. Failures
// on children are logged and do not abort: the outcome is governed by the
// session row delete alone, so a retry can finish a partial cleanup.
func (s *chatSvc) DeleteSession(ctx context.Context, sessionID string) error {
	const op = "ChatService.DeleteSession"

	if n, err := s.messages.DeleteBySession(ctx, sessionID); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).
			Warn("delete session: removing messages failed")
	} else {
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "deleted": n}).
			Debug("delete session: messages removed")
	}

	if n, err := s.requests.DeleteBySession(ctx, sessionID); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).
			Warn("delete session: removing requests failed")
	} else {
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "deleted": n}).
			Debug("delete session: requests removed")
	}

	err := s.sessions.Delete(ctx, sessionID)
	if err == utils.ErrNotFound {
		return utils.E(utils.CodeNotFound, op, "session not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "delete session", err)
	}

	s.publish(ctx, "sessions", realtime.KindDeleted, sessionID, sessionID, nil)
	return nil
}

func (s *chatSvc) AddMessage(ctx context.Context, in AddMessageInput) (*models.Message, error) {
	const op = "ChatService.AddMessage"

	if in.SessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "content is empty", nil)
	}
	switch in.SenderRole {
	case models.RoleCustomer, models.RoleBot, models.RoleAgent:
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown sender role", nil)
	}

	msg := &models.Message{
		MessageID:  uuid.NewString(),
		SessionID:  in.SessionID,
		Content:    content,
		SenderID:   in.SenderID,
		SenderName: in.SenderName,
		SenderRole: in.SenderRole,
		AgentID:    in.AgentID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "create message", err)
	}

	if err := s.sessions.UpdateLastMessage(ctx, in.SessionID, content, msg.CreatedAt); err != nil {
		s.log.WithError(err).WithField("session_id", in.SessionID).
			Warn("update session last message failed")
	}

	s.publish(ctx, "messages", realtime.KindCreated, msg.MessageID, msg.SessionID, msg)
	return msg, nil
}

func (s *chatSvc) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	const op = "ChatService.History"

	out, err := s.messages.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "list messages", err)
	}
	return out, nil
}

func (s *chatSvc) EditMessage(ctx context.Context, messageID, content string) (*models.Message, []string, error) {
	const op = "ChatService.EditMessage"

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "content is empty", nil)
	}

	msg, err := s.messages.GetByMessageID(ctx, messageID)
	if err == utils.ErrNotFound {
		return nil, nil, utils.E(utils.CodeNotFound, op, "message not found", err)
	}
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "load message", err)
	}

	now := time.Now().UTC()
	if err := s.messages.Edit(ctx, messageID, content, now); err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "edit message", err)
	}
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now

	removed, err := s.messages.DeleteCreatedAfter(ctx, msg.SessionID, msg.CreatedAt)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "remove later messages", err)
	}

	s.publish(ctx, "messages", realtime.KindPatched, msg.MessageID, msg.SessionID, msg)
	for _, id := range removed {
		s.publish(ctx, "messages", realtime.KindDeleted, id, msg.SessionID, nil)
	}
	return msg, removed, nil
}

func (s *chatSvc) DeleteMessage(ctx context.Context, messageID string) ([]string, error) {
	const op = "ChatService.DeleteMessage"

	msg, err := s.messages.GetByMessageID(ctx, messageID)
	if err == utils.ErrNotFound {
		return nil, utils.E(utils.CodeNotFound, op, "message not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "load message", err)
	}

	later, err := s.messages.DeleteCreatedAfter(ctx, msg.SessionID, msg.CreatedAt)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "remove later messages", err)
	}
	if err := s.messages.Delete(ctx, messageID); err != nil && err != utils.ErrNotFound {
		return nil, utils.E(utils.CodeInternal, op, "delete message", err)
	}

	removed := append([]string{messageID}, later...)
	for _, id := range removed {
		s.publish(ctx, "messages", realtime.KindDeleted, id, msg.SessionID, nil)
	}
	return removed, nil
}

func (s *chatSvc) HasAgentJoined(ctx context.Context, sessionID string) (bool, string, error) {
	const op = "ChatService.HasAgentJoined"

	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err == utils.ErrNotFound {
		return false, "", utils.E(utils.CodeNotFound, op, "session not found", err)
	}
	if err != nil {
		return false, "", utils.E(utils.CodeInternal, op, "load session", err)
	}
	return sess.AgentID != "", sess.AgentID, nil
}

func (s *chatSvc) AssignAgent(ctx context.Context, sessionID, agentID string) error {
	const op = "ChatService.AssignAgent"

	if agentID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "agent_id is required", nil)
	}

	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err == utils.ErrNotFound {
		return utils.E(utils.CodeNotFound, op, "session not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "load session", err)
	}
	if sess.AgentID != "" && sess.AgentID != agentID {
		return utils.E(utils.CodeConflict, op, "session already held by another agent", nil)
	}

	if err := s.sessions.AssignAgent(ctx, sessionID, agentID); err != nil {
		return utils.E(utils.CodeInternal, op, "assign agent", err)
	}
	s.publish(ctx, "sessions", realtime.KindPatched, sessionID, sessionID, nil)
	return nil
}

func (s *chatSvc) ReleaseAgent(ctx context.Context, sessionID string) error {
	const op = "ChatService.ReleaseAgent"

	if err := s.sessions.ClearAgent(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "release agent", err)
	}
	s.publish(ctx, "sessions", realtime.KindPatched, sessionID, sessionID, nil)
	return nil
}

var (
	mentionRe = regexp.MustCompile(`@\S+`)
	hashtagRe = regexp.MustCompile(`#\S+`)
	urlRe     = regexp.MustCompile(`https?://\S+`)
)

// stripSourceMarkup removes the social-post artifacts (mentions, hashtags,
// links) from a seeded post so the agent only sees the complaint text.
func stripSourceMarkup(s string) string {
	s = urlRe.ReplaceAllString(s, " ")
	s = mentionRe.ReplaceAllString(s, " ")
	s = hashtagRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func (s *chatSvc) SeedFromSource(ctx context.Context, sessionID string) (*models.Message, error) {
	const op = "ChatService.SeedFromSource"

	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err == utils.ErrNotFound {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "load session", err)
	}

	text := stripSourceMarkup(sess.Content)
	if text == "" {
		return nil, nil
	}

	// Flip the flag first so concurrent opens seed at most once.
	won, err := s.sessions.MarkSeeded(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "mark seeded", err)
	}
	if !won {
		return nil, nil
	}

	return s.AddMessage(ctx, AddMessageInput{
		SessionID:  sessionID,
		Content:    text,
		SenderID:   sess.AuthorID,
		SenderName: sess.AuthorName,
		SenderRole: models.RoleCustomer,
	})
}

func (s *chatSvc) publish(ctx context.Context, collection, kind, id, sessionID string, data any) {
	ev := realtime.StoreEvent{Collection: collection, Kind: kind, ID: id, SessionID: sessionID}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			ev.Data = b
		}
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"collection": collection, "kind": kind, "id": id,
		}).Warn("publish store event failed")
	}
}
