package services

import (
	"context"
	"strings"
	"time"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/realtime"
	repo "github.com/dallosh/livedesk/internal/repositories/mongo"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

type CreateRequestInput struct {
	SessionID   string
	Title       string
	Description string
	UserID      string
	UserName    string
	Label       string
}

type ResolveRequestInput struct {
	RequestID      string
	Status         string
	TechnicianID   string
	TechnicianName string
	TechnicianNote string
}

type RequestService interface {
	// Create raises a ticket. When a ticket with the same title already
	// exists on the session the call is a no-op returning (nil, nil), so
	// retried escalations stay idempotent.
	Create(ctx context.Context, in CreateRequestInput) (*models.SupportRequest, error)
	Get(ctx context.Context, requestID string) (*models.SupportRequest, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SupportRequest, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SupportRequest, error)
	Resolve(ctx context.Context, in ResolveRequestInput) error
	Cancel(ctx context.Context, requestID string) error
	Delete(ctx context.Context, requestID string) error
}

type requestSvc struct {
	requests repo.RequestRepository
	notifier realtime.Notifier
	log      *logrus.Logger
}

func NewRequestService(requests repo.RequestRepository, notifier realtime.Notifier, log *logrus.Logger) RequestService {
	return &requestSvc{requests: requests, notifier: notifier, log: log}
}

func (s *requestSvc) Create(ctx context.Context, in CreateRequestInput) (*models.SupportRequest, error) {
	const op = "RequestService.Create"

	if in.SessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title is required", nil)
	}

	exists, err := s.requests.ExistsBySessionTitle(ctx, in.SessionID, title)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "dedup lookup", err)
	}
	if exists {
		s.log.WithFields(logrus.Fields{"session_id": in.SessionID, "title": title}).
			Debug("duplicate support request ignored")
		return nil, nil
	}

	label := in.Label
	switch label {
	case models.RequestLabelUrgent, models.RequestLabelNormal, models.RequestLabelLow:
	case "":
		label = models.RequestLabelNormal
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown label", nil)
	}

	req := &models.SupportRequest{
		RequestID:   uuid.NewString(),
		SessionID:   in.SessionID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		UserID:      in.UserID,
		UserName:    in.UserName,
		Label:       label,
		Status:      models.RequestStatusOngoing,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "create request", err)
	}

	s.notify(ctx, realtime.KindCreated, req.RequestID, req.SessionID)
	return req, nil
}

func (s *requestSvc) Get(ctx context.Context, requestID string) (*models.SupportRequest, error) {
	const op = "RequestService.Get"

	req, err := s.requests.GetByRequestID(ctx, requestID)
	if err == utils.ErrNotFound {
		return nil, utils.E(utils.CodeNotFound, op, "request not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "load request", err)
	}
	return req, nil
}

func (s *requestSvc) ListByUser(ctx context.Context, userID string, limit int) ([]models.SupportRequest, error) {
	const op = "RequestService.ListByUser"

	out, err := s.requests.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "list requests", err)
	}
	return out, nil
}

func (s *requestSvc) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SupportRequest, error) {
	const op = "RequestService.ListBySession"

	out, err := s.requests.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "list requests", err)
	}
	return out, nil
}

func (s *requestSvc) Resolve(ctx context.Context, in ResolveRequestInput) error {
	const op = "RequestService.Resolve"

	switch in.Status {
	case models.RequestStatusProcessed, models.RequestStatusDone, models.RequestStatusFail:
	default:
		return utils.E(utils.CodeInvalidArgument, op, "unknown resolution status", nil)
	}

	now := time.Now().UTC()
	set := bson.M{
		"status":       in.Status,
		"processed_at": now,
	}
	if in.TechnicianID != "" {
		set["technician_id"] = in.TechnicianID
		set["technician_name"] = in.TechnicianName
	}
	if in.TechnicianNote != "" {
		set["technician_note"] = in.TechnicianNote
	}

	err := s.requests.UpdateStatus(ctx, in.RequestID, set)
	if err == utils.ErrNotFound {
		return utils.E(utils.CodeNotFound, op, "request not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "update request", err)
	}

	s.notify(ctx, realtime.KindPatched, in.RequestID, "")
	return nil
}

func (s *requestSvc) Cancel(ctx context.Context, requestID string) error {
	const op = "RequestService.Cancel"

	err := s.requests.UpdateStatus(ctx, requestID, bson.M{"status": models.RequestStatusCancelled})
	if err == utils.ErrNotFound {
		return utils.E(utils.CodeNotFound, op, "request not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "cancel request", err)
	}

	s.notify(ctx, realtime.KindPatched, requestID, "")
	return nil
}

func (s *requestSvc) Delete(ctx context.Context, requestID string) error {
	const op = "RequestService.Delete"

	err := s.requests.Delete(ctx, requestID)
	if err == utils.ErrNotFound {
		return utils.E(utils.CodeNotFound, op, "request not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "delete request", err)
	}

	s.notify(ctx, realtime.KindDeleted, requestID, "")
	return nil
}

func (s *requestSvc) notify(ctx context.Context, kind, id, sessionID string) {
	ev := realtime.StoreEvent{Collection: "requests", Kind: kind, ID: id, SessionID: sessionID}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("request_id", id).Warn("publish request event failed")
	}
}
