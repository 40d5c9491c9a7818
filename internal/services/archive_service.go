package services

import (
	"context"
	"time"

	"github.com/dallosh/livedesk/internal/models"
	pg "github.com/dallosh/livedesk/internal/repositories/postgres"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type ArchiveService interface {
	// Append writes one finalized turn to the archive table. Metadata is
	// marshaled as-is; a nil map writes SQL NULL.
	Append(ctx context.Context, sessionID, userID, role, content string, meta datatypes.JSON) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error)
}

type archiveSvc struct {
	repo pg.ArchiveRepo
	log  *logrus.Logger
}

func NewArchiveService(repo pg.ArchiveRepo, log *logrus.Logger) ArchiveService {
	return &archiveSvc{repo: repo, log: log}
}

func (s *archiveSvc) Append(ctx context.Context, sessionID, userID, role, content string, meta datatypes.JSON) error {
	const op = "ArchiveService.Append"

	if content == "" {
		return nil
	}
	row := &models.TranscriptLog{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return utils.E(utils.CodeInternal, op, "insert transcript log", err)
	}
	return nil
}

func (s *archiveSvc) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error) {
	const op = "ArchiveService.ListBySession"

	rows, err := s.repo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "list transcript logs", err)
	}
	return rows, nil
}
