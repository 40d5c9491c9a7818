package postgres

import (
	"context"
	"errors"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/utils"
	"gorm.io/gorm"
)

type ArchiveRepo interface {
	Insert(ctx context.Context, row *models.TranscriptLog) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error)
	GetByID(ctx context.Context, id string) (*models.TranscriptLog, error)
}

type archiveRepo struct {
	db *gorm.DB
}

func NewArchiveRepo(db *gorm.DB) ArchiveRepo {
	return &archiveRepo{db: db}
}

func (r *archiveRepo) Insert(ctx context.Context, row *models.TranscriptLog) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *archiveRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.TranscriptLog
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *archiveRepo) GetByID(ctx context.Context, id string) (*models.TranscriptLog, error) {
	var row models.TranscriptLog
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
