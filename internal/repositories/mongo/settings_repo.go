package mongo

import (
	"context"
	"errors"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*models.BotSettings, error)
}

type settingsRepo struct {
	col *mongo.Collection
}

func NewSettingsRepo(db *mongo.Database) SettingsRepository {
	return &settingsRepo{col: db.Collection("bot_settings")}
}

func (r *settingsRepo) Get(ctx context.Context) (*models.BotSettings, error) {
	var s models.BotSettings
	err := r.col.FindOne(ctx, bson.M{}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}
