package services

import (
	"context"
	"time"

	"github.com/dallosh/livedesk/internal/cache"
	"github.com/dallosh/livedesk/internal/models"
	repo "github.com/dallosh/livedesk/internal/repositories/mongo"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/sirupsen/logrus"
)

var settingsCacheKey = cache.Key("bot_settings", "v1")

const (
	settingsCacheTTL = 5 * time.Minute

	defaultInstructions = "You are a support assistant for customers of this service. " +
		"Be concise, stay on the customer's issue, and escalate to a human " +
		"technician when you cannot resolve it."
)

type SettingsService interface {
	// Get returns the configured agent settings, falling back to a safe
	// default when nothing is configured yet.
	Get(ctx context.Context) (*models.BotSettings, error)
}

type settingsSvc struct {
	repo  repo.SettingsRepository
	cache cache.Cache
	log   *logrus.Logger
}

func NewSettingsService(r repo.SettingsRepository, c cache.Cache, log *logrus.Logger) SettingsService {
	return &settingsSvc{repo: r, cache: c, log: log}
}

func (s *settingsSvc) Get(ctx context.Context) (*models.BotSettings, error) {
	const op = "SettingsService.Get"

	if s.cache != nil {
		var cached models.BotSettings
		if hit, err := s.cache.GetJSON(ctx, settingsCacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	cfg, err := s.repo.Get(ctx)
	if err == utils.ErrNotFound {
		return &models.BotSettings{SystemInstructions: defaultInstructions}, nil
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "load settings", err)
	}
	if cfg.SystemInstructions == "" {
		cfg.SystemInstructions = defaultInstructions
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, settingsCacheKey, cfg, settingsCacheTTL); err != nil {
			s.log.WithError(err).Debug("settings cache write failed")
		}
	}
	return cfg, nil
}
