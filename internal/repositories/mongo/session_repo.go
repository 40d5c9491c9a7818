package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]models.Session, error)
	UpdateLastMessage(ctx context.Context, sessionID, content string, at time.Time) error
	AssignAgent(ctx context.Context, sessionID, agentID string) error
	ClearAgent(ctx context.Context, sessionID string) error
	// MarkSeeded flips the seeded flag and reports whether this call won
	// the flip (false means the session was already seeded).
	MarkSeeded(ctx context.Context, sessionID string) (bool, error)
	SetStatus(ctx context.Context, sessionID, status string) error
	Delete(ctx context.Context, sessionID string) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) ListByAuthor(ctx context.Context, authorID string, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	cur, err := r.col.Find(ctx,
		bson.M{"author_id": authorID},
		options.Find().
			SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Session
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) UpdateLastMessage(ctx context.Context, sessionID, content string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"last_message":    content,
			"last_message_at": at.UTC(),
			"status":          models.SessionStatusActive,
			"updated_at":      time.Now().UTC(),
		}},
	)
	return err
}

func (r *sessionRepo) AssignAgent(ctx context.Context, sessionID, agentID string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"agent_id": agentID, "updated_at": time.Now().UTC()}},
	)
	return err
}

func (r *sessionRepo) ClearAgent(ctx context.Context, sessionID string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{
			"$unset": bson.M{"agent_id": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}

func (r *sessionRepo) MarkSeeded(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "seeded": false},
		bson.M{"$set": bson.M{"seeded": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *sessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
