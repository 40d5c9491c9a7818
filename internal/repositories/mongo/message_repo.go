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

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	GetByMessageID(ctx context.Context, messageID string) (*models.Message, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
	Edit(ctx context.Context, messageID, content string, editedAt time.Time) error
	Delete(ctx context.Context, messageID string) error
	// DeleteCreatedAfter removes every message in the session strictly
	// newer than the given time. Returns the ids it removed.
	DeleteCreatedAfter(ctx context.Context, sessionID string, after time.Time) ([]string, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}

type messageRepo struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepository {
	return &messageRepo{col: db.Collection("messages")}
}

func (r *messageRepo) Create(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *messageRepo) GetByMessageID(ctx context.Context, messageID string) (*models.Message, error) {
	var m models.Message
	err := r.col.FindOne(ctx, bson.M{"message_id": messageID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &m, err
}

func (r *messageRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: 1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) Edit(ctx context.Context, messageID, content string, editedAt time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"message_id": messageID},
		bson.M{"$set": bson.M{
			"content":   content,
			"is_edited": true,
			"edited_at": editedAt.UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *messageRepo) Delete(ctx context.Context, messageID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *messageRepo) DeleteCreatedAfter(ctx context.Context, sessionID string, after time.Time) ([]string, error) {
	filter := bson.M{
		"session_id": sessionID,
		"created_at": bson.M{"$gt": after.UTC()},
	}

	cur, err := r.col.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"message_id": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		MessageID string `bson:"message_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MessageID)
	}

	if _, err := r.col.DeleteMany(ctx, filter); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *messageRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
