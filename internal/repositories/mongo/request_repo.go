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

type RequestRepository interface {
	Create(ctx context.Context, req *models.SupportRequest) error
	GetByRequestID(ctx context.Context, requestID string) (*models.SupportRequest, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SupportRequest, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SupportRequest, error)
	ExistsBySessionTitle(ctx context.Context, sessionID, title string) (bool, error)
	UpdateStatus(ctx context.Context, requestID string, set bson.M) error
	Delete(ctx context.Context, requestID string) error
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}

type requestRepo struct {
	col *mongo.Collection
}

func NewRequestRepo(db *mongo.Database) RequestRepository {
	return &requestRepo{col: db.Collection("requests")}
}

func (r *requestRepo) Create(ctx context.Context, req *models.SupportRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, req)
	return err
}

func (r *requestRepo) GetByRequestID(ctx context.Context, requestID string) (*models.SupportRequest, error) {
	var req models.SupportRequest
	err := r.col.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &req, err
}

func (r *requestRepo) list(ctx context.Context, filter bson.M, limit int) ([]models.SupportRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	cur, err := r.col.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SupportRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requestRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.SupportRequest, error) {
	return r.list(ctx, bson.M{"user_id": userID}, limit)
}

func (r *requestRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SupportRequest, error) {
	return r.list(ctx, bson.M{"session_id": sessionID}, limit)
}

func (r *requestRepo) ExistsBySessionTitle(ctx context.Context, sessionID, title string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"session_id": sessionID, "title": title}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *requestRepo) UpdateStatus(ctx context.Context, requestID string, set bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"request_id": requestID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *requestRepo) Delete(ctx context.Context, requestID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"request_id": requestID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *requestRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
