package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	sessionserrors "coachdesk/internal/sessions/errors"
	"coachdesk/pkg/config"
	mongotx "coachdesk/pkg/db/mongo"
	"coachdesk/pkg/model"
)

const (
	CollectionName = "Sessions"
)

// SessionRepository is the durable session store. Every write stamps
// updated_at server-side so client clock skew cannot corrupt ordering.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindActiveByCoachOnDate(ctx context.Context, coachID, date string, limit int) ([]*model.Session, error)
	FindActiveByClientOnDate(ctx context.Context, clientID, date string, limit int) ([]*model.Session, error)
	ListByCoach(ctx context.Context, coachID, fromDate, toDate string, limit int, offset int64) ([]*model.Session, error)
	ListByClient(ctx context.Context, clientID, fromDate, toDate string, limit int, offset int64) ([]*model.Session, error)
	CountByCoach(ctx context.Context, coachID, fromDate, toDate string) (int64, error)
	CountByClient(ctx context.Context, clientID, fromDate, toDate string) (int64, error)
	Update(ctx context.Context, id string, session *model.Session) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoSessionRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoSessionRepository(cfg *config.Config) SessionRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoSessionRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

// withTimeout wraps the context with a timeout if not already in a
// transaction. A SessionContext cannot be wrapped without breaking
// transaction semantics, so it is returned unchanged with a no-op cancel.
func (r *mongoSessionRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSessionRepository) Create(ctx context.Context, session *model.Session) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	session.CreatedAt = now
	session.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		session.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sessionserrors.ErrInvalidID, id)
	}

	var session model.Session
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sessionserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return &session, nil
}

func (r *mongoSessionRepository) FindActiveByCoachOnDate(ctx context.Context, coachID, date string, limit int) ([]*model.Session, error) {
	return r.findActiveOnDate(ctx, "coach_id", coachID, date, limit)
}

func (r *mongoSessionRepository) FindActiveByClientOnDate(ctx context.Context, clientID, date string, limit int) ([]*model.Session, error) {
	return r.findActiveOnDate(ctx, "client_id", clientID, date, limit)
}

// findActiveOnDate returns non-terminal sessions for one identity on one day,
// the candidate set for conflict detection.
func (r *mongoSessionRepository) findActiveOnDate(ctx context.Context, identityField, identityID, date string, limit int) ([]*model.Session, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		identityField: identityID,
		"date":        date,
		"status":      bson.M{"$in": model.NonTerminalStatuses()},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find active sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

func (r *mongoSessionRepository) ListByCoach(ctx context.Context, coachID, fromDate, toDate string, limit int, offset int64) ([]*model.Session, error) {
	return r.list(ctx, "coach_id", coachID, fromDate, toDate, limit, offset)
}

func (r *mongoSessionRepository) ListByClient(ctx context.Context, clientID, fromDate, toDate string, limit int, offset int64) ([]*model.Session, error) {
	return r.list(ctx, "client_id", clientID, fromDate, toDate, limit, offset)
}

// list returns all sessions for one identity ordered by date then start time
// ascending, the contract the dashboard views rely on.
func (r *mongoSessionRepository) list(ctx context.Context, identityField, identityID, fromDate, toDate string, limit int, offset int64) ([]*model.Session, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := r.buildListFilter(identityField, identityID, fromDate, toDate)

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

func (r *mongoSessionRepository) CountByCoach(ctx context.Context, coachID, fromDate, toDate string) (int64, error) {
	return r.count(ctx, "coach_id", coachID, fromDate, toDate)
}

func (r *mongoSessionRepository) CountByClient(ctx context.Context, clientID, fromDate, toDate string) (int64, error) {
	return r.count(ctx, "client_id", clientID, fromDate, toDate)
}

func (r *mongoSessionRepository) count(ctx context.Context, identityField, identityID, fromDate, toDate string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := r.buildListFilter(identityField, identityID, fromDate, toDate)

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// buildListFilter narrows by identity and an optional inclusive date range.
// Dates are "2006-01-02" strings, so lexicographic comparison is day order.
func (r *mongoSessionRepository) buildListFilter(identityField, identityID, fromDate, toDate string) bson.M {
	filter := bson.M{
		identityField: identityID,
	}

	if fromDate != "" || toDate != "" {
		dateFilter := bson.M{}
		if fromDate != "" {
			dateFilter["$gte"] = fromDate
		}
		if toDate != "" {
			dateFilter["$lte"] = toDate
		}
		filter["date"] = dateFilter
	}

	return filter
}

func (r *mongoSessionRepository) Update(ctx context.Context, id string, session *model.Session) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sessionserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"client_name":  session.ClientName,
			"coach_name":   session.CoachName,
			"title":        session.Title,
			"type":         session.Type,
			"date":         session.Date,
			"time":         session.Time,
			"duration":     session.Duration,
			"status":       session.Status,
			"notes":        session.Notes,
			"location":     session.Location,
			"meeting_link": session.MeetingLink,
			"updated_at":   time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, sessionserrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoSessionRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", sessionserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if result.DeletedCount == 0 {
		return sessionserrors.ErrNotFound
	}

	return nil
}

func (r *mongoSessionRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
