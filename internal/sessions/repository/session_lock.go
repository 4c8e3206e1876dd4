package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"coachdesk/pkg/config"
	"coachdesk/pkg/model"
)

const LockCollectionName = "Session_locks"

// SessionLockRepository provides operations for advisory slot locks.
type SessionLockRepository interface {
	Create(ctx context.Context, lock *model.SessionLock) (*model.SessionLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoSessionLockRepository struct {
	collection *mongo.Collection
}

func NewSessionLockRepository(cfg *config.Config) SessionLockRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoSessionLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Create inserts the lock; a duplicate key error means another request holds
// the slot.
func (r *mongoSessionLockRepository) Create(ctx context.Context, lock *model.SessionLock) (*model.SessionLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

// Delete removes an advisory lock.
func (r *mongoSessionLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
