package model

import "time"

// SessionLock is an advisory lock on a (coach, date, start) slot. Its _id is
// derived from the slot coordinates so a unique-index violation signals that
// another request is booking the same slot. Locks auto-expire via a TTL index
// on expires_at so a crashed request cannot wedge a slot.
type SessionLock struct {
	ID        string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}
