package model

import (
	"time"
)

type SessionType string

const (
	TypeInPerson SessionType = "in-person"
	TypeVirtual  SessionType = "virtual"
)

type Role string

const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
)

// Session is a single coaching appointment between one coach and one client.
// Date carries day granularity ("2006-01-02"); Time is the wall-clock start
// ("15:04"); Duration is minutes. CreatedAt/UpdatedAt are assigned by the
// repository on write, never by callers.
type Session struct {
	ID          string      `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ClientID    string      `json:"client_id" bson:"client_id" validate:"required,max=64"`
	ClientName  string      `json:"client_name" bson:"client_name" validate:"omitempty,max=100"`
	CoachID     string      `json:"coach_id" bson:"coach_id" validate:"required,max=64"`
	CoachName   string      `json:"coach_name,omitempty" bson:"coach_name,omitempty" validate:"omitempty,max=100"`
	Title       string      `json:"title" bson:"title" validate:"omitempty,max=100"`
	Type        SessionType `json:"type" bson:"type" validate:"required,oneof=in-person virtual"`
	Date        string      `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Time        string      `json:"time" bson:"time" validate:"required,datetime=15:04"`
	Duration    int         `json:"duration" bson:"duration" validate:"required,min=1,max=1440"`
	Status      Status      `json:"status" bson:"status" validate:"required,oneof=requested scheduled completed cancelled"`
	Notes       string      `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	Location    string      `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=200"`
	MeetingLink string      `json:"meeting_link,omitempty" bson:"meeting_link,omitempty" validate:"omitempty,url,max=500"`
	CreatedBy   Role        `json:"created_by" bson:"created_by" validate:"required,oneof=coach client"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// SessionUpdate is a partial patch. Nil fields are left untouched on merge.
type SessionUpdate struct {
	Title       *string      `json:"title,omitempty" validate:"omitempty,max=100"`
	Type        *SessionType `json:"type,omitempty" validate:"omitempty,oneof=in-person virtual"`
	Date        *string      `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time        *string      `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	Duration    *int         `json:"duration,omitempty" validate:"omitempty,min=1,max=1440"`
	Status      *Status      `json:"status,omitempty" validate:"omitempty,oneof=requested scheduled completed cancelled"`
	Notes       *string      `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Location    *string      `json:"location,omitempty" validate:"omitempty,max=200"`
	MeetingLink *string      `json:"meeting_link,omitempty" validate:"omitempty,url,max=500"`
	CoachName   *string      `json:"coach_name,omitempty" validate:"omitempty,max=100"`
	ClientName  *string      `json:"client_name,omitempty" validate:"omitempty,max=100"`
}

// TouchesSlot reports whether applying the patch can move the session's
// time interval, which requires re-running conflict detection.
func (u *SessionUpdate) TouchesSlot() bool {
	return u.Date != nil || u.Time != nil || u.Duration != nil
}
