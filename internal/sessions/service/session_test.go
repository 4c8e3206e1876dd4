package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	sessionserrors "coachdesk/internal/sessions/errors"
	"coachdesk/internal/sessions/notify"
	"coachdesk/internal/sessions/validator"
	"coachdesk/pkg/config"
	mongotx "coachdesk/pkg/db/mongo"
	apperrors "coachdesk/pkg/errors"
	"coachdesk/pkg/identity"
	"coachdesk/pkg/logger"
	"coachdesk/pkg/model"
)

// fakeSessionRepo is an in-memory store honoring the same filtering the
// Mongo repository performs.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session.ID = primitive.NewObjectID().Hex()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, sessionserrors.ErrInvalidID
	}
	session, ok := r.sessions[id]
	if !ok {
		return nil, sessionserrors.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) FindActiveByCoachOnDate(ctx context.Context, coachID, date string, limit int) ([]*model.Session, error) {
	return r.findActive(func(s *model.Session) bool {
		return s.CoachID == coachID && s.Date == date
	})
}

func (r *fakeSessionRepo) FindActiveByClientOnDate(ctx context.Context, clientID, date string, limit int) ([]*model.Session, error) {
	return r.findActive(func(s *model.Session) bool {
		return s.ClientID == clientID && s.Date == date
	})
}

func (r *fakeSessionRepo) findActive(match func(*model.Session) bool) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*model.Session
	for _, s := range r.sessions {
		if s.Status.Terminal() {
			continue
		}
		if match(s) {
			copied := *s
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeSessionRepo) ListByCoach(ctx context.Context, coachID, fromDate, toDate string, limit int, offset int64) ([]*model.Session, error) {
	return r.list(func(s *model.Session) bool { return s.CoachID == coachID }, fromDate, toDate, limit, offset)
}

func (r *fakeSessionRepo) ListByClient(ctx context.Context, clientID, fromDate, toDate string, limit int, offset int64) ([]*model.Session, error) {
	return r.list(func(s *model.Session) bool { return s.ClientID == clientID }, fromDate, toDate, limit, offset)
}

func (r *fakeSessionRepo) list(match func(*model.Session) bool, fromDate, toDate string, limit int, offset int64) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*model.Session
	for _, s := range r.sessions {
		if !match(s) {
			continue
		}
		if fromDate != "" && s.Date < fromDate {
			continue
		}
		if toDate != "" && s.Date > toDate {
			continue
		}
		copied := *s
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Time < result[j].Time
	})

	if offset >= int64(len(result)) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeSessionRepo) CountByCoach(ctx context.Context, coachID, fromDate, toDate string) (int64, error) {
	all, _ := r.list(func(s *model.Session) bool { return s.CoachID == coachID }, fromDate, toDate, len(r.sessions)+1, 0)
	return int64(len(all)), nil
}

func (r *fakeSessionRepo) CountByClient(ctx context.Context, clientID, fromDate, toDate string) (int64, error) {
	all, _ := r.list(func(s *model.Session) bool { return s.ClientID == clientID }, fromDate, toDate, len(r.sessions)+1, 0)
	return int64(len(all)), nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, id string, session *model.Session) (*mongo.UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[id]
	if !ok {
		return nil, sessionserrors.ErrNotFound
	}

	copied := *session
	copied.ID = id
	copied.CreatedAt = existing.CreatedAt
	copied.UpdatedAt = time.Now().UTC()
	r.sessions[id] = &copied

	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return sessionserrors.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

// fakeLockRepo rejects a second Create for a held lock the way the unique
// _id index does.
type fakeLockRepo struct {
	mu    sync.Mutex
	held  map[string]bool
	taken []string
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{held: make(map[string]bool)}
}

func (r *fakeLockRepo) Create(ctx context.Context, lock *model.SessionLock) (*model.SessionLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.held[lock.ID] {
		return nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	}
	r.held[lock.ID] = true
	r.taken = append(r.taken, lock.ID)
	return lock, nil
}

func (r *fakeLockRepo) Delete(ctx context.Context, lockID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, lockID)
	return nil
}

type captureFeed struct {
	mu       sync.Mutex
	notified []string
}

func (f *captureFeed) Notify(identityIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, identityIDs...)
}

type captureNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *captureNotifier) record(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) SessionCreated(ctx context.Context, s *model.Session) {
	n.record(notify.EventSessionCreated)
}
func (n *captureNotifier) SessionApproved(ctx context.Context, s *model.Session) {
	n.record(notify.EventSessionApproved)
}
func (n *captureNotifier) SessionCancelled(ctx context.Context, s *model.Session) {
	n.record(notify.EventSessionCancelled)
}
func (n *captureNotifier) SessionCompleted(ctx context.Context, s *model.Session) {
	n.record(notify.EventSessionCompleted)
}

type fixture struct {
	service  SessionService
	repo     *fakeSessionRepo
	locks    *fakeLockRepo
	feed     *captureFeed
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		DefaultSessionTitle: "Training Session",
		DefaultDurationMin:  60,
		SlotLockTTL:         10 * time.Second,
		FeedSnapshotLimit:   200,
		ConflictScanLimit:   50,
		Log:                 logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT}),
	}

	repo := newFakeSessionRepo()
	locks := newFakeLockRepo()
	feed := &captureFeed{}
	notifier := &captureNotifier{}

	svc := NewSessionService(cfg, repo, locks, validator.NewSessionValidator(), feed, notifier)
	return &fixture{service: svc, repo: repo, locks: locks, feed: feed, notifier: notifier}
}

func coachActor(id string) identity.Actor {
	return identity.Actor{ID: id, Role: model.RoleCoach}
}

func clientActor(id string) identity.Actor {
	return identity.Actor{ID: id, Role: model.RoleClient}
}

func virtualSession(coachID, clientID, date, start string, duration int) *model.Session {
	return &model.Session{
		CoachID:     coachID,
		ClientID:    clientID,
		Type:        model.TypeVirtual,
		Date:        date,
		Time:        start,
		Duration:    duration,
		MeetingLink: "https://meet.example.com/abc",
	}
}

func mustCreate(t *testing.T, f *fixture, actor identity.Actor, session *model.Session) *model.Session {
	t.Helper()
	created, err := f.service.Create(context.Background(), actor, session)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return created
}

func TestCreateClientInitiatedIsRequested(t *testing.T) {
	f := newFixture(t)

	created := mustCreate(t, f, clientActor("client-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 0))

	if created.Status != model.StatusRequested {
		t.Errorf("status = %s, want %s", created.Status, model.StatusRequested)
	}
	if created.CreatedBy != model.RoleClient {
		t.Errorf("created_by = %s, want client", created.CreatedBy)
	}
	if created.Title != "Training Session" {
		t.Errorf("title = %q, want default title", created.Title)
	}
	if created.Duration != 60 {
		t.Errorf("duration = %d, want default 60", created.Duration)
	}
	if created.ID == "" {
		t.Error("expected assigned ID")
	}

	if len(f.notifier.events) != 1 || f.notifier.events[0] != notify.EventSessionCreated {
		t.Errorf("events = %v, want [%s]", f.notifier.events, notify.EventSessionCreated)
	}
	if len(f.feed.notified) != 2 {
		t.Errorf("feed notified %v, want coach and client", f.feed.notified)
	}
}

func TestCreateCoachInitiatedIsScheduled(t *testing.T) {
	f := newFixture(t)

	created := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	if created.Status != model.StatusScheduled {
		t.Errorf("status = %s, want %s", created.Status, model.StatusScheduled)
	}
	if created.CreatedBy != model.RoleCoach {
		t.Errorf("created_by = %s, want coach", created.CreatedBy)
	}
}

func TestCreateOverlapConflicts(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	// 14:30 falls inside 14:00-15:00 for the same coach.
	_, err := f.service.Create(context.Background(), coachActor("coach-1"),
		virtualSession("coach-1", "client-2", "2024-03-01", "14:30", 30))
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected scheduling conflict, got %v", err)
	}

	// 15:00 starts exactly when the first ends; legal.
	created, err := f.service.Create(context.Background(), coachActor("coach-1"),
		virtualSession("coach-1", "client-2", "2024-03-01", "15:00", 30))
	if err != nil {
		t.Fatalf("adjacent booking failed: %v", err)
	}
	if created.Status != model.StatusScheduled {
		t.Errorf("status = %s, want scheduled", created.Status)
	}
}

func TestCreateAdjacentSessionsDoNotConflict(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "09:00", 60))

	if _, err := f.service.Create(context.Background(), coachActor("coach-1"),
		virtualSession("coach-1", "client-2", "2024-03-01", "10:00", 60)); err != nil {
		t.Fatalf("back-to-back booking failed: %v", err)
	}

	_, err := f.service.Create(context.Background(), coachActor("coach-1"),
		virtualSession("coach-1", "client-3", "2024-03-01", "09:30", 60))
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict for 09:30 overlap, got %v", err)
	}
}

func TestCancelledSessionDoesNotBlockSlot(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	if _, err := f.service.Cancel(context.Background(), coachActor("coach-1"), created.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if _, err := f.service.Create(context.Background(), coachActor("coach-1"),
		virtualSession("coach-1", "client-2", "2024-03-01", "14:00", 60)); err != nil {
		t.Fatalf("slot of cancelled session should be free: %v", err)
	}
}

func TestClientDoubleBookingAcrossCoaches(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	// Same client, different coach, overlapping interval.
	_, err := f.service.Create(context.Background(), coachActor("coach-2"),
		virtualSession("coach-2", "client-1", "2024-03-01", "14:30", 60))
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected client-side conflict, got %v", err)
	}
}

func TestRescheduleExcludesSelf(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	// Extending the same session must not collide with itself.
	duration := 90
	updated, err := f.service.Update(context.Background(), coachActor("coach-1"), created.ID,
		&model.SessionUpdate{Duration: &duration})
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if updated.Duration != 90 {
		t.Errorf("duration = %d, want 90", updated.Duration)
	}
}

func TestRescheduleOntoOccupiedSlotConflicts(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "09:00", 60))
	second := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-2", "2024-03-01", "11:00", 60))

	newTime := "09:30"
	_, err := f.service.Update(context.Background(), coachActor("coach-1"), second.ID,
		&model.SessionUpdate{Time: &newTime})
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict on reschedule, got %v", err)
	}

	// The original slot is untouched after the failed move.
	reloaded, err := f.service.GetByID(context.Background(), coachActor("coach-1"), second.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Time != "11:00" {
		t.Errorf("time = %s, want unchanged 11:00", reloaded.Time)
	}
}

func TestCoachApprovesRequestedSession(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, clientActor("client-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	status := model.StatusScheduled
	_, err := f.service.Update(context.Background(), clientActor("client-1"), created.ID,
		&model.SessionUpdate{Status: &status})
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("client approval should be forbidden, got %v", err)
	}

	updated, err := f.service.Update(context.Background(), coachActor("coach-1"), created.ID,
		&model.SessionUpdate{Status: &status})
	if err != nil {
		t.Fatalf("coach approval failed: %v", err)
	}
	if updated.Status != model.StatusScheduled {
		t.Errorf("status = %s, want scheduled", updated.Status)
	}

	found := false
	for _, e := range f.notifier.events {
		if e == notify.EventSessionApproved {
			found = true
		}
	}
	if !found {
		t.Errorf("events = %v, want approval event", f.notifier.events)
	}
}

func TestOnlyCoachCompletes(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	_, err := f.service.Complete(context.Background(), clientActor("client-1"), created.ID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("client completion should be forbidden, got %v", err)
	}

	completed, err := f.service.Complete(context.Background(), coachActor("coach-1"), created.ID)
	if err != nil {
		t.Fatalf("coach completion failed: %v", err)
	}
	if completed.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}
}

func TestRequestedSessionCannotComplete(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, clientActor("client-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	_, err := f.service.Complete(context.Background(), coachActor("coach-1"), created.ID)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("completing a requested session should fail validation, got %v", err)
	}
}

func TestEitherPartyCancels(t *testing.T) {
	f := newFixture(t)

	first := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "09:00", 60))
	second := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-2", "2024-03-01", "11:00", 60))

	if _, err := f.service.Cancel(context.Background(), clientActor("client-1"), first.ID); err != nil {
		t.Fatalf("client cancel failed: %v", err)
	}
	if _, err := f.service.Cancel(context.Background(), coachActor("coach-1"), second.ID); err != nil {
		t.Fatalf("coach cancel failed: %v", err)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	if _, err := f.service.Complete(context.Background(), coachActor("coach-1"), created.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	_, err := f.service.Cancel(context.Background(), coachActor("coach-1"), created.ID)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("cancelling a completed session should fail, got %v", err)
	}

	notes := "late edit"
	_, err = f.service.Update(context.Background(), coachActor("coach-1"), created.ID,
		&model.SessionUpdate{Notes: &notes})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("editing a completed session should fail, got %v", err)
	}
}

func TestNonParticipantIsForbidden(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	_, err := f.service.GetByID(context.Background(), coachActor("coach-2"), created.ID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("foreign coach read should be forbidden, got %v", err)
	}

	_, err = f.service.GetByID(context.Background(), clientActor("client-9"), created.ID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("foreign client read should be forbidden, got %v", err)
	}

	if _, err := f.service.GetByID(context.Background(), clientActor("client-1"), created.ID); err != nil {
		t.Fatalf("participant read failed: %v", err)
	}
}

func TestGetByIDUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GetByID(context.Background(), coachActor("coach-1"), primitive.NewObjectID().Hex())
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = f.service.GetByID(context.Background(), coachActor("coach-1"), "not-an-id")
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for malformed id, got %v", err)
	}
}

func TestCreateValidationFailures(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*model.Session)
	}{
		{name: "missing date", mutate: func(s *model.Session) { s.Date = "" }},
		{name: "bad date format", mutate: func(s *model.Session) { s.Date = "01-03-2024" }},
		{name: "bad time format", mutate: func(s *model.Session) { s.Time = "2pm" }},
		{name: "negative duration", mutate: func(s *model.Session) { s.Duration = -30 }},
		{name: "duration beyond a day", mutate: func(s *model.Session) { s.Duration = 2000 }},
		{name: "virtual without link", mutate: func(s *model.Session) { s.MeetingLink = "" }},
		{name: "unknown type", mutate: func(s *model.Session) { s.Type = "phone" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60)
			tt.mutate(session)

			_, err := f.service.Create(context.Background(), coachActor("coach-1"), session)
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestInPersonRequiresLocation(t *testing.T) {
	f := newFixture(t)

	session := &model.Session{
		CoachID:  "coach-1",
		ClientID: "client-1",
		Type:     model.TypeInPerson,
		Date:     "2024-03-01",
		Time:     "14:00",
		Duration: 60,
	}

	_, err := f.service.Create(context.Background(), coachActor("coach-1"), session)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	session.Location = "Studio 4, Main St"
	if _, err := f.service.Create(context.Background(), coachActor("coach-1"), session); err != nil {
		t.Fatalf("in-person with location failed: %v", err)
	}
}

func TestCreateKeepsOnlyTypeMatchingField(t *testing.T) {
	f := newFixture(t)

	// Caller sends both fields; only the one matching the type survives.
	session := virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60)
	session.Type = model.TypeInPerson
	session.Location = "Studio A"

	created := mustCreate(t, f, coachActor("coach-1"), session)
	if created.MeetingLink != "" {
		t.Errorf("in-person session kept meeting_link %q", created.MeetingLink)
	}
	if created.Location != "Studio A" {
		t.Errorf("location = %q, want Studio A", created.Location)
	}
}

func TestTypeSwitchClearsStaleField(t *testing.T) {
	f := newFixture(t)

	session := virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60)
	session.Type = model.TypeInPerson
	session.Location = "Studio B"
	session.MeetingLink = ""
	created := mustCreate(t, f, coachActor("coach-1"), session)

	newType := model.TypeVirtual
	link := "https://meet.example.com/xyz"
	updated, err := f.service.Update(context.Background(), coachActor("coach-1"), created.ID,
		&model.SessionUpdate{Type: &newType, MeetingLink: &link})
	if err != nil {
		t.Fatalf("switch to virtual failed: %v", err)
	}
	if updated.Location != "" {
		t.Errorf("virtual session still has location %q", updated.Location)
	}
	if updated.MeetingLink != link {
		t.Errorf("meeting_link = %q, want %q", updated.MeetingLink, link)
	}

	backType := model.TypeInPerson
	location := "Studio C"
	updated, err = f.service.Update(context.Background(), coachActor("coach-1"), created.ID,
		&model.SessionUpdate{Type: &backType, Location: &location})
	if err != nil {
		t.Fatalf("switch to in-person failed: %v", err)
	}
	if updated.MeetingLink != "" {
		t.Errorf("in-person session still has meeting_link %q", updated.MeetingLink)
	}
	if updated.Location != "Studio C" {
		t.Errorf("location = %q, want Studio C", updated.Location)
	}
}

func TestSlotLockContention(t *testing.T) {
	f := newFixture(t)

	// Another request holds the slot lock.
	f.locks.held["slot_coach-1_2024-03-01_0840"] = true

	_, err := f.service.Create(context.Background(), coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict while lock held, got %v", err)
	}
}

func TestSlotLockReleasedAfterCreate(t *testing.T) {
	f := newFixture(t)

	mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	if len(f.locks.held) != 0 {
		t.Errorf("locks still held after create: %v", f.locks.held)
	}
	if len(f.locks.taken) != 1 {
		t.Fatalf("expected one lock acquisition, got %v", f.locks.taken)
	}
	if f.locks.taken[0] != "slot_coach-1_2024-03-01_0840" {
		t.Errorf("lock id = %s", f.locks.taken[0])
	}
}

func TestListOrderingAndPagination(t *testing.T) {
	f := newFixture(t)
	actor := coachActor("coach-1")

	mustCreate(t, f, actor, virtualSession("coach-1", "client-1", "2024-03-02", "09:00", 60))
	mustCreate(t, f, actor, virtualSession("coach-1", "client-2", "2024-03-01", "15:00", 60))
	mustCreate(t, f, actor, virtualSession("coach-1", "client-3", "2024-03-01", "08:00", 60))

	sessions, total, err := f.service.List(context.Background(), actor, "", "", 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(sessions) != 3 {
		t.Fatalf("len = %d, want 3", len(sessions))
	}
	if sessions[0].Time != "08:00" || sessions[1].Time != "15:00" || sessions[2].Date != "2024-03-02" {
		t.Errorf("unexpected ordering: %s %s / %s %s / %s %s",
			sessions[0].Date, sessions[0].Time,
			sessions[1].Date, sessions[1].Time,
			sessions[2].Date, sessions[2].Time)
	}

	page, total, err := f.service.List(context.Background(), actor, "", "", 2, 1)
	if err != nil {
		t.Fatalf("List page failed: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Errorf("page total = %d len = %d, want 3 and 2", total, len(page))
	}

	filtered, _, err := f.service.List(context.Background(), actor, "2024-03-02", "", 10, 0)
	if err != nil {
		t.Fatalf("List filtered failed: %v", err)
	}
	if len(filtered) != 1 {
		t.Errorf("filtered len = %d, want 1", len(filtered))
	}
}

func TestDeleteRestrictedToCoach(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "14:00", 60))

	err := f.service.Delete(context.Background(), clientActor("client-1"), created.ID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("client delete should be forbidden, got %v", err)
	}

	if err := f.service.Delete(context.Background(), coachActor("coach-1"), created.ID); err != nil {
		t.Fatalf("coach delete failed: %v", err)
	}

	_, err = f.service.GetByID(context.Background(), coachActor("coach-1"), created.ID)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestLoadSnapshotByRole(t *testing.T) {
	f := newFixture(t)

	mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-1", "2024-03-01", "09:00", 60))
	mustCreate(t, f, coachActor("coach-1"),
		virtualSession("coach-1", "client-2", "2024-03-01", "11:00", 60))

	coachView, err := f.service.LoadSnapshot(context.Background(), "coach-1", model.RoleCoach)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(coachView) != 2 {
		t.Errorf("coach snapshot len = %d, want 2", len(coachView))
	}

	clientView, err := f.service.LoadSnapshot(context.Background(), "client-1", model.RoleClient)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(clientView) != 1 {
		t.Errorf("client snapshot len = %d, want 1", len(clientView))
	}

	empty, err := f.service.LoadSnapshot(context.Background(), "client-9", model.RoleClient)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty snapshot should be a non-nil empty slice, got %v", empty)
	}
}
