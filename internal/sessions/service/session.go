package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	sessionserrors "coachdesk/internal/sessions/errors"
	"coachdesk/internal/sessions/notify"
	"coachdesk/internal/sessions/repository"
	"coachdesk/internal/sessions/validator"
	"coachdesk/pkg/config"
	apperrors "coachdesk/pkg/errors"
	"coachdesk/pkg/identity"
	"coachdesk/pkg/model"
	"coachdesk/pkg/sanitizer"
)

// FeedNotifier receives the identities whose dashboard view changed after a
// successful mutation.
type FeedNotifier interface {
	Notify(identityIDs ...string)
}

// SessionService is the booking API. Every mutation validates, enforces the
// caller's role, re-checks slot conflicts where the time interval can move,
// and fans out to the live feed and the event stream on success.
type SessionService interface {
	Create(ctx context.Context, actor identity.Actor, session *model.Session) (*model.Session, error)
	GetByID(ctx context.Context, actor identity.Actor, id string) (*model.Session, error)
	List(ctx context.Context, actor identity.Actor, fromDate, toDate string, limit int, offset int64) ([]*model.Session, int64, error)
	Update(ctx context.Context, actor identity.Actor, id string, update *model.SessionUpdate) (*model.Session, error)
	Cancel(ctx context.Context, actor identity.Actor, id string) (*model.Session, error)
	Complete(ctx context.Context, actor identity.Actor, id string) (*model.Session, error)
	Delete(ctx context.Context, actor identity.Actor, id string) error
	LoadSnapshot(ctx context.Context, identityID string, role model.Role) ([]*model.Session, error)
}

type sessionService struct {
	cfg       *config.Config
	repo      repository.SessionRepository
	lockRepo  repository.SessionLockRepository
	validator validator.SessionValidator
	feed      FeedNotifier
	notifier  notify.Notifier
}

func NewSessionService(
	cfg *config.Config,
	repo repository.SessionRepository,
	lockRepo repository.SessionLockRepository,
	sessionValidator validator.SessionValidator,
	feed FeedNotifier,
	notifier notify.Notifier,
) SessionService {
	return &sessionService{
		cfg:       cfg,
		repo:      repo,
		lockRepo:  lockRepo,
		validator: sessionValidator,
		feed:      feed,
		notifier:  notifier,
	}
}

func (s *sessionService) Create(ctx context.Context, actor identity.Actor, session *model.Session) (*model.Session, error) {
	if session == nil {
		return nil, apperrors.InvalidInput("session cannot be nil")
	}

	s.applyDefaults(actor, session)

	if err := s.validator.Validate(session); err != nil {
		return nil, err
	}

	startMin, err := minutesOfDay(session.Time)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	// Advisory lock on the coach's slot closes the window between the
	// conflict check and the insert for concurrent requests.
	lockID := slotLockID(session.CoachID, session.Date, startMin)
	if err := s.acquireSlotLock(ctx, lockID); err != nil {
		return nil, err
	}
	defer s.releaseSlotLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		conflict, err := s.hasConflict(sessCtx, session.CoachID, session.ClientID, session.Date, session.Time, session.Duration, "")
		if err != nil {
			return s.storeError("failed to check for conflicts", err)
		}
		if conflict {
			return apperrors.Conflict("the requested time slot overlaps an existing session")
		}

		if err := s.repo.Create(sessCtx, session); err != nil {
			return s.storeError("failed to create session", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.storeError("failed to create session", err)
	}

	s.notifier.SessionCreated(ctx, session)
	s.feed.Notify(session.CoachID, session.ClientID)

	return session, nil
}

func (s *sessionService) GetByID(ctx context.Context, actor identity.Actor, id string) (*model.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to find session", err)
	}

	if err := participantCheck(actor, session); err != nil {
		return nil, err
	}

	return session, nil
}

// List returns the actor's sessions ordered by date then start time, with
// the total count for pagination. Count and page run concurrently.
func (s *sessionService) List(ctx context.Context, actor identity.Actor, fromDate, toDate string, limit int, offset int64) ([]*model.Session, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		wg       sync.WaitGroup
		sessions []*model.Session
		count    int64
		findErr  error
		countErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if actor.Role == model.RoleCoach {
			sessions, findErr = s.repo.ListByCoach(ctx, actor.ID, fromDate, toDate, limit, offset)
		} else {
			sessions, findErr = s.repo.ListByClient(ctx, actor.ID, fromDate, toDate, limit, offset)
		}
	}()
	go func() {
		defer wg.Done()
		if actor.Role == model.RoleCoach {
			count, countErr = s.repo.CountByCoach(ctx, actor.ID, fromDate, toDate)
		} else {
			count, countErr = s.repo.CountByClient(ctx, actor.ID, fromDate, toDate)
		}
	}()
	wg.Wait()

	if findErr != nil {
		return nil, 0, s.storeError("failed to list sessions", findErr)
	}
	if countErr != nil {
		return nil, 0, s.storeError("failed to count sessions", countErr)
	}

	if sessions == nil {
		sessions = []*model.Session{}
	}
	return sessions, count, nil
}

func (s *sessionService) Update(ctx context.Context, actor identity.Actor, id string, update *model.SessionUpdate) (*model.Session, error) {
	if update == nil {
		return nil, apperrors.InvalidInput("update cannot be nil")
	}

	if err := s.validator.ValidateUpdate(update); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to find session", err)
	}

	if err := participantCheck(actor, existing); err != nil {
		return nil, err
	}

	if existing.Status.Terminal() && update.Status == nil {
		return nil, apperrors.Validation(
			fmt.Sprintf("cannot modify a %s session", existing.Status), nil)
	}

	if update.Status != nil {
		if err := transitionAllowed(actor, existing, *update.Status); err != nil {
			return nil, err
		}
	}

	merged := *existing
	applyUpdate(&merged, update)

	if err := s.validator.Validate(&merged); err != nil {
		return nil, err
	}

	// A slot change re-runs conflict detection against everything except
	// the session itself.
	if update.TouchesSlot() && !merged.Status.Terminal() {
		startMin, err := minutesOfDay(merged.Time)
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}

		lockID := slotLockID(merged.CoachID, merged.Date, startMin)
		if err := s.acquireSlotLock(ctx, lockID); err != nil {
			return nil, err
		}
		defer s.releaseSlotLock(ctx, lockID)

		err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			conflict, err := s.hasConflict(sessCtx, merged.CoachID, merged.ClientID, merged.Date, merged.Time, merged.Duration, merged.ID)
			if err != nil {
				return s.storeError("failed to check for conflicts", err)
			}
			if conflict {
				return apperrors.Conflict("the requested time slot overlaps an existing session")
			}

			if _, err := s.repo.Update(sessCtx, id, &merged); err != nil {
				return s.storeError("failed to update session", err)
			}
			return nil
		})
		if err != nil {
			return nil, s.storeError("failed to update session", err)
		}
	} else {
		if _, err := s.repo.Update(ctx, id, &merged); err != nil {
			return nil, s.storeError("failed to update session", err)
		}
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to reload session", err)
	}

	s.publishStatusEvent(ctx, existing.Status, updated)
	s.feed.Notify(updated.CoachID, updated.ClientID)

	return updated, nil
}

// Cancel is a convenience transition either participant may perform.
func (s *sessionService) Cancel(ctx context.Context, actor identity.Actor, id string) (*model.Session, error) {
	status := model.StatusCancelled
	return s.Update(ctx, actor, id, &model.SessionUpdate{Status: &status})
}

// Complete marks a scheduled session as held. Coach only.
func (s *sessionService) Complete(ctx context.Context, actor identity.Actor, id string) (*model.Session, error) {
	status := model.StatusCompleted
	return s.Update(ctx, actor, id, &model.SessionUpdate{Status: &status})
}

// Delete removes a session record outright. Reserved for the coach; normal
// flows cancel instead so history is preserved.
func (s *sessionService) Delete(ctx context.Context, actor identity.Actor, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.storeError("failed to find session", err)
	}

	if actor.Role != model.RoleCoach || existing.CoachID != actor.ID {
		return apperrors.Forbidden("only the session's coach can delete it")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storeError("failed to delete session", err)
	}

	s.feed.Notify(existing.CoachID, existing.ClientID)
	return nil
}

// LoadSnapshot implements the live feed's loader: the full current result
// set for one identity, capped at the configured snapshot limit.
func (s *sessionService) LoadSnapshot(ctx context.Context, identityID string, role model.Role) ([]*model.Session, error) {
	var (
		sessions []*model.Session
		err      error
	)
	if role == model.RoleCoach {
		sessions, err = s.repo.ListByCoach(ctx, identityID, "", "", s.cfg.FeedSnapshotLimit, 0)
	} else {
		sessions, err = s.repo.ListByClient(ctx, identityID, "", "", s.cfg.FeedSnapshotLimit, 0)
	}
	if err != nil {
		return nil, s.storeError("failed to load snapshot", err)
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	return sessions, nil
}

// applyDefaults fills what the caller may omit and pins the actor to their
// own side of the session.
func (s *sessionService) applyDefaults(actor identity.Actor, session *model.Session) {
	if actor.Role == model.RoleCoach {
		session.CoachID = actor.ID
	} else {
		session.ClientID = actor.ID
	}

	session.Title = sanitizer.NormalizeTitle(session.Title)
	if session.Title == "" {
		session.Title = s.cfg.DefaultSessionTitle
	}
	if session.Duration == 0 {
		session.Duration = s.cfg.DefaultDurationMin
	}

	session.ClientName = sanitizer.NormalizeTitle(session.ClientName)
	session.CoachName = sanitizer.NormalizeTitle(session.CoachName)
	session.Notes = sanitizer.NormalizeNotes(session.Notes)
	session.Location = sanitizer.NormalizeLocation(session.Location)
	clearMismatchedTypeField(session)

	session.ID = ""
	session.CreatedBy = actor.Role
	session.Status = model.InitialStatus(actor.Role)
}

// clearMismatchedTypeField keeps exactly one of location/meeting_link
// populated, matching the session type. Stale counterparts would otherwise
// survive a type switch.
func clearMismatchedTypeField(session *model.Session) {
	switch session.Type {
	case model.TypeInPerson:
		session.MeetingLink = ""
	case model.TypeVirtual:
		session.Location = ""
	}
}

func applyUpdate(session *model.Session, update *model.SessionUpdate) {
	if update.Title != nil {
		session.Title = sanitizer.NormalizeTitle(*update.Title)
	}
	if update.Type != nil {
		session.Type = *update.Type
	}
	if update.Date != nil {
		session.Date = *update.Date
	}
	if update.Time != nil {
		session.Time = *update.Time
	}
	if update.Duration != nil {
		session.Duration = *update.Duration
	}
	if update.Status != nil {
		session.Status = *update.Status
	}
	if update.Notes != nil {
		session.Notes = sanitizer.NormalizeNotes(*update.Notes)
	}
	if update.Location != nil {
		session.Location = sanitizer.NormalizeLocation(*update.Location)
	}
	if update.MeetingLink != nil {
		session.MeetingLink = *update.MeetingLink
	}
	if update.CoachName != nil {
		session.CoachName = sanitizer.NormalizeTitle(*update.CoachName)
	}
	if update.ClientName != nil {
		session.ClientName = sanitizer.NormalizeTitle(*update.ClientName)
	}
	clearMismatchedTypeField(session)
}

// participantCheck allows only the session's own coach or client through.
func participantCheck(actor identity.Actor, session *model.Session) error {
	switch actor.Role {
	case model.RoleCoach:
		if session.CoachID == actor.ID {
			return nil
		}
	case model.RoleClient:
		if session.ClientID == actor.ID {
			return nil
		}
	}
	return apperrors.Forbidden("you are not a participant of this session")
}

// transitionAllowed enforces lifecycle legality plus the role policy:
// approval and completion belong to the coach, cancellation to either side.
func transitionAllowed(actor identity.Actor, session *model.Session, next model.Status) error {
	if !session.Status.CanTransitionTo(next) {
		return apperrors.Validation(
			fmt.Sprintf("cannot change status from %s to %s", session.Status, next),
			map[string]any{"from": string(session.Status), "to": string(next)})
	}

	switch next {
	case model.StatusScheduled:
		if actor.Role != model.RoleCoach {
			return apperrors.Forbidden("only the coach can approve a session")
		}
	case model.StatusCompleted:
		if actor.Role != model.RoleCoach {
			return apperrors.Forbidden("only the coach can mark a session completed")
		}
	}
	return nil
}

// publishStatusEvent emits the lifecycle event matching the transition the
// update performed, if any.
func (s *sessionService) publishStatusEvent(ctx context.Context, previous model.Status, session *model.Session) {
	if previous == session.Status {
		return
	}

	switch session.Status {
	case model.StatusScheduled:
		s.notifier.SessionApproved(ctx, session)
	case model.StatusCancelled:
		s.notifier.SessionCancelled(ctx, session)
	case model.StatusCompleted:
		s.notifier.SessionCompleted(ctx, session)
	}
}

func slotLockID(coachID, date string, startMin int) string {
	return fmt.Sprintf("slot_%s_%s_%04d", coachID, date, startMin)
}

func (s *sessionService) acquireSlotLock(ctx context.Context, lockID string) error {
	lock := &model.SessionLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("the time slot is being booked by another request, try again")
		}
		return s.storeError("failed to acquire slot lock", err)
	}
	return nil
}

func (s *sessionService) releaseSlotLock(ctx context.Context, lockID string) {
	if err := s.lockRepo.Delete(ctx, lockID); err != nil {
		// The TTL index reclaims an orphaned lock after expiry.
		s.cfg.Log.Warn("failed to release slot lock", "lock_id", lockID, "error", err)
	}
}

// storeError maps repository failures onto the API error vocabulary.
// Transient store trouble becomes STORE_UNAVAILABLE so callers can
// distinguish "try later" from "bad request".
func (s *sessionService) storeError(message string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, sessionserrors.ErrNotFound):
		return apperrors.NotFound("session")
	case errors.Is(err, sessionserrors.ErrInvalidID):
		return apperrors.InvalidInput(sessionserrors.ErrInvalidID.Error())
	case errors.Is(err, context.DeadlineExceeded),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err):
		return apperrors.Unavailable("session store", err)
	default:
		return apperrors.Internal(message, err)
	}
}
