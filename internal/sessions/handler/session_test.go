package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"

	"coachdesk/pkg/config"
	apperrors "coachdesk/pkg/errors"
	"coachdesk/pkg/identity"
	"coachdesk/pkg/logger"
	"coachdesk/pkg/model"
)

// stubService lets each test pin down exactly the calls it expects.
type stubService struct {
	createFn   func(ctx context.Context, actor identity.Actor, session *model.Session) (*model.Session, error)
	getFn      func(ctx context.Context, actor identity.Actor, id string) (*model.Session, error)
	listFn     func(ctx context.Context, actor identity.Actor, fromDate, toDate string, limit int, offset int64) ([]*model.Session, int64, error)
	updateFn   func(ctx context.Context, actor identity.Actor, id string, update *model.SessionUpdate) (*model.Session, error)
	cancelFn   func(ctx context.Context, actor identity.Actor, id string) (*model.Session, error)
	completeFn func(ctx context.Context, actor identity.Actor, id string) (*model.Session, error)
	deleteFn   func(ctx context.Context, actor identity.Actor, id string) error
}

func (s *stubService) Create(ctx context.Context, actor identity.Actor, session *model.Session) (*model.Session, error) {
	return s.createFn(ctx, actor, session)
}

func (s *stubService) GetByID(ctx context.Context, actor identity.Actor, id string) (*model.Session, error) {
	return s.getFn(ctx, actor, id)
}

func (s *stubService) List(ctx context.Context, actor identity.Actor, fromDate, toDate string, limit int, offset int64) ([]*model.Session, int64, error) {
	return s.listFn(ctx, actor, fromDate, toDate, limit, offset)
}

func (s *stubService) Update(ctx context.Context, actor identity.Actor, id string, update *model.SessionUpdate) (*model.Session, error) {
	return s.updateFn(ctx, actor, id, update)
}

func (s *stubService) Cancel(ctx context.Context, actor identity.Actor, id string) (*model.Session, error) {
	return s.cancelFn(ctx, actor, id)
}

func (s *stubService) Complete(ctx context.Context, actor identity.Actor, id string) (*model.Session, error) {
	return s.completeFn(ctx, actor, id)
}

func (s *stubService) Delete(ctx context.Context, actor identity.Actor, id string) error {
	return s.deleteFn(ctx, actor, id)
}

func (s *stubService) LoadSnapshot(ctx context.Context, identityID string, role model.Role) ([]*model.Session, error) {
	return nil, nil
}

func newTestRouter(svc *stubService) *httprouter.Router {
	cfg := &config.Config{
		Log: logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT}),
	}
	router := httprouter.New()
	NewSessionHandler(cfg, svc).RegisterRoutes(router)
	return router
}

func asCoach(r *http.Request) *http.Request {
	r.Header.Set(identity.HeaderActorID, "coach-1")
	r.Header.Set(identity.HeaderActorRole, "coach")
	return r
}

func TestCreateReturnsCreated(t *testing.T) {
	svc := &stubService{
		createFn: func(ctx context.Context, actor identity.Actor, session *model.Session) (*model.Session, error) {
			if actor.ID != "coach-1" || actor.Role != model.RoleCoach {
				t.Errorf("actor = %+v", actor)
			}
			session.ID = "65f000000000000000000001"
			session.Status = model.StatusScheduled
			return session, nil
		},
	}
	router := newTestRouter(svc)

	body, _ := json.Marshal(map[string]any{
		"client_id":    "client-1",
		"coach_id":     "coach-1",
		"type":         "virtual",
		"date":         "2024-03-01",
		"time":         "14:00",
		"duration":     60,
		"meeting_link": "https://meet.example.com/abc",
	})

	req := asCoach(httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data model.Session `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Data.ID != "65f000000000000000000001" {
		t.Errorf("id = %s", resp.Data.ID)
	}
}

func TestCreateWithoutIdentity(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := asCoach(httptest.NewRequest(http.MethodPost, "/api/v1/sessions",
		bytes.NewReader([]byte(`{"surprise": true}`))))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConflictMapsTo409(t *testing.T) {
	svc := &stubService{
		createFn: func(ctx context.Context, actor identity.Actor, session *model.Session) (*model.Session, error) {
			return nil, apperrors.Conflict("the requested time slot overlaps an existing session")
		},
	}
	router := newTestRouter(svc)

	body, _ := json.Marshal(map[string]any{"client_id": "client-1"})
	req := asCoach(httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Code != apperrors.CodeConflict {
		t.Errorf("code = %s, want %s", resp.Code, apperrors.CodeConflict)
	}
}

func TestListPassesPaginationAndRange(t *testing.T) {
	svc := &stubService{
		listFn: func(ctx context.Context, actor identity.Actor, fromDate, toDate string, limit int, offset int64) ([]*model.Session, int64, error) {
			if fromDate != "2024-03-01" || toDate != "2024-03-31" {
				t.Errorf("range = %s..%s", fromDate, toDate)
			}
			if limit != 20 || offset != 40 {
				t.Errorf("limit = %d offset = %d", limit, offset)
			}
			return []*model.Session{}, 0, nil
		},
	}
	router := newTestRouter(svc)

	req := asCoach(httptest.NewRequest(http.MethodGet,
		"/api/v1/sessions?from=2024-03-01&to=2024-03-31&limit=20&offset=40", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
}

func TestListRejectsBadDateRange(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := asCoach(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?from=tomorrow", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	req = asCoach(httptest.NewRequest(http.MethodGet,
		"/api/v1/sessions?from=2024-04-01&to=2024-03-01", nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: status = %d, want 400", rec.Code)
	}
}

func TestCancelRoute(t *testing.T) {
	cancelled := false
	svc := &stubService{
		cancelFn: func(ctx context.Context, actor identity.Actor, id string) (*model.Session, error) {
			cancelled = true
			if id != "65f000000000000000000001" {
				t.Errorf("id = %s", id)
			}
			return &model.Session{ID: id, Status: model.StatusCancelled}, nil
		},
	}
	router := newTestRouter(svc)

	req := asCoach(httptest.NewRequest(http.MethodPost,
		"/api/v1/sessions/id/65f000000000000000000001/cancel", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if !cancelled {
		t.Error("Cancel was not invoked")
	}
}

func TestDeleteReturnsNoContent(t *testing.T) {
	svc := &stubService{
		deleteFn: func(ctx context.Context, actor identity.Actor, id string) error {
			return nil
		},
	}
	router := newTestRouter(svc)

	req := asCoach(httptest.NewRequest(http.MethodDelete,
		"/api/v1/sessions/id/65f000000000000000000001", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestNotFoundMapsTo404(t *testing.T) {
	svc := &stubService{
		getFn: func(ctx context.Context, actor identity.Actor, id string) (*model.Session, error) {
			return nil, apperrors.NotFound("session")
		},
	}
	router := newTestRouter(svc)

	req := asCoach(httptest.NewRequest(http.MethodGet,
		"/api/v1/sessions/id/65f000000000000000000001", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
