package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"coachdesk/internal/sessions/service"
	"coachdesk/pkg/config"
	apperrors "coachdesk/pkg/errors"
	httputil "coachdesk/pkg/http"
	"coachdesk/pkg/identity"
	"coachdesk/pkg/model"
)

type SessionHandler struct {
	cfg     *config.Config
	service service.SessionService
}

func NewSessionHandler(cfg *config.Config, svc service.SessionService) *SessionHandler {
	return &SessionHandler{
		cfg:     cfg,
		service: svc,
	}
}

func (h *SessionHandler) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodPost, "/api/v1/sessions", h.Create)
	router.HandlerFunc(http.MethodGet, "/api/v1/sessions", h.List)
	router.HandlerFunc(http.MethodGet, "/api/v1/sessions/id/:id", h.GetByID)
	router.HandlerFunc(http.MethodPatch, "/api/v1/sessions/id/:id", h.Update)
	router.HandlerFunc(http.MethodPost, "/api/v1/sessions/id/:id/cancel", h.Cancel)
	router.HandlerFunc(http.MethodPost, "/api/v1/sessions/id/:id/complete", h.Complete)
	router.HandlerFunc(http.MethodDelete, "/api/v1/sessions/id/:id", h.Delete)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var session model.Session
	if err := decodeBody(r, &session); err != nil {
		h.writeError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), actor, &session)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.logWriteFailure(r, err)
	}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	fromDate, toDate, err := extractDateRange(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sessions, total, err := h.service.List(r.Context(), actor, fromDate, toDate, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WritePaginated(w, sessions, total, limit, offset); err != nil {
		h.logWriteFailure(r, err)
	}
}

func (h *SessionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	session, err := h.service.GetByID(r.Context(), actor, pathID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, session); err != nil {
		h.logWriteFailure(r, err)
	}
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var update model.SessionUpdate
	if err := decodeBody(r, &update); err != nil {
		h.writeError(w, err)
		return
	}

	session, err := h.service.Update(r.Context(), actor, pathID(r), &update)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, session); err != nil {
		h.logWriteFailure(r, err)
	}
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	session, err := h.service.Cancel(r.Context(), actor, pathID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, session); err != nil {
		h.logWriteFailure(r, err)
	}
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	session, err := h.service.Complete(r.Context(), actor, pathID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, session); err != nil {
		h.logWriteFailure(r, err)
	}
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), actor, pathID(r)); err != nil {
		h.writeError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SessionHandler) writeError(w http.ResponseWriter, err error) {
	if appErr := apperrors.AsAppError(err); appErr.Code == apperrors.CodeInternal || appErr.Code == apperrors.CodeUnavailable {
		h.cfg.Log.Error("request failed", "error", err)
	}
	if werr := httputil.WriteError(w, err); werr != nil {
		h.cfg.Log.Error("failed to write error response", "error", werr)
	}
}

func (h *SessionHandler) logWriteFailure(r *http.Request, err error) {
	h.cfg.Log.Error("failed to write response",
		"path", r.URL.Path,
		"error", err)
}

func pathID(r *http.Request) string {
	return httprouter.ParamsFromContext(r.Context()).ByName("id")
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}

// extractDateRange reads the optional from/to day filters.
func extractDateRange(r *http.Request) (string, string, error) {
	query := r.URL.Query()

	fromDate := query.Get("from")
	if fromDate != "" {
		if _, err := time.Parse("2006-01-02", fromDate); err != nil {
			return "", "", apperrors.InvalidInput("invalid from parameter, expected YYYY-MM-DD: " + fromDate)
		}
	}

	toDate := query.Get("to")
	if toDate != "" {
		if _, err := time.Parse("2006-01-02", toDate); err != nil {
			return "", "", apperrors.InvalidInput("invalid to parameter, expected YYYY-MM-DD: " + toDate)
		}
	}

	if fromDate != "" && toDate != "" && fromDate > toDate {
		return "", "", apperrors.InvalidInput("from must not be after to")
	}

	return fromDate, toDate, nil
}
