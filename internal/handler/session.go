package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minutely/consult-server/internal/httputil"
	"github.com/minutely/consult-server/internal/model"
	"github.com/minutely/consult-server/internal/service"
)

// SessionManager is implemented by *service.SessionService.
type SessionManager interface {
	Create(ctx context.Context, actor model.Actor, in service.CreateSessionInput) (*model.Session, bool, error)
	Get(ctx context.Context, actor model.Actor, sessionID string) (*model.Session, error)
	List(ctx context.Context, actor model.Actor, status *model.SessionStatus, limit, offset int) ([]model.Session, error)
	Transition(ctx context.Context, actor model.Actor, sessionID string, in service.TransitionInput) (*service.TransitionResult, error)
}

type SessionHandler struct {
	sessions SessionManager
}

func NewSessionHandler(sessions SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Get("/", h.ListSessions)
	r.Get("/{id}", h.GetSession)
	r.Post("/{id}/transition", h.Transition)

	return r
}

type createSessionRequest struct {
	ProviderID string            `json:"provider_id"`
	Kind       model.SessionKind `json:"kind"`
}

type transitionRequest struct {
	Action model.SessionAction `json:"action"`
	Notes  *string             `json:"notes,omitempty"`
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, created, err := h.sessions.Create(r.Context(), actor, service.CreateSessionInput{
		ProviderID: req.ProviderID,
		Kind:       req.Kind,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"session_id":      session.ID,
		"status":          session.Status,
		"rate_per_minute": formatMoney(session.RatePerMinute),
		"start_time":      formatTime(session.StartTime),
	})
}

// GET /v1/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var status *model.SessionStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := model.SessionStatus(s)
		status = &st
	}
	page := ParsePagination(r)

	sessions, err := h.sessions.List(r.Context(), actor, status, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// GET /v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// POST /v1/sessions/{id}/transition
func (h *SessionHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.sessions.Transition(r.Context(), actor, chi.URLParam(r, "id"), service.TransitionInput{
		Action: req.Action,
		Notes:  req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := map[string]any{
		"session_id": result.Session.ID,
		"action":     result.Action,
		"status":     result.Session.Status,
		"updated_at": result.Session.UpdatedAt,
	}
	if result.MaxMinutes != nil {
		resp["max_minutes"] = *result.MaxMinutes
	}
	if result.Settlement != nil {
		resp["settlement"] = map[string]any{
			"duration_minutes":    result.Settlement.DurationMinutes,
			"total_amount":        formatMoney(result.Settlement.TotalAmount),
			"provider_earnings":   formatMoney(result.Settlement.ProviderEarnings),
			"platform_commission": formatMoney(result.Settlement.PlatformCommission),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
