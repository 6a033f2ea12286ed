package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minutely/consult-server/internal/httputil"
	"github.com/minutely/consult-server/internal/model"
	"github.com/minutely/consult-server/internal/service"
)

// PayoutAdmin is implemented by *service.PayoutService.
type PayoutAdmin interface {
	ListPending(ctx context.Context, actor model.Actor, limit, offset int) ([]service.PayoutView, error)
	Decide(ctx context.Context, actor model.Actor, requestID string, disposition model.Disposition, note *string) (*service.PayoutView, error)
	MarkPaid(ctx context.Context, actor model.Actor, requestID string) (*service.PayoutView, error)
}

// AdminHandler serves the payout back office. Routes are mounted behind the
// admin role check.
type AdminHandler struct {
	payouts PayoutAdmin
}

func NewAdminHandler(payouts PayoutAdmin) *AdminHandler {
	return &AdminHandler{payouts: payouts}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/payouts/pending", h.ListPending)
	r.Post("/payouts/{id}/approve", h.decide(model.DispositionApproved))
	r.Post("/payouts/{id}/reject", h.decide(model.DispositionRejected))
	r.Post("/payouts/{id}/paid", h.MarkPaid)

	return r
}

type decisionRequest struct {
	Note *string `json:"note,omitempty"`
}

// GET /admin/payouts/pending
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := ParsePagination(r)

	payouts, err := h.payouts.ListPending(r.Context(), actor, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"payouts": payouts})
}

// POST /admin/payouts/{id}/approve and /reject
func (h *AdminHandler) decide(disposition model.Disposition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		// The note is optional, so is the body.
		var req decisionRequest
		if r.ContentLength > 0 {
			if err := httputil.DecodeJSON(r, &req); err != nil {
				writeError(w, r, err)
				return
			}
		}

		view, err := h.payouts.Decide(r.Context(), actor, chi.URLParam(r, "id"), disposition, req.Note)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, view)
	}
}

// POST /admin/payouts/{id}/paid
func (h *AdminHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	view, err := h.payouts.MarkPaid(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
