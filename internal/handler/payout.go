package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/minutely/consult-server/internal/httputil"
	"github.com/minutely/consult-server/internal/model"
	"github.com/minutely/consult-server/internal/service"
)

// PayoutManager is implemented by *service.PayoutService.
type PayoutManager interface {
	Request(ctx context.Context, actor model.Actor, in service.PayoutRequestInput) (*service.PayoutRequestResult, error)
	GetPending(ctx context.Context, actor model.Actor) (*service.PayoutView, error)
	History(ctx context.Context, actor model.Actor, limit, offset int) ([]service.PayoutView, error)
}

type PayoutHandler struct {
	payouts PayoutManager
}

func NewPayoutHandler(payouts PayoutManager) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

func (h *PayoutHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.RequestPayout)
	r.Get("/", h.History)
	r.Get("/pending", h.Pending)

	return r
}

type payoutRequest struct {
	Amount         decimal.Decimal        `json:"amount"`
	Method         model.PayoutMethodKind `json:"method"`
	AccountDetails string                 `json:"account_details"`
}

// POST /v1/payouts
func (h *PayoutHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req payoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.payouts.Request(r.Context(), actor, service.PayoutRequestInput{
		Amount:         req.Amount,
		Method:         req.Method,
		AccountDetails: req.AccountDetails,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"request_id":        result.Request.ID,
		"amount":            formatMoney(result.Request.Amount),
		"status":            result.Request.Status,
		"remaining_balance": formatMoney(result.RemainingBalance),
	})
}

// GET /v1/payouts/pending
func (h *PayoutHandler) Pending(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	pending, err := h.payouts.GetPending(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pending_payout": pending})
}

// GET /v1/payouts
func (h *PayoutHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := ParsePagination(r)

	payouts, err := h.payouts.History(r.Context(), actor, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"payouts": payouts})
}
