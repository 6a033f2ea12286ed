package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minutely/consult-server/internal/model"
)

// WalletReader is implemented by *service.WalletService.
type WalletReader interface {
	GetWallet(ctx context.Context, ownerID string) (*model.Wallet, error)
	ListEntries(ctx context.Context, ownerID string, limit, offset int) ([]model.LedgerEntry, error)
}

type WalletHandler struct {
	wallets WalletReader
}

func NewWalletHandler(wallets WalletReader) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

func (h *WalletHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetWallet)
	r.Get("/ledger", h.Ledger)

	return r
}

// GET /v1/wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	wallet, err := h.wallets.GetWallet(r.Context(), actor.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id":          wallet.OwnerID,
		"balance":           formatMoney(wallet.Balance),
		"reserved_balance":  formatMoney(wallet.ReservedBalance),
		"available_balance": formatMoney(wallet.Available()),
	})
}

// GET /v1/wallet/ledger
func (h *WalletHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := ParsePagination(r)

	entries, err := h.wallets.ListEntries(r.Context(), actor.ID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
