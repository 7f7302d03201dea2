package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hendrianz14/tripay-callback-service/internal/api/ack"
	"github.com/hendrianz14/tripay-callback-service/internal/models"
	"github.com/hendrianz14/tripay-callback-service/internal/repository"
	"github.com/hendrianz14/tripay-callback-service/internal/service"
)

// InvoiceHandler serves the operator lookup API: one invoice plus its ledger
// trail and wallet state, for support investigations.
type InvoiceHandler struct {
	store service.Store
}

func NewInvoiceHandler(store service.Store) *InvoiceHandler {
	return &InvoiceHandler{store: store}
}

type invoiceResponse struct {
	Invoice *models.Invoice     `json:"invoice"`
	Ledger  *models.LedgerEntry `json:"ledger_entry,omitempty"`
	Wallet  *models.Wallet      `json:"wallet,omitempty"`
}

// Get handles GET /v1/invoices/{reference}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	inv, err := h.store.GetInvoiceByReference(r.Context(), reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ack.Fail(w, http.StatusNotFound, "invoice not found")
			return
		}
		zap.L().Error("get invoice failed", zap.Error(err), zap.String("reference", reference))
		ack.Fail(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	resp := invoiceResponse{Invoice: inv}

	entry, err := h.store.GetLedgerEntryByExternalID(r.Context(), reference)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		zap.L().Error("get ledger entry failed", zap.Error(err), zap.String("reference", reference))
		ack.Fail(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	resp.Ledger = entry

	if inv.UserID != "" {
		wallet, err := h.store.GetWallet(r.Context(), inv.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			zap.L().Error("get wallet failed", zap.Error(err), zap.String("user_id", inv.UserID))
			ack.Fail(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		resp.Wallet = wallet
	}

	RespondJSON(w, http.StatusOK, resp)
}
