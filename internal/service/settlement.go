package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hendrianz14/tripay-callback-service/internal/domain"
	"github.com/hendrianz14/tripay-callback-service/internal/observability"
	"github.com/hendrianz14/tripay-callback-service/internal/repository"
)

// Outcome classifies what a settlement attempt did.
type Outcome string

const (
	// OutcomeCredited means the wallet was credited and a ledger entry written.
	OutcomeCredited Outcome = "credited"
	// OutcomeDuplicate means the reference was already settled; only the
	// audit payload was merged.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeUpdated means a non-crediting status was recorded.
	OutcomeUpdated Outcome = "updated"
)

// SettlementService applies callback statuses to the ledger exactly once per
// reference. Safe to call concurrently, including for the same reference:
// the store's row lock and the ledger uniqueness constraint guarantee a
// second PAID delivery merges the payload instead of crediting again.
type SettlementService struct {
	store Store
	now   func() time.Time
}

func NewSettlementService(store Store) *SettlementService {
	return &SettlementService{store: store, now: time.Now}
}

// Apply transitions the invoice identified by res.Reference to status and
// performs the credit effect when status is PAID. Any store failure is
// returned as-is for the controller to classify as retryable.
func (s *SettlementService) Apply(ctx context.Context, res *ResolvedTopup, status string, raw json.RawMessage) (Outcome, error) {
	switch status {
	case domain.InvoiceStatusPaid:
		return s.settlePaid(ctx, res, raw)
	case domain.InvoiceStatusPending, domain.InvoiceStatusExpired:
		if err := s.store.UpsertInvoice(ctx, repository.UpsertInvoiceParams{
			Reference: res.Reference,
			UserID:    res.UserID,
			Credits:   res.Credits,
			Amount:    res.Amount,
			Status:    status,
			Raw:       raw,
		}); err != nil {
			return "", fmt.Errorf("record %s status: %w", status, err)
		}
		return OutcomeUpdated, nil
	default:
		return "", fmt.Errorf("unknown normalized status %q", status)
	}
}

func (s *SettlementService) settlePaid(ctx context.Context, res *ResolvedTopup, raw json.RawMessage) (Outcome, error) {
	paidAt := s.now().UTC()

	inv, err := s.store.GetInvoiceByReference(ctx, res.Reference)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("check invoice status: %w", err)
	}
	if inv != nil && inv.Status == domain.InvoiceStatusPaid {
		return s.mergeDuplicate(ctx, res, raw, paidAt)
	}

	err = s.store.CreditTopup(ctx, repository.CreditTopupParams{
		UserID:    res.UserID,
		Credits:   res.Credits,
		Amount:    res.Amount,
		Reference: res.Reference,
		Raw:       raw,
		PaidAt:    paidAt,
	})
	if errors.Is(err, repository.ErrDuplicateReference) {
		// Lost the race against a concurrent delivery. The other writer
		// credited; this one only records the payload.
		return s.mergeDuplicate(ctx, res, raw, paidAt)
	}
	if err != nil {
		return "", fmt.Errorf("settle paid topup: %w", err)
	}

	observability.AddCreditsSettled(res.Credits)
	zap.L().Info("topup settled",
		zap.String("reference", res.Reference),
		zap.String("user_id", res.UserID),
		zap.Int64("credits", res.Credits),
		zap.String("amount", res.Amount.String()),
	)
	return OutcomeCredited, nil
}

// MergeSettled records a redelivered payload against a reference that is
// already known to be settled, without resolving it again. The upsert's merge
// semantics keep every previously recorded field; only the raw payload and
// the paid timestamp move.
func (s *SettlementService) MergeSettled(ctx context.Context, reference string, raw json.RawMessage) error {
	paidAt := s.now().UTC()
	if err := s.store.UpsertInvoice(ctx, repository.UpsertInvoiceParams{
		Reference: reference,
		Status:    domain.InvoiceStatusPaid,
		Raw:       raw,
		PaidAt:    &paidAt,
	}); err != nil {
		return fmt.Errorf("merge settled delivery: %w", err)
	}
	zap.L().Info("duplicate paid callback merged", zap.String("reference", reference))
	return nil
}

func (s *SettlementService) mergeDuplicate(ctx context.Context, res *ResolvedTopup, raw json.RawMessage, paidAt time.Time) (Outcome, error) {
	if err := s.store.UpsertInvoice(ctx, repository.UpsertInvoiceParams{
		Reference: res.Reference,
		UserID:    res.UserID,
		Credits:   res.Credits,
		Amount:    res.Amount,
		Status:    domain.InvoiceStatusPaid,
		Raw:       raw,
		PaidAt:    &paidAt,
	}); err != nil {
		return "", fmt.Errorf("merge duplicate delivery: %w", err)
	}
	zap.L().Info("duplicate paid callback merged", zap.String("reference", res.Reference))
	return OutcomeDuplicate, nil
}
