package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hendrianz14/tripay-callback-service/internal/observability"
)

// ReconciliationService verifies the wallet/ledger invariant: every wallet
// balance must equal the sum of its topup ledger entries.
type ReconciliationService struct {
	store Store
}

func NewReconciliationService(store Store) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run reports every diverging wallet. It never mutates; drift is an operator
// signal, not something to paper over automatically.
func (s *ReconciliationService) Run(ctx context.Context) error {
	drifts, err := s.store.GetWalletDrift(ctx)
	if err != nil {
		return fmt.Errorf("query wallet drift: %w", err)
	}

	if len(drifts) == 0 {
		zap.L().Info("wallets reconciled against ledger")
		return nil
	}

	for _, d := range drifts {
		observability.IncrementWalletDrift()
		zap.L().Error("CRITICAL: wallet balance diverges from ledger",
			zap.String("user_id", d.UserID),
			zap.Int64("balance", d.Balance),
			zap.Int64("ledger_total", d.LedgerTotal),
		)
	}
	return nil
}
