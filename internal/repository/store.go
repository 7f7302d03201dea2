package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hendrianz14/tripay-callback-service/internal/domain"
	"github.com/hendrianz14/tripay-callback-service/internal/models"
)

// Store wraps the connection pool with transaction scoping and exposes the
// settlement operations the service layer depends on.
type Store struct {
	db   *pgxpool.Pool
	base *Repository
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db, base: NewRepository(db)}
}

// RunInTx executes fn within a database transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(q *Repository) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(NewRepository(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetInvoiceByReference(ctx context.Context, reference string) (*models.Invoice, error) {
	return s.base.GetInvoiceByReference(ctx, reference)
}

func (s *Store) UpsertInvoice(ctx context.Context, p UpsertInvoiceParams) error {
	return s.base.UpsertInvoice(ctx, p)
}

func (s *Store) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	return s.base.GetWallet(ctx, userID)
}

func (s *Store) GetLedgerEntryByExternalID(ctx context.Context, externalID string) (*models.LedgerEntry, error) {
	return s.base.GetLedgerEntryByExternalID(ctx, externalID)
}

func (s *Store) GetWalletDrift(ctx context.Context) ([]WalletDrift, error) {
	return s.base.GetWalletDrift(ctx)
}

// CreditTopupParams identifies one resolved paid topup to settle.
type CreditTopupParams struct {
	UserID    string
	Credits   int64
	Amount    decimal.Decimal
	Reference string
	Raw       json.RawMessage
	PaidAt    time.Time
}

// CreditTopup applies the financial effect of a paid topup in one
// transaction: wallet row ensured, balance incremented atomically, ledger
// entry appended, invoice upserted to PAID. The invoice row is locked for the
// status check so duplicate deliveries serialize per reference; when no row
// exists yet, the UNIQUE constraint on the ledger's external_id rejects the
// second insert and the whole transaction rolls back. Either path surfaces as
// ErrDuplicateReference.
func (s *Store) CreditTopup(ctx context.Context, p CreditTopupParams) error {
	return s.RunInTx(ctx, func(q *Repository) error {
		status, err := q.GetInvoiceStatusForUpdate(ctx, p.Reference)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil && status == domain.InvoiceStatusPaid {
			return ErrDuplicateReference
		}

		if err := q.EnsureWallet(ctx, p.UserID); err != nil {
			return err
		}
		rows, err := q.CreditWalletBalance(ctx, p.UserID, p.Credits)
		if err != nil {
			return err
		}
		if rows != 1 {
			return fmt.Errorf("credit wallet %q affected %d rows", p.UserID, rows)
		}

		if err := q.InsertLedgerEntry(ctx, &models.LedgerEntry{
			ID:         uuid.New(),
			UserID:     p.UserID,
			Reason:     domain.LedgerReasonTopup,
			Credits:    p.Credits,
			Amount:     p.Amount,
			ExternalID: p.Reference,
		}); err != nil {
			return err
		}

		paidAt := p.PaidAt
		return q.UpsertInvoice(ctx, UpsertInvoiceParams{
			Reference: p.Reference,
			UserID:    p.UserID,
			Credits:   p.Credits,
			Amount:    p.Amount,
			Status:    domain.InvoiceStatusPaid,
			Raw:       p.Raw,
			PaidAt:    &paidAt,
		})
	})
}
