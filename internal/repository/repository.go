package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/hendrianz14/tripay-callback-service/internal/domain"
	"github.com/hendrianz14/tripay-callback-service/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateReference reports that a ledger entry for the external
	// reference already exists. Callers treat it as "already settled".
	ErrDuplicateReference = errors.New("duplicate external reference")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so the same queries run
// inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DBTX
}

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// UpsertInvoiceParams carries one callback's view of an invoice. Zero-valued
// fields never clobber previously stored values: user_id/credits/amount fall
// back to the existing row and the raw payload is shallow-merged over it.
type UpsertInvoiceParams struct {
	Reference string
	UserID    string
	Credits   int64
	Amount    decimal.Decimal
	Status    string
	Raw       json.RawMessage
	PaidAt    *time.Time
}

func (r *Repository) GetInvoiceByReference(ctx context.Context, reference string) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var amount string
	query := `
		SELECT reference, COALESCE(user_id, ''), COALESCE(credits, 0), COALESCE(amount, 0)::text,
		       status, raw_payload, paid_at, created_at, updated_at
		FROM invoices
		WHERE reference = $1
	`
	err := r.db.QueryRow(ctx, query, reference).Scan(
		&inv.Reference, &inv.UserID, &inv.Credits, &amount,
		&inv.Status, &inv.RawPayload, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get invoice %q: %w", reference, err)
	}
	inv.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse invoice amount %q: %w", amount, err)
	}
	return inv, nil
}

// GetInvoiceStatusForUpdate locks the invoice row for the duration of the
// surrounding transaction and returns its current status.
func (r *Repository) GetInvoiceStatusForUpdate(ctx context.Context, reference string) (string, error) {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM invoices WHERE reference = $1 FOR UPDATE`, reference).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lock invoice %q: %w", reference, err)
	}
	return status, nil
}

func (r *Repository) UpsertInvoice(ctx context.Context, p UpsertInvoiceParams) error {
	query := `
		INSERT INTO invoices (reference, user_id, credits, amount, status, raw_payload, paid_at, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3::bigint, 0), $4::numeric, $5,
		        COALESCE(NULLIF($6, '')::jsonb, '{}'::jsonb), $7, NOW(), NOW())
		ON CONFLICT (reference) DO UPDATE SET
			user_id     = COALESCE(EXCLUDED.user_id, invoices.user_id),
			credits     = COALESCE(EXCLUDED.credits, invoices.credits),
			amount      = CASE WHEN EXCLUDED.amount > 0 THEN EXCLUDED.amount ELSE invoices.amount END,
			status      = CASE WHEN invoices.status = 'PAID' THEN invoices.status ELSE EXCLUDED.status END,
			raw_payload = COALESCE(invoices.raw_payload, '{}'::jsonb) || COALESCE(EXCLUDED.raw_payload, '{}'::jsonb),
			paid_at     = COALESCE(EXCLUDED.paid_at, invoices.paid_at),
			updated_at  = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		p.Reference, p.UserID, p.Credits, p.Amount.String(), p.Status, string(p.Raw), p.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("upsert invoice %q: %w", p.Reference, err)
	}
	return nil
}

// EnsureWallet creates the wallet row with a zero balance if absent. An
// existing balance is never touched.
func (r *Repository) EnsureWallet(ctx context.Context, userID string) error {
	query := `
		INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure wallet %q: %w", userID, err)
	}
	return nil
}

// CreditWalletBalance increments the balance atomically at the store layer;
// there is no read-modify-write window.
func (r *Repository) CreditWalletBalance(ctx context.Context, userID string, credits int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1`, userID, credits)
	if err != nil {
		return 0, fmt.Errorf("credit wallet %q: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w := &models.Wallet{}
	query := `SELECT user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get wallet %q: %w", userID, err)
	}
	return w, nil
}

// InsertLedgerEntry appends one immutable credit record. A unique violation
// on external_id maps to ErrDuplicateReference.
func (r *Repository) InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, user_id, reason, credits, amount, external_id, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		e.ID, e.UserID, e.Reason, e.Credits, e.Amount.String(), e.ExternalID,
	).Scan(&e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert ledger entry %q: %w", e.ExternalID, err)
	}
	return nil
}

func (r *Repository) GetLedgerEntryByExternalID(ctx context.Context, externalID string) (*models.LedgerEntry, error) {
	e := &models.LedgerEntry{}
	var amount string
	query := `
		SELECT id, user_id, reason, credits, amount::text, external_id, created_at
		FROM ledger_entries
		WHERE external_id = $1
	`
	err := r.db.QueryRow(ctx, query, externalID).Scan(
		&e.ID, &e.UserID, &e.Reason, &e.Credits, &amount, &e.ExternalID, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ledger entry %q: %w", externalID, err)
	}
	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse ledger amount %q: %w", amount, err)
	}
	return e, nil
}

// WalletDrift reports every wallet whose balance diverges from the sum of its
// ledger entries.
type WalletDrift struct {
	UserID      string
	Balance     int64
	LedgerTotal int64
}

func (r *Repository) GetWalletDrift(ctx context.Context) ([]WalletDrift, error) {
	query := `
		SELECT w.user_id, w.balance, COALESCE(SUM(l.credits), 0) AS ledger_total
		FROM wallets w
		LEFT JOIN ledger_entries l ON l.user_id = w.user_id AND l.reason = $1
		GROUP BY w.user_id, w.balance
		HAVING w.balance <> COALESCE(SUM(l.credits), 0)
	`
	rows, err := r.db.Query(ctx, query, domain.LedgerReasonTopup)
	if err != nil {
		return nil, fmt.Errorf("query wallet drift: %w", err)
	}
	defer rows.Close()

	var drifts []WalletDrift
	for rows.Next() {
		var d WalletDrift
		if err := rows.Scan(&d.UserID, &d.Balance, &d.LedgerTotal); err != nil {
			return nil, fmt.Errorf("scan wallet drift: %w", err)
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
