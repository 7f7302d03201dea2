package service

import (
	"context"

	"github.com/hendrianz14/tripay-callback-service/internal/models"
	"github.com/hendrianz14/tripay-callback-service/internal/repository"
)

// Store defines the data access contract required by the callback pipeline.
// *repository.Store implements it against Postgres; tests substitute an
// in-memory implementation.
type Store interface {
	GetInvoiceByReference(ctx context.Context, reference string) (*models.Invoice, error)
	UpsertInvoice(ctx context.Context, p repository.UpsertInvoiceParams) error
	CreditTopup(ctx context.Context, p repository.CreditTopupParams) error
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
	GetLedgerEntryByExternalID(ctx context.Context, externalID string) (*models.LedgerEntry, error)
	GetWalletDrift(ctx context.Context) ([]repository.WalletDrift, error)
}
