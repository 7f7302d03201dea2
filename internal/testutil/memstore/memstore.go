package memstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hendrianz14/tripay-callback-service/internal/domain"
	"github.com/hendrianz14/tripay-callback-service/internal/models"
	"github.com/hendrianz14/tripay-callback-service/internal/repository"
)

// Store is an in-memory service.Store with the same idempotency semantics as
// the Postgres implementation: unique ledger entries per external reference,
// shallow payload merge, no status regression from PAID. Tests use it both as
// a stateful fake and as a write spy.
type Store struct {
	mu       sync.Mutex
	invoices map[string]*models.Invoice
	wallets  map[string]*models.Wallet
	ledger   map[string]*models.LedgerEntry
	writes   int
	err      error
}

func New() *Store {
	return &Store{
		invoices: make(map[string]*models.Invoice),
		wallets:  make(map[string]*models.Wallet),
		ledger:   make(map[string]*models.LedgerEntry),
	}
}

// FailWith makes every subsequent operation return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Writes reports how many mutating operations ran.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) GetInvoiceByReference(ctx context.Context, reference string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	inv, ok := s.invoices[reference]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *inv
	return &clone, nil
}

func (s *Store) UpsertInvoice(ctx context.Context, p repository.UpsertInvoiceParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes++
	s.upsertLocked(p)
	return nil
}

func (s *Store) CreditTopup(ctx context.Context, p repository.CreditTopupParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes++

	if inv, ok := s.invoices[p.Reference]; ok && inv.Status == domain.InvoiceStatusPaid {
		return repository.ErrDuplicateReference
	}
	if _, ok := s.ledger[p.Reference]; ok {
		return repository.ErrDuplicateReference
	}

	w, ok := s.wallets[p.UserID]
	if !ok {
		w = &models.Wallet{UserID: p.UserID, CreatedAt: time.Now()}
		s.wallets[p.UserID] = w
	}
	w.Balance += p.Credits
	w.UpdatedAt = time.Now()

	s.ledger[p.Reference] = &models.LedgerEntry{
		ID:         uuid.New(),
		UserID:     p.UserID,
		Reason:     domain.LedgerReasonTopup,
		Credits:    p.Credits,
		Amount:     p.Amount,
		ExternalID: p.Reference,
		CreatedAt:  time.Now(),
	}

	paidAt := p.PaidAt
	s.upsertLocked(repository.UpsertInvoiceParams{
		Reference: p.Reference,
		UserID:    p.UserID,
		Credits:   p.Credits,
		Amount:    p.Amount,
		Status:    domain.InvoiceStatusPaid,
		Raw:       p.Raw,
		PaidAt:    &paidAt,
	})
	return nil
}

func (s *Store) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	w, ok := s.wallets[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *w
	return &clone, nil
}

func (s *Store) GetLedgerEntryByExternalID(ctx context.Context, externalID string) (*models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	e, ok := s.ledger[externalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *Store) GetWalletDrift(ctx context.Context) ([]repository.WalletDrift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	totals := make(map[string]int64)
	for _, e := range s.ledger {
		totals[e.UserID] += e.Credits
	}
	var drifts []repository.WalletDrift
	for id, w := range s.wallets {
		if w.Balance != totals[id] {
			drifts = append(drifts, repository.WalletDrift{UserID: id, Balance: w.Balance, LedgerTotal: totals[id]})
		}
	}
	return drifts, nil
}

// LedgerSize reports the number of ledger entries.
func (s *Store) LedgerSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

// SetWalletBalance seeds or overrides a wallet, bypassing the ledger.
func (s *Store) SetWalletBalance(userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[userID] = &models.Wallet{UserID: userID, Balance: balance, CreatedAt: time.Now(), UpdatedAt: time.Now()}
}

// SeedInvoice installs an invoice row directly.
func (s *Store) SeedInvoice(inv models.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := inv
	s.invoices[inv.Reference] = &clone
}

func (s *Store) upsertLocked(p repository.UpsertInvoiceParams) {
	inv, ok := s.invoices[p.Reference]
	if !ok {
		inv = &models.Invoice{Reference: p.Reference, CreatedAt: time.Now()}
		s.invoices[p.Reference] = inv
	}
	if p.UserID != "" {
		inv.UserID = p.UserID
	}
	if p.Credits != 0 {
		inv.Credits = p.Credits
	}
	if p.Amount.Sign() > 0 {
		inv.Amount = p.Amount
	}
	if inv.Status != domain.InvoiceStatusPaid {
		inv.Status = p.Status
	}
	inv.RawPayload = mergeJSON(inv.RawPayload, p.Raw)
	// Matches COALESCE(EXCLUDED.paid_at, invoices.paid_at): a non-null
	// incoming timestamp replaces the stored one.
	if p.PaidAt != nil {
		t := *p.PaidAt
		inv.PaidAt = &t
	}
	inv.UpdatedAt = time.Now()
}

// mergeJSON shallow-merges the newer object's keys over the older object's.
func mergeJSON(old, newer json.RawMessage) json.RawMessage {
	merged := make(map[string]any)
	if len(old) > 0 {
		_ = json.Unmarshal(old, &merged)
	}
	incoming := make(map[string]any)
	if len(newer) > 0 {
		_ = json.Unmarshal(newer, &incoming)
	}
	for k, v := range incoming {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return old
	}
	return out
}
