package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hendrianz14/tripay-callback-service/internal/domain"
	"github.com/hendrianz14/tripay-callback-service/internal/observability"
	"github.com/hendrianz14/tripay-callback-service/internal/repository"
	"github.com/hendrianz14/tripay-callback-service/internal/tripay"
)

var (
	// ErrOutOfNamespace marks references the service does not manage. The
	// callback endpoint is shared with unrelated traffic, so these are
	// acknowledged and skipped rather than rejected.
	ErrOutOfNamespace = errors.New("reference outside topup namespace")
	// ErrUnresolvable marks in-namespace references that yield no user or no
	// positive credit quantity from either the invoice or the reference
	// encoding. Acknowledged and skipped; retrying cannot fix them.
	ErrUnresolvable = errors.New("reference cannot be resolved to a topup")
)

// ResolvedTopup is the domain identity behind an external reference.
type ResolvedTopup struct {
	UserID    string
	Credits   int64
	Amount    decimal.Decimal
	Reference string
}

// ResolverService maps external references to internal topup identities.
type ResolverService struct {
	store           Store
	referencePrefix string
	creditPrice     decimal.Decimal
}

func NewResolverService(store Store, referencePrefix string, creditPrice decimal.Decimal) *ResolverService {
	if referencePrefix == "" {
		referencePrefix = domain.ReferencePrefix
	}
	if creditPrice.Sign() <= 0 {
		creditPrice = domain.DefaultCreditPrice
	}
	return &ResolverService{store: store, referencePrefix: referencePrefix, creditPrice: creditPrice}
}

// Resolve maps a normalized callback to a (user, credits, amount) tuple.
// A recorded invoice wins over the reference encoding; the encoding fills in
// whatever the invoice is missing.
func (s *ResolverService) Resolve(ctx context.Context, cb tripay.Callback) (*ResolvedTopup, error) {
	ref := cb.Reference
	if !strings.HasPrefix(ref, s.referencePrefix+"_") {
		return nil, ErrOutOfNamespace
	}

	res := &ResolvedTopup{Reference: ref, Amount: cb.Amount}

	inv, err := s.store.GetInvoiceByReference(ctx, ref)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("look up invoice: %w", err)
	}
	if inv != nil {
		res.UserID = inv.UserID
		res.Credits = inv.Credits
		// The invoice carries the authoritative price; the gateway's figure
		// only fills in when no invoice amount was recorded.
		if inv.Amount.Sign() > 0 {
			res.Amount = inv.Amount
		}
	}

	if res.UserID == "" || res.Credits <= 0 {
		userID, credits, ok := parseReference(ref)
		if ok {
			if res.UserID == "" {
				res.UserID = userID
			}
			if res.Credits <= 0 {
				res.Credits = credits
			}
		}
	}

	if res.UserID == "" || res.Credits <= 0 {
		return nil, ErrUnresolvable
	}

	if res.Amount.Sign() <= 0 {
		// Last-resort audit amount. Not an authoritative price; the stored
		// raw payload keeps whatever the gateway actually reported.
		res.Amount = domain.AmountForCredits(res.Credits, s.creditPrice)
		observability.IncrementAmountSynthesized()
		zap.L().Warn("synthesized callback amount from unit price",
			zap.String("reference", ref),
			zap.Int64("credits", res.Credits),
			zap.String("amount", res.Amount.String()),
		)
	}

	return res, nil
}

// parseReference extracts the positional encoding topup_<userId>_<...>_<credits>.
func parseReference(ref string) (userID string, credits int64, ok bool) {
	parts := strings.Split(ref, "_")
	if len(parts) < domain.ReferenceMinSegments {
		return "", 0, false
	}
	userID = parts[1]
	credits, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || credits <= 0 || userID == "" {
		return "", 0, false
	}
	return userID, credits, true
}
