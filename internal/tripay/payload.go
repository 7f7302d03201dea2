package tripay

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hendrianz14/tripay-callback-service/internal/domain"
)

// ErrMalformedPayload reports an unparseable callback body. Missing optional
// fields are never an error; only broken JSON is.
var ErrMalformedPayload = errors.New("malformed callback payload")

// Callback is the normalized view of a gateway callback.
type Callback struct {
	Reference string
	Amount    decimal.Decimal
	Status    string
	// Raw is the envelope the fields were extracted from, re-encoded, and is
	// what gets merged into the invoice's stored payload.
	Raw json.RawMessage
}

// Field aliases in probe order; first non-empty wins. Tripay's own payloads
// use merchant_ref/amount, but older integrations and the sandbox have sent
// the camelCase and generic variants.
var (
	referenceKeys = []string{"merchant_ref", "merchantRef", "reference"}
	amountKeys    = []string{"amount", "total_amount"}
)

// ParseCallback decodes a raw callback body and normalizes its fields.
func ParseCallback(body []byte) (Callback, error) {
	var top map[string]any
	if err := json.Unmarshal(body, &top); err != nil {
		return Callback{}, ErrMalformedPayload
	}

	env := envelope(top)
	raw, err := json.Marshal(env)
	if err != nil {
		return Callback{}, ErrMalformedPayload
	}

	return Callback{
		Reference: firstString(env, referenceKeys...),
		Amount:    firstAmount(env, amountKeys...),
		Status:    NormalizeStatus(stringField(env, "status")),
		Raw:       raw,
	}, nil
}

// NormalizeStatus maps a gateway status token onto the invoice status enum.
// Anything unrecognized collapses to PENDING so an unknown status can never
// trigger a credit.
func NormalizeStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PAID", "SUCCESS":
		return domain.InvoiceStatusPaid
	case "EXPIRED":
		return domain.InvoiceStatusExpired
	default:
		return domain.InvoiceStatusPending
	}
}

// envelope returns the nested data object when present, the top level
// otherwise.
func envelope(top map[string]any) map[string]any {
	if data, ok := top["data"].(map[string]any); ok {
		return data
	}
	return top
}

func firstString(env map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringField(env, k); v != "" {
			return v
		}
	}
	return ""
}

func firstAmount(env map[string]any, keys ...string) decimal.Decimal {
	for _, k := range keys {
		v, ok := env[k]
		if !ok {
			continue
		}
		if d := domain.ParseAmount(v); d.Sign() != 0 {
			return d
		}
	}
	return decimal.Zero
}

func stringField(env map[string]any, key string) string {
	v, ok := env[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
