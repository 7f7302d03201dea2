package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCreditPrice is the fallback IDR price per credit used to synthesize
// an audit amount when the gateway omits one. It is not an authoritative
// price; config may override it.
var DefaultCreditPrice = decimal.NewFromInt(500)

// ParseAmount converts a loosely-typed JSON value into a decimal amount.
// Gateways send amounts as numbers or as numeric strings; anything else
// yields zero.
func ParseAmount(v any) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// AmountForCredits returns credits x unitPrice, the synthesized audit amount
// used when a callback carries no usable amount.
func AmountForCredits(credits int64, unitPrice decimal.Decimal) decimal.Decimal {
	if unitPrice.Sign() <= 0 {
		unitPrice = DefaultCreditPrice
	}
	return decimal.NewFromInt(credits).Mul(unitPrice)
}
