package tripay

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hendrianz14/tripay-callback-service/internal/domain"
)

func TestParseCallbackFlatPayload(t *testing.T) {
	cb, err := ParseCallback([]byte(`{"merchant_ref":"topup_u1_a_10","status":"PAID","amount":3000}`))
	require.NoError(t, err)

	assert.Equal(t, "topup_u1_a_10", cb.Reference)
	assert.Equal(t, domain.InvoiceStatusPaid, cb.Status)
	assert.True(t, cb.Amount.Equal(decimal.NewFromInt(3000)))
}

func TestParseCallbackDataEnvelope(t *testing.T) {
	cb, err := ParseCallback([]byte(`{"data":{"merchant_ref":"topup_u1_a_10","status":"SUCCESS","total_amount":"2500"}}`))
	require.NoError(t, err)

	assert.Equal(t, "topup_u1_a_10", cb.Reference)
	assert.Equal(t, domain.InvoiceStatusPaid, cb.Status)
	assert.True(t, cb.Amount.Equal(decimal.NewFromInt(2500)))
	assert.JSONEq(t, `{"merchant_ref":"topup_u1_a_10","status":"SUCCESS","total_amount":"2500"}`, string(cb.Raw))
}

func TestParseCallbackReferenceAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"merchant_ref wins", `{"merchant_ref":"a","merchantRef":"b","reference":"c"}`, "a"},
		{"merchantRef second", `{"merchantRef":"b","reference":"c"}`, "b"},
		{"reference last", `{"reference":"c"}`, "c"},
		{"empty skipped", `{"merchant_ref":"","reference":"c"}`, "c"},
		{"none", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := ParseCallback([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cb.Reference)
		})
	}
}

func TestParseCallbackAmountDefaults(t *testing.T) {
	cb, err := ParseCallback([]byte(`{"merchant_ref":"r"}`))
	require.NoError(t, err)
	assert.True(t, cb.Amount.IsZero(), "absent amount defaults to zero")

	cb, err = ParseCallback([]byte(`{"amount":"not-a-number"}`))
	require.NoError(t, err)
	assert.True(t, cb.Amount.IsZero(), "non-numeric amount defaults to zero")

	cb, err = ParseCallback([]byte(`{"amount":null,"total_amount":125.5}`))
	require.NoError(t, err)
	assert.True(t, cb.Amount.Equal(decimal.NewFromFloat(125.5)))
}

func TestParseCallbackMalformed(t *testing.T) {
	_, err := ParseCallback([]byte(`{"broken`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParseCallback([]byte(`[]`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"paid", domain.InvoiceStatusPaid},
		{"Paid", domain.InvoiceStatusPaid},
		{"PAID", domain.InvoiceStatusPaid},
		{"SUCCESS", domain.InvoiceStatusPaid},
		{"success", domain.InvoiceStatusPaid},
		{"expired", domain.InvoiceStatusExpired},
		{"EXPIRED", domain.InvoiceStatusExpired},
		{"foo", domain.InvoiceStatusPending},
		{"", domain.InvoiceStatusPending},
		{"REFUND", domain.InvoiceStatusPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStatus(tt.in), "input %q", tt.in)
	}
}
