package domain

// Invoice statuses as persisted and as reported by the gateway after
// normalization. PAID and EXPIRED are terminal for crediting purposes.
const (
	InvoiceStatusPending = "PENDING"
	InvoiceStatusPaid    = "PAID"
	InvoiceStatusExpired = "EXPIRED"
)

const (
	// ReferencePrefix is the managed namespace for topup references.
	// Callbacks outside this namespace are acknowledged but never processed.
	ReferencePrefix = "topup"

	// ReferenceMinSegments is the minimum number of underscore-delimited
	// segments in a self-describing reference: topup_<userId>_<...>_<credits>.
	ReferenceMinSegments = 4

	// LedgerReasonTopup marks ledger entries written by callback settlement.
	LedgerReasonTopup = "topup_credit"
)
