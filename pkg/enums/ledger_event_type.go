package enums

import "fmt"

// LedgerEventType classifies audit trail entries.
type LedgerEventType string

const (
	LedgerEventOrderCreated       LedgerEventType = "order_created"
	LedgerEventPaymentSucceeded   LedgerEventType = "payment_succeeded"
	LedgerEventPaymentFailed      LedgerEventType = "payment_failed"
	LedgerEventRefund             LedgerEventType = "refund"
	LedgerEventOrderStatusChanged LedgerEventType = "order_status_changed"
	LedgerEventPickupSubmitted    LedgerEventType = "pickup_submitted"
	LedgerEventPickupEvaluated    LedgerEventType = "pickup_evaluated"
	LedgerEventOfferAccepted      LedgerEventType = "offer_accepted"
	LedgerEventOfferRejected      LedgerEventType = "offer_rejected"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventOrderCreated,
	LedgerEventPaymentSucceeded,
	LedgerEventPaymentFailed,
	LedgerEventRefund,
	LedgerEventOrderStatusChanged,
	LedgerEventPickupSubmitted,
	LedgerEventPickupEvaluated,
	LedgerEventOfferAccepted,
	LedgerEventOfferRejected,
}

// IsValid reports whether the value matches a known ledger event type.
func (t LedgerEventType) IsValid() bool {
	for _, candidate := range validLedgerEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEventType converts raw input into LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	for _, candidate := range validLedgerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
