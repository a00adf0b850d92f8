package enums

import "fmt"

// PickupStatus tracks a trade-in pickup request.
//
//	requested -> collected -> evaluating -> offered -> accepted | rejected
type PickupStatus string

const (
	PickupStatusRequested  PickupStatus = "requested"
	PickupStatusCollected  PickupStatus = "collected"
	PickupStatusEvaluating PickupStatus = "evaluating"
	PickupStatusOffered    PickupStatus = "offered"
	PickupStatusAccepted   PickupStatus = "accepted"
	PickupStatusRejected   PickupStatus = "rejected"
)

var validPickupStatuses = []PickupStatus{
	PickupStatusRequested,
	PickupStatusCollected,
	PickupStatusEvaluating,
	PickupStatusOffered,
	PickupStatusAccepted,
	PickupStatusRejected,
}

// String implements fmt.Stringer.
func (s PickupStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PickupStatus.
func (s PickupStatus) IsValid() bool {
	for _, candidate := range validPickupStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the owner already answered the offer.
func (s PickupStatus) IsTerminal() bool {
	return s == PickupStatusAccepted || s == PickupStatusRejected
}

// IsEvaluatorSettable reports whether evaluators may move a pickup into s.
// Accepted and rejected are reserved for the owner's response.
func (s PickupStatus) IsEvaluatorSettable() bool {
	return s.IsValid() && !s.IsTerminal()
}

// ParsePickupStatus converts raw input into a PickupStatus.
func ParsePickupStatus(value string) (PickupStatus, error) {
	for _, candidate := range validPickupStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pickup status %q", value)
}
