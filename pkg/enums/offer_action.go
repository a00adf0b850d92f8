package enums

import (
	"fmt"
	"strings"
)

// OfferAction is the owner's answer to a trade-in offer.
type OfferAction string

const (
	OfferActionAccept OfferAction = "accept"
	OfferActionReject OfferAction = "reject"
)

func (a OfferAction) String() string {
	return string(a)
}

func (a OfferAction) IsValid() bool {
	return a == OfferActionAccept || a == OfferActionReject
}

// ResultingStatus maps the action to the pickup status it produces.
func (a OfferAction) ResultingStatus() PickupStatus {
	if a == OfferActionAccept {
		return PickupStatusAccepted
	}
	return PickupStatusRejected
}

// ParseOfferAction is case and whitespace insensitive.
func ParseOfferAction(value string) (OfferAction, error) {
	candidate := OfferAction(strings.ToLower(strings.TrimSpace(value)))
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid offer action %q", value)
}
