package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod selects how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodCOD orders are collected on delivery and never get a
	// gateway intent.
	PaymentMethodCOD PaymentMethod = "cod"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodCOD,
}

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod. An empty value
// means card; "wallet" is accepted as a card alias for older clients.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", "wallet":
		return PaymentMethodCard, nil
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
