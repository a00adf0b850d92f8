package enums

import (
	"fmt"
	"strings"
)

// DeviceCondition is the self-reported grade of a trade-in device.
type DeviceCondition string

const (
	DeviceConditionA DeviceCondition = "A"
	DeviceConditionB DeviceCondition = "B"
	DeviceConditionC DeviceCondition = "C"
	DeviceConditionD DeviceCondition = "D"
	DeviceConditionE DeviceCondition = "E"
)

var deviceConditionLabels = map[DeviceCondition]string{
	DeviceConditionA: "Excellent",
	DeviceConditionB: "Very Good",
	DeviceConditionC: "Good",
	DeviceConditionD: "Average",
	DeviceConditionE: "Fair",
}

func (c DeviceCondition) String() string {
	return string(c)
}

func (c DeviceCondition) IsValid() bool {
	_, ok := deviceConditionLabels[c]
	return ok
}

// Label returns the human readable grade.
func (c DeviceCondition) Label() string {
	return deviceConditionLabels[c]
}

// ParseDeviceCondition accepts the letter grade in either case.
func ParseDeviceCondition(value string) (DeviceCondition, error) {
	candidate := DeviceCondition(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid device condition %q", value)
}
