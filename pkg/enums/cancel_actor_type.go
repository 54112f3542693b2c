package enums

import "fmt"

// CancelActorType records who triggered a cancellation.
type CancelActorType string

const (
	CancelActorTypeUser   CancelActorType = "user"
	CancelActorTypeFarmer CancelActorType = "farmer"
	CancelActorTypeAdmin  CancelActorType = "admin"
)

var validCancelActorTypes = []CancelActorType{
	CancelActorTypeUser,
	CancelActorTypeFarmer,
	CancelActorTypeAdmin,
}

// String implements fmt.Stringer.
func (c CancelActorType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancelActorType.
func (c CancelActorType) IsValid() bool {
	for _, candidate := range validCancelActorTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancelActorType converts raw input into a CancelActorType.
func ParseCancelActorType(value string) (CancelActorType, error) {
	for _, candidate := range validCancelActorTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel actor type %q", value)
}
