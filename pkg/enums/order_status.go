package enums

import "fmt"

// OrderStatus tracks the cash-on-delivery lifecycle of a single order.
// The source system carried several synonymous pre-shipment strings; they
// all collapse into OrderStatusReadyToShip, with payment tracked on a
// separate PaymentStatus flag.
type OrderStatus string

const (
	OrderStatusReadyToShip     OrderStatus = "ready_to_ship"
	OrderStatusShipping        OrderStatus = "shipping"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefundRequested OrderStatus = "refund_requested"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusReadyToShip,
	OrderStatusShipping,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefundRequested,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
