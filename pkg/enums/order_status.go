package enums

import "fmt"

// OrderStatus tracks the lifecycle of a client order.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusConfirmed        OrderStatus = "confirmed"
	OrderStatusInProduction     OrderStatus = "in_production"
	OrderStatusReadyForDelivery OrderStatus = "ready_for_delivery"
	OrderStatusInTransit        OrderStatus = "in_transit"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusInProduction,
	OrderStatusReadyForDelivery,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCancelled,
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

// IsTerminal reports whether the status admits no further transitions.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCancelled
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
