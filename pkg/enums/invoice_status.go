package enums

import "fmt"

// InvoiceStatus tracks the payment lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusPending       InvoiceStatus = "pending"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusPending,
	InvoiceStatusPaid,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// String implements fmt.Stringer.
func (i InvoiceStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InvoiceStatus.
func (i InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
