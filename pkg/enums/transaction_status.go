package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a sale transaction.
type TransactionStatus string

const (
	TransactionStatusOpen      TransactionStatus = "open"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusOpen,
	TransactionStatusCompleted,
	TransactionStatusRefunded,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the forward transition to next is allowed.
// open -> completed -> refunded; completed and refunded are terminal forward.
func (t TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch t {
	case TransactionStatusOpen:
		return next == TransactionStatusCompleted
	case TransactionStatusCompleted:
		return next == TransactionStatusRefunded
	default:
		return false
	}
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
