package enums

// PaymentStatus is the gateway-reported state of a payment session.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
	PaymentStatusCancelled PaymentStatus = "Cancelled"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusCancelled,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return known(p, paymentStatuses) }

// ParsePaymentStatus accepts any casing; the gateway is not consistent about it.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, paymentStatuses, true)
}

// IsTerminal reports whether no further automatic transition follows this status.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusCompleted || p == PaymentStatusFailed || p == PaymentStatusCancelled
}

func (x *PaymentStatus) UnmarshalJSON(data []byte) error {
	return decodeCanonical(data, x, paymentStatuses)
}
