package enums

// PaymentMode distinguishes paying now from requesting a quote.
type PaymentMode string

const (
	PaymentModePayNow       PaymentMode = "pay_now"
	PaymentModeRequestQuote PaymentMode = "request_quote"
)

var paymentModes = []PaymentMode{PaymentModePayNow, PaymentModeRequestQuote}

func (m PaymentMode) String() string { return string(m) }

func (m PaymentMode) IsValid() bool { return known(m, paymentModes) }

func ParsePaymentMode(value string) (PaymentMode, error) {
	return parse("payment mode", value, paymentModes, false)
}
