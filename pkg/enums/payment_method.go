package enums

// PaymentMethod selects how a customer pays on the hosted gateway.
type PaymentMethod string

const (
	PaymentMethodMTNMobileMoney PaymentMethod = "mtn_mobile_money"
	PaymentMethodAirtelMoney    PaymentMethod = "airtel_money"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodGateway        PaymentMethod = "gateway"
)

var paymentMethods = []PaymentMethod{
	PaymentMethodMTNMobileMoney,
	PaymentMethodAirtelMoney,
	PaymentMethodCard,
	PaymentMethodGateway,
}

func (m PaymentMethod) String() string { return string(m) }

func (m PaymentMethod) IsValid() bool { return known(m, paymentMethods) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", value, paymentMethods, false)
}

// RequiresPhone reports whether the method is a mobile-money variant that needs a phone number.
func (m PaymentMethod) RequiresPhone() bool {
	return m == PaymentMethodMTNMobileMoney || m == PaymentMethodAirtelMoney
}
