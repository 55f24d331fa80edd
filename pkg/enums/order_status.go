package enums

// OrderStatus is the server-side lifecycle of a submitted order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCanceled  OrderStatus = "Canceled"
)

var orderStatuses = []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusDelivered, OrderStatusCanceled}

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool { return known(o, orderStatuses) }

// ParseOrderStatus accepts any casing of the commerce API's status names.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", value, orderStatuses, true)
}

func (x *OrderStatus) UnmarshalJSON(data []byte) error {
	return decodeCanonical(data, x, orderStatuses)
}
