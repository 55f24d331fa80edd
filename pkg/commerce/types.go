package commerce

import (
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// OrderItem is one submitted line: a purchasable unit and its quantity.
type OrderItem struct {
	InventoryUnitID string `json:"inventory_unit_id"`
	Quantity        int    `json:"quantity"`
}

// CreateOrderRequest is the order-creation payload. The idempotency key travels as a header.
type CreateOrderRequest struct {
	OrderItems      []OrderItem `json:"order_items"`
	CustomerName    string      `json:"customer_name"`
	CustomerPhone   string      `json:"customer_phone"`
	CustomerEmail   string      `json:"customer_email,omitempty"`
	DeliveryAddress string      `json:"delivery_address,omitempty"`
	OrderSource     string      `json:"order_source"`
}

// OrderLine carries the price frozen at submission time.
type OrderLine struct {
	InventoryUnitID string `json:"inventory_unit_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

type Order struct {
	ID            string            `json:"id"`
	Status        enums.OrderStatus `json:"status"`
	Total         int64             `json:"total"`
	Items         []OrderLine       `json:"items"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
	CustomerEmail string            `json:"customer_email,omitempty"`
}

// PaymentCustomer is the method-independent identity sent to the gateway.
type PaymentCustomer struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

type InitiatePaymentRequest struct {
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	CallbackURL     string              `json:"callback_url"`
	CancellationURL string              `json:"cancellation_url"`
	Customer        PaymentCustomer     `json:"customer"`
}

type InitiatePaymentResponse struct {
	Success       bool   `json:"success"`
	RedirectURL   string `json:"redirect_url,omitempty"`
	TrackingToken string `json:"tracking_token,omitempty"`
	Error         string `json:"error,omitempty"`
}

type PaymentStatus struct {
	Status           enums.PaymentStatus `json:"status"`
	Message          string              `json:"message,omitempty"`
	PaymentReference string              `json:"payment_reference,omitempty"`
}

// Unit is a purchasable catalog unit.
type Unit struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductType string `json:"product_type"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
}

// Promotion discounts units whose product is listed or whose product type matches.
type Promotion struct {
	ID          string              `json:"id"`
	Kind        enums.PromotionKind `json:"kind"`
	Percentage  decimal.Decimal     `json:"percentage"`
	Amount      int64               `json:"amount,omitempty"`
	StartsAt    time.Time           `json:"starts_at"`
	EndsAt      time.Time           `json:"ends_at"`
	ProductIDs  []string            `json:"product_ids,omitempty"`
	ProductType string              `json:"product_type,omitempty"`
}

// BundleItem prices one member unit of a bundle offer.
type BundleItem struct {
	UnitID   string `json:"unit_id"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type Bundle struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Items []BundleItem `json:"items"`
}

type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
