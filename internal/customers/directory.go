package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/internal/payments"
	"github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/square"
)

// Input contains the checkout contact used to create or locate a customer record.
type Input struct {
	OrderID string
	Name    string
	Email   string
	Phone   string
}

// Registrar ensures a customer record exists for contacts who complete a purchase.
type Registrar struct {
	dir         directory
	countryCode string
}

func NewRegistrar(dir directory, countryCode string) *Registrar {
	return &Registrar{dir: dir, countryCode: countryCode}
}

// EnsureCustomer returns the id of the matching customer, creating one when none exists.
func (r *Registrar) EnsureCustomer(ctx context.Context, input Input) (string, error) {
	if r == nil || r.dir == nil {
		return "", errors.New(errors.CodeInternal, "customer directory required")
	}

	first, last := payments.SplitName(input.Name)
	phone := ""
	if normalized, err := payments.NormalizePhone(input.Phone, r.countryCode); err == nil {
		phone = "+" + normalized
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" && phone == "" {
		return "", errors.New(errors.CodeValidation, "email or phone required")
	}

	params := square.CustomerCreateParams{
		Email:          email,
		PhoneNumber:    phone,
		GivenName:      first,
		FamilyName:     last,
		ReferenceID:    ReferenceID(email, phone),
		IdempotencyKey: idempotencyKey(input.OrderID),
	}
	if input.OrderID != "" {
		params.Note = "storefront order " + input.OrderID
	}

	customer, err := r.dir.EnsureCustomer(ctx, params)
	if err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "ensure customer")
	}
	if customer == nil {
		return "", errors.New(errors.CodeDependency, "customer missing")
	}
	if id := customer.GetID(); id != nil && strings.TrimSpace(*id) != "" {
		return *id, nil
	}
	return "", errors.New(errors.CodeDependency, "customer id missing")
}

// ReferenceID returns a deterministic reference for a contact.
func ReferenceID(email, phone string) string {
	return fmt.Sprintf("sf:customer:%s:%s", referencePart(strings.ToLower(email)), referencePart(phone))
}

func referencePart(raw string) string {
	var builder strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r == ' ' || r == '_' || r == '-' || r == '.' || r == '@' {
			builder.WriteRune('-')
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
		}
	}
	if builder.Len() == 0 {
		return "sf"
	}
	return builder.String()
}

func idempotencyKey(orderID string) string {
	if strings.TrimSpace(orderID) == "" {
		return ""
	}
	return "customer.order." + strings.TrimSpace(orderID)
}
