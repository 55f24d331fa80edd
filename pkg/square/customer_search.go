package square

import (
	"context"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"
)

// CustomerSearchParams scopes the fields we can use to find an existing Square customer.
type CustomerSearchParams struct {
	ReferenceID string
	Email       string
	// PhoneNumber must already be in E.164 form (+<country><number>).
	PhoneNumber string
}

// CustomerCreateParams defines the payload to create a Square customer.
type CustomerCreateParams struct {
	Email          string
	PhoneNumber    string
	GivenName      string
	FamilyName     string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

func (p CustomerCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateCustomerRequest {
	req := &sq.CreateCustomerRequest{
		IdempotencyKey: ptrString(idempotencyKey),
	}
	req.EmailAddress = ptrString(strings.TrimSpace(p.Email))
	req.PhoneNumber = ptrString(strings.TrimSpace(p.PhoneNumber))
	req.GivenName = ptrString(strings.TrimSpace(p.GivenName))
	req.FamilyName = ptrString(strings.TrimSpace(p.FamilyName))
	req.ReferenceID = ptrString(strings.TrimSpace(p.ReferenceID))
	req.Note = ptrString(strings.TrimSpace(p.Note))
	return req
}

func (p CustomerSearchParams) toFilter() *sq.CustomerFilter {
	filter := &sq.CustomerFilter{}
	hasFilter := false
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		filter.ReferenceID = &sq.CustomerTextFilter{Exact: ptrString(trimmed)}
		hasFilter = true
	}
	if trimmed := strings.TrimSpace(p.Email); trimmed != "" {
		filter.EmailAddress = &sq.CustomerTextFilter{Exact: ptrString(trimmed)}
		hasFilter = true
	}
	if trimmed := strings.TrimSpace(p.PhoneNumber); trimmed != "" {
		filter.PhoneNumber = &sq.CustomerTextFilter{Exact: ptrString(trimmed)}
		hasFilter = true
	}
	if !hasFilter {
		return nil
	}
	return filter
}

// SearchCustomer returns the first customer matching the provided filters or nil when none exist.
func (c *Client) SearchCustomer(ctx context.Context, params CustomerSearchParams) (*sq.Customer, error) {
	if c == nil || c.sdk == nil {
		return nil, errClientRequired
	}
	filter := params.toFilter()
	if filter == nil {
		return nil, nil
	}

	started := time.Now()
	resp, err := c.sdk.Customers.Search(ctx, &sq.SearchCustomersRequest{
		Query: &sq.CustomerQuery{Filter: filter},
		Limit: int64Ptr(1),
	})
	fields := map[string]any{"phone": maskPhone(params.PhoneNumber), "by_email": params.Email != ""}
	if err != nil {
		c.observe(ctx, "search_customer", started, err, fields)
		return nil, mapError(err, "search customer")
	}

	customers := resp.GetCustomers()
	fields["found"] = len(customers) > 0
	c.observe(ctx, "search_customer", started, nil, fields)
	if len(customers) == 0 {
		return nil, nil
	}
	return customers[0], nil
}

// CreateCustomer registers a new customer profile.
func (c *Client) CreateCustomer(ctx context.Context, params CustomerCreateParams) (*sq.Customer, error) {
	if c == nil || c.sdk == nil {
		return nil, errClientRequired
	}
	started := time.Now()
	resp, err := c.sdk.Customers.Create(ctx, params.toSquareRequest(idempotencyKey("customer.create", params.IdempotencyKey)))
	if err != nil {
		c.observe(ctx, "create_customer", started, err, map[string]any{"reference_id": params.ReferenceID})
		return nil, mapError(err, "create customer")
	}

	customer := resp.GetCustomer()
	c.observe(ctx, "create_customer", started, nil, map[string]any{"customer_id": stringValue(customer.GetID())})
	return customer, nil
}

// EnsureCustomer creates the customer when no matching record exists; otherwise returns the existing customer.
func (c *Client) EnsureCustomer(ctx context.Context, params CustomerCreateParams) (*sq.Customer, error) {
	customer, err := c.SearchCustomer(ctx, CustomerSearchParams{
		ReferenceID: params.ReferenceID,
		Email:       params.Email,
		PhoneNumber: params.PhoneNumber,
	})
	if err != nil || customer != nil {
		return customer, err
	}
	return c.CreateCustomer(ctx, params)
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}
