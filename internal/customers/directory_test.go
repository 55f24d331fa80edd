package customers

import (
	"context"
	"testing"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

func TestEnsureCustomerBuildsParams(t *testing.T) {
	dir := &fakeDirectory{customer: &sq.Customer{ID: strPtr("cust-9")}}
	reg := NewRegistrar(dir, "256")

	id, err := reg.EnsureCustomer(context.Background(), Input{
		OrderID: "ord-1",
		Name:    "Jane Mary Doe",
		Email:   " Jane@Example.com ",
		Phone:   "0772 123 456",
	})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if id != "cust-9" {
		t.Fatalf("expected cust-9, got %q", id)
	}
	params := dir.ensured[0]
	if params.GivenName != "Jane" || params.FamilyName != "Mary Doe" {
		t.Fatalf("unexpected name split %+v", params)
	}
	if params.Email != "jane@example.com" || params.PhoneNumber != "+256772123456" {
		t.Fatalf("unexpected contact %+v", params)
	}
	if params.ReferenceID != "sf:customer:jane-example-com:256772123456" {
		t.Fatalf("unexpected reference %q", params.ReferenceID)
	}
	if params.IdempotencyKey != "customer.order.ord-1" {
		t.Fatalf("unexpected idempotency key %q", params.IdempotencyKey)
	}
}

func TestEnsureCustomerRequiresContact(t *testing.T) {
	reg := NewRegistrar(&fakeDirectory{}, "256")
	if _, err := reg.EnsureCustomer(context.Background(), Input{Name: "Jane", Phone: "12"}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnsureCustomerMissingID(t *testing.T) {
	reg := NewRegistrar(&fakeDirectory{customer: &sq.Customer{}}, "256")
	if _, err := reg.EnsureCustomer(context.Background(), Input{Email: "a@b.c"}); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestReferenceID(t *testing.T) {
	if got := ReferenceID("", ""); got != "sf:customer:sf:sf" {
		t.Fatalf("unexpected empty reference %q", got)
	}
}
