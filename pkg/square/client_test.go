package square

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

func TestIdempotencyKey(t *testing.T) {
	if got := idempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	if got := idempotencyKey("customer.create", ""); !strings.HasPrefix(got, "customer.create-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
	if got := idempotencyKey("", " "); !strings.HasPrefix(got, "sf-") {
		t.Fatalf("expected default prefix, got %q", got)
	}
}

func TestMaskPhone(t *testing.T) {
	if got := maskPhone("+256772123456"); got != "*********3456" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := maskPhone("123"); got != "***" {
		t.Fatalf("short numbers are fully masked, got %q", got)
	}
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeValidation},
		{http.StatusUnauthorized, pkgerrors.CodeDependency},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := codeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapError(t *testing.T) {
	table := []struct {
		name     string
		err      error
		wantCode pkgerrors.Code
	}{
		{
			name:     "merchant credentials rejected",
			err:      sqcore.NewAPIError(http.StatusUnauthorized, errors.New(`{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`)),
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "idempotency key reused",
			err:      sqcore.NewAPIError(http.StatusConflict, errors.New(`{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`)),
			wantCode: pkgerrors.CodeIdempotency,
		},
		{
			name:     "rate limited",
			err:      sqcore.NewAPIError(http.StatusTooManyRequests, errors.New(`{"errors":[]}`)),
			wantCode: pkgerrors.CodeRateLimit,
		},
		{
			name:     "timeout",
			err:      context.DeadlineExceeded,
			wantCode: pkgerrors.CodeDependency,
		},
	}
	for _, tt := range table {
		typed := pkgerrors.As(mapError(tt.err, "operation"))
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestSearchCustomerRequiresClient(t *testing.T) {
	var c *Client
	if _, err := c.SearchCustomer(context.Background(), CustomerSearchParams{PhoneNumber: "+256772123456"}); !errors.Is(err, errClientRequired) {
		t.Fatalf("expected client required error, got %v", err)
	}
}

func TestAPIErrors(t *testing.T) {
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := apiErrors(apiErr)
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}

func TestCustomerSearchFilter(t *testing.T) {
	if (CustomerSearchParams{}).toFilter() != nil {
		t.Fatalf("expected nil filter when no fields are provided")
	}
	filter := CustomerSearchParams{PhoneNumber: " +256772123456 "}.toFilter()
	if filter == nil || filter.PhoneNumber == nil || filter.PhoneNumber.Exact == nil {
		t.Fatalf("expected exact phone filter, got %+v", filter)
	}
	if *filter.PhoneNumber.Exact != "+256772123456" {
		t.Fatalf("expected trimmed phone, got %q", *filter.PhoneNumber.Exact)
	}
	if filter.EmailAddress != nil {
		t.Fatalf("expected no email filter")
	}
}

func TestCustomerCreateRequestSkipsBlankFields(t *testing.T) {
	req := CustomerCreateParams{GivenName: "Ada", FamilyName: " ", PhoneNumber: "+256772123456"}.toSquareRequest("key-1")
	if req.IdempotencyKey == nil || *req.IdempotencyKey != "key-1" {
		t.Fatalf("expected idempotency key to be set")
	}
	if req.FamilyName != nil {
		t.Fatalf("expected blank family name to be omitted")
	}
	if req.PhoneNumber == nil || *req.PhoneNumber != "+256772123456" {
		t.Fatalf("expected phone to pass through unchanged")
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != "sandbox" {
		t.Fatalf("expected sandbox default, got %q err=%v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatalf("expected error for unknown env")
	}
}
