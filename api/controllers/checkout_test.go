package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

type stubCheckout struct {
	resp *checkout.Response
	err  error

	actor   checkout.Actor
	submit  checkout.SubmitInput
	kind    enums.AuthKind
	mode    enums.PaymentMode
	orderID string
	pay     checkout.PayInput
	calls   []string
}

func (s *stubCheckout) record(name string, actor checkout.Actor) (*checkout.Response, error) {
	s.calls = append(s.calls, name)
	s.actor = actor
	return s.resp, s.err
}

func (s *stubCheckout) Submit(ctx context.Context, actor checkout.Actor, in checkout.SubmitInput) (*checkout.Response, error) {
	s.submit = in
	return s.record("submit", actor)
}

func (s *stubCheckout) ChooseGuest(ctx context.Context, actor checkout.Actor) (*checkout.Response, error) {
	return s.record("guest", actor)
}

func (s *stubCheckout) BeginAuth(ctx context.Context, actor checkout.Actor, kind enums.AuthKind) (*checkout.Response, error) {
	s.kind = kind
	return s.record("begin_auth", actor)
}

func (s *stubCheckout) CompleteAuth(ctx context.Context, actor checkout.Actor) (*checkout.Response, error) {
	return s.record("complete_auth", actor)
}

func (s *stubCheckout) AbandonAuth(ctx context.Context, actor checkout.Actor) (*checkout.Response, error) {
	return s.record("abandon_auth", actor)
}

func (s *stubCheckout) SwitchMode(ctx context.Context, actor checkout.Actor, mode enums.PaymentMode) (*checkout.Response, error) {
	s.mode = mode
	return s.record("switch_mode", actor)
}

func (s *stubCheckout) Pay(ctx context.Context, actor checkout.Actor, orderID string, in checkout.PayInput) (*checkout.Response, error) {
	s.orderID = orderID
	s.pay = in
	return s.record("pay", actor)
}

func (s *stubCheckout) State(ctx context.Context, actor checkout.Actor) (*checkout.Response, error) {
	return s.record("state", actor)
}

const submitBody = `{"mode":"pay_now","customer":{"name":" Jane Doe ","phone":"0772 123 456","email":"jane@example.com"}}`

func TestCheckoutSubmitGatesAnonymousCustomer(t *testing.T) {
	svc := &stubCheckout{resp: &checkout.Response{Stage: checkout.StageAwaitingAuthChoice}}
	resp := serve(http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", submitBody, CheckoutSubmit(svc, nil), withSession)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var body checkout.Response
	decodeData(t, resp, &body)
	if body.Stage != checkout.StageAwaitingAuthChoice {
		t.Fatalf("unexpected stage %s", body.Stage)
	}
	if svc.actor.SessionID != testSession || svc.actor.Authenticated() {
		t.Fatalf("unexpected actor %+v", svc.actor)
	}
	if svc.submit.Mode != enums.PaymentModePayNow || svc.submit.Customer.Name != "Jane Doe" || svc.submit.Customer.Phone != "0772 123 456" {
		t.Fatalf("unexpected submit input %+v", svc.submit)
	}
}

func TestCheckoutSubmitCarriesCustomerIdentity(t *testing.T) {
	svc := &stubCheckout{resp: &checkout.Response{Stage: checkout.StagePaymentMethodSelection, OrderID: "ord-1"}}
	resp := serve(http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", submitBody, CheckoutSubmit(svc, nil), withSession, withCustomer("cus-1"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.actor.CustomerID != "cus-1" {
		t.Fatalf("expected authenticated actor, got %+v", svc.actor)
	}
}

func TestCheckoutSubmitValidation(t *testing.T) {
	svc := &stubCheckout{}
	bodies := []string{
		`{"mode":"later","customer":{"name":"Jane","phone":"0772123456"}}`,
		`{"mode":"pay_now","customer":{"phone":"0772123456"}}`,
		`{"mode":"pay_now","customer":{"name":"Jane","phone":"0772123456","email":"nope"}}`,
	}
	for _, body := range bodies {
		resp := serve(http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", body, CheckoutSubmit(svc, nil), withSession)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, resp.Code)
		}
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called, got %v", svc.calls)
	}
}

func TestCheckoutRequiresSession(t *testing.T) {
	resp := serve(http.MethodGet, "/api/v1/checkout", "/api/v1/checkout", "", CheckoutState(&stubCheckout{}, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutBeginAuthParsesKind(t *testing.T) {
	cases := map[string]enums.AuthKind{
		"sign-in":  enums.AuthKindSignIn,
		"sign_in":  enums.AuthKindSignIn,
		"register": enums.AuthKindRegister,
	}
	for raw, want := range cases {
		svc := &stubCheckout{resp: &checkout.Response{Stage: checkout.StageAuthenticating}}
		resp := serve(http.MethodPost, "/api/v1/checkout/auth/{kind}", "/api/v1/checkout/auth/"+raw, "", CheckoutBeginAuth(svc, nil), withSession)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", raw, resp.Code)
		}
		if svc.kind != want {
			t.Fatalf("%s: expected %s got %s", raw, want, svc.kind)
		}
	}

	resp := serve(http.MethodPost, "/api/v1/checkout/auth/{kind}", "/api/v1/checkout/auth/magic-link", "", CheckoutBeginAuth(&stubCheckout{}, nil), withSession)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind got %d", resp.Code)
	}
}

func TestCheckoutGuestAbandonAndSwitch(t *testing.T) {
	svc := &stubCheckout{resp: &checkout.Response{Stage: checkout.StagePaymentMethodSelection}}

	serve(http.MethodPost, "/api/v1/checkout/guest", "/api/v1/checkout/guest", "", CheckoutGuest(svc, nil), withSession)
	serve(http.MethodPost, "/api/v1/checkout/auth/abandon", "/api/v1/checkout/auth/abandon", "", CheckoutAbandonAuth(svc, nil), withSession)
	resp := serve(http.MethodPut, "/api/v1/checkout/mode", "/api/v1/checkout/mode", `{"mode":"request_quote"}`, CheckoutSwitchMode(svc, nil), withSession)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.mode != enums.PaymentModeRequestQuote {
		t.Fatalf("unexpected mode %s", svc.mode)
	}
	want := []string{"guest", "abandon_auth", "switch_mode"}
	if len(svc.calls) != len(want) {
		t.Fatalf("unexpected calls %v", svc.calls)
	}
	for i := range want {
		if svc.calls[i] != want[i] {
			t.Fatalf("unexpected calls %v", svc.calls)
		}
	}
}

const payBody = `{"method":"mtn_mobile_money","name":"Jane Doe","phone":"0772123456","country_code":"256"}`

func TestCheckoutPayReturnsRedirect(t *testing.T) {
	svc := &stubCheckout{resp: &checkout.Response{Stage: checkout.StageRedirect, OrderID: "ord-1", RedirectURL: "https://pay.example/session/1"}}
	resp := serve(http.MethodPost, "/api/v1/checkout/orders/{orderId}/payment", "/api/v1/checkout/orders/ord-1/payment", payBody, CheckoutPay(svc, nil), withSession)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var body checkout.Response
	decodeData(t, resp, &body)
	if body.RedirectURL != "https://pay.example/session/1" {
		t.Fatalf("unexpected redirect %q", body.RedirectURL)
	}
	if svc.orderID != "ord-1" || svc.pay.Method != enums.PaymentMethodMTNMobileMoney || svc.pay.Country != "256" {
		t.Fatalf("unexpected pay input %s %+v", svc.orderID, svc.pay)
	}
}

func TestCheckoutPaySeeOtherForBrowsers(t *testing.T) {
	svc := &stubCheckout{resp: &checkout.Response{Stage: checkout.StageRedirect, OrderID: "ord-1", RedirectURL: "https://pay.example/session/1"}}
	resp := serve(http.MethodPost, "/api/v1/checkout/orders/{orderId}/payment", "/api/v1/checkout/orders/ord-1/payment", payBody, CheckoutPay(svc, nil), withSession, withHeader("Accept", "text/html"))

	if resp.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != "https://pay.example/session/1" {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestCheckoutPayRetryStageIsNotAnError(t *testing.T) {
	svc := &stubCheckout{resp: &checkout.Response{Stage: checkout.StagePaymentRetry, OrderID: "ord-1", Message: "payment could not be started"}}
	resp := serve(http.MethodPost, "/api/v1/checkout/orders/{orderId}/payment", "/api/v1/checkout/orders/ord-1/payment", payBody, CheckoutPay(svc, nil), withSession, withHeader("Accept", "text/html"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var body checkout.Response
	decodeData(t, resp, &body)
	if body.Stage != checkout.StagePaymentRetry || body.OrderID != "ord-1" {
		t.Fatalf("unexpected response %+v", body)
	}
}

type memIdempotencyStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memIdempotencyStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memIdempotencyStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func TestCheckoutPayRetryOutcomeIsNotReplayed(t *testing.T) {
	svc := &stubCheckout{resp: &checkout.Response{Stage: checkout.StagePaymentRetry, OrderID: "ord-1", Message: "payment could not be started"}}
	store := &memIdempotencyStore{data: map[string]string{}}
	router := chi.NewRouter()
	router.With(middleware.Idempotency(store, nil)).Post("/api/v1/checkout/orders/{orderId}/payment", CheckoutPay(svc, nil))

	pay := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/orders/ord-1/payment", strings.NewReader(payBody))
		req.Header.Set(middleware.IdempotencyHeader, "pay-1")
		req = withSession(req)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	first := pay()
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", first.Code)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected retry outcome to release the key, got %d records", len(store.data))
	}

	svc.resp = &checkout.Response{Stage: checkout.StageRedirect, OrderID: "ord-1", RedirectURL: "https://pay.example/session/2"}
	second := pay()
	if second.Header().Get("Idempotent-Replayed") != "" {
		t.Fatalf("retry must reach the handler, got a replay")
	}
	var body checkout.Response
	decodeData(t, second, &body)
	if body.Stage != checkout.StageRedirect || body.RedirectURL != "https://pay.example/session/2" {
		t.Fatalf("expected a fresh initiation, got %+v", body)
	}
	if len(store.data) != 1 {
		t.Fatalf("expected the redirect to be stored, got %d records", len(store.data))
	}
}

func TestCheckoutPayRejectsUnknownMethod(t *testing.T) {
	svc := &stubCheckout{}
	resp := serve(http.MethodPost, "/api/v1/checkout/orders/{orderId}/payment", "/api/v1/checkout/orders/ord-1/payment", `{"method":"cash","name":"Jane"}`, CheckoutPay(svc, nil), withSession)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutErrorsAreMapped(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeCartSubmitted, "cart already submitted")}
	resp := serve(http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", submitBody, CheckoutSubmit(svc, nil), withSession)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeCartSubmitted) {
		t.Fatalf("unexpected code %s", code)
	}
}
