package enums

import (
	"encoding/json"
	"testing"
)

func TestParsePaymentStatus(t *testing.T) {
	for _, raw := range []string{"Completed", "completed", " COMPLETED "} {
		got, err := ParsePaymentStatus(raw)
		if err != nil || got != PaymentStatusCompleted {
			t.Fatalf("%q: expected Completed, got %q err=%v", raw, got, err)
		}
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestRequestEnumsAreCaseSensitive(t *testing.T) {
	if _, err := ParsePaymentMode("PAY_NOW"); err == nil {
		t.Fatalf("shopper-supplied values must match exactly")
	}
	if got, err := ParseAuthKind("sign_in"); err != nil || got != AuthKindSignIn {
		t.Fatalf("expected sign_in, got %q err=%v", got, err)
	}
}

func TestDecodeCanonicalisesKnownValues(t *testing.T) {
	var payload struct {
		Status PaymentStatus `json:"status"`
		Order  OrderStatus   `json:"order"`
		Kind   PromotionKind `json:"kind"`
	}
	if err := json.Unmarshal([]byte(`{"status":"cancelled","order":"PAID","kind":"Percentage"}`), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != PaymentStatusCancelled || payload.Order != OrderStatusPaid || payload.Kind != PromotionKindPercentage {
		t.Fatalf("unexpected decode %+v", payload)
	}

	if err := json.Unmarshal([]byte(`{"status":"Refunded"}`), &payload); err != nil {
		t.Fatalf("decode unknown: %v", err)
	}
	if payload.Status != "Refunded" || payload.Status.IsValid() {
		t.Fatalf("unknown status should be kept verbatim and invalid, got %q", payload.Status)
	}
	if err := json.Unmarshal([]byte(`{"status":7}`), &payload); err == nil {
		t.Fatalf("expected non-string status to fail")
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	if PaymentStatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}
}

func TestPaymentMethodRequiresPhone(t *testing.T) {
	cases := map[PaymentMethod]bool{
		PaymentMethodMTNMobileMoney: true,
		PaymentMethodAirtelMoney:    true,
		PaymentMethodCard:           false,
		PaymentMethodGateway:        false,
	}
	for method, want := range cases {
		if got := method.RequiresPhone(); got != want {
			t.Fatalf("%s: expected RequiresPhone=%v", method, want)
		}
	}
}

func TestPaymentModeIsValid(t *testing.T) {
	if !PaymentModePayNow.IsValid() || !PaymentModeRequestQuote.IsValid() {
		t.Fatalf("expected known modes to be valid")
	}
	if PaymentMode("later").IsValid() {
		t.Fatalf("expected unknown mode to be invalid")
	}
}
