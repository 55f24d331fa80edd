package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "trims", input: "  Jane Doe \n", max: 0, want: "Jane Doe"},
		{name: "drops control characters", input: "07\x0072\t123", max: 0, want: "0772123"},
		{name: "truncates", input: "abcdef", max: 3, want: "abc"},
		{name: "keeps runes whole", input: "Zoë", max: 3, want: "Zo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.max); got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=7&bad=x&big=500", nil)

	if got, err := ParseQueryInt(req, "missing", 12, 1, 50); err != nil || got != 12 {
		t.Fatalf("expected default, got %d %v", got, err)
	}
	if got, err := ParseQueryInt(req, "limit", 12, 1, 50); err != nil || got != 7 {
		t.Fatalf("expected 7, got %d %v", got, err)
	}
	if _, err := ParseQueryInt(req, "bad", 12, 1, 50); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseQueryInt(req, "big", 12, 1, 50); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected range error, got %v", err)
	}
}

type addLine struct {
	UnitID   string `json:"unit_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

func TestDecodeJSONBody(t *testing.T) {
	var dst addLine
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unit_id":"u1","quantity":2}`))
	if err := DecodeJSONBody(req, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.UnitID != "u1" || dst.Quantity != 2 {
		t.Fatalf("unexpected decode %+v", dst)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unit_id":"","quantity":0}`))
	if err := DecodeJSONBody(req, &dst); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUUIDParam(t *testing.T) {
	var got error
	router := chi.NewRouter()
	router.Get("/lines/{lineId}", func(w http.ResponseWriter, r *http.Request) {
		_, got = UUIDParam(r, "lineId")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lines/not-a-uuid", nil))
	if pkgerrors.CodeOf(got) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", got)
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lines/5b1f4d43-8f7e-4c39-9d1e-1d2b8d8a7c11", nil))
	if got != nil {
		t.Fatalf("unexpected error %v", got)
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"syntax":        `{"unit_id":`,
		"unknown field": `{"unit_id":"u1","quantity":1,"price":5}`,
		"wrong type":    `{"unit_id":"u1","quantity":"two"}`,
		"trailing":      `{"unit_id":"u1","quantity":1}{"unit_id":"u2","quantity":1}`,
		"too large":     `{"unit_id":"` + strings.Repeat("a", MaxBodyBytes) + `","quantity":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dst addLine
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			if err := DecodeJSONBody(req, &dst); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
