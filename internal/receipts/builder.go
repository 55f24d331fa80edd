package receipts

import (
	"fmt"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

// TargetBlank tells the client to open the receipt in a new browsing context.
const TargetBlank = "_blank"

const receiptPathFormat = "/orders/%s/receipt"

// Link is a receipt download location.
type Link struct {
	URL    string `json:"url"`
	Target string `json:"target"`
}

// Builder turns a configured base endpoint into receipt download links.
type Builder struct {
	base string
}

// NewBuilder normalizes base once. An empty or scheme-less relative base falls back to
// defaultOrigin, a protocol-relative base gets https, and trailing slashes are stripped.
func NewBuilder(base, defaultOrigin string) (*Builder, error) {
	fallback := strings.TrimRight(strings.TrimSpace(defaultOrigin), "/")
	parsed, err := url.Parse(fallback)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("receipt default origin must be an absolute url: %q", defaultOrigin)
	}
	return &Builder{base: normalizeBase(base, fallback)}, nil
}

func normalizeBase(raw, fallback string) string {
	base := strings.TrimSpace(raw)
	switch {
	case base == "":
		return fallback
	case strings.HasPrefix(base, "//"):
		base = "https:" + base
	case !strings.Contains(base, "://"):
		return fallback
	}
	return strings.TrimRight(base, "/")
}

// Base is the normalized base endpoint.
func (b *Builder) Base() string {
	return b.base
}

// URL returns the absolute receipt URL for the order, requesting the PDF format.
func (b *Builder) URL(orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return b.base + fmt.Sprintf(receiptPathFormat, url.PathEscape(orderID)) + "?format=pdf", nil
}

// Link wraps URL with the new-context target.
func (b *Builder) Link(orderID string) (Link, error) {
	u, err := b.URL(orderID)
	if err != nil {
		return Link{}, err
	}
	return Link{URL: u, Target: TargetBlank}, nil
}
