package commerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) GetUnit(ctx context.Context, unitID string) (*Unit, error) {
	var unit Unit
	if err := c.do(ctx, call{
		endpoint: "get_unit",
		method:   http.MethodGet,
		path:     fmt.Sprintf("catalog/units/%s", url.PathEscape(unitID)),
	}, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (c *Client) GetBundle(ctx context.Context, bundleID string) (*Bundle, error) {
	var bundle Bundle
	if err := c.do(ctx, call{
		endpoint: "get_bundle",
		method:   http.MethodGet,
		path:     fmt.Sprintf("catalog/bundles/%s", url.PathEscape(bundleID)),
	}, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ActivePromotions lists promotions the catalog currently advertises. Validity windows are
// still checked by the caller.
func (c *Client) ActivePromotions(ctx context.Context) ([]Promotion, error) {
	var resp struct {
		Promotions []Promotion `json:"promotions"`
	}
	if err := c.do(ctx, call{
		endpoint: "list_promotions",
		method:   http.MethodGet,
		path:     "catalog/promotions",
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Promotions, nil
}
