package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience is stamped on every storefront credential and required when parsing.
const Audience = "storefront"

// AccessTokenPayload captures the customer identity available when minting a JWT.
type AccessTokenPayload struct {
	CustomerID string
	Email      string
	Name       string
	Phone      string
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to storefront customers.
type AccessTokenClaims struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed credential and the instant it stops being accepted.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}
