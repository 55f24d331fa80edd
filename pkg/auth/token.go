package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
)

const clockLeeway = 30 * time.Second

var (
	jwtSigningMethod = jwt.SigningMethodHS256

	errSecretRequired   = errors.New("jwt secret is required")
	errCustomerRequired = errors.New("customer id is required")
)

// MintAccessToken signs a customer credential valid for cfg.ExpirationMinutes from now.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (IssuedToken, error) {
	switch {
	case cfg.Secret == "":
		return IssuedToken{}, errSecretRequired
	case cfg.Issuer == "":
		return IssuedToken{}, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return IssuedToken{}, errors.New("jwt expiration minutes must be positive")
	}
	customerID := strings.TrimSpace(payload.CustomerID)
	if customerID == "" {
		return IssuedToken{}, errCustomerRequired
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	now = now.UTC().Truncate(time.Second)
	expiresAt := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	claims := AccessTokenClaims{
		CustomerID: customerID,
		Email:      strings.TrimSpace(payload.Email),
		Name:       strings.TrimSpace(payload.Name),
		Phone:      strings.TrimSpace(payload.Phone),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   customerID,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("signing jwt: %w", err)
	}
	return IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// ParseAccessToken verifies signature, issuer, audience and expiry, allowing a small clock
// skew, and returns the typed claims.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errSecretRequired
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		strings.TrimSpace(tokenString),
		claims,
		func(*jwt.Token) (any, error) {
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.CustomerID) == "" {
		return nil, errCustomerRequired
	}
	return claims, nil
}
