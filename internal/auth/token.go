package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// JWTConfig holds the signing material and claim constants for session
// tokens. The key is immutable after construction and safe for concurrent
// reads.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Claims are the signed contents of a session token. jti carries the session
// id; tid carries the tenant. A valid signature is necessary but never
// sufficient: the session must also exist in the store.
type Claims struct {
	TenantID uuid.UUID `json:"tid"`
	jwt.RegisteredClaims
}

// TokenProvider defines the contract for minting and verifying session tokens.
type TokenProvider interface {
	Generate(userID, tenantID, sessionID uuid.UUID, expiresAt time.Time) (string, error)
	Validate(tokenString string) (*Claims, error)
}

// HMACTokenProvider implements TokenProvider with HMAC-SHA256 (HS256).
type HMACTokenProvider struct {
	secret   []byte
	issuer   string
	audience string
}

func NewHMACTokenProvider(config JWTConfig) *HMACTokenProvider {
	return &HMACTokenProvider{
		secret:   []byte(config.Secret),
		issuer:   config.Issuer,
		audience: config.Audience,
	}
}

// Generate signs a token carrying {iss, aud, sub, jti, tid, iat, exp}.
func (p *HMACTokenProvider) Generate(userID, tenantID, sessionID uuid.UUID, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			Subject:   userID.String(),
			ID:        sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies the token: signature, issuer, audience, expiry.
func (p *HMACTokenProvider) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer), jwt.WithAudience(p.audience), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
