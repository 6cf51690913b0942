// Package token issues and validates the signed completion token handed out
// when a verification flow finishes.
package token

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/verifid/verifid/pkg/secscore"
)

const DefaultExpiry = 1 * time.Hour

// Claims carries the verification outcome inside the JWT.
type Claims struct {
	SecurityScore int                `json:"security_score"`
	SecurityTier  secscore.Tier      `json:"security_tier"`
	Factors       secscore.FactorSet `json:"factors"`
	FlowID        string             `json:"flow_id,omitempty"`
	jwt.RegisteredClaims
}

// Generator signs and validates completion tokens.
type Generator interface {
	GenerateToken(subject string, result secscore.Result, flowID string) (string, time.Time, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// JwtGenerator implements Generator with HS256 signing.
type JwtGenerator struct {
	Secret   string
	Issuer   string
	Audience string
	Expiry   time.Duration
}

// NewJwtGenerator creates a generator with the default expiry.
func NewJwtGenerator(secret, issuer, audience string) *JwtGenerator {
	return &JwtGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
		Expiry:   DefaultExpiry,
	}
}

// GenerateToken signs a completion token for the subject with the aggregated
// security result embedded in the claims.
func (g *JwtGenerator) GenerateToken(subject string, result secscore.Result, flowID string) (string, time.Time, error) {
	now := time.Now().UTC()
	claims := Claims{
		SecurityScore: result.Score,
		SecurityTier:  result.Tier,
		Factors:       result.Factors,
		FlowID:        flowID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   subject,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed to sign completion token", "subject", subject, "error", err)
		return "", time.Time{}, fmt.Errorf("failed to sign completion token: %w", err)
	}
	return ss, claims.ExpiresAt.Time, nil
}

// ParseToken validates the signature and expiry and returns the claims.
func (g *JwtGenerator) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse completion token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid completion token")
	}
	return claims, nil
}
