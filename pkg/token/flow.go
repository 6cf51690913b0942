package token

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// FlowTokenExpiry bounds how long a verification flow may stay open between
// calls. It matches the challenge lifetime so an abandoned flow and its
// outstanding code expire together.
const FlowTokenExpiry = 10 * time.Minute

// FlowClaims binds an in-progress verification flow to its subject so later
// calls cannot be replayed against another account.
type FlowClaims struct {
	FlowID string `json:"flow_id"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// FlowTokenGenerator issues and validates the short-lived continuation token
// carried between verification steps.
type FlowTokenGenerator struct {
	Secret   string
	Issuer   string
	Audience string
}

func NewFlowTokenGenerator(secret, issuer, audience string) *FlowTokenGenerator {
	return &FlowTokenGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
	}
}

// GenerateFlowToken signs a continuation token for the subject and flow.
func (g *FlowTokenGenerator) GenerateFlowToken(subjectUserID, flowID, kind string) (string, error) {
	now := time.Now().UTC()
	claims := FlowClaims{
		FlowID: flowID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(FlowTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   subjectUserID,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed to sign flow token", "subject", subjectUserID, "error", err)
		return "", fmt.Errorf("failed to sign flow token: %w", err)
	}
	return ss, nil
}

// ParseFlowToken validates the signature and expiry and returns the claims.
func (g *FlowTokenGenerator) ParseFlowToken(tokenStr string) (*FlowClaims, error) {
	claims := &FlowClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse flow token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid flow token")
	}
	return claims, nil
}
