package jwtauth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"sakanect/internal/session"
)

// Verifier accepts HS256 tokens signed with a shared secret. It backs
// AUTH_MODE=jwt for local runs and service-to-service calls.
type Verifier struct {
	secret []byte
}

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) VerifyToken(ctx context.Context, tokenString string) (session.Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return session.Session{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return session.Session{}, fmt.Errorf("token has no subject")
	}

	role := claims.Role
	if role == "" {
		role = session.RoleUser
	}
	return session.Session{UserID: claims.Subject, Role: role}, nil
}

// Sign issues a token for userID. Used by tests and the dev seed.
func (v *Verifier) Sign(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
