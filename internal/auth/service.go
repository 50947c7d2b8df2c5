// Package auth bridges Firebase authentication and the service's own
// short-lived JWTs. Firebase proves who the caller is; the role claim comes
// from the users collection, never from the Firebase token, so role changes
// take effect without re-issuing Firebase credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"

	"github.com/servicedesk-pro/servicedesk/internal/store"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// IDTokenVerifier verifies a Firebase ID token. *fbauth.Client satisfies
// it; tests plug in a fake.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Claims are the service JWT claims.
type Claims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service verifies Firebase ID tokens and mints service JWTs.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	verifier   IDTokenVerifier
	users      store.UserStore
}

// New creates an auth service. verifier may be nil in memory-backend dev
// mode, in which case ExchangeIDToken is unavailable but service JWTs still
// validate.
func New(signingKey, issuer string, ttl time.Duration, verifier IDTokenVerifier, users store.UserStore) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		verifier:   verifier,
		users:      users,
	}
}

// ExchangeIDToken verifies a Firebase ID token, loads the caller's profile
// for the role claim, and returns a signed service token together with the
// profile. Deactivated users are rejected.
func (s *Service) ExchangeIDToken(ctx context.Context, idToken string) (string, *models.User, error) {
	if s.verifier == nil {
		return "", nil, fmt.Errorf("firebase verification not configured")
	}
	decoded, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.users.GetUser(ctx, decoded.UID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, fmt.Errorf("%w: uid %s", ErrNoProfile, decoded.UID)
	}
	if err != nil {
		return "", nil, fmt.Errorf("load user profile: %w", err)
	}
	if !user.Active {
		return "", nil, ErrInactiveUser
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// GenerateToken signs a service JWT for u.
func (s *Service) GenerateToken(u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.UID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a service JWT.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
