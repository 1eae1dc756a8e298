// Package auth verifies connection tokens before a socket session attaches.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage"
	apperrors "github.com/kothaapp/kotha/internal/platform/errors"
)

// Verifier authenticates connection tokens against the identity store.
// Authentication happens once, at connection time; every frame on an
// accepted session acts as the verified identity.
type Verifier struct {
	secret     []byte
	identities storage.IdentityStore
	now        func() time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// NewVerifier builds a connection verifier. The signing secret must not be
// empty; now defaults to time.Now.
func NewVerifier(secret string, identities storage.IdentityStore, now func() time.Time) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if identities == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: []byte(secret), identities: identities, now: now}, nil
}

// VerifyConnection validates a bearer token and resolves its identity.
// Unverified accounts are rejected even with a valid token.
func (v *Verifier) VerifyConnection(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, apperrors.New(apperrors.CodeAuthRequired, "connection token is required")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return domain.Identity{}, mapJWTError(err)
	}

	userID := strings.TrimSpace(parsed.Subject)
	if userID == "" {
		return domain.Identity{}, apperrors.New(apperrors.CodeAuthInvalid, "token subject is required")
	}
	if parsed.ExpiresAt == nil {
		return domain.Identity{}, apperrors.New(apperrors.CodeAuthInvalid, "token exp is required")
	}
	now := v.now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return domain.Identity{}, apperrors.New(apperrors.CodeAuthExpired, "token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return domain.Identity{}, apperrors.New(apperrors.CodeAuthInvalid, "token not active yet")
	}

	identity, err := v.identities.FindIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Identity{}, apperrors.WithMetadata(
				apperrors.CodeAuthInvalid,
				"token subject has no account",
				map[string]string{"UserID": userID},
			)
		}
		return domain.Identity{}, apperrors.Wrap(apperrors.CodeStorageFailure, "load identity", err)
	}
	if !identity.Verified {
		return domain.Identity{}, apperrors.New(apperrors.CodeAuthUnverified, "account is not verified")
	}
	return identity, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeAuthInvalid, "token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAuthInvalid, "token alg is invalid")
	}
	return apperrors.New(apperrors.CodeAuthInvalid, "token is invalid")
}
