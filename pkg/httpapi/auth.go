// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kadirpekel/ragcore/pkg/settings"
)

// Claims is the identity extracted from a validated bearer token: the
// caller's user id (the sub claim, required to be a UUID) and role, used to
// scope every repository lookup the handlers make.
type Claims struct {
	UserID uuid.UUID
	Role   string
}

type claimsContextKey struct{}

// ClaimsFromContext returns the authenticated caller's Claims, or the zero
// value and false if the request reached the handler unauthenticated (only
// possible for a handler not mounted behind requireAuth, such as /healthz).
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(Claims)
	return claims, ok
}

// Authenticator validates bearer tokens and extracts Claims. JWTAuthenticator
// is the production implementation; DevBypassAuthenticator is used only when
// RAGCORE_DEV_AUTH_BYPASS is set.
type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (Claims, error)
}

// JWTAuthenticator validates bearer tokens against a JWKS endpoint, mirroring
// the teacher's pkg/auth.JWTValidator: auto-fetched, auto-refreshed keyset,
// issuer/audience enforcement, sub/role claim extraction.
type JWTAuthenticator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTAuthenticator builds an Authenticator from the process's auth
// settings, fetching the JWKS once up front so misconfiguration fails at
// start-up rather than on the first request.
func NewJWTAuthenticator(cfg settings.AuthSettings) (*JWTAuthenticator, error) {
	ctx := context.Background()
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("register JWKS url: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("fetch JWKS from %s: %w", cfg.JWKSURL, err)
	}
	return &JWTAuthenticator{jwksURL: cfg.JWKSURL, cache: cache, issuer: cfg.Issuer, audience: cfg.Audience}, nil
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, bearerToken string) (Claims, error) {
	keyset, err := a.cache.Get(ctx, a.jwksURL)
	if err != nil {
		return Claims{}, fmt.Errorf("fetch JWKS: %w", err)
	}
	token, err := jwt.Parse([]byte(bearerToken),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.audience),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid token: %w", err)
	}
	userID, err := uuid.Parse(token.Subject())
	if err != nil {
		return Claims{}, fmt.Errorf("token subject is not a user id: %w", err)
	}
	claims := Claims{UserID: userID}
	if role, ok := token.Get("role"); ok {
		if roleStr, ok := role.(string); ok {
			claims.Role = roleStr
		}
	}
	return claims, nil
}

// DevBypassAuthenticator trusts the bearer token as a raw user id instead of
// validating a signature. It exists only so the server is runnable without a
// real identity provider during development; wiring it requires the
// operator to set RAGCORE_DEV_AUTH_BYPASS explicitly (see cmd/ragcore).
type DevBypassAuthenticator struct{}

func (DevBypassAuthenticator) Authenticate(ctx context.Context, bearerToken string) (Claims, error) {
	userID, err := uuid.Parse(bearerToken)
	if err != nil {
		return Claims{}, fmt.Errorf("dev bypass expects the bearer token to be a raw user id: %w", err)
	}
	return Claims{UserID: userID, Role: "admin"}, nil
}

// requireAuth extracts and validates the bearer token on every request,
// rejecting with 401 when absent or invalid.
func requireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token == header {
				writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header", "Unauthorized")
				return
			}
			claims, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error(), "Unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
