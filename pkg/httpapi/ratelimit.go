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
	"net/http"

	"github.com/kadirpekel/ragcore/pkg/ratelimit"
)

// rateLimitMiddleware enforces limiter's quotas keyed by the authenticated
// caller's user id, scoped per scope. Must sit behind requireAuth so Claims
// are already in the request context. A nil limiter disables rate limiting.
func rateLimitMiddleware(limiter ratelimit.RateLimiter, scope ratelimit.Scope) func(http.Handler) http.Handler {
	if scope == "" {
		scope = ratelimit.ScopeSession
	}
	return ratelimit.Middleware(ratelimit.MiddlewareConfig{
		Limiter: limiter,
		IdentifierFunc: func(r *http.Request) (string, ratelimit.Scope) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				return "", scope
			}
			return claims.UserID.String(), scope
		},
	})
}
