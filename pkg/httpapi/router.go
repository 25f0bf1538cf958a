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

// Package httpapi exposes the Search Service and Conversation Manager over
// HTTP: a thin chi router, bearer-token auth, and the request/response DTOs
// named in the external interface. It owns no business logic — every
// handler validates its input, delegates to pkg/ragcore or
// pkg/conversation, and shapes the result.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/ragcore/pkg/conversation"
	"github.com/kadirpekel/ragcore/pkg/ragcore"
	"github.com/kadirpekel/ragcore/pkg/ratelimit"
)

// Deps wires the router to the facade and the conversation manager.
type Deps struct {
	Service       *ragcore.Service
	Conversations *conversation.Manager
	Authenticator Authenticator

	// RateLimiter enforces per-caller token/request quotas. Nil disables
	// rate limiting entirely (the default for a fresh, zero-config setup).
	RateLimiter ratelimit.RateLimiter
	// RateLimitScope selects whether quotas are tracked per session or per
	// user; see ratelimit.Scope. Defaults to ratelimit.ScopeSession.
	RateLimitScope ratelimit.Scope
}

// NewRouter builds the full HTTP surface described in the external
// interfaces section: every route below health requires a bearer token.
func NewRouter(deps Deps) http.Handler {
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.health)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(deps.Authenticator))
		r.Use(rateLimitMiddleware(deps.RateLimiter, deps.RateLimitScope))

		r.Post("/api/search", h.search)

		r.Route("/api/chat/sessions", func(r chi.Router) {
			r.Post("/", h.createSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.getSession)
				r.Patch("/", h.patchSession)
				r.Delete("/", h.deleteSession)
				r.Post("/messages", h.addMessage)
				r.Post("/process", h.processMessage)
				r.Post("/summaries", h.createSummary)
				r.Get("/summaries", h.listSummaries)
			})
		})
	})

	return r
}

type handlers struct {
	deps Deps
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
