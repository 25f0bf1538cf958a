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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

// errorBody is the user-visible error shape from spec §7: a detail message,
// the taxonomy code, and a correlation id for support — never a stack trace.
type errorBody struct {
	Detail        string `json:"detail"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// statusForKind maps the error taxonomy to an HTTP status, grounded in the
// teacher's own status choices in pkg/server/http.go (bad input -> 400,
// missing entity -> 404, duplicate -> 409, expired session -> 410, missing
// configuration -> 422, upstream provider/vector store -> 502, deadline ->
// 504, everything else -> 500).
func statusForKind(kind rerrors.Kind) int {
	switch kind {
	case rerrors.KindValidation, rerrors.KindTemplateVariableMissing:
		return http.StatusBadRequest
	case rerrors.KindNotFound:
		return http.StatusNotFound
	case rerrors.KindAlreadyExists:
		return http.StatusConflict
	case rerrors.KindSessionExpired:
		return http.StatusGone
	case rerrors.KindConfigurationMissing:
		return http.StatusUnprocessableEntity
	case rerrors.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	case rerrors.KindProvider, rerrors.KindVectorStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIError inspects err for a *rerrors.Error and writes the matching
// status and body; anything else is an unclassified InternalError, logged
// with a fresh correlation id since it wasn't one the domain code tagged.
func writeAPIError(w http.ResponseWriter, err error) {
	var domainErr *rerrors.Error
	if errors.As(err, &domainErr) {
		correlationID := domainErr.CorrelationID
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		if domainErr.Kind == rerrors.KindInternal {
			slog.Error("internal error", "component", domainErr.Component, "correlation_id", correlationID, "err", domainErr.Err)
		}
		writeErrorBody(w, statusForKind(domainErr.Kind), domainErr.Message, string(domainErr.Kind), correlationID)
		return
	}
	correlationID := uuid.NewString()
	slog.Error("unclassified error", "correlation_id", correlationID, "err", err)
	writeErrorBody(w, http.StatusInternalServerError, "internal error", string(rerrors.KindInternal), correlationID)
}

func writeError(w http.ResponseWriter, status int, detail, code string) {
	writeErrorBody(w, status, detail, code, "")
}

func writeErrorBody(w http.ResponseWriter, status int, detail, code, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Detail: detail, Code: code, CorrelationID: correlationID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
