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

// Package rerrors defines the error taxonomy shared by every stage of the
// search and conversation core. Every error carries a Kind so the facade can
// map it to an HTTP status and a structured {detail, code} body without
// string-matching error messages.
package rerrors

import (
	"fmt"
)

// Kind discriminates the error taxonomy from spec §7.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindNotFound            Kind = "NotFoundError"
	KindAlreadyExists       Kind = "AlreadyExistsError"
	KindSessionExpired      Kind = "SessionExpired"
	KindConfigurationMissing Kind = "ConfigurationMissing"
	KindTemplateVariableMissing Kind = "TemplateVariableMissing"
	KindProvider            Kind = "ProviderError"
	KindVectorStore         Kind = "VectorStoreError"
	KindDeadlineExceeded    Kind = "DeadlineExceeded"
	KindInternal            Kind = "InternalError"
)

// ProviderSubKind further classifies a ProviderError per §7.
type ProviderSubKind string

const (
	ProviderAuth         ProviderSubKind = "auth"
	ProviderRateLimited  ProviderSubKind = "rate_limited"
	ProviderTimeout      ProviderSubKind = "timeout"
	ProviderMalformed    ProviderSubKind = "malformed_response"
	ProviderUnavailable  ProviderSubKind = "unavailable"
)

// Error is the single error type flowing through stage boundaries.
// Component names the stage or collaborator that raised it; CorrelationID is
// populated by the facade for InternalError responses so support can trace a
// report back to a specific request.
type Error struct {
	Kind          Kind
	ProviderSub   ProviderSubKind // only meaningful when Kind == KindProvider
	Component     string
	Message       string
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Component, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

func Wrap(kind Kind, component, message string, err error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Err: err}
}

func Validation(component, message string) *Error {
	return New(KindValidation, component, message)
}

func NotFound(component, message string) *Error {
	return New(KindNotFound, component, message)
}

func AlreadyExists(component, message string) *Error {
	return New(KindAlreadyExists, component, message)
}

func ConfigurationMissing(component, message string) *Error {
	return New(KindConfigurationMissing, component, message)
}

func SessionExpired(component, message string) *Error {
	return New(KindSessionExpired, component, message)
}

// TemplateVariableMissing reports the exact missing placeholder names so the
// caller can fix the request without guessing (spec §7).
func TemplateVariableMissing(component string, missing []string) *Error {
	return New(KindTemplateVariableMissing, component, fmt.Sprintf("missing template variables: %v", missing))
}

func Provider(sub ProviderSubKind, component, message string, err error) *Error {
	return &Error{Kind: KindProvider, ProviderSub: sub, Component: component, Message: message, Err: err}
}

func VectorStore(component, message string, err error) *Error {
	return Wrap(KindVectorStore, component, message, err)
}

func DeadlineExceeded(component string) *Error {
	return New(KindDeadlineExceeded, component, "deadline exceeded")
}

func Internal(component, message string, err error) *Error {
	return Wrap(KindInternal, component, message, err)
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
