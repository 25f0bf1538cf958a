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

// Package prompt renders PromptTemplate.TemplateFormat strings against a
// variable binding, enforcing the template's own declared schema before
// substitution.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Placeholders returns the distinct {var} names referenced in format, in
// first-seen order.
func Placeholders(format string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(format, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Render binds vars into tmpl.TemplateFormat. It fails closed: every
// placeholder referenced by the template must be present in vars and at
// least as long as its declared MinLength (an empty value passes when that
// is 0); a placeholder with no declared input variable must be non-empty.
// Otherwise Render returns a TemplateVariableMissing error naming every
// offending variable at once rather than the first one found.
func Render(tmpl *domain.PromptTemplate, vars map[string]string) (string, error) {
	var missing []string
	for _, name := range Placeholders(tmpl.TemplateFormat) {
		val, ok := vars[name]
		spec, hasSpec := tmpl.InputVariables[name]
		if !ok || (hasSpec && len(val) < spec.MinLength) || (!hasSpec && val == "") {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", rerrors.TemplateVariableMissing("prompt.Render", missing)
	}

	out := tmpl.TemplateFormat
	for name, val := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", val)
	}
	return out, nil
}

// RenderWithSystem renders tmpl and returns it alongside the template's
// system prompt as a separate value, matching the two-part message shape
// every provider adapter expects (system instruction + user content).
func RenderWithSystem(tmpl *domain.PromptTemplate, vars map[string]string) (system, body string, err error) {
	body, err = Render(tmpl, vars)
	if err != nil {
		return "", "", err
	}
	return tmpl.SystemPrompt, body, nil
}

// Validate checks a template definition for internal consistency: every
// MinLength must be non-negative and every declared variable should actually
// appear in the format string, otherwise operators silently author dead
// config.
func Validate(tmpl *domain.PromptTemplate) error {
	used := make(map[string]bool)
	for _, name := range Placeholders(tmpl.TemplateFormat) {
		used[name] = true
	}
	for name, spec := range tmpl.InputVariables {
		if spec.MinLength < 0 {
			return rerrors.Validation("prompt.Validate", fmt.Sprintf("variable %q has negative min_length", name))
		}
		if !used[name] {
			return rerrors.Validation("prompt.Validate", fmt.Sprintf("variable %q is declared but never referenced in template_format", name))
		}
	}
	return nil
}
