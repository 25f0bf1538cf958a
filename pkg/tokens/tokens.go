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

// Package tokens counts and budgets tokens across model families. Chat
// models get exact tiktoken-go counts; everything else falls back to a
// per-family character-to-token ratio.
package tokens

import (
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Family groups models that share a token estimation strategy.
type Family string

const (
	FamilyChat    Family = "chat"    // OpenAI-style chat-completions models
	FamilyClaude  Family = "claude"
	FamilyGranite Family = "granite"
	FamilyDefault Family = "default"
)

// ratio is chars-per-token used when an exact tokenizer isn't available.
var ratio = map[Family]float64{
	FamilyChat:    4.0,
	FamilyClaude:  3.5,
	FamilyGranite: 3.8,
	FamilyDefault: 4.0,
}

// contextWindow is the known context-window size, in tokens, per model name.
// Unlisted models fall back to a conservative default.
var contextWindow = map[string]int{
	"gpt-4o":             128000,
	"gpt-4o-mini":        128000,
	"gpt-4-turbo":        128000,
	"gpt-3.5-turbo":      16385,
	"claude-3-5-sonnet":  200000,
	"claude-3-opus":      200000,
	"claude-3-haiku":     200000,
	"granite-13b-chat":   8192,
	"granite-3-8b":       8192,
	"llama-3-70b":        8192,
	"mixtral-8x7b":       32768,
}

const defaultContextWindow = 4096

// ClassifyFamily maps a model name to a Family for ratio-based estimation.
func ClassifyFamily(model string) Family {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "claude"):
		return FamilyClaude
	case strings.Contains(m, "granite"):
		return FamilyGranite
	case strings.HasPrefix(m, "gpt-"), strings.Contains(m, "chatgpt"):
		return FamilyChat
	default:
		return FamilyDefault
	}
}

// ContextWindow returns the known context window for model, or a
// conservative default if unknown.
func ContextWindow(model string) int {
	if n, ok := contextWindow[strings.ToLower(model)]; ok {
		return n
	}
	return defaultContextWindow
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// Count returns the token count of text for model. Chat-family models use an
// exact tiktoken-go BPE count; other families use ceil(len(text)/ratio).
func Count(model, text string) int {
	family := ClassifyFamily(model)
	if family == FamilyChat {
		if e, err := encoding(); err == nil {
			return len(e.Encode(text, nil, nil))
		}
		// tiktoken unavailable (e.g. vocab fetch failed offline): fall through
		// to the ratio estimator rather than fail the request.
	}
	r := ratio[family]
	if r == 0 {
		r = ratio[FamilyDefault]
	}
	return int(math.Ceil(float64(len(text)) / r))
}

// WarningThresholds are the usage fractions at which a context-window
// warning should be emitted (see PipelineConfig.MaxContextLength handling).
var WarningThresholds = []float64{0.8, 0.95}

// Warning reports whether used/limit crosses a warning threshold and, if so,
// the highest threshold crossed.
func Warning(used, limit int) (crossed bool, threshold float64) {
	if limit <= 0 {
		return false, 0
	}
	frac := float64(used) / float64(limit)
	for i := len(WarningThresholds) - 1; i >= 0; i-- {
		if frac >= WarningThresholds[i] {
			return true, WarningThresholds[i]
		}
	}
	return false, 0
}

// TruncateToLimit trims text so Count(model, text) <= limit, cutting from the
// end on a rune boundary. It never cuts mid-rune and returns text unchanged
// if it already fits.
func TruncateToLimit(model, text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if Count(model, text) <= limit {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if Count(model, string(runes[:mid])) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}

// SplitByTokens splits text into chunks each within limit tokens, preferring
// to break on paragraph then sentence then word boundaries.
func SplitByTokens(model, text string, limit int) []string {
	if limit <= 0 || Count(model, text) <= limit {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > 0 {
		if Count(model, remaining) <= limit {
			chunks = append(chunks, remaining)
			break
		}
		cut := TruncateToLimit(model, remaining, limit)
		if cut == "" {
			// limit too small for even one rune's worth of content.
			cut = string([]rune(remaining)[:1])
		}
		boundary := lastBoundary(cut)
		if boundary == 0 {
			boundary = len(cut)
		}
		chunks = append(chunks, remaining[:boundary])
		remaining = remaining[boundary:]
	}
	return chunks
}

// lastBoundary finds the best break point in s: paragraph, then sentence,
// then whitespace, falling back to the full length.
func lastBoundary(s string) int {
	if i := strings.LastIndex(s, "\n\n"); i > 0 {
		return i + 2
	}
	for _, sep := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(s, sep); i > 0 {
			return i + len(sep)
		}
	}
	if i := strings.LastIndex(s, " "); i > 0 {
		return i + 1
	}
	return 0
}
