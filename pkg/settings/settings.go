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

// Package settings loads process-wide Settings from YAML plus environment
// overrides and resolves per-call configuration through the three-tier
// lookup used across the pipeline: pipeline config_metadata, then Settings,
// then the caller's default.
package settings

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Settings is the immutable, process-wide configuration loaded once at
// startup. Nothing downstream mutates it; per-request overrides flow through
// Resolver instead.
type Settings struct {
	Server        ServerSettings        `yaml:"server"`
	Database      DatabaseSettings      `yaml:"database"`
	Defaults      DefaultsSettings      `yaml:"defaults"`
	Auth          AuthSettings          `yaml:"auth"`
	Observability ObservabilitySettings `yaml:"observability"`
	VectorStore   VectorStoreSettings   `yaml:"vector_store"`
	LLMProviders  []LLMProviderSettings `yaml:"llm_providers"`
	RateLimit     RateLimitSettings     `yaml:"rate_limiting"`

	koanf *koanf.Koanf
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseSettings configures the SQL-backed repositories.
type DatabaseSettings struct {
	Driver string `yaml:"driver"` // "postgres", "mysql", or "sqlite" (driver name, not dialect-specific suffix)
	DSN    string `yaml:"dsn"`
}

// DefaultsSettings are process-wide fallbacks consulted by Resolver when a
// PipelineConfig doesn't override a value.
type DefaultsSettings struct {
	MaxReasoningDepth   int           `yaml:"max_reasoning_depth"`
	MaxContextLength    int           `yaml:"max_context_length"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	RerankTopK          int           `yaml:"rerank_top_k"`
	RetrievalTopK       int           `yaml:"retrieval_top_k"`
	ConcurrencyLimit    int           `yaml:"concurrency_limit"`
	BatchSize           int           `yaml:"batch_size"`
	SummarizationTrigger float64      `yaml:"summarization_trigger"` // fraction of context window
}

// AuthSettings configures bearer token verification.
type AuthSettings struct {
	JWKSURL     string `yaml:"jwks_url"`
	Issuer      string `yaml:"issuer"`
	Audience    string `yaml:"audience"`
	DevBypass   bool   `yaml:"-"` // set only from RAGCORE_DEV_AUTH_BYPASS, never from file
}

// ObservabilitySettings configures logging and OpenTelemetry tracing.
type ObservabilitySettings struct {
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format,omitempty"` // "simple" (default), "verbose", or a custom slog.TextHandler format
	ServiceName    string  `yaml:"service_name"`
	TracingEnabled bool    `yaml:"tracing_enabled"`
	ExporterType   string  `yaml:"exporter_type,omitempty"`
	EndpointURL    string  `yaml:"endpoint_url,omitempty"`
	SamplingRate   float64 `yaml:"sampling_rate,omitempty"`
}

// VectorStoreSettings configures the vector store backend used for
// retrieval. Kept free of a pkg/vectorstore import so settings stays a leaf
// package; cmd/ragcore translates this into a vectorstore.BackendConfig.
type VectorStoreSettings struct {
	Backend     string            `yaml:"backend"` // "chromem" (default), "qdrant", "pinecone"
	PersistPath string            `yaml:"persist_path,omitempty"`
	Qdrant      *QdrantSettings   `yaml:"qdrant,omitempty"`
	Pinecone    *PineconeSettings `yaml:"pinecone,omitempty"`
}

// QdrantSettings configures a self-hosted Qdrant cluster connection.
type QdrantSettings struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

// PineconeSettings configures a managed Pinecone index connection.
type PineconeSettings struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host,omitempty"`
	IndexName string `yaml:"index_name"`
}

// LLMProviderSettings configures one upstream LLM provider connection. Each
// entry is seeded into the LLMProviderRepository and the llm.Registry at
// startup; Credential is typically an ${ENV_VAR} reference expanded by Load.
type LLMProviderSettings struct {
	Name       string `yaml:"name"`
	Family     string `yaml:"family"` // "openai", "anthropic", "watsonx"
	BaseURL    string `yaml:"base_url,omitempty"`
	Credential string `yaml:"credential,omitempty"`
	OrgID      string `yaml:"org_id,omitempty"`
	ProjectID  string `yaml:"project_id,omitempty"`
	Default    bool   `yaml:"default,omitempty"`
}

// RateLimitSettings configures per-session or per-user usage quotas enforced
// at the HTTP layer. Kept free of a pkg/ratelimit import for the same reason
// as VectorStoreSettings; cmd/ragcore translates Limits into
// ratelimit.LimitRule.
type RateLimitSettings struct {
	Enabled bool            `yaml:"enabled"`
	Scope   string          `yaml:"scope,omitempty"` // "session" (default) or "user"
	Limits  []RateLimitRule `yaml:"limits,omitempty"`
}

// RateLimitRule is one (type, window, limit) tuple, e.g. {token, day, 100000}.
type RateLimitRule struct {
	Type   string `yaml:"type"`   // "token" or "count"
	Window string `yaml:"window"` // "minute", "hour", "day", "week", "month"
	Limit  int64  `yaml:"limit"`
}

// Load reads path (YAML) through koanf, expands ${VAR}/${VAR:-default}/$VAR
// references against the environment, layers RAGCORE_* environment
// variables on top, and unmarshals the result into Settings.
func Load(path string) (*Settings, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	expanded, ok := expandEnvVarsInData(k.Raw()).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected shape after env expansion")
	}
	k = koanf.New(".")
	if err := k.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return nil, fmt.Errorf("reload expanded config: %w", err)
	}

	// RAGCORE_SERVER_ADDR -> server.addr, highest precedence.
	err := k.Load(env.Provider("RAGCORE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "RAGCORE_")
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	s := &Settings{koanf: k}
	if err := k.UnmarshalWithConf("", s, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	applyDefaults(s)
	s.Auth.DevBypass = os.Getenv("RAGCORE_DEV_AUTH_BYPASS") == "true"
	return s, nil
}

func applyDefaults(s *Settings) {
	if s.Server.Addr == "" {
		s.Server.Addr = ":8080"
	}
	if s.Server.ReadTimeout == 0 {
		s.Server.ReadTimeout = 30 * time.Second
	}
	if s.Server.WriteTimeout == 0 {
		s.Server.WriteTimeout = 60 * time.Second
	}
	if s.Defaults.MaxReasoningDepth == 0 {
		s.Defaults.MaxReasoningDepth = 5
	}
	if s.Defaults.MaxContextLength == 0 {
		s.Defaults.MaxContextLength = 8192
	}
	if s.Defaults.RequestTimeout == 0 {
		s.Defaults.RequestTimeout = 30 * time.Second
	}
	if s.Defaults.RerankTopK == 0 {
		s.Defaults.RerankTopK = 10
	}
	if s.Defaults.RetrievalTopK == 0 {
		s.Defaults.RetrievalTopK = 20
	}
	if s.Defaults.ConcurrencyLimit == 0 {
		s.Defaults.ConcurrencyLimit = 4
	}
	if s.Defaults.BatchSize == 0 {
		s.Defaults.BatchSize = 16
	}
	if s.Defaults.SummarizationTrigger == 0 {
		s.Defaults.SummarizationTrigger = 0.8
	}
	if s.VectorStore.Backend == "" {
		s.VectorStore.Backend = "chromem"
	}
	if s.Observability.ServiceName == "" {
		s.Observability.ServiceName = "ragcore"
	}
	if s.Observability.SamplingRate == 0 {
		s.Observability.SamplingRate = 1.0
	}
	if s.RateLimit.Scope == "" {
		s.RateLimit.Scope = "session"
	}
}
