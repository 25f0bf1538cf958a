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

// Command ragcore runs the search and conversation HTTP service.
//
// Usage:
//
//	ragcore serve --config config.yaml
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/kadirpekel/ragcore/pkg/conversation"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/httpapi"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/logger"
	"github.com/kadirpekel/ragcore/pkg/observability"
	"github.com/kadirpekel/ragcore/pkg/ragcore"
	"github.com/kadirpekel/ragcore/pkg/ratelimit"
	"github.com/kadirpekel/ragcore/pkg/rerank"
	"github.com/kadirpekel/ragcore/pkg/repository"
	"github.com/kadirpekel/ragcore/pkg/settings"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`

	Config string `short:"c" help:"Path to config file." type:"path"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("ragcore version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Addr string `help:"Override the configured listen address."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := settings.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if c.Addr != "" {
		s.Server.Addr = c.Addr
	}

	logLevel, err := logger.ParseLevel(s.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger.Init(logLevel, os.Stderr, s.Observability.LogFormat)

	tp, err := observability.InitGlobalTracer(ctx, observability.TracerConfig{
		Enabled:      s.Observability.TracingEnabled,
		ExporterType: s.Observability.ExporterType,
		EndpointURL:  s.Observability.EndpointURL,
		SamplingRate: s.Observability.SamplingRate,
		ServiceName:  s.Observability.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	if shutdowner, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdowner.Shutdown(shutdownCtx); err != nil {
				slog.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	providers := llm.NewRegistry()
	llmProviders := repository.NewInMemoryLLMProviders()
	llmModels := repository.NewInMemoryLLMModels()
	if err := seedProviders(ctx, s.LLMProviders, providers, llmProviders, llmModels); err != nil {
		return fmt.Errorf("configure llm providers: %w", err)
	}

	store, err := buildVectorStore(s.VectorStore)
	if err != nil {
		return fmt.Errorf("build vector store: %w", err)
	}

	var db *sql.DB
	var collections repository.CollectionRepository
	var convRepo repository.ConversationRepository
	convStore := conversation.NewInMemoryStore()
	if s.Database.DSN != "" {
		db, err = sql.Open(sqlDriverName(s.Database.Driver), s.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		collections, err = repository.NewSQLCollections(db, s.Database.Driver)
		if err != nil {
			return fmt.Errorf("init collections schema: %w", err)
		}
		sqlConvStore, err := conversation.NewSQLStore(db, s.Database.Driver)
		if err != nil {
			return fmt.Errorf("init conversation schema: %w", err)
		}
		convRepo, err = repository.NewSQLConversationRepository(sqlConvStore, db, s.Database.Driver)
		if err != nil {
			return fmt.Errorf("init conversation repository: %w", err)
		}
		slog.Info("using SQL-backed collections and conversation storage", "driver", s.Database.Driver)
	} else {
		collections = repository.NewInMemoryCollections()
		convRepo = repository.NewConversationRepository(convStore)
		slog.Info("using in-memory collections and conversation storage")
	}

	// Pipeline configs, prompt templates, and LLM generation parameters have
	// no SQL-backed repository yet (see DESIGN.md) and are always in-memory,
	// regardless of the database setting above.
	pipelines := repository.NewInMemoryPipelineConfigs()
	templates := repository.NewInMemoryPromptTemplates()
	parameters := repository.NewInMemoryLLMParameters()

	svc := ragcore.NewService(ragcore.ServiceDeps{
		Collections:     collections,
		PipelineConfigs: pipelines,
		Templates:       templates,
		LLMParameters:   parameters,
		LLMProviders:    llmProviders,
		LLMModels:       llmModels,
		Providers:       providers,
		VectorStore:     store,
		Reranker:        rerank.Passthrough{},
		Settings:        s,
	})

	rewriter, err := defaultRewriteGenerator(s.LLMProviders, providers)
	if err != nil {
		return fmt.Errorf("build rewrite generator: %w", err)
	}
	mgr := conversation.NewManager(convRepo, rewriter, ragcore.ConversationSearcher{Service: svc}, defaultGenerationModel(s.LLMProviders))

	var authn httpapi.Authenticator
	if s.Auth.DevBypass {
		authn = httpapi.DevBypassAuthenticator{}
		slog.Warn("RAGCORE_DEV_AUTH_BYPASS is set: bearer tokens are trusted as raw user ids, unsigned. Do not run this in production.")
	} else {
		authn, err = httpapi.NewJWTAuthenticator(s.Auth)
		if err != nil {
			return fmt.Errorf("init JWT authenticator: %w", err)
		}
	}

	limiter, err := buildRateLimiter(s.RateLimit)
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Service:        svc,
		Conversations:  mgr,
		Authenticator:  authn,
		RateLimiter:    limiter,
		RateLimitScope: ratelimit.ParseScope(s.RateLimit.Scope),
	})

	httpServer := &http.Server{
		Addr:         s.Server.Addr,
		Handler:      router,
		ReadTimeout:  s.Server.ReadTimeout,
		WriteTimeout: s.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ragcore listening", "addr", s.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		slog.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}

// seedProviders registers each configured provider with the LLM registry and
// records it in the in-memory repositories, so Service.Search's
// LLMProviders.Get(ctx, cfg.ProviderID) followed by Providers.Get(row.Name)
// resolves to the same provider Configure just registered. Real deployments
// would instead manage these rows through an admin API backed by a SQL
// repository (see DESIGN.md); this seeds the registry from static config
// until that exists.
func seedProviders(ctx context.Context, cfgs []settings.LLMProviderSettings, registry *llm.Registry, providers repository.LLMProviderRepository, models repository.LLMModelRepository) error {
	for _, pc := range cfgs {
		row := domain.LLMProvider{
			ID: uuid.New(), Name: pc.Name, BaseURL: pc.BaseURL, Credential: pc.Credential,
			OrgID: pc.OrgID, ProjectID: pc.ProjectID, Active: true, IsDefault: pc.Default,
		}
		if _, err := providers.Create(ctx, row); err != nil {
			return fmt.Errorf("register provider %q: %w", pc.Name, err)
		}
		if err := registry.Configure(pc.Family, row); err != nil {
			return fmt.Errorf("configure provider %q: %w", pc.Name, err)
		}
		for _, modelType := range []domain.LLMModelType{domain.ModelGeneration, domain.ModelEmbedding} {
			if _, err := models.Create(ctx, domain.LLMModel{
				ID: uuid.New(), ProviderID: row.ID, Model: defaultModelName(pc.Family, modelType),
				Type: modelType, Active: true, IsDefault: true,
			}); err != nil {
				return fmt.Errorf("register default model for provider %q: %w", pc.Name, err)
			}
		}
	}
	return nil
}

func defaultModelName(family string, modelType domain.LLMModelType) string {
	switch family {
	case "openai":
		if modelType == domain.ModelEmbedding {
			return "text-embedding-3-small"
		}
		return "gpt-4o"
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "watsonx":
		if modelType == domain.ModelEmbedding {
			return "ibm/slate-125m-english-rtrvr"
		}
		return "ibm/granite-13b-chat-v2"
	default:
		return "default"
	}
}

func defaultGenerationModel(cfgs []settings.LLMProviderSettings) string {
	for _, pc := range cfgs {
		if pc.Default {
			return defaultModelName(pc.Family, domain.ModelGeneration)
		}
	}
	if len(cfgs) > 0 {
		return defaultModelName(cfgs[0].Family, domain.ModelGeneration)
	}
	return "gpt-4o"
}

// rewriteGenerator narrows an llm.Provider bound to one model down to the
// single-string Generate signature pkg/rewrite depends on, the same
// adaptation pkg/pipeline's modelGenerator makes for the pipeline's own use.
type rewriteGenerator struct {
	provider llm.Provider
	model    string
}

func (g rewriteGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	result, err := g.provider.Generate(ctx, systemPrompt, userPrompt, llm.GenerateParams{Model: g.model, Temperature: 0})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func defaultRewriteGenerator(cfgs []settings.LLMProviderSettings, registry *llm.Registry) (rewriteGenerator, error) {
	if len(cfgs) == 0 {
		return rewriteGenerator{}, fmt.Errorf("no llm_providers configured")
	}
	name := cfgs[0].Name
	for _, pc := range cfgs {
		if pc.Default {
			name = pc.Name
		}
	}
	provider, err := registry.Get(name)
	if err != nil {
		return rewriteGenerator{}, err
	}
	return rewriteGenerator{provider: provider, model: defaultGenerationModel(cfgs)}, nil
}

func buildVectorStore(cfg settings.VectorStoreSettings) (vectorstore.Provider, error) {
	backend := vectorstore.BackendConfig{Type: vectorstore.BackendType(cfg.Backend)}
	switch vectorstore.BackendType(cfg.Backend) {
	case vectorstore.BackendChromem, "":
		backend.Chromem = &vectorstore.ChromemConfig{PersistPath: cfg.PersistPath}
	case vectorstore.BackendQdrant:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("vector_store.backend is qdrant but vector_store.qdrant is not set")
		}
		backend.Qdrant = &vectorstore.QdrantConfig{
			Host: cfg.Qdrant.Host, Port: cfg.Qdrant.Port, APIKey: cfg.Qdrant.APIKey, UseTLS: cfg.Qdrant.UseTLS,
		}
	case vectorstore.BackendPinecone:
		if cfg.Pinecone == nil {
			return nil, fmt.Errorf("vector_store.backend is pinecone but vector_store.pinecone is not set")
		}
		backend.Pinecone = &vectorstore.PineconeConfig{
			APIKey: cfg.Pinecone.APIKey, Host: cfg.Pinecone.Host, IndexName: cfg.Pinecone.IndexName,
		}
	default:
		return nil, fmt.Errorf("unknown vector_store.backend %q", cfg.Backend)
	}
	return vectorstore.NewProvider(&backend)
}

// buildRateLimiter returns nil when rate limiting is disabled, so
// httpapi.Deps.RateLimiter being nil is the normal, zero-config state.
func buildRateLimiter(cfg settings.RateLimitSettings) (ratelimit.RateLimiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	limits := make([]ratelimit.LimitRule, len(cfg.Limits))
	for i, l := range cfg.Limits {
		limits[i] = ratelimit.LimitRule{
			Type:   ratelimit.ParseLimitType(l.Type),
			Window: ratelimit.ParseTimeWindow(l.Window),
			Limit:  l.Limit,
		}
	}
	return ratelimit.NewRateLimiter(&ratelimit.Config{Enabled: true, Limits: limits}, ratelimit.NewMemoryStore())
}

func sqlDriverName(dialect string) string {
	switch dialect {
	case "sqlite":
		return "sqlite3"
	default:
		return dialect
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("ragcore"),
		kong.Description("Search and conversation HTTP service."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
