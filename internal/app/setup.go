package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"
	gemini "google.golang.org/genai"

	"github.com/askdocs/askdocs/db"
	"github.com/askdocs/askdocs/internal/chunker"
	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/eval"
	llm "github.com/askdocs/askdocs/internal/genai"
	"github.com/askdocs/askdocs/internal/indexer"
	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
	"github.com/askdocs/askdocs/internal/session"
	"github.com/askdocs/askdocs/internal/store"
)

// LLM call pacing shared by generation and embedding.
const (
	llmRequestsPerSecond = 2
	llmBurst             = 4
)

// Setup creates and initializes the application. On error, everything
// already initialized is torn down before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.Store = store.New(pool, logger)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	aiEmbedder, options := provideEmbedder(g, cfg)
	if aiEmbedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	embedder, err := llm.NewEmbedder(aiEmbedder, options)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	generator, err := llm.NewGenerator(llm.GeneratorConfig{
		Genkit:  g,
		Logger:  logger,
		Timeout: cfg.LLMTimeout(),
		Limiter: rate.NewLimiter(rate.Limit(llmRequestsPerSecond), llmBurst),
	})
	if err != nil {
		return nil, err
	}
	a.Generator = generator

	pipeline, err := rag.New(rag.Config{
		Embedder:  embedder,
		Index:     a.Store,
		Generator: generator,
		Settings: rag.Settings{
			Model:              cfg.FullModelName(),
			MaxTokens:          cfg.MaxTokens,
			Temperature:        cfg.Temperature,
			RewriteEnabled:     cfg.RewriteEnabled,
			RewriteModel:       cfg.FullRewriteModelName(),
			RewriteMaxTokens:   cfg.RewriteMaxTokens,
			RewriteTemperature: cfg.RewriteTemperature,
			TopK:               cfg.TopK,
			MaxHistoryTurns:    cfg.MaxHistoryTurns,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	a.Pipeline = pipeline

	a.Sessions = session.NewManager(cfg.SessionTTL())

	segmenter := chunker.New(cfg.MinChunkSize, cfg.MaxSectionSize, logger)
	a.Indexer = indexer.New(segmenter, embedder, a.Store, logger)

	a.Evaluator = eval.New(pipeline, logger)

	return a, nil
}

// provideOtelShutdown wires OTLP trace export into Genkit's TracerProvider.
// Tracing is disabled when no endpoint is configured; the returned cleanup
// is always safe to call.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.Otel.Endpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Otel.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Otel.Endpoint,
		"service", cfg.Otel.ServiceName,
		"environment", cfg.Otel.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations, then creates and pings a connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit", "provider", cfg.Provider,
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)

	default: // gemini / googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin,
// plus the provider-specific embed options. Gemini embedders default to a
// larger dimensionality, so the output is pinned to the index's vector size.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) (ai.Embedder, any) {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Keyed by server address, registered in provideGenkit.
		return ollama.Embedder(g, cfg.OllamaHost), nil
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel)), nil
	default: // gemini / googleai
		options := &gemini.EmbedContentConfig{
			OutputDimensionality: gemini.Ptr(int32(store.VectorDimension)),
		}
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel), options
	}
}
