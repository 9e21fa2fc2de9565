package app

import (
	"context"
	"errors"
	"fmt"
	"os"
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

	"github.com/teamrecall/recall/db"
	"github.com/teamrecall/recall/internal/config"
	"github.com/teamrecall/recall/internal/embed"
	"github.com/teamrecall/recall/internal/knowledge"
	"github.com/teamrecall/recall/internal/log"
	"github.com/teamrecall/recall/internal/record"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := log.New(log.Config{
		Level:  cfg.SlogLevel(),
		JSON:   cfg.LogJSON,
		Pretty: cfg.LogPretty,
	})

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	embedder, g, err := provideEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder
	a.Genkit = g

	a.Identity = config.NewFileIdentity(cfg.Dir(), cfg.TeamID)

	store, err := record.NewPostgres(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating record store: %w", err)
	}

	a.Service = knowledge.NewService(
		store,
		embedder,
		a.Identity,
		knowledge.NewResolver(knowledge.OSWorkspace{}, cfg.AutoDetectRatio, logger),
		cfg.SimilarityThreshold,
		cfg.WorkspaceRoot,
		logger,
	)

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export when an endpoint is
// configured. Must run before provideEmbedder so the TracerProvider is
// ready when Genkit initializes.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// SAFETY: os.Setenv is not concurrent-safe, but Setup runs exactly
	// once at startup before any goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
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

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideEmbedder builds the embedding port for the configured provider.
// Genkit backs gemini, ollama and openai; the hosted provider speaks raw
// JSON and skips Genkit entirely (returned Genkit instance is nil).
func provideEmbedder(ctx context.Context, cfg *config.Config, logger log.Logger) (embed.Port, *genkit.Genkit, error) {
	if cfg.Provider == config.ProviderHosted {
		port, err := embed.NewHosted(embed.HostedConfig{
			EmbedURL:     cfg.HostedEmbedURL,
			SummarizeURL: cfg.HostedSummarizeURL,
			APIKey:       os.Getenv(cfg.HostedAPIKeyEnv),
			Dimension:    cfg.EmbeddingDimension,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating hosted inference adapter: %w", err)
		}
		return port, nil, nil
	}

	g, embedder, modelName, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	port, err := embed.NewGenkit(g, embedder, modelName, cfg.EmbeddingDimension, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating genkit adapter: %w", err)
	}
	return port, g, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin
// and resolves the embedder and the fully qualified summarizer model name.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, ai.Embedder, string, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, nil, "", errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, ollama.Embedder(g, cfg.OllamaHost), "ollama/" + cfg.ModelName, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, nil, "", errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit with openai provider", "model", cfg.ModelName)
		embedder := genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
		return g, embedder, "openai/" + cfg.ModelName, nil

	default: // gemini
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, nil, "", errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
		return g, googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel), "googleai/" + cfg.ModelName, nil
	}
}
