package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/promptlab/workbench/internal/catalog"
	"github.com/promptlab/workbench/internal/config"
	"github.com/promptlab/workbench/internal/domain"
	historymemory "github.com/promptlab/workbench/internal/history/memory"
	historyredis "github.com/promptlab/workbench/internal/history/redis"
	historysqlite "github.com/promptlab/workbench/internal/history/sqlite"
	"github.com/promptlab/workbench/internal/http"
	"github.com/promptlab/workbench/internal/http/middleware"
	"github.com/promptlab/workbench/internal/observability"
	"github.com/promptlab/workbench/internal/provider/echo"
	"github.com/promptlab/workbench/internal/provider/openai"
	"github.com/promptlab/workbench/internal/provider/ratelimit"
	"github.com/promptlab/workbench/internal/provider/registry"
)

// ErrProviderNotConfigured indicates that a provider is not configured and should be skipped.
var ErrProviderNotConfigured = errors.New("provider not configured")

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

//nolint:funlen // Container wiring is inherently sequential
func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	// Force logger construction so the global instance backs FromContext.
	if err := container.Invoke(func(_ *zap.Logger) {}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if err := container.Provide(func() *slog.Logger {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}); err != nil {
		log.Fatalf("Failed to provide event logger: %v", err)
	}
	if err := container.Provide(func(bus *observability.EventBus) domain.EventPublisher {
		return bus
	}); err != nil {
		log.Fatalf("Failed to provide event publisher: %v", err)
	}
	if err := container.Provide(observability.NewEventBus); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Model catalog
	if err := container.Provide(catalog.Load); err != nil {
		log.Fatalf("Failed to provide model catalog: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// OpenAI Provider (rate limited)
	if err := container.Provide(func(cfg *openai.Config, cat *catalog.Catalog) (*openai.Provider, error) {
		if cfg.APIKey == "" {
			return nil, ErrProviderNotConfigured
		}

		return openai.NewProvider(*cfg, cat.Models("openai"))
	}); err != nil {
		log.Fatalf("Failed to provide OpenAI provider: %v", err)
	}
	if err := container.Provide(func(p *openai.Provider, cfg *ratelimit.Config) (*ratelimit.Provider, error) {
		return ratelimit.Wrap(p, *cfg)
	}); err != nil {
		log.Fatalf("Failed to provide rate-limited provider: %v", err)
	}

	// Register providers with registry (invoked for side effects)
	if err := container.Invoke(func(
		reg domain.ProviderRegistry,
		openaiProvider *ratelimit.Provider,
	) error {
		ctx := context.Background()

		if openaiProvider != nil {
			if err := reg.Register(ctx, openaiProvider); err != nil {
				return fmt.Errorf("failed to register OpenAI provider: %w", err)
			}
		}

		return nil
	}); err != nil {
		// Ignore ErrProviderNotConfigured as it's expected for optional providers
		if !errors.Is(err, ErrProviderNotConfigured) {
			log.Fatalf("Failed to register providers: %v", err)
		}
	}
	if err := container.Invoke(func(reg domain.ProviderRegistry) error {
		return reg.Register(context.Background(), echo.NewProvider())
	}); err != nil {
		log.Fatalf("Failed to register echo provider: %v", err)
	}

	// Pricing, seeded from the catalog
	if err := container.Provide(func(cat *catalog.Catalog) (domain.PricingRegistry, error) {
		pricing := domain.NewInMemoryPricingRegistry()
		if err := cat.SeedPricing(context.Background(), pricing); err != nil {
			return nil, err
		}
		return pricing, nil
	}); err != nil {
		log.Fatalf("Failed to provide pricing registry: %v", err)
	}
	if err := container.Provide(func(pricing domain.PricingRegistry) domain.CostCalculator {
		return domain.NewStandardCostCalculator(pricing)
	}); err != nil {
		log.Fatalf("Failed to provide cost calculator: %v", err)
	}

	// Run history store
	if err := container.Provide(newHistoryStore); err != nil {
		log.Fatalf("Failed to provide history store: %v", err)
	}

	// Run orchestrator
	if err := container.Provide(newOrchestrator); err != nil {
		log.Fatalf("Failed to provide orchestrator: %v", err)
	}
	if err := container.Provide(func(o *domain.Orchestrator) http.Orchestrator {
		return o
	}); err != nil {
		log.Fatalf("Failed to provide orchestrator interface: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(func(cfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(cfg)
	}); err != nil {
		log.Fatalf("Failed to provide middleware: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// newHistoryStore selects the run-history backend from configuration.
func newHistoryStore(cfg *config.HistoryConfig) (domain.HistoryStore, error) {
	switch cfg.Backend {
	case "memory":
		return historymemory.NewStore(), nil
	case "sqlite":
		return historysqlite.NewStore(cfg.SQLitePath)
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return historyredis.NewStore(client, int64(cfg.MaxKeep)), nil
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
}

// newOrchestrator wires the run orchestrator with its completion
// collaborator: every settled run is persisted to history.
func newOrchestrator(
	reg domain.ProviderRegistry,
	costs domain.CostCalculator,
	events domain.EventPublisher,
	store domain.HistoryStore,
	runCfg *config.RunConfig,
) *domain.Orchestrator {
	persist := func(ctx context.Context, entry *domain.RunHistoryEntry) {
		if err := store.Save(ctx, entry); err != nil {
			observability.FromContext(ctx).Error("failed to persist run history",
				observability.Error(err))
		}
	}

	return domain.NewOrchestrator(reg, costs, events,
		domain.WithCallTimeout(runCfg.Timeout()),
		domain.WithCompletion(persist),
	)
}
