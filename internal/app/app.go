// Package app provides application initialization and dependency wiring.
//
// Setup builds the full dependency graph in order: tracing, database pool
// with migrations, the embedding provider, identity, and finally the
// knowledge service. Close releases everything in reverse.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamrecall/recall/internal/config"
	"github.com/teamrecall/recall/internal/embed"
	"github.com/teamrecall/recall/internal/knowledge"
	"github.com/teamrecall/recall/internal/log"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Genkit is nil when the hosted provider is configured.
	Genkit   *genkit.Genkit
	Embedder embed.Port
	DBPool   *pgxpool.Pool
	Identity config.Identity
	Service  *knowledge.Service

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
