// Package app wires the application together: config, tracing, database,
// Genkit, and the answer pipeline. Setup builds everything in dependency
// order; Close releases it in reverse.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/eval"
	"github.com/askdocs/askdocs/internal/indexer"
	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
	"github.com/askdocs/askdocs/internal/session"
	"github.com/askdocs/askdocs/internal/store"
)

// App is the application container. Fields are exported for the cmd package.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	DBPool    *pgxpool.Pool
	Store     *store.Store
	Embedder  rag.Embedder
	Generator rag.Generator
	Pipeline  *rag.Pipeline
	Sessions  *session.Manager
	Indexer   *indexer.Indexer
	Evaluator *eval.Evaluator

	otelCleanup func()
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
