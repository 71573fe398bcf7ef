// Package bootstrap wires the memory core's components into a runnable
// process: config load, pool open, schema bootstrap, and orchestrator/HTTP
// server construction. Grounded on the teacher's
// internal/delivery/server/bootstrap/{container,server,kernel}.go —
// bootstrap owns process lifecycle, never business logic.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avneeshrai07/Agent-Memory-System/internal/artifact"
	"github.com/avneeshrai07/Agent-Memory-System/internal/async"
	"github.com/avneeshrai07/Agent-Memory-System/internal/chat"
	"github.com/avneeshrai07/Agent-Memory-System/internal/cognition"
	"github.com/avneeshrai07/Agent-Memory-System/internal/config"
	"github.com/avneeshrai07/Agent-Memory-System/internal/db"
	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
	"github.com/avneeshrai07/Agent-Memory-System/internal/embedding"
	"github.com/avneeshrai07/Agent-Memory-System/internal/epistemic"
	"github.com/avneeshrai07/Agent-Memory-System/internal/extractor"
	"github.com/avneeshrai07/Agent-Memory-System/internal/httpapi"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
	"github.com/avneeshrai07/Agent-Memory-System/internal/memorystore"
	"github.com/avneeshrai07/Agent-Memory-System/internal/metrics"
	"github.com/avneeshrai07/Agent-Memory-System/internal/objectstore"
	"github.com/avneeshrai07/Agent-Memory-System/internal/orchestrator"
	"github.com/avneeshrai07/Agent-Memory-System/internal/patternlog"
	"github.com/avneeshrai07/Agent-Memory-System/internal/persona"
	"github.com/avneeshrai07/Agent-Memory-System/internal/retrieval"
	"github.com/avneeshrai07/Agent-Memory-System/internal/stmstore"
)

// decayInterval is how often the episodic decay sweep (C11) runs.
const decayInterval = 15 * time.Minute

// App holds everything Run needs to serve traffic and is torn down by
// Shutdown.
type App struct {
	cfg      config.RuntimeConfig
	pool     *db.Pool
	logger   logging.Logger
	server   *http.Server
	orch     *orchestrator.Orchestrator
	memStore memorystore.Store
	metrics  *metrics.Memory
	cancel   context.CancelFunc
}

// turnAdapter satisfies httpapi.TurnHandler by translating
// orchestrator.TurnResult into httpapi.Result — the only point in the
// module where the HTTP layer's result shape and the orchestrator's result
// shape are bridged, since Go requires exact type identity for interface
// satisfaction and the two packages intentionally don't import each other.
type turnAdapter struct{ orch *orchestrator.Orchestrator }

func (a turnAdapter) HandleTurn(ctx context.Context, userID, systemPrompt, userPrompt string) (httpapi.Result, error) {
	r, err := a.orch.HandleTurn(ctx, userID, systemPrompt, userPrompt)
	if err != nil {
		return httpapi.Result{}, err
	}
	return httpapi.Result{Response: r.Response}, nil
}

// New loads configuration, opens the DB pool, ensures every table exists,
// and wires the full component graph into an orchestrator plus an HTTP
// server. It does not start serving; call Run for that.
func New(ctx context.Context, opts ...func(*config.RuntimeConfig)) (*App, error) {
	cfg, _, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logging.Configure(logging.Config{Level: cfg.LogLevel, Format: logging.Format(cfg.LogFormat)})
	logger := logging.NewComponentLogger("bootstrap")

	pool, err := db.Open(ctx, cfg, logging.NewComponentLogger("db"))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open db: %w", err)
	}

	mem := metrics.NewMemory()

	memStore := memorystore.NewPostgresStore(pool, logging.NewComponentLogger("memorystore"))
	personaStore := persona.NewPostgresStore(pool)
	stmStore := stmstore.NewStore(pool)
	patternLogStore := patternlog.NewStore(pool)
	artifactStore := artifact.NewStore(pool)

	schemas := []struct {
		name   string
		ensure func(context.Context) error
	}{
		{"memorystore", memStore.EnsureSchema},
		{"persona", personaStore.EnsureSchema},
		{"stmstore", stmStore.EnsureSchema},
		{"patternlog", patternLogStore.EnsureSchema},
		{"artifact", artifactStore.EnsureSchema},
	}
	for _, s := range schemas {
		if err := s.ensure(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("bootstrap: ensure %s schema: %w", s.name, err)
		}
	}

	embedProvider, err := embedding.NewCachingProvider(
		embedding.NewHTTPProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, nil),
		0,
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: new embedding provider: %w", err)
	}
	embedFn := func(ctx context.Context, text string) (memory.Embedding, error) {
		return embedProvider.EmbedOne(ctx, text)
	}

	retriever, err := retrieval.NewRetriever(ctx, memStore, embedFn, logging.NewComponentLogger("retrieval"))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: new retriever: %w", err)
	}

	writer := memorystore.NewWriter(memStore, embedFn, logging.NewComponentLogger("ltm-writer")).WithMetrics(mem)
	cognitionEngine := cognition.NewEngine(patternLogStore, logging.NewComponentLogger("cognition"))
	merger := persona.NewMerger(personaStore)
	stmGate := stmstore.NewGate(stmStore, logging.NewComponentLogger("stm-gate"))
	objectStore := objectstore.NewLocalClient(cfg.ObjectStoreRoot, logging.NewComponentLogger("objectstore"))
	materializer := artifact.NewMaterializer(objectStore, artifactStore)
	turnExtractor := extractor.NewHTTPExtractor(cfg.EmbeddingBaseURL, cfg.ExtractorAPIKey, cfg.ExtractorModel, nil)
	chatClient := chat.NewClient(cfg.EmbeddingBaseURL, cfg.ChatAPIKey, cfg.ChatModel, nil)
	rules := epistemic.NewRuleSet(epistemic.DefaultRules())

	queue := async.NewQueue(logging.NewComponentLogger("background-queue"))

	orch := orchestrator.New(orchestrator.Deps{
		Extractor:    turnExtractor,
		STMGate:      stmGate,
		STMStore:     stmStore,
		Retriever:    retriever,
		Cognition:    cognitionEngine,
		Merger:       merger,
		Writer:       writer,
		MemStore:     memStore,
		PatternLog:   patternLogStore,
		Materializer: materializer,
		Rules:        rules,
		Chat:         chatClient.Complete,
		Queue:        queue,
		Logger:       logging.NewComponentLogger("orchestrator"),
		Metrics:      mem,
	})

	mux := httpapi.NewRouter(turnAdapter{orch: orch}, logging.NewComponentLogger("httpapi"))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{cfg: cfg, pool: pool, logger: logger, server: server, orch: orch, memStore: memStore, metrics: mem}, nil
}

// Run starts the HTTP server, the background worker, and the episodic
// decay ticker, blocking until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.orch.RunBackgroundQueue(ctx)

	decayer := memorystore.NewDecayer(a.memStore, logging.NewComponentLogger("decay")).WithMetrics(a.metrics)
	go orchestrator.RunDecay(ctx, decayer, decayInterval, logging.NewComponentLogger("decay"))

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("bootstrap: listening on %s", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and closes the DB pool.
func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := a.server.Shutdown(shutdownCtx)
	a.pool.Close()
	return err
}
