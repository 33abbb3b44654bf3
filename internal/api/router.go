package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/api/handlers"
	mw "github.com/Harshitk-cp/beliefgraph/internal/api/middleware"
	"github.com/Harshitk-cp/beliefgraph/internal/buildconfig"
	"github.com/Harshitk-cp/beliefgraph/internal/config"
	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/llm"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
	"github.com/Harshitk-cp/beliefgraph/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const limiterSweepInterval = 10 * time.Minute

// App holds the router and background services for lifecycle management.
type App struct {
	Router     *chi.Mux
	Sessions   *service.SessionService
	Dispatcher *llm.Dispatcher
	Expirer    *service.SessionExpirer
	Limiter    *mw.RateLimiter
	metrics    *mw.MetricsCollector
	startTime  time.Time
}

// Options are the resolved dependencies of an App.
type Options struct {
	DB              *pgxpool.Pool
	Registry        *llm.Registry
	Dispatcher      llm.DispatcherConfig
	DefaultProvider domain.ProviderID
	History         domain.HistoryStore
	APIToken        string
	RateLimitRPS    float64
	RateLimitBurst  int
	SessionTTL      time.Duration
}

// NewApp wires the service from environment configuration. db may be nil,
// in which case prompt history is kept in memory.
func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	registry := llm.DefaultRegistry(llm.NewChatAdapter(nil), llm.NewNativeAdapter(), llm.NewMockAdapter())

	catalog, err := config.LoadCatalog(config.ProvidersFile())
	if err != nil {
		logger.Warn("provider catalog not loaded", zap.String("path", config.ProvidersFile()), zap.Error(err))
	} else {
		for id, entry := range catalog.Providers {
			if err := registry.Override(domain.ProviderID(id), entry.BaseURL, entry.DefaultModel); err != nil {
				logger.Warn("ignoring catalog entry", zap.String("provider", id), zap.Error(err))
			}
		}
	}

	defaultProvider := domain.ProviderID(config.LLMProvider())
	if err := registry.Override(defaultProvider, config.LLMBaseURL(), config.LLMModel()); err != nil {
		logger.Warn("default provider is not registered", zap.String("provider", string(defaultProvider)), zap.Error(err))
	} else {
		logger.Info("LLM provider configured", zap.String("provider", string(defaultProvider)))
	}

	var history domain.HistoryStore
	if db != nil {
		history = store.NewHistoryStore(db)
	} else {
		logger.Info("DATABASE_URL not set, keeping prompt history in memory")
		history = store.NewMemoryHistoryStore()
	}

	return New(Options{
		DB:       db,
		Registry: registry,
		Dispatcher: llm.DispatcherConfig{
			Retrier: llm.Retrier{
				MaxAttempts:  config.RetryMaxAttempts(),
				InitialDelay: config.RetryInitialDelay(),
			},
			ProviderRPS:   config.ProviderRPS(),
			ProviderBurst: 1,
		},
		DefaultProvider: defaultProvider,
		History:         history,
		APIToken:        config.APIToken(),
		RateLimitRPS:    config.RateLimitRPS(),
		RateLimitBurst:  config.RateLimitBurst(),
		SessionTTL:      config.SessionTTL(),
	}, logger)
}

func New(opts Options, logger *zap.Logger) *App {
	dispatcher := llm.NewDispatcher(opts.Registry, opts.Dispatcher, logger)
	sessions := service.NewSessionService(dispatcher, opts.History, logger)

	sessionHandler := handlers.NewSessionHandler(sessions, opts.DefaultProvider)
	providerHandler := handlers.NewProviderHandler(dispatcher, opts.DefaultProvider)

	r := chi.NewRouter()

	app := &App{
		Router:     r,
		Sessions:   sessions,
		Dispatcher: dispatcher,
		Expirer:    service.NewSessionExpirer(sessions, opts.SessionTTL, logger),
		Limiter:    mw.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		metrics:    mw.NewMetricsCollector(),
		startTime:  time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(app.Limiter.Middleware)

	// No auth
	r.Get("/health", healthHandler(opts.DB))
	r.Get("/metrics", app.metricsHandler())
	r.Get("/version", versionHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.BearerToken(opts.APIToken))

		r.Get("/providers", providerHandler.List)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Put("/mode", sessionHandler.SetMode)
				r.Put("/prompt", sessionHandler.SubmitPrompt)
				r.Put("/provider", sessionHandler.SetProvider)
				r.Post("/analyze", sessionHandler.Analyze)
				r.Post("/answers", sessionHandler.Answer)
				r.Post("/skip", sessionHandler.Skip)
				r.Post("/edits", sessionHandler.AddEdit)
				r.Post("/refine", sessionHandler.Refine)
				r.Post("/content", sessionHandler.GenerateContent)
				r.Get("/history", sessionHandler.History)
			})
		})
	})

	return app
}

// Start launches background maintenance. It runs until ctx is done or Stop
// is called.
func (app *App) Start(ctx context.Context) {
	app.Expirer.Start()
	go app.Limiter.Run(ctx, limiterSweepInterval)
}

func (app *App) Stop() {
	app.Expirer.Stop()
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db == nil {
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "history": "memory"})
			return
		}

		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "history": "postgres"})
	}
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(buildconfig.VersionInfo())
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds":  uptime.Seconds(),
			"uptime_human":    uptime.Round(time.Second).String(),
			"requests":        app.metrics.Snapshot(),
			"active_sessions": app.Sessions.Count(),
			"goroutines":      runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.HistoryStore = (*store.HistoryStore)(nil)
	_ domain.HistoryStore = (*store.MemoryHistoryStore)(nil)
	_ domain.Generator    = (*llm.Dispatcher)(nil)
)
