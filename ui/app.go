// Package ui serves the dashboard data as a JSON API.
package ui

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"happycast/app"
	"happycast/internal"
	"happycast/internal/dashboard"
	"happycast/ports"
)

// App is the dashboard API
type App struct {
	router  *chi.Mux
	config  Config
	views   *dashboard.Views
	repo    ports.ResultRepository
	tables  ports.ResultTableReader
	logger  *internal.Logger
	started time.Time
}

// Config holds UI application configuration
type Config struct {
	Port      string
	OutputDir string
}

// NewApp creates the API. repo may be nil; backtest tables are then read from
// the summary files in OutputDir.
func NewApp(config Config, views *dashboard.Views, repo ports.ResultRepository, tables ports.ResultTableReader, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	a := &App{
		router:  chi.NewRouter(),
		config:  config,
		views:   views,
		repo:    repo,
		tables:  tables,
		logger:  logger,
		started: time.Now(),
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)

	a.router.Route("/api", func(r chi.Router) {
		// dropdown options
		r.Get("/years", a.handleYears)
		r.Get("/countries", a.handleCountries)

		// rankings and maps
		r.Get("/top", a.handleTop)
		r.Get("/bottom", a.handleBottom)
		r.Get("/map/{year}", a.handleYearMap)

		// per-country views
		r.Get("/countries/{country}/series", a.handleCountrySeries)
		r.Get("/countries/{country}/income", a.handleIncome)
		r.Get("/trends", a.handleTrends)

		// backtest results
		r.Get("/backtests/{model}", a.handleBacktest)
		r.Get("/comparison", a.handleComparison)
	})
}

// Handler exposes the router
func (a *App) Handler() http.Handler {
	return a.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (a *App) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("[UI] Starting happycast API on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("[UI] Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *App) summaryPath(model string) string {
	return filepath.Join(a.config.OutputDir, app.SummaryFile(model))
}

func (a *App) comparisonPath() string {
	return filepath.Join(a.config.OutputDir, app.ComparisonFile)
}
