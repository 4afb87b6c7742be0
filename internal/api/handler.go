// Package api serves diff, assertion, replay and run storage over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/replay"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/store"
)

// Version is reported by the health endpoint.
const Version = run.EngineVersion

// RunStore is the storage the handlers need. *store.Store implements it.
type RunStore interface {
	WriteRun(ctx context.Context, r run.Run) (bool, error)
	ReadRun(ctx context.Context, id string) (run.Run, error)
	ListRuns(ctx context.Context) ([]store.RunSummary, error)
	WriteReport(ctx context.Context, rep store.Report) (store.Report, error)
	ListReports(ctx context.Context, runID string) ([]store.Report, error)
}

// Handler handles HTTP requests.
type Handler struct {
	store      RunStore
	replay     *replay.Engine
	hasher     canon.Hasher
	maxChanges int
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithStore enables the run endpoints and report recording.
func WithStore(s RunStore) Option {
	return func(h *Handler) { h.store = s }
}

// WithHasher sets the hasher for diffs and replays.
func WithHasher(hs canon.Hasher) Option {
	return func(h *Handler) { h.hasher = hs }
}

// WithMaxChangesPerStep sets the default per-step change bound.
func WithMaxChangesPerStep(n int) Option {
	return func(h *Handler) { h.maxChanges = n }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a new handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		hasher:     canon.DefaultHasher(),
		maxChanges: diff.DefaultMaxChangesPerStep,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.replay = replay.New(replay.WithLogger(h.logger), replay.WithHasher(h.hasher))
	return h
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/diff", h.Diff)
	e.POST("/v1/assert", h.Assert)
	e.POST("/v1/replay/stub", h.ReplayStub)
	e.POST("/v1/replay/hybrid", h.ReplayHybrid)

	e.POST("/v1/runs", h.ImportRun)
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:id", h.GetRun)
	e.GET("/v1/runs/:id/reports", h.ListRunReports)

	e.GET("/healthz", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": Version,
		"store":   h.store != nil,
	})
}
