package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roach88/runproof/internal/run"
)

// ImportResponse reports the outcome of storing a run.
type ImportResponse struct {
	ID       string `json:"id"`
	Inserted bool   `json:"inserted"`
}

// ImportRun stores a run. Re-importing identical content is a no-op.
// POST /v1/runs
func (h *Handler) ImportRun(c echo.Context) error {
	if h.store == nil {
		return h.noStore(c)
	}

	var r run.Run
	if err := c.Bind(&r); err != nil {
		return h.badRequest(c, "invalid run: "+err.Error())
	}
	if r.ID == "" {
		return h.badRequest(c, "id is required")
	}

	inserted, err := h.store.WriteRun(c.Request().Context(), r)
	if err != nil {
		return h.fail(c, err)
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	h.logger.Info("run imported", "run_id", r.ID, "inserted", inserted, "steps", len(r.Steps))
	return c.JSON(status, ImportResponse{ID: r.ID, Inserted: inserted})
}

// ListRuns lists stored runs.
// GET /v1/runs
func (h *Handler) ListRuns(c echo.Context) error {
	if h.store == nil {
		return h.noStore(c)
	}
	runs, err := h.store.ListRuns(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}

// GetRun returns one stored run.
// GET /v1/runs/:id
func (h *Handler) GetRun(c echo.Context) error {
	if h.store == nil {
		return h.noStore(c)
	}
	r, err := h.store.ReadRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ListRunReports lists reports that reference a run.
// GET /v1/runs/:id/reports
func (h *Handler) ListRunReports(c echo.Context) error {
	if h.store == nil {
		return h.noStore(c)
	}
	reports, err := h.store.ListReports(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"reports": reports})
}
