package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roach88/runproof/internal/replay"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/store"
)

// ReplayStubRequest is the request for a stub replay.
type ReplayStubRequest struct {
	Source RunRef `json:"source"`

	// Seed stays raw so that strings, fractions and booleans reach
	// replay.ParseSeed and fail with INVALID_SEED. "7" is a string, not
	// an integer.
	Seed       json.RawMessage `json:"seed"`
	FixedClock string          `json:"fixed_clock"`

	// Store saves the replayed run and a replay report.
	Store bool `json:"store,omitempty"`
}

// ReplayHybridRequest is the request for a hybrid replay.
type ReplayHybridRequest struct {
	Source     RunRef          `json:"source"`
	Rerun      RunRef          `json:"rerun"`
	Policy     replay.Policy   `json:"policy"`
	Seed       json.RawMessage `json:"seed"`
	FixedClock string          `json:"fixed_clock"`
	Store      bool            `json:"store,omitempty"`
}

// decodeSeed parses a raw JSON seed. Numbers are kept as json.Number so
// large integers survive exactly.
func decodeSeed(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return replay.ParseSeed(nil)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return replay.ParseSeed(string(raw))
	}
	return replay.ParseSeed(v)
}

// ReplayStub replays a run from its own recorded steps.
// POST /v1/replay/stub
func (h *Handler) ReplayStub(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReplayStubRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body: "+err.Error())
	}

	source, err := h.resolve(ctx, "source", req.Source)
	if err != nil {
		return h.refError(c, err)
	}
	seed, err := decodeSeed(req.Seed)
	if err != nil {
		return h.fail(c, err)
	}

	out, err := h.replay.Stub(ctx, source, seed, req.FixedClock)
	if err != nil {
		return h.fail(c, err)
	}
	if req.Store {
		if err := h.storeReplay(c, source.ID, "", out); err != nil {
			return h.refError(c, err)
		}
	}
	return c.JSON(http.StatusOK, out)
}

// ReplayHybrid replays a run, substituting the steps the policy selects
// from a rerun.
// POST /v1/replay/hybrid
func (h *Handler) ReplayHybrid(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReplayHybridRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body: "+err.Error())
	}

	source, rerun, err := h.resolvePair(ctx, "source", req.Source, "rerun", req.Rerun)
	if err != nil {
		return h.refError(c, err)
	}
	seed, err := decodeSeed(req.Seed)
	if err != nil {
		return h.fail(c, err)
	}

	out, err := h.replay.Hybrid(ctx, source, rerun, req.Policy, seed, req.FixedClock)
	if err != nil {
		return h.fail(c, err)
	}
	if req.Store {
		if err := h.storeReplay(c, source.ID, rerun.ID, out); err != nil {
			return h.refError(c, err)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) storeReplay(c echo.Context, sourceID, rerunID string, out run.Run) error {
	if h.store == nil {
		return errNoStore
	}
	if _, err := h.store.WriteRun(c.Request().Context(), out); err != nil {
		return err
	}
	summary := map[string]any{
		"replay_run_id": out.ID,
		"source_run_id": sourceID,
		"steps":         len(out.Steps),
	}
	if rerunID != "" {
		summary["rerun_run_id"] = rerunID
	}
	return h.record(c, store.ReportReplay, sourceID, out.ID, true, summary)
}
