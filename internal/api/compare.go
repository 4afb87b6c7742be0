package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roach88/runproof/internal/assertion"
	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/store"
)

// HeaderReportID carries the id of a recorded report.
const HeaderReportID = "X-Report-ID"

// RunRef names a run either inline or by its stored id.
type RunRef struct {
	Run   *run.Run `json:"run,omitempty"`
	RunID string   `json:"run_id,omitempty"`
}

// DiffRequest is the request to diff two runs.
type DiffRequest struct {
	Left                  RunRef `json:"left"`
	Right                 RunRef `json:"right"`
	StopAtFirstDivergence bool   `json:"stop_at_first_divergence,omitempty"`
	MaxChangesPerStep     int    `json:"max_changes_per_step,omitempty"`

	// Record appends the result to the report log.
	Record bool `json:"record,omitempty"`
}

// AssertRequest is the request to assert a candidate against a baseline.
type AssertRequest struct {
	Baseline          RunRef `json:"baseline"`
	Candidate         RunRef `json:"candidate"`
	Strict            bool   `json:"strict,omitempty"`
	MaxChangesPerStep int    `json:"max_changes_per_step,omitempty"`
	Record            bool   `json:"record,omitempty"`
}

// resolve returns the referenced run. Inline runs are validated; stored
// runs were validated on import.
func (h *Handler) resolve(ctx context.Context, field string, ref RunRef) (run.Run, error) {
	switch {
	case ref.Run != nil && ref.RunID != "":
		return run.Run{}, requestErrorf("%s: give either run or run_id, not both", field)
	case ref.Run != nil:
		if err := ref.Run.Validate(); err != nil {
			return run.Run{}, err
		}
		return *ref.Run, nil
	case ref.RunID != "":
		if h.store == nil {
			return run.Run{}, errNoStore
		}
		return h.store.ReadRun(ctx, ref.RunID)
	default:
		return run.Run{}, requestErrorf("%s: run or run_id is required", field)
	}
}

// Diff diffs two runs.
// POST /v1/diff
func (h *Handler) Diff(c echo.Context) error {
	ctx := c.Request().Context()

	var req DiffRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body: "+err.Error())
	}

	left, right, err := h.resolvePair(ctx, "left", req.Left, "right", req.Right)
	if err != nil {
		return h.refError(c, err)
	}

	res, err := diff.Runs(left, right, diff.Options{
		StopAtFirstDivergence: req.StopAtFirstDivergence,
		MaxChangesPerStep:     h.changeBound(req.MaxChangesPerStep),
		Hasher:                &h.hasher,
	})
	if err != nil {
		return h.fail(c, err)
	}

	if req.Record {
		if err := h.record(c, store.ReportDiff, left.ID, right.ID, res.Identical, res); err != nil {
			return h.refError(c, err)
		}
	}
	h.logger.Info("diff",
		"left_run_id", left.ID,
		"right_run_id", right.ID,
		"identical", res.Identical)
	return c.JSON(http.StatusOK, res)
}

// Assert checks a candidate run against a baseline. The verdict is in the
// body; a failing assertion is still a 200 response.
// POST /v1/assert
func (h *Handler) Assert(c echo.Context) error {
	ctx := c.Request().Context()

	var req AssertRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body: "+err.Error())
	}

	baseline, candidate, err := h.resolvePair(ctx, "baseline", req.Baseline, "candidate", req.Candidate)
	if err != nil {
		return h.refError(c, err)
	}

	res, err := assertion.Runs(baseline, candidate, assertion.Options{
		Strict:            req.Strict,
		MaxChangesPerStep: h.changeBound(req.MaxChangesPerStep),
		Hasher:            &h.hasher,
	})
	if err != nil {
		return h.fail(c, err)
	}

	if req.Record {
		if err := h.record(c, store.ReportAssert, baseline.ID, candidate.ID, res.Passed, res); err != nil {
			return h.refError(c, err)
		}
	}
	h.logger.Info("assert",
		"baseline_run_id", baseline.ID,
		"candidate_run_id", candidate.ID,
		"strict", req.Strict,
		"passed", res.Passed)
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) resolvePair(ctx context.Context, lf string, l RunRef, rf string, r RunRef) (run.Run, run.Run, error) {
	left, err := h.resolve(ctx, lf, l)
	if err != nil {
		return run.Run{}, run.Run{}, err
	}
	right, err := h.resolve(ctx, rf, r)
	if err != nil {
		return run.Run{}, run.Run{}, err
	}
	return left, right, nil
}

func (h *Handler) changeBound(n int) int {
	if n == 0 {
		return h.maxChanges
	}
	return n
}

// record stores body as a report and sets the report id header.
func (h *Handler) record(c echo.Context, kind store.ReportKind, left, right string, passed bool, body any) error {
	if h.store == nil {
		return errNoStore
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	rep, err := h.store.WriteReport(c.Request().Context(), store.Report{
		Kind:       kind,
		LeftRunID:  left,
		RightRunID: right,
		Passed:     passed,
		Body:       data,
	})
	if err != nil {
		return err
	}
	c.Response().Header().Set(HeaderReportID, rep.ID)
	return nil
}
