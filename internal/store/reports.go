package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ReportKind names the operation that produced a report.
type ReportKind string

const (
	ReportDiff   ReportKind = "diff"
	ReportAssert ReportKind = "assert"
	ReportReplay ReportKind = "replay"
)

// Report is one logged diff, assertion or replay outcome. Body holds the
// JSON-encoded result.
type Report struct {
	ID         string          `json:"id"`
	Kind       ReportKind      `json:"kind"`
	LeftRunID  string          `json:"left_run_id"`
	RightRunID string          `json:"right_run_id,omitempty"`
	Passed     bool            `json:"passed"`
	Body       json.RawMessage `json:"body"`
	CreatedAt  string          `json:"created_at"`
}

// WriteReport appends a report. The id and creation time are assigned
// when empty; the stored report is returned.
func (s *Store) WriteReport(ctx context.Context, rep Report) (Report, error) {
	if rep.Kind == "" {
		return Report{}, fmt.Errorf("write report: kind is required")
	}
	if rep.ID == "" {
		rep.ID = s.ids.Generate()
	}
	if rep.CreatedAt == "" {
		rep.CreatedAt = s.now().UTC().Format(time.RFC3339Nano)
	}
	body := rep.Body
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	if !json.Valid(body) {
		return Report{}, fmt.Errorf("write report: body is not valid JSON")
	}
	rep.Body = body

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports
		(id, seq, kind, left_run_id, right_run_id, passed, body, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM reports), ?, ?, ?, ?, ?, ?)
	`,
		rep.ID,
		string(rep.Kind),
		rep.LeftRunID,
		rep.RightRunID,
		rep.Passed,
		string(body),
		rep.CreatedAt,
	)
	if err != nil {
		return Report{}, fmt.Errorf("write report: %w", err)
	}
	return rep, nil
}

// ListReports returns reports in insertion order. A non-empty runID limits
// the result to reports that reference that run on either side.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListReports(ctx context.Context, runID string) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, left_run_id, right_run_id, passed, body, created_at
		FROM reports
		WHERE ? = '' OR left_run_id = ? OR right_run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var (
			rep  Report
			kind string
			body string
		)
		if err := rows.Scan(&rep.ID, &kind, &rep.LeftRunID, &rep.RightRunID, &rep.Passed, &body, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rep.Kind = ReportKind(kind)
		rep.Body = json.RawMessage(body)
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}
