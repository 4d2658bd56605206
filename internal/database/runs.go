package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreatePipelineRun records the start of a pipeline run
func (db *DB) CreatePipelineRun(ctx context.Context, r *PipelineRun) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, status, started_at) VALUES (?, ?, ?)
	`, r.ID, r.Status, r.StartedAt)
	return err
}

// FinishPipelineRun stores the final counters and status of a run
func (db *DB) FinishPipelineRun(ctx context.Context, r *PipelineRun) error {
	now := time.Now()
	r.FinishedAt = &now

	result, err := db.ExecContext(ctx, `
		UPDATE pipeline_runs SET
			status = ?, finished_at = ?, links_found = ?, merged = ?, cards_analyzed = ?,
			keywords_saved = ?, scored = ?, failed = ?, error = ?
		WHERE id = ?
	`,
		r.Status, r.FinishedAt, r.LinksFound, r.Merged, r.CardsAnalyzed,
		r.KeywordsSaved, r.Scored, r.Failed, NullString(r.Error), r.ID,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("pipeline run %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

// ListPipelineRuns returns the most recent runs first
func (db *DB) ListPipelineRuns(ctx context.Context, limit int) ([]PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, status, started_at, finished_at, links_found, merged, cards_analyzed,
		       keywords_saved, scored, failed, error
		FROM pipeline_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []PipelineRun
	for rows.Next() {
		var r PipelineRun
		var finished sql.NullTime
		var errText sql.NullString
		if err := rows.Scan(
			&r.ID, &r.Status, &r.StartedAt, &finished, &r.LinksFound, &r.Merged,
			&r.CardsAnalyzed, &r.KeywordsSaved, &r.Scored, &r.Failed, &errText,
		); err != nil {
			return nil, err
		}
		r.FinishedAt = TimePtr(finished)
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
