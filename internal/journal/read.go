package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Filter selects runs. Zero-valued fields match everything.
type Filter struct {
	Scenario   string
	Policy     string
	FailedOnly bool
	Limit      int
}

// Runs returns runs matching the filter, newest first. Run IDs are UUIDv7,
// so ordering by id is ordering by creation time. Returns an empty slice,
// not nil, when nothing matches.
func (j *Journal) Runs(ctx context.Context, f Filter) ([]Run, error) {
	query := `
		SELECT id, scenario, policy, state, pass, started_at, finished_at, error, detail
		FROM runs`
	var conds []string
	var params []any
	if f.Scenario != "" {
		conds = append(conds, "scenario = ?")
		params = append(params, f.Scenario)
	}
	if f.Policy != "" {
		conds = append(conds, "policy = ?")
		params = append(params, f.Policy)
	}
	if f.FailedOnly {
		// Unfinished runs count as failed until something finishes them.
		conds = append(conds, "pass = 0")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id COLLATE BINARY DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if runs == nil {
		runs = []Run{}
	}
	return runs, nil
}

// Run retrieves a single run by ID. The returned error matches
// sql.ErrNoRows via errors.Is when the run does not exist.
func (j *Journal) Run(ctx context.Context, id string) (Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, scenario, policy, state, pass, started_at, finished_at, error, detail
		FROM runs
		WHERE id = ?
	`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Run{}, fmt.Errorf("query run: %w", err)
		}
		return Run{}, fmt.Errorf("run %s: %w", id, sql.ErrNoRows)
	}
	return scanRun(rows)
}

// Commands returns the run's command records in execution order.
func (j *Journal) Commands(ctx context.Context, runID string) ([]CommandRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, stage, container, command, exit_code, output, expected
		FROM commands
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var recs []CommandRecord
	for rows.Next() {
		var rec CommandRecord
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Stage, &rec.Container, &rec.Command, &rec.ExitCode, &rec.Output, &rec.Expected); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	if recs == nil {
		recs = []CommandRecord{}
	}
	return recs, nil
}

// Checks returns the run's check records in evaluation order.
func (j *Journal) Checks(ctx context.Context, runID string) ([]CheckRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, stage, name, ok, detail
		FROM checks
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var recs []CheckRecord
	for rows.Next() {
		var rec CheckRecord
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Stage, &rec.Name, &rec.OK, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checks: %w", err)
	}
	if recs == nil {
		recs = []CheckRecord{}
	}
	return recs, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var startedAt string
	var finishedAt, runErr sql.NullString
	var detailJSON string
	if err := rows.Scan(&run.ID, &run.Scenario, &run.Policy, &run.State, &run.Pass, &startedAt, &finishedAt, &runErr, &detailJSON); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
	}
	if runErr.Valid {
		run.Error = runErr.String
	}
	run.Detail, err = UnmarshalDetail([]byte(detailJSON))
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}
