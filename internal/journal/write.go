package journal

import (
	"context"
	"fmt"
	"time"
)

// CreateRun inserts the run row in its starting state. Duplicate IDs are
// silently ignored so a retried write stays idempotent; other constraint
// violations still return errors.
func (j *Journal) CreateRun(ctx context.Context, run Run) error {
	detailJSON, err := MarshalDetail(run.Detail)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, policy, state, started_at, finished_at, error, detail)
		VALUES (?, ?, ?, ?, ?, NULL, NULL, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scenario,
		run.Policy,
		run.State,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		string(detailJSON),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateState moves the run to a new state. A crash mid-run leaves the
// last state it reached on the row.
func (j *Journal) UpdateState(ctx context.Context, runID, state string) error {
	res, err := j.db.ExecContext(ctx, `UPDATE runs SET state = ? WHERE id = ?`, state, runID)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update state: unknown run %s", runID)
	}
	return nil
}

// FinishRun records the run's terminal state, verdict, finish time,
// failure detail (empty for success), and final detail summary.
func (j *Journal) FinishRun(ctx context.Context, runID, state string, pass bool, finishedAt time.Time, runErr string, detail Detail) error {
	detailJSON, err := MarshalDetail(detail)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	var errVal any
	if runErr != "" {
		errVal = runErr
	}
	res, err := j.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, pass = ?, finished_at = ?, error = ?, detail = ?
		WHERE id = ?
	`,
		state,
		pass,
		finishedAt.UTC().Format(time.RFC3339Nano),
		errVal,
		string(detailJSON),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// AppendCommand inserts a command record. Idempotent on (run_id, seq).
func (j *Journal) AppendCommand(ctx context.Context, rec CommandRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO commands (run_id, seq, stage, container, command, exit_code, output, expected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		rec.RunID,
		rec.Seq,
		rec.Stage,
		rec.Container,
		rec.Command,
		rec.ExitCode,
		rec.Output,
		rec.Expected,
	)
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	return nil
}

// AppendCheck inserts a check record. Idempotent on (run_id, seq).
func (j *Journal) AppendCheck(ctx context.Context, rec CheckRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO checks (run_id, seq, stage, name, ok, detail)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		rec.RunID,
		rec.Seq,
		rec.Stage,
		rec.Name,
		rec.OK,
		rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("append check: %w", err)
	}
	return nil
}
