package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattjoyce/ordergate/internal/dispatch"
)

// RecordRun appends a finished dispatch run to history.
func (s *Store) RecordRun(ctx context.Context, res dispatch.RunResult) error {
	var logPath, runErr any
	if res.LogPath != "" {
		logPath = res.LogPath
	}
	if res.Error != "" {
		runErr = res.Error
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO dispatch_runs(run_id, queue, orders, sent, failed, started_at, finished_at, log_path, error)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, res.RunID, res.Queue, res.Orders, res.Sent, res.Failed,
		res.StartedAt.UTC().Format(time.RFC3339Nano),
		res.FinishedAt.UTC().Format(time.RFC3339Nano),
		logPath, runErr)
	if err != nil {
		return fmt.Errorf("insert dispatch run: %w", err)
	}
	return nil
}

// Runs returns up to limit recent runs, newest first. An empty queue matches
// every queue.
func (s *Store) Runs(ctx context.Context, queueName string, limit int) ([]dispatch.RunResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, queue, orders, sent, failed, started_at, finished_at, log_path, error
FROM dispatch_runs
WHERE ? = '' OR queue = ?
ORDER BY started_at DESC
LIMIT ?;
`, queueName, queueName, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatch runs: %w", err)
	}
	defer rows.Close()

	var out []dispatch.RunResult
	for rows.Next() {
		var (
			r                   dispatch.RunResult
			startedS, finishedS string
			logPath, runErr     sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Queue, &r.Orders, &r.Sent, &r.Failed, &startedS, &finishedS, &logPath, &runErr); err != nil {
			return nil, fmt.Errorf("scan dispatch run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, startedS); err == nil {
			r.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, finishedS); err == nil {
			r.FinishedAt = t
		}
		r.LogPath = logPath.String
		r.Error = runErr.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch runs: %w", err)
	}
	return out, nil
}
