package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelhouse/internal/services"
	"reelhouse/internal/sqlitex"
)

const jobColumns = "id, correlation_id, lane, kind, input_path, output_path, callback_url, tier, status, timeout_seconds, enqueued_at, started_at, finished_at, heartbeat_at, worker_id, error_message, callback_state"

// claimAttempts bounds how often ClaimNext retries after losing a race.
const claimAttempts = 5

func scanJob(scanner sqlitex.Scanner) (*Job, error) {
	var (
		job            Job
		lane, kind     string
		status         string
		callbackState  string
		output         sql.NullString
		callbackURL    sql.NullString
		tier           sql.NullString
		timeoutSeconds int64
		enqueuedRaw    string
		startedRaw     sql.NullString
		finishedRaw    sql.NullString
		heartbeatRaw   sql.NullString
		workerID       sql.NullString
		errorMessage   sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.CorrelationID,
		&lane,
		&kind,
		&job.Input,
		&output,
		&callbackURL,
		&tier,
		&status,
		&timeoutSeconds,
		&enqueuedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
		&workerID,
		&errorMessage,
		&callbackState,
	); err != nil {
		return nil, err
	}
	job.Lane = Lane(lane)
	job.Kind = Kind(kind)
	job.Status = Status(status)
	job.CallbackState = CallbackState(callbackState)
	job.Output = output.String
	job.CallbackURL = callbackURL.String
	job.Tier = tier.String
	job.Timeout = time.Duration(timeoutSeconds) * time.Second
	job.WorkerID = workerID.String
	job.Error = errorMessage.String
	if enqueued, err := sqlitex.ParseTime(enqueuedRaw); err == nil {
		job.EnqueuedAt = enqueued
	}
	job.StartedAt = sqlitex.TimePtr(startedRaw)
	job.FinishedAt = sqlitex.TimePtr(finishedRaw)
	job.HeartbeatAt = sqlitex.TimePtr(heartbeatRaw)
	return &job, nil
}

// Enqueue inserts a queued job.
func (s *Store) Enqueue(ctx context.Context, req NewJob) (*Job, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", "input is required", nil)
	}
	switch req.Kind {
	case KindConvert:
		if strings.TrimSpace(req.Output) == "" {
			return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", "output is required for conversions", nil)
		}
	case KindExtractSubtitles, KindConvertSubtitles:
	default:
		return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", fmt.Sprintf("unknown job kind %q", req.Kind), nil)
	}
	correlationID := strings.TrimSpace(req.CorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	callbackState := CallbackNone
	if strings.TrimSpace(req.CallbackURL) != "" {
		callbackState = CallbackPending
	}

	res, err := sqlitex.Exec(
		ctx, s.db,
		`INSERT INTO jobs (
            correlation_id, lane, kind, input_path, output_path, callback_url, tier,
            status, timeout_seconds, enqueued_at, callback_state
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		correlationID,
		LaneFor(req.Kind),
		req.Kind,
		req.Input,
		sqlitex.NullableString(req.Output),
		sqlitex.NullableString(req.CallbackURL),
		sqlitex.NullableString(req.Tier),
		StatusQueued,
		int64(req.Timeout/time.Second),
		sqlitex.Now(),
		callbackState,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a job by identifier. A missing job yields (nil, nil).
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs matching filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Job, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Lane != "" {
		clauses = append(clauses, "lane = ?")
		args = append(args, filter.Lane)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+sqlitex.Placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return s.queryJobs(ctx, query, args...)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimNext moves the oldest queued job in lane to running for workerID.
// It returns (nil, nil) when the lane is empty.
func (s *Store) ClaimNext(ctx context.Context, lane Lane, workerID string) (*Job, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM jobs WHERE lane = ? AND status = ? ORDER BY id LIMIT 1`,
			lane, StatusQueued,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select next job: %w", err)
		}
		claimed, err := s.Claim(ctx, id, workerID)
		if err != nil {
			return nil, err
		}
		if claimed {
			return s.Get(ctx, id)
		}
	}
	return nil, nil
}

// Claim transitions job id from queued to running. It reports false when the
// job was no longer queued.
func (s *Store) Claim(ctx context.Context, id int64, workerID string) (bool, error) {
	now := sqlitex.Now()
	res, err := sqlitex.Exec(
		ctx, s.db,
		`UPDATE jobs SET status = ?, worker_id = ?, started_at = ?, heartbeat_at = ?
         WHERE id = ? AND status = ?`,
		StatusRunning, workerID, now, now, id, StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return affectedOne(res)
}

// Heartbeat records liveness for a running job.
func (s *Store) Heartbeat(ctx context.Context, id int64) error {
	if _, err := sqlitex.Exec(
		ctx, s.db,
		`UPDATE jobs SET heartbeat_at = ? WHERE id = ? AND status = ?`,
		sqlitex.Now(), id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// Complete marks a running job succeeded. It reports false when the job was
// not running (for example after the stale sweep failed it).
func (s *Store) Complete(ctx context.Context, id int64) (bool, error) {
	return s.finish(ctx, id, StatusSucceeded, "")
}

// Fail marks a running or queued job failed with message. It reports false
// when the job had already reached a terminal state.
func (s *Store) Fail(ctx context.Context, id int64, message string) (bool, error) {
	return s.finish(ctx, id, StatusFailed, message)
}

func (s *Store) finish(ctx context.Context, id int64, status Status, message string) (bool, error) {
	res, err := sqlitex.Exec(
		ctx, s.db,
		`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		status, sqlitex.NullableString(message), sqlitex.Now(), id, StatusQueued, StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	return affectedOne(res)
}

// MarkCallback moves the callback state of job id from one value to another.
// It reports false when the state was not from, so concurrent deliverers can
// use it to claim the single webhook delivery.
func (s *Store) MarkCallback(ctx context.Context, id int64, from, to CallbackState) (bool, error) {
	res, err := sqlitex.Exec(
		ctx, s.db,
		`UPDATE jobs SET callback_state = ? WHERE id = ? AND callback_state = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("mark callback: %w", err)
	}
	return affectedOne(res)
}

// ListStale returns running jobs whose last heartbeat is older than cutoff.
func (s *Store) ListStale(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)
         ORDER BY id`,
		StatusRunning, sqlitex.FormatTime(cutoff),
	)
}

// Prune deletes terminal jobs that finished before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := sqlitex.Exec(
		ctx, s.db,
		`DELETE FROM jobs WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		StatusSucceeded, StatusFailed, sqlitex.FormatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns job counts grouped by lane and status.
func (s *Store) Stats(ctx context.Context) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lane, status, COUNT(1) FROM jobs GROUP BY lane, status ORDER BY lane, status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var count Count
		if err := rows.Scan(&count.Lane, &count.Status, &count.Jobs); err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
