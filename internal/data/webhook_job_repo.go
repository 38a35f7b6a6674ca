// Package data implements the persistence layer: the durable webhook job
// queue, pull request and execution stores, and the Redis language cache.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data/pgxutil"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// webhookJobChannel is the pg_notify channel the dispatch runner listens on.
const webhookJobChannel = "webhook_job_added"

const defaultWebhookRetryDelaySeconds = 30

// WebhookJobRepoConfig holds configuration options for the webhook job repository.
type WebhookJobRepoConfig struct {
	RetryDelaySeconds int
	Logger            *slog.Logger
	TimeProvider      TimeProvider
}

// WebhookJobRepo is the Postgres-backed durable webhook queue. It serves both
// the enqueue side (webhook intake) and the consumer side (dispatch runner).
type WebhookJobRepo struct {
	DB           *sql.DB
	cfg          WebhookJobRepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewWebhookJobRepo creates a new WebhookJobRepo with the given database
// connection and configuration.
func NewWebhookJobRepo(db *sql.DB, cfg WebhookJobRepoConfig) *WebhookJobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &WebhookJobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

func (r *WebhookJobRepo) retryDelay() int {
	if r.cfg.RetryDelaySeconds > 0 {
		return r.cfg.RetryDelaySeconds
	}
	return defaultWebhookRetryDelaySeconds
}

const webhookJobColumns = `
  correlation_id,
  workflow_type,
  handler_type,
  payload,
  metadata,
  status,
  priority,
  retry_count,
  max_retries,
  last_error,
  scheduled_at,
  started_at,
  completed_at,
  lease_expires_at,
  created_at,
  updated_at
`

// SQL used by ReserveNext to atomically reserve the next pending job.
// scheduled_at pushes retried jobs into the future so a failing payload does
// not hot-loop through the queue.
const reserveNextWebhookJobSQL = `
  WITH cte AS (
    SELECT correlation_id FROM webhook_jobs
    WHERE status = 'pending' AND scheduled_at <= $1
    ORDER BY priority DESC, scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE webhook_jobs j
  SET
    status = 'running',
    started_at = COALESCE(j.started_at, $2),
    lease_expires_at = $3,
    updated_at = $4
  FROM cte
  WHERE j.correlation_id = cte.correlation_id
  RETURNING ` + webhookJobColumns

// Enqueue durably inserts one webhook job and notifies waiting consumers.
// The insert and the notify share a transaction so a consumer woken by the
// notification always sees the row.
func (r *WebhookJobRepo) Enqueue(ctx context.Context, job *model.WebhookJob) error {
	if job == nil {
		return errors.New("webhook job is required")
	}
	if err := job.Validate(); err != nil {
		return err
	}

	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal job metadata: %w", err)
	}

	now := r.timeProvider.Now().UTC()
	txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, qerr := tx.Query(ctx, `
        INSERT INTO webhook_jobs(correlation_id, workflow_type, handler_type, payload, metadata, status, priority, retry_count, max_retries, scheduled_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,'pending',$6,$7,$8,$9,$9,$9)
        RETURNING `+webhookJobColumns,
				job.CorrelationID,
				job.WorkflowType,
				job.HandlerType,
				[]byte(job.Payload),
				meta,
				job.Priority,
				job.RetryCount,
				job.MaxRetries,
				now,
			)
			if qerr != nil {
				return fmt.Errorf("insert webhook job: %w", qerr)
			}
			inserted, cerr := collectWebhookJobFromRows(rows)
			rows.Close()
			if cerr != nil {
				return fmt.Errorf("collect webhook job: %w", cerr)
			}
			*job = *inserted

			if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, webhookJobChannel, job.CorrelationID); execErr != nil {
				return fmt.Errorf("send webhook job notification: %w", execErr)
			}
			return nil
		},
	})
	if txErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(txErr, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateWebhookJob, job.CorrelationID)
		}
		return txErr
	}
	return nil
}

// requeueExpired moves running jobs with expired leases back to pending. The
// advisory lock keeps concurrent consumers from racing the same sweep.
func (r *WebhookJobRepo) requeueExpired(ctx context.Context) (int64, error) {
	const advisoryLockRequeue int64 = 2001

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::bigint)", advisoryLockRequeue).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			res, err := tx.ExecContext(ctx, `
        UPDATE webhook_jobs
        SET status = 'pending', lease_expires_at = NULL
        WHERE status = 'running'
          AND lease_expires_at IS NOT NULL
          AND lease_expires_at < $1
      `, r.timeProvider.Now().UTC())
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// ReserveNext reserves the next pending webhook job for processing. Returns
// model.ErrNoWebhookJobsAvailable when the queue is empty.
func (r *WebhookJobRepo) ReserveNext(ctx context.Context, leaseSeconds int) (*model.WebhookJob, error) {
	if leaseSeconds <= 0 {
		return nil, errors.New("leaseSeconds must be positive")
	}

	if _, err := r.requeueExpired(ctx); err != nil {
		return nil, fmt.Errorf("requeue expired webhook jobs: %w", err)
	}

	var job *model.WebhookJob
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now()
			leaseExpiresAt := now.Add(time.Duration(leaseSeconds) * time.Second)

			rows, qerr := tx.Query(ctx, reserveNextWebhookJobSQL,
				now.UTC(), now.UTC(), leaseExpiresAt.UTC(), now.UTC())
			if qerr != nil {
				return fmt.Errorf("reserve webhook job: %w", qerr)
			}
			defer rows.Close()

			j, cerr := collectWebhookJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoWebhookJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("reserve webhook job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoWebhookJobsAvailable) {
			return nil, model.ErrNoWebhookJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Complete marks a running job as completed. Returns false when the job was
// not running (lease stolen, already finished).
func (r *WebhookJobRepo) Complete(ctx context.Context, correlationID string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
    UPDATE webhook_jobs
    SET status = 'completed',
        completed_at = $2,
        updated_at = $2,
        lease_expires_at = NULL,
        last_error = NULL
    WHERE correlation_id = $1 AND status = 'running'
  `, correlationID, now)
	if err != nil {
		return false, fmt.Errorf("complete webhook job: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail records a failure on a running job. While retries remain the job goes
// back to pending with a delayed re-dispatch; once retries are exhausted it
// lands in failed, which is this queue's dead-letter state.
func (r *WebhookJobRepo) Fail(ctx context.Context, correlationID, errMsg string) (bool, error) {
	now := r.timeProvider.Now()
	retryAt := now.Add(time.Duration(r.retryDelay()) * time.Second)

	var status string
	err := r.DB.QueryRowContext(ctx, `
    UPDATE webhook_jobs
    SET
      last_error = $2,
      retry_count = LEAST(retry_count + 1, max_retries),
      status = CASE WHEN retry_count + 1 > max_retries THEN 'failed' ELSE 'pending' END,
      completed_at = CASE WHEN retry_count + 1 > max_retries THEN $3::timestamptz ELSE NULL END,
      scheduled_at = CASE WHEN retry_count + 1 > max_retries THEN scheduled_at
                          ELSE $4::timestamptz END,
      lease_expires_at = NULL,
      updated_at = $3
    WHERE correlation_id = $1 AND status = 'running'
    RETURNING status
  `, correlationID, errMsg, now.UTC(), retryAt.UTC()).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("fail webhook job: %w", err)
	}

	if status == string(model.WebhookJobStatusFailed) && r.logger != nil {
		r.logger.WarnContext(ctx, "webhook job dead-lettered",
			"correlation_id", correlationID,
			"error", errMsg,
		)
	}
	return true, nil
}

// Stats returns queue depth per lifecycle state.
func (r *WebhookJobRepo) Stats(ctx context.Context) (*model.WebhookJobStats, error) {
	var s model.WebhookJobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')   AS pending,
    count(*) FILTER (WHERE status = 'running')   AS running,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM webhook_jobs
  `).Scan(&s.Pending, &s.Running, &s.Completed, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("webhook job stats: %w", err)
	}
	return &s, nil
}

// GetByCorrelationID retrieves a job by its correlation id.
func (r *WebhookJobRepo) GetByCorrelationID(ctx context.Context, correlationID string) (*model.WebhookJob, error) {
	var job *model.WebhookJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
      SELECT `+webhookJobColumns+`
      FROM webhook_jobs
      WHERE correlation_id = $1
    `, correlationID)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectWebhookJobFromRows(rows)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWebhookJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook job: %w", err)
	}
	return job, nil
}

// WaitForNotification blocks until a new webhook job is announced or the
// context is canceled.
func (r *WebhookJobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && r.logger != nil {
			r.logger.DebugContext(ctx, "close listener conn failed", "error", cerr)
		}
	}()

	quoted := pgx.Identifier{webhookJobChannel}.Sanitize()
	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", webhookJobChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil && r.logger != nil {
			r.logger.Debug("unlisten failed", "channel", webhookJobChannel, "error", execErr)
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

type webhookJobRowScanner interface {
	Scan(dest ...any) error
}

type webhookJobRowData struct {
	payload, metadata                      []byte
	lastError                              sql.NullString
	startedAt, completedAt, leaseExpiresAt sql.NullTime
}

func (d *webhookJobRowData) scanInto(scanner webhookJobRowScanner, job *model.WebhookJob) error {
	return scanner.Scan(
		&job.CorrelationID,
		&job.WorkflowType,
		&job.HandlerType,
		&d.payload,
		&d.metadata,
		&job.Status,
		&job.Priority,
		&job.RetryCount,
		&job.MaxRetries,
		&d.lastError,
		&job.ScheduledAt,
		&d.startedAt,
		&d.completedAt,
		&d.leaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *webhookJobRowData) apply(job *model.WebhookJob) error {
	job.Payload = append(json.RawMessage(nil), d.payload...)
	if len(d.metadata) > 0 {
		if err := json.Unmarshal(d.metadata, &job.Metadata); err != nil {
			return fmt.Errorf("unmarshal job metadata: %w", err)
		}
	}
	job.LastError = cloneNullableString(d.lastError)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.LeaseExpiresAt = cloneNullableTime(d.leaseExpiresAt)
	return nil
}

func scanWebhookJobFromRow(scanner webhookJobRowScanner) (*model.WebhookJob, error) {
	job := &model.WebhookJob{}
	var data webhookJobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}
	if err := data.apply(job); err != nil {
		return nil, err
	}
	return job, nil
}

func collectWebhookJobFromRows(rows pgx.Rows) (*model.WebhookJob, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	job, err := scanWebhookJobFromRow(rows)
	if err != nil {
		return nil, err
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
