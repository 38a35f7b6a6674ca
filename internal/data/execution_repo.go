package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data/pgxutil"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// ExecutionRepo is the Postgres read store for automation execution history.
type ExecutionRepo struct {
	DB *sql.DB
}

// NewExecutionRepo creates a new ExecutionRepo.
func NewExecutionRepo(db *sql.DB) *ExecutionRepo {
	return &ExecutionRepo{DB: db}
}

const executionColumns = `
  uuid,
  pull_request_number,
  repository_id,
  status,
  error_message,
  origin,
  data_execution,
  created_at,
  updated_at
`

// FindPullRequestExecutions returns one batch of executions plus the total
// row count for the filter, newest first. The count comes from a window
// function on the same query, so batch and total always agree.
func (r *ExecutionRepo) FindPullRequestExecutions(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
	f := params.Filter

	where := `WHERE e.organization_id = $1`
	args := []any{f.Organization.OrganizationID}

	if len(f.RepositoryIDs) > 0 {
		args = append(args, f.RepositoryIDs)
		where += fmt.Sprintf(" AND e.repository_id = ANY($%d::text[])", len(args))
	}
	if f.PullRequestNumber != nil {
		args = append(args, *f.PullRequestNumber)
		where += fmt.Sprintf(" AND e.pull_request_number = $%d", len(args))
	}
	if len(f.PullRequestKeys) > 0 {
		repoIDs, numbers := splitKeys(f.PullRequestKeys)
		args = append(args, repoIDs, numbers)
		where += fmt.Sprintf(
			" AND (e.repository_id, e.pull_request_number) IN (SELECT * FROM unnest($%d::text[], $%d::int[]))",
			len(args)-1, len(args),
		)
	}

	args = append(args, params.Take, params.Skip)
	query := fmt.Sprintf(`
    SELECT %s, count(*) OVER() AS total
    FROM automation_executions e
    %s
    ORDER BY e.created_at DESC, e.uuid DESC
    LIMIT $%d OFFSET $%d
  `, executionColumns, where, len(args)-1, len(args))

	var (
		executions []model.AutomationExecution
		total      int
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query executions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			ex, rowTotal, scanErr := scanExecution(rows)
			if scanErr != nil {
				return fmt.Errorf("scan execution: %w", scanErr)
			}
			executions = append(executions, ex)
			total = rowTotal
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	// An empty batch past the last page carries no window total; fetch the
	// count separately so pagination math stays correct.
	if len(executions) == 0 {
		countQuery := fmt.Sprintf(`SELECT count(*) FROM automation_executions e %s`, where)
		if countErr := r.DB.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); countErr != nil {
			return nil, 0, fmt.Errorf("count executions: %w", countErr)
		}
	}

	return executions, total, nil
}

type executionRowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(scanner executionRowScanner) (model.AutomationExecution, int, error) {
	var (
		ex            model.AutomationExecution
		errorMessage  sql.NullString
		origin        sql.NullString
		dataExecution []byte
		total         int
	)
	if err := scanner.Scan(
		&ex.UUID,
		&ex.PullRequestNumber,
		&ex.RepositoryID,
		&ex.Status,
		&errorMessage,
		&origin,
		&dataExecution,
		&ex.CreatedAt,
		&ex.UpdatedAt,
		&total,
	); err != nil {
		return model.AutomationExecution{}, 0, err
	}
	ex.ErrorMessage = errorMessage.String
	ex.Origin = origin.String
	if len(dataExecution) > 0 {
		ex.DataExecution = append(json.RawMessage(nil), dataExecution...)
	}
	return ex, total, nil
}
