package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data/pgxutil"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// CodeReviewRepo reads code review timeline entries. Entries reference their
// automation execution by uuid only; there is no enforced foreign key, so a
// missing execution simply yields no rows.
type CodeReviewRepo struct {
	DB *sql.DB
}

// NewCodeReviewRepo creates a new CodeReviewRepo.
func NewCodeReviewRepo(db *sql.DB) *CodeReviewRepo {
	return &CodeReviewRepo{DB: db}
}

// FindByAutomationExecutionUUIDs bulk-loads timeline entries for a batch of
// executions, oldest first within each execution.
func (r *CodeReviewRepo) FindByAutomationExecutionUUIDs(ctx context.Context, uuids []string) ([]model.CodeReviewExecution, error) {
	if len(uuids) == 0 {
		return nil, nil
	}

	var entries []model.CodeReviewExecution
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
      SELECT uuid, automation_execution_uuid, status, message, created_at, updated_at
      FROM code_review_executions
      WHERE automation_execution_uuid = ANY($1::text[])
      ORDER BY automation_execution_uuid, created_at ASC
    `, uuids)
		if err != nil {
			return fmt.Errorf("query code review executions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e       model.CodeReviewExecution
				message sql.NullString
			)
			if scanErr := rows.Scan(&e.UUID, &e.AutomationExecutionUUID, &e.Status, &message, &e.CreatedAt, &e.UpdatedAt); scanErr != nil {
				return fmt.Errorf("scan code review execution: %w", scanErr)
			}
			e.Message = message.String
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
