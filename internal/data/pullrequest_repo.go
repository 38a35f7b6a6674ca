package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data/pgxutil"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// PullRequestRepo is the Postgres store for pull requests, their suggestion
// projections, and the tenant repository directory.
type PullRequestRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewPullRequestRepo creates a new PullRequestRepo.
func NewPullRequestRepo(db *sql.DB, tp TimeProvider) *PullRequestRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &PullRequestRepo{DB: db, timeProvider: tp}
}

const pullRequestColumns = `
  uuid,
  repository_id,
  repository_name,
  repository_full_name,
  number,
  title,
  status,
  merged,
  url,
  head_ref,
  head_sha,
  base_ref,
  base_sha,
  provider,
  author_id,
  author_username,
  is_draft,
  files,
  opened_at,
  closed_at,
  created_at,
  updated_at
`

// FindManyByKeys bulk-loads pull requests by {repositoryId, number} pairs.
// The pairs travel as parallel arrays and are joined via unnest, so one round
// trip covers the whole batch.
func (r *PullRequestRepo) FindManyByKeys(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	repoIDs, numbers := splitKeys(keys)

	var records []*model.PullRequestRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
      SELECT `+pullRequestColumns+`
      FROM pull_requests pr
      JOIN unnest($2::text[], $3::int[]) AS k(repository_id, number)
        ON pr.repository_id = k.repository_id AND pr.number = k.number
      WHERE pr.organization_id = $1
    `, org.OrganizationID, repoIDs, numbers)
		if err != nil {
			return fmt.Errorf("query pull requests by keys: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			record, scanErr := scanPullRequest(rows)
			if scanErr != nil {
				return fmt.Errorf("scan pull request: %w", scanErr)
			}
			records = append(records, record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FindSuggestionCountsByKeys returns the precomputed sent/total projections
// for the given pairs. Pairs without a projection row are simply absent.
func (r *PullRequestRepo) FindSuggestionCountsByKeys(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	repoIDs, numbers := splitKeys(keys)

	var counts []model.SuggestionsCount
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
      SELECT c.repository_id, c.number, c.sent, c.total
      FROM pull_request_suggestion_counts c
      JOIN unnest($2::text[], $3::int[]) AS k(repository_id, number)
        ON c.repository_id = k.repository_id AND c.number = k.number
      WHERE c.organization_id = $1
    `, org.OrganizationID, repoIDs, numbers)
		if err != nil {
			return fmt.Errorf("query suggestion counts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var c model.SuggestionsCount
			if scanErr := rows.Scan(&c.RepositoryID, &c.Number, &c.Sent, &c.Total); scanErr != nil {
				return fmt.Errorf("scan suggestion count: %w", scanErr)
			}
			counts = append(counts, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// FindKeysByTitle resolves a case-insensitive title substring filter into
// {repositoryId, number} pairs.
func (r *PullRequestRepo) FindKeysByTitle(ctx context.Context, org model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error) {
	rows, err := r.DB.QueryContext(ctx, `
    SELECT repository_id, number
    FROM pull_requests
    WHERE organization_id = $1
      AND title ILIKE '%' || $2 || '%'
  `, org.OrganizationID, title)
	if err != nil {
		return nil, fmt.Errorf("query pull request keys by title: %w", err)
	}
	defer rows.Close()

	var keys []model.PullRequestKey
	for rows.Next() {
		var k model.PullRequestKey
		if scanErr := rows.Scan(&k.RepositoryID, &k.Number); scanErr != nil {
			return nil, fmt.Errorf("scan pull request key: %w", scanErr)
		}
		keys = append(keys, k)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return keys, nil
}

// ListRepositories returns the tenant's repository directory, used to resolve
// name filters into ids.
func (r *PullRequestRepo) ListRepositories(ctx context.Context, org model.OrganizationAndTeamData) ([]core.RepositoryRef, error) {
	rows, err := r.DB.QueryContext(ctx, `
    SELECT id, name, COALESCE(full_name, '')
    FROM repositories
    WHERE organization_id = $1
    ORDER BY name
  `, org.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var refs []core.RepositoryRef
	for rows.Next() {
		var ref core.RepositoryRef
		if scanErr := rows.Scan(&ref.ID, &ref.Name, &ref.FullName); scanErr != nil {
			return nil, fmt.Errorf("scan repository: %w", scanErr)
		}
		refs = append(refs, ref)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return refs, nil
}

// SaveReviewResult stores the processed suggestions on the pull request row
// and refreshes the sent/total projection in the same transaction, so the
// aggregator's preferred read path never sees a half-written result.
func (r *PullRequestRepo) SaveReviewResult(ctx context.Context, params core.SaveReviewResultParams) error {
	if params.ExecutionUUID == "" {
		return errors.New("execution uuid is required")
	}

	files := groupSuggestionsByFile(params.Suggestions)
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal suggestion files: %w", err)
	}

	sent := 0
	for _, s := range params.Suggestions {
		if s.DeliveryStatus == model.DeliveryStatusSent {
			sent++
		}
	}
	total := len(params.Suggestions)
	now := r.timeProvider.Now().UTC()

	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
        INSERT INTO pull_requests (organization_id, repository_id, repository_name, repository_full_name, number, title, status, provider, author_username, files, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, '', 'open', $6, '', $7, $8, $8)
        ON CONFLICT (organization_id, repository_id, number) DO UPDATE
        SET files = EXCLUDED.files,
            updated_at = EXCLUDED.updated_at
      `, params.Organization.OrganizationID,
				params.Repository.ID,
				params.Repository.Name,
				params.Repository.FullName,
				params.Number,
				string(params.Platform),
				filesJSON,
				now,
			); err != nil {
				return fmt.Errorf("upsert pull request files: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
        INSERT INTO pull_request_suggestion_counts (organization_id, repository_id, number, sent, total, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (organization_id, repository_id, number) DO UPDATE
        SET sent = EXCLUDED.sent,
            total = EXCLUDED.total,
            updated_at = EXCLUDED.updated_at
      `, params.Organization.OrganizationID,
				params.Repository.ID,
				params.Number,
				sent,
				total,
				now,
			); err != nil {
				return fmt.Errorf("upsert suggestion counts: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
        UPDATE automation_executions
        SET data_execution = jsonb_build_object('suggestionsTotal', $2::int, 'suggestionsSent', $3::int),
            updated_at = $4
        WHERE uuid = $1
      `, params.ExecutionUUID, total, sent, now); err != nil {
				return fmt.Errorf("attach result to execution: %w", err)
			}
			return nil
		},
	})
}

func splitKeys(keys []model.PullRequestKey) ([]string, []int) {
	repoIDs := make([]string, len(keys))
	numbers := make([]int, len(keys))
	for i, k := range keys {
		repoIDs[i] = k.RepositoryID
		numbers[i] = k.Number
	}
	return repoIDs, numbers
}

func groupSuggestionsByFile(suggestions []model.CodeSuggestion) []model.PullRequestFile {
	index := make(map[string]int)
	var files []model.PullRequestFile
	for _, s := range suggestions {
		i, ok := index[s.RelevantFile]
		if !ok {
			files = append(files, model.PullRequestFile{Path: s.RelevantFile})
			i = len(files) - 1
			index[s.RelevantFile] = i
		}
		files[i].Suggestions = append(files[i].Suggestions, s)
	}
	return files
}

type pullRequestRowScanner interface {
	Scan(dest ...any) error
}

func scanPullRequest(scanner pullRequestRowScanner) (*model.PullRequestRecord, error) {
	pr := &model.PullRequestRecord{}
	var (
		fullName, url, headSHA, baseSHA, authorID sql.NullString
		files                                     []byte
		openedAt, closedAt                        sql.NullTime
	)
	if err := scanner.Scan(
		&pr.UUID,
		&pr.Repository.ID,
		&pr.Repository.Name,
		&fullName,
		&pr.Number,
		&pr.Title,
		&pr.Status,
		&pr.Merged,
		&url,
		&pr.Head.Ref,
		&headSHA,
		&pr.Base.Ref,
		&baseSHA,
		&pr.Provider,
		&authorID,
		&pr.Author.Username,
		&pr.IsDraft,
		&files,
		&openedAt,
		&closedAt,
		&pr.CreatedAt,
		&pr.UpdatedAt,
	); err != nil {
		return nil, err
	}

	pr.Repository.FullName = fullName.String
	pr.URL = url.String
	pr.Head.SHA = headSHA.String
	pr.Base.SHA = baseSHA.String
	pr.Author.ID = authorID.String
	pr.OpenedAt = cloneNullableTime(openedAt)
	pr.ClosedAt = cloneNullableTime(closedAt)

	if len(files) > 0 {
		if err := json.Unmarshal(files, &pr.Files); err != nil {
			return nil, fmt.Errorf("unmarshal files: %w", err)
		}
	}
	return pr, nil
}
