package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// recordCols is the standard SELECT column list for scanRecord.
const recordCols = `id, owner_id, team_id, title, content, summary,
	is_public, tags, repo_context, file_context, created_at, updated_at`

// summaryCols is the reduced column list for List results.
const summaryCols = `id, title, summary, owner_id, is_public, tags,
	COALESCE(repo_context, ''), created_at`

// Postgres implements Store on top of pgx + pgvector.
//
// Postgres is safe for concurrent use by multiple goroutines.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a record store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// Save inserts a new record and returns the generated id.
func (p *Postgres) Save(ctx context.Context, draft Draft) (uuid.UUID, error) {
	if draft.OwnerID == "" || draft.TeamID == "" {
		return uuid.Nil, fmt.Errorf("owner and team are required")
	}
	if draft.Title == "" {
		return uuid.Nil, fmt.Errorf("title is required")
	}
	if draft.Content == "" {
		return uuid.Nil, fmt.Errorf("content is required")
	}

	tags := draft.Tags
	if tags == nil {
		tags = []string{}
	}
	fileContext := draft.FileContext
	if fileContext == nil {
		fileContext = []string{}
	}

	var id uuid.UUID
	err := p.pool.QueryRow(ctx,
		`INSERT INTO records
		   (owner_id, team_id, title, content, summary, embedding,
		    is_public, tags, repo_context, file_context)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
		 RETURNING id`,
		draft.OwnerID, draft.TeamID, draft.Title, draft.Content, draft.Summary,
		draft.Embedding, draft.IsPublic, tags, draft.RepoContext, fileContext,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting record: %w", err)
	}

	p.logger.Debug("record saved", "id", id, "team", draft.TeamID, "public", draft.IsPublic)
	return id, nil
}

// Get fetches a record by id scoped to the requester's team. The
// visibility predicate lives in the WHERE clause so an invisible record
// and a missing one produce the same ErrNotFound.
func (p *Postgres) Get(ctx context.Context, id uuid.UUID, teamID, requesterID string) (*Record, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+recordCols+`
		 FROM records
		 WHERE id = $1 AND team_id = $2
		   AND (is_public = true OR owner_id = $3)`,
		id, teamID, requesterID,
	)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching record %s: %w", id, err)
	}
	return rec, nil
}

// List returns record summaries newest-first.
func (p *Postgres) List(ctx context.Context, teamID, requesterID string, opts ListOpts) ([]*Summary, error) {
	limit := clampLimit(opts.Limit, DefaultListLimit, MaxListLimit)

	tags := opts.Tags
	if tags == nil {
		tags = []string{}
	}

	var visibility string
	if opts.OnlyMine {
		visibility = `owner_id = $2`
	} else {
		visibility = `(is_public = true OR owner_id = $2)`
	}

	rows, err := p.pool.Query(ctx,
		`SELECT `+summaryCols+`
		 FROM records
		 WHERE team_id = $1 AND `+visibility+`
		   AND tags @> $3
		 ORDER BY created_at DESC
		 LIMIT $4`,
		teamID, requesterID, tags, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// Search delegates ranking to the match_records SQL function so that
// team/visibility filtering happens before ordering and limiting. Ranking
// over the full corpus and filtering afterwards would bias which of the
// top-K survive and could under-fill results.
func (p *Postgres) Search(ctx context.Context, query pgvector.Vector, teamID, requesterID string, opts SearchOpts) ([]*SearchResult, error) {
	limit := clampLimit(opts.Limit, DefaultSearchLimit, MaxSearchLimit)

	rows, err := p.pool.Query(ctx,
		`SELECT id, title, summary, owner_id, is_public, tags,
		        repo_context, created_at, similarity
		 FROM match_records($1, $2, $3, $4, $5, $6)`,
		query, teamID, requesterID, opts.IncludePrivate, opts.Threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		r := &SearchResult{}
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Summary, &r.OwnerID, &r.IsPublic,
			&r.Tags, &r.RepoContext, &r.CreatedAt, &r.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}

// Delete removes the record iff id, owner and team match simultaneously.
func (p *Postgres) Delete(ctx context.Context, id uuid.UUID, ownerID, teamID string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM records
		 WHERE id = $1 AND owner_id = $2 AND team_id = $3`,
		id, ownerID, teamID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting record %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateVisibility flips is_public and refreshes updated_at, with the same
// triple-match discipline as Delete.
func (p *Postgres) UpdateVisibility(ctx context.Context, id uuid.UUID, ownerID, teamID string, isPublic bool) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE records
		 SET is_public = $4, updated_at = now()
		 WHERE id = $1 AND owner_id = $2 AND team_id = $3`,
		id, ownerID, teamID, isPublic,
	)
	if err != nil {
		return false, fmt.Errorf("updating visibility for %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// clampLimit normalizes a caller-supplied limit against a default and cap.
func clampLimit(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	default:
		return limit
	}
}

// scanRecord reads a full Record from a single row (standard column set).
func scanRecord(row pgx.Row) (*Record, error) {
	r := &Record{}
	var repoContext *string
	if err := row.Scan(
		&r.ID, &r.OwnerID, &r.TeamID, &r.Title, &r.Content, &r.Summary,
		&r.IsPublic, &r.Tags, &repoContext, &r.FileContext,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if repoContext != nil {
		r.RepoContext = *repoContext
	}
	return r, nil
}

// scanSummaries reads Summary rows (reduced column set).
func scanSummaries(rows pgx.Rows) ([]*Summary, error) {
	var summaries []*Summary
	for rows.Next() {
		s := &Summary{}
		if err := rows.Scan(
			&s.ID, &s.Title, &s.Summary, &s.OwnerID, &s.IsPublic,
			&s.Tags, &s.RepoContext, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning record summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record summaries: %w", err)
	}
	return summaries, nil
}
