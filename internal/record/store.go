package record

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Store is the persistence capability consumed by the ingestion and
// retrieval pipelines. Implementations must apply team scoping and the
// visibility rule inside every query, never after the fact in the caller.
type Store interface {
	// Save inserts a new record and returns its generated id.
	// Draft.Embedding and Draft.Content must be precomputed.
	Save(ctx context.Context, draft Draft) (uuid.UUID, error)

	// Get fetches a record by id within the requester's team. Records
	// outside the requester's visibility yield ErrNotFound.
	Get(ctx context.Context, id uuid.UUID, teamID, requesterID string) (*Record, error)

	// List returns record summaries newest-first, filtered per opts.
	List(ctx context.Context, teamID, requesterID string, opts ListOpts) ([]*Summary, error)

	// Search returns team-scoped, visibility-filtered records ranked by
	// descending cosine similarity to the query vector. Candidates with
	// similarity <= opts.Threshold are excluded.
	Search(ctx context.Context, query pgvector.Vector, teamID, requesterID string, opts SearchOpts) ([]*SearchResult, error)

	// Delete removes the record iff id, owner and team all match.
	// A mismatch reports (false, nil), indistinguishable from a missing row.
	Delete(ctx context.Context, id uuid.UUID, ownerID, teamID string) (bool, error)

	// UpdateVisibility flips is_public with the same matching discipline
	// as Delete and refreshes updated_at.
	UpdateVisibility(ctx context.Context, id uuid.UUID, ownerID, teamID string, isPublic bool) (bool, error)
}
