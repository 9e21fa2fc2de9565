// Package record defines the persisted knowledge-record entity and the
// store that manages it in PostgreSQL + pgvector.
//
// A record belongs to exactly one team and one owner. Visibility follows a
// single rule enforced at the query level: a record is readable by a
// requester iff it is public OR the requester is its owner, and in all
// cases the requester's team matches the record's team. Requests outside
// that rule behave exactly like "not found" so record existence is never
// leaked.
package record

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound is returned when a record does not exist or is outside the
// requester's visibility. The two cases are intentionally indistinguishable.
var ErrNotFound = errors.New("record not found")

// Query caps. Caller-supplied limits are clamped, never trusted.
const (
	MaxListLimit   = 50
	MaxSearchLimit = 20

	DefaultListLimit   = 20
	DefaultSearchLimit = 5
)

// Record is a full knowledge-base entry as the store returns it.
// Content holds whatever was persisted; the ingestion pipeline compresses
// before Save and decompresses after Get, so the store treats it as opaque.
type Record struct {
	ID          uuid.UUID
	OwnerID     string
	TeamID      string
	Title       string
	Content     string
	Summary     *string
	IsPublic    bool
	Tags        []string
	RepoContext string
	FileContext []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Draft is the input to Save. Embedding and Content must already be
// computed by the ingestion pipeline; the store never embeds or
// compresses on its own.
type Draft struct {
	OwnerID     string
	TeamID      string
	Title       string
	Content     string
	Summary     *string
	Embedding   pgvector.Vector
	IsPublic    bool
	Tags        []string
	RepoContext string
	FileContext []string
}

// Summary is the reduced row shape returned by List and Search.
// Content is deliberately absent: list/search responses stay small and
// never pay the decompression cost.
type Summary struct {
	ID          uuid.UUID
	Title       string
	Summary     *string
	OwnerID     string
	IsPublic    bool
	Tags        []string
	RepoContext string
	CreatedAt   time.Time
}

// SearchResult pairs a record summary with its cosine similarity to the
// query vector, in [0, 1] for practical purposes.
type SearchResult struct {
	Summary
	Similarity float64
}

// ListOpts controls List filtering.
type ListOpts struct {
	// OnlyMine restricts results to the requester's own records,
	// including private ones.
	OnlyMine bool

	// Tags keeps only records whose tag set is a superset of this set.
	Tags []string

	// Limit caps the result count. Clamped to [1, MaxListLimit];
	// zero means DefaultListLimit.
	Limit int
}

// SearchOpts controls similarity search.
type SearchOpts struct {
	// Limit caps the result count. Clamped to [1, MaxSearchLimit];
	// zero means DefaultSearchLimit.
	Limit int

	// IncludePrivate additionally admits the requester's own private
	// records. Public records of teammates are always candidates.
	IncludePrivate bool

	// Threshold excludes candidates with similarity <= Threshold.
	Threshold float64
}
