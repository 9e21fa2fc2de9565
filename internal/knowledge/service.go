// Package knowledge implements the ingestion and retrieval pipelines on
// top of the record store and the embedding port. It owns content
// resolution, validation, compression and the authorization context; the
// store below it only ever sees finished drafts and scoped queries.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/teamrecall/recall/internal/config"
	"github.com/teamrecall/recall/internal/embed"
	"github.com/teamrecall/recall/internal/record"
)

// relatedLimit caps FindRelated results. Related lookups are a navigation
// aid, not a search, so the cap is small and fixed.
const relatedLimit = 3

// Service is the application core. All operations run under the injected
// identity's (team, user) scope.
type Service struct {
	store    record.Store
	embedder embed.Port
	identity config.Identity
	resolver *Resolver

	threshold     float64
	workspaceRoot string
	logger        *slog.Logger
}

// NewService wires the pipelines. threshold is the similarity floor
// applied to searches; workspaceRoot is where export-file auto-discovery
// looks.
func NewService(store record.Store, embedder embed.Port, identity config.Identity, resolver *Resolver, threshold float64, workspaceRoot string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:         store,
		embedder:      embedder,
		identity:      identity,
		resolver:      resolver,
		threshold:     threshold,
		workspaceRoot: workspaceRoot,
		logger:        logger,
	}
}

// SaveInput carries one ingestion request.
type SaveInput struct {
	Title    string
	Content  string
	FilePath string

	// AutoFindExport enables export-file discovery in the workspace root
	// when no explicit file path is given.
	AutoFindExport bool

	// GenerateSummary requests a model summary of the content. When
	// false the record is saved with a null summary.
	GenerateSummary bool

	IsPublic    bool
	Tags        []string
	RepoContext string
	FileContext []string
}

// SaveOutput reports what was persisted and any advisory warnings.
type SaveOutput struct {
	ID       uuid.UUID
	Summary  *string
	Source   string
	Warnings []string
}

// SaveRecord runs the full ingestion pipeline: resolve the content
// source, validate, embed, summarize, compress, persist. Validation
// warnings are advisory and never block the save; a failed embedding
// aborts it.
func (s *Service) SaveRecord(ctx context.Context, in SaveInput) (*SaveOutput, error) {
	userID, err := s.identity.UserID()
	if err != nil {
		return nil, fmt.Errorf("resolving user identity: %w", err)
	}

	resolved, err := s.resolver.Resolve(ResolveInput{
		Content:   in.Content,
		FilePath:  in.FilePath,
		Root:      s.workspaceRoot,
		TitleHint: in.Title,
		AutoFind:  in.AutoFindExport,
	})
	if err != nil {
		return nil, err
	}

	warnings := Validate(resolved.Content)

	vec, err := s.embedder.Embed(ctx, in.Title+"\n\n"+resolved.Content)
	if err != nil {
		return nil, fmt.Errorf("embedding record: %w", err)
	}

	var summary *string
	if in.GenerateSummary {
		// Never fails; degrades to an excerpt.
		summaryText, _ := s.embedder.Summarize(ctx, resolved.Content)
		if summaryText != "" {
			summary = &summaryText
		}
	}

	id, err := s.store.Save(ctx, record.Draft{
		OwnerID:     userID,
		TeamID:      s.identity.TeamID(),
		Title:       in.Title,
		Content:     Compress(resolved.Content),
		Summary:     summary,
		Embedding:   pgvector.NewVector(vec),
		IsPublic:    in.IsPublic,
		Tags:        in.Tags,
		RepoContext: in.RepoContext,
		FileContext: in.FileContext,
	})
	if err != nil {
		return nil, fmt.Errorf("saving record: %w", err)
	}

	s.logger.Info("record saved",
		"id", id, "source", resolved.Source, "public", in.IsPublic, "warnings", len(warnings))

	return &SaveOutput{ID: id, Summary: summary, Source: resolved.Source, Warnings: warnings}, nil
}

// SearchInput carries one semantic search request.
type SearchInput struct {
	Query          string
	Limit          int
	IncludePrivate bool
}

// SearchRecords embeds the query and runs a ranked, visibility-filtered
// similarity search.
func (s *Service) SearchRecords(ctx context.Context, in SearchInput) ([]*record.SearchResult, error) {
	userID, err := s.identity.UserID()
	if err != nil {
		return nil, fmt.Errorf("resolving user identity: %w", err)
	}

	vec, err := s.embedder.Embed(ctx, in.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return s.store.Search(ctx, pgvector.NewVector(vec), s.identity.TeamID(), userID, record.SearchOpts{
		Limit:          in.Limit,
		IncludePrivate: in.IncludePrivate,
		Threshold:      s.threshold,
	})
}

// FindRelated returns up to three records most similar to free working
// context text. Nothing has to be saved first: the text embeds directly
// as the query. The requester's own private records are always candidates
// and no similarity floor applies, so the nearest neighbors come back
// however distant. Recall over precision: this surfaces anything plausibly
// relevant while the requester is mid-task.
func (s *Service) FindRelated(ctx context.Context, contextText string) ([]*record.SearchResult, error) {
	userID, err := s.identity.UserID()
	if err != nil {
		return nil, fmt.Errorf("resolving user identity: %w", err)
	}

	vec, err := s.embedder.Embed(ctx, contextText)
	if err != nil {
		return nil, fmt.Errorf("embedding context: %w", err)
	}

	return s.store.Search(ctx, pgvector.NewVector(vec), s.identity.TeamID(), userID, record.SearchOpts{
		Limit:          relatedLimit,
		IncludePrivate: true,
		Threshold:      0,
	})
}

// GetRecord fetches one record with its content decompressed.
func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*record.Record, error) {
	userID, err := s.identity.UserID()
	if err != nil {
		return nil, fmt.Errorf("resolving user identity: %w", err)
	}

	rec, err := s.store.Get(ctx, id, s.identity.TeamID(), userID)
	if err != nil {
		return nil, err
	}
	rec.Content = Decompress(rec.Content)
	return rec, nil
}

// ListRecords returns visible record summaries newest-first.
func (s *Service) ListRecords(ctx context.Context, opts record.ListOpts) ([]*record.Summary, error) {
	userID, err := s.identity.UserID()
	if err != nil {
		return nil, fmt.Errorf("resolving user identity: %w", err)
	}
	return s.store.List(ctx, s.identity.TeamID(), userID, opts)
}

// DeleteRecord removes a record the caller owns. It reports whether a
// record was actually deleted; false covers missing, foreign-owned and
// out-of-team records alike.
func (s *Service) DeleteRecord(ctx context.Context, id uuid.UUID) (bool, error) {
	userID, err := s.identity.UserID()
	if err != nil {
		return false, fmt.Errorf("resolving user identity: %w", err)
	}
	return s.store.Delete(ctx, id, userID, s.identity.TeamID())
}

// SetVisibility flips a record's public flag with the same ownership
// discipline as DeleteRecord.
func (s *Service) SetVisibility(ctx context.Context, id uuid.UUID, isPublic bool) (bool, error) {
	userID, err := s.identity.UserID()
	if err != nil {
		return false, fmt.Errorf("resolving user identity: %w", err)
	}
	return s.store.UpdateVisibility(ctx, id, userID, s.identity.TeamID(), isPublic)
}
