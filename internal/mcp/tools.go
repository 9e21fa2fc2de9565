package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"

	"github.com/teamrecall/recall/internal/knowledge"
	"github.com/teamrecall/recall/internal/record"
)

// Tool names as clients see them.
const (
	ToolSaveRecord       = "save_record"
	ToolSearchRecords    = "search_records"
	ToolFindRelated      = "find_related"
	ToolGetRecord        = "get_record"
	ToolListRecords      = "list_records"
	ToolDeleteRecord     = "delete_record"
	ToolUpdateVisibility = "update_visibility"
)

// SaveRecordInput is the save_record tool input.
type SaveRecordInput struct {
	Title           string   `json:"title" jsonschema:"Short descriptive title for the record"`
	Content         string   `json:"content,omitempty" jsonschema:"Conversation or note content to save"`
	FilePath        string   `json:"file_path,omitempty" jsonschema:"Path to a file whose content should be saved instead of inline content"`
	AutoFindExport  bool     `json:"auto_find_export,omitempty" jsonschema:"Scan the workspace root for a larger chat export file and prefer it over inline content"`
	GenerateSummary bool     `json:"generate_summary,omitempty" jsonschema:"Generate a short summary of the content (omitted saves with no summary)"`
	IsPublic        *bool    `json:"is_public,omitempty" jsonschema:"Record visibility; omitted saves as team-public (default true)"`
	Tags            []string `json:"tags,omitempty" jsonschema:"Topic tags for filtering"`
	RepoContext     string   `json:"repo_context,omitempty" jsonschema:"Repository the record relates to"`
	FileContext     []string `json:"file_context,omitempty" jsonschema:"Files the record relates to"`
}

// SearchRecordsInput is the search_records tool input.
type SearchRecordsInput struct {
	Query          string `json:"query" jsonschema:"Natural-language search query"`
	Limit          int    `json:"limit,omitempty" jsonschema:"Maximum number of results (1-20, default 5)"`
	IncludePrivate bool   `json:"include_private,omitempty" jsonschema:"Also search your own private records"`
}

// RecordIDInput identifies one record by id.
type RecordIDInput struct {
	ID string `json:"id" jsonschema:"Record id (UUID)"`
}

// FindRelatedInput is the find_related tool input.
type FindRelatedInput struct {
	Context string `json:"context" jsonschema:"Free text describing what you are working on right now"`
}

// ListRecordsInput is the list_records tool input.
type ListRecordsInput struct {
	OnlyMine bool     `json:"only_mine,omitempty" jsonschema:"List only your own records, including private ones"`
	Tags     []string `json:"tags,omitempty" jsonschema:"Keep only records carrying all of these tags"`
	Limit    int      `json:"limit,omitempty" jsonschema:"Maximum number of results (1-50, default 20)"`
}

// UpdateVisibilityInput is the update_visibility tool input.
type UpdateVisibilityInput struct {
	ID       string `json:"id" jsonschema:"Record id (UUID)"`
	IsPublic bool   `json:"is_public" jsonschema:"New visibility: true for team-wide, false for private"`
}

// Wire shapes returned to clients as JSON text content.
type (
	saveResponse struct {
		ID       string   `json:"id"`
		Summary  string   `json:"summary,omitempty"`
		Source   string   `json:"source"`
		Warnings []string `json:"warnings,omitempty"`
	}

	summaryResponse struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Summary     string    `json:"summary,omitempty"`
		OwnerID     string    `json:"owner_id"`
		IsPublic    bool      `json:"is_public"`
		Tags        []string  `json:"tags,omitempty"`
		RepoContext string    `json:"repo_context,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	searchHitResponse struct {
		summaryResponse
		Similarity float64 `json:"similarity"`
	}

	recordResponse struct {
		summaryResponse
		Content     string    `json:"content"`
		FileContext []string  `json:"file_context,omitempty"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	mutationResponse struct {
		ID      string `json:"id"`
		Updated bool   `json:"updated"`
	}
)

func toSummaryResponse(s record.Summary) summaryResponse {
	return summaryResponse{
		ID:          s.ID.String(),
		Title:       s.Title,
		Summary:     lo.FromPtr(s.Summary),
		OwnerID:     s.OwnerID,
		IsPublic:    s.IsPublic,
		Tags:        s.Tags,
		RepoContext: s.RepoContext,
		CreatedAt:   s.CreatedAt,
	}
}

func (s *Server) registerTools() error {
	if err := registerTool(s, ToolSaveRecord,
		"Save a conversation or note to the team knowledge base for later semantic retrieval. "+
			"Provide the content inline or point at an exported file.",
		s.SaveRecord); err != nil {
		return err
	}
	if err := registerTool(s, ToolSearchRecords,
		"Search the team knowledge base by meaning, not keywords. "+
			"Returns the most similar records above the relevance threshold.",
		s.SearchRecords); err != nil {
		return err
	}
	if err := registerTool(s, ToolFindRelated,
		"Find up to three records related to what you are working on right now. "+
			"Takes free working-context text; nothing needs to be saved first.",
		s.FindRelated); err != nil {
		return err
	}
	if err := registerTool(s, ToolGetRecord,
		"Fetch one record by id, including its full content.",
		s.GetRecord); err != nil {
		return err
	}
	if err := registerTool(s, ToolListRecords,
		"List recent records newest-first, optionally filtered by tags or restricted to your own.",
		s.ListRecords); err != nil {
		return err
	}
	if err := registerTool(s, ToolDeleteRecord,
		"Permanently delete a record you own.",
		s.DeleteRecord); err != nil {
		return err
	}
	if err := registerTool(s, ToolUpdateVisibility,
		"Make a record you own public to the team or private again.",
		s.UpdateVisibility); err != nil {
		return err
	}
	return nil
}

// registerTool infers the input schema from In and adds the tool.
func registerTool[In any](s *Server, name, description string, handler mcp.ToolHandlerFor[In, any]) error {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", name, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}, handler)
	return nil
}

// SaveRecord handles the save_record tool call.
func (s *Server) SaveRecord(ctx context.Context, _ *mcp.CallToolRequest, in SaveRecordInput) (*mcp.CallToolResult, any, error) {
	if in.Title == "" {
		return errorToMCP("title is required"), nil, nil
	}

	out, err := s.service.SaveRecord(ctx, knowledge.SaveInput{
		Title:           in.Title,
		Content:         in.Content,
		FilePath:        in.FilePath,
		AutoFindExport:  in.AutoFindExport,
		GenerateSummary: in.GenerateSummary,
		IsPublic:        lo.FromPtrOr(in.IsPublic, true),
		Tags:            in.Tags,
		RepoContext:     in.RepoContext,
		FileContext:     in.FileContext,
	})
	switch {
	case errors.Is(err, knowledge.ErrEmptyContent), errors.Is(err, knowledge.ErrContentSource):
		return errorToMCP("%v", err), nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("save_record failed: %w", err)
	}

	return dataToMCP(saveResponse{
		ID:       out.ID.String(),
		Summary:  lo.FromPtr(out.Summary),
		Source:   out.Source,
		Warnings: out.Warnings,
	}), nil, nil
}

// SearchRecords handles the search_records tool call.
func (s *Server) SearchRecords(ctx context.Context, _ *mcp.CallToolRequest, in SearchRecordsInput) (*mcp.CallToolResult, any, error) {
	if in.Query == "" {
		return errorToMCP("query is required"), nil, nil
	}

	results, err := s.service.SearchRecords(ctx, knowledge.SearchInput{
		Query:          in.Query,
		Limit:          in.Limit,
		IncludePrivate: in.IncludePrivate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("search_records failed: %w", err)
	}

	return dataToMCP(lo.Map(results, func(r *record.SearchResult, _ int) searchHitResponse {
		return searchHitResponse{summaryResponse: toSummaryResponse(r.Summary), Similarity: r.Similarity}
	})), nil, nil
}

// FindRelated handles the find_related tool call.
func (s *Server) FindRelated(ctx context.Context, _ *mcp.CallToolRequest, in FindRelatedInput) (*mcp.CallToolResult, any, error) {
	if in.Context == "" {
		return errorToMCP("context is required"), nil, nil
	}

	results, err := s.service.FindRelated(ctx, in.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("find_related failed: %w", err)
	}

	return dataToMCP(lo.Map(results, func(r *record.SearchResult, _ int) searchHitResponse {
		return searchHitResponse{summaryResponse: toSummaryResponse(r.Summary), Similarity: r.Similarity}
	})), nil, nil
}

// GetRecord handles the get_record tool call.
func (s *Server) GetRecord(ctx context.Context, _ *mcp.CallToolRequest, in RecordIDInput) (*mcp.CallToolResult, any, error) {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return errorToMCP("invalid record id %q", in.ID), nil, nil
	}

	rec, err := s.service.GetRecord(ctx, id)
	switch {
	case errors.Is(err, record.ErrNotFound):
		return errorToMCP("record %s not found", in.ID), nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("get_record failed: %w", err)
	}

	return dataToMCP(recordResponse{
		summaryResponse: summaryResponse{
			ID:          rec.ID.String(),
			Title:       rec.Title,
			Summary:     lo.FromPtr(rec.Summary),
			OwnerID:     rec.OwnerID,
			IsPublic:    rec.IsPublic,
			Tags:        rec.Tags,
			RepoContext: rec.RepoContext,
			CreatedAt:   rec.CreatedAt,
		},
		Content:     rec.Content,
		FileContext: rec.FileContext,
		UpdatedAt:   rec.UpdatedAt,
	}), nil, nil
}

// ListRecords handles the list_records tool call.
func (s *Server) ListRecords(ctx context.Context, _ *mcp.CallToolRequest, in ListRecordsInput) (*mcp.CallToolResult, any, error) {
	summaries, err := s.service.ListRecords(ctx, record.ListOpts{
		OnlyMine: in.OnlyMine,
		Tags:     in.Tags,
		Limit:    in.Limit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list_records failed: %w", err)
	}

	return dataToMCP(lo.Map(summaries, func(s *record.Summary, _ int) summaryResponse {
		return toSummaryResponse(*s)
	})), nil, nil
}

// DeleteRecord handles the delete_record tool call.
func (s *Server) DeleteRecord(ctx context.Context, _ *mcp.CallToolRequest, in RecordIDInput) (*mcp.CallToolResult, any, error) {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return errorToMCP("invalid record id %q", in.ID), nil, nil
	}

	ok, err := s.service.DeleteRecord(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("delete_record failed: %w", err)
	}
	if !ok {
		return errorToMCP("record %s not found or not owned by you", in.ID), nil, nil
	}

	return dataToMCP(mutationResponse{ID: in.ID, Updated: true}), nil, nil
}

// UpdateVisibility handles the update_visibility tool call.
func (s *Server) UpdateVisibility(ctx context.Context, _ *mcp.CallToolRequest, in UpdateVisibilityInput) (*mcp.CallToolResult, any, error) {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return errorToMCP("invalid record id %q", in.ID), nil, nil
	}

	ok, err := s.service.SetVisibility(ctx, id, in.IsPublic)
	if err != nil {
		return nil, nil, fmt.Errorf("update_visibility failed: %w", err)
	}
	if !ok {
		return errorToMCP("record %s not found or not owned by you", in.ID), nil, nil
	}

	return dataToMCP(mutationResponse{ID: in.ID, Updated: true}), nil, nil
}
