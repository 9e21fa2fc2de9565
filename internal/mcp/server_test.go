package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pgvector/pgvector-go"
	"github.com/samber/lo"

	"github.com/teamrecall/recall/internal/config"
	"github.com/teamrecall/recall/internal/knowledge"
	"github.com/teamrecall/recall/internal/record"
)

type fakeStore struct {
	saveID    uuid.UUID
	saved     []record.Draft
	getRec    *record.Record
	getErr    error
	searchOut []*record.SearchResult
	listOut   []*record.Summary
	deleted   bool
}

func (f *fakeStore) Save(_ context.Context, d record.Draft) (uuid.UUID, error) {
	f.saved = append(f.saved, d)
	return f.saveID, nil
}

func (f *fakeStore) Get(_ context.Context, _ uuid.UUID, _, _ string) (*record.Record, error) {
	return f.getRec, f.getErr
}

func (f *fakeStore) List(_ context.Context, _, _ string, _ record.ListOpts) ([]*record.Summary, error) {
	return f.listOut, nil
}

func (f *fakeStore) Search(_ context.Context, _ pgvector.Vector, _, _ string, _ record.SearchOpts) ([]*record.SearchResult, error) {
	return f.searchOut, nil
}

func (f *fakeStore) Delete(_ context.Context, _ uuid.UUID, _, _ string) (bool, error) {
	return f.deleted, nil
}

func (f *fakeStore) UpdateVisibility(_ context.Context, _ uuid.UUID, _, _ string, _ bool) (bool, error) {
	return f.deleted, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (fakeEmbedder) Summarize(_ context.Context, text string) (string, error) {
	return "summary of " + text[:min(10, len(text))], nil
}

func newTestServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()
	svc := knowledge.NewService(
		store,
		fakeEmbedder{},
		&config.StaticIdentity{User: "user-1", Team: "team-1"},
		knowledge.NewResolver(nil, 1.5, nil),
		0.7,
		t.TempDir(),
		nil,
	)
	server, err := NewServer(Config{Name: "test-server", Version: "0.1.0", Service: svc})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server
}

func TestNewServerValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"missing name", Config{Version: "1.0.0"}, "server name is required"},
		{"missing version", Config{Name: "test"}, "server version is required"},
		{"missing service", Config{Name: "test", Version: "1.0.0"}, "knowledge service is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServer(tt.config)
			if err == nil {
				t.Fatal("NewServer succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRecordTool(t *testing.T) {
	store := &fakeStore{saveID: uuid.New()}
	server := newTestServer(t, store)

	result, _, err := server.SaveRecord(context.Background(), nil, SaveRecordInput{
		Title:   "Debugging the scheduler",
		Content: strings.Repeat("we traced the deadlock to the queue lock\n", 15),
		Tags:    []string{"scheduler"},
	})
	if err != nil {
		t.Fatalf("SaveRecord error = %v", err)
	}
	if result.IsError {
		t.Fatalf("result.IsError = true: %v", result.Content)
	}

	var resp saveResponse
	decodeResult(t, result, &resp)
	if resp.ID != store.saveID.String() {
		t.Errorf("ID = %q, want %q", resp.ID, store.saveID)
	}
	if resp.Source != "direct" {
		t.Errorf("Source = %q, want direct", resp.Source)
	}
	if len(store.saved) != 1 {
		t.Errorf("saved %d drafts, want 1", len(store.saved))
	}
}

func TestSaveRecordToolRequiresTitle(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	result, _, err := server.SaveRecord(context.Background(), nil, SaveRecordInput{Content: "body"})
	if err != nil {
		t.Fatalf("SaveRecord error = %v", err)
	}
	if !result.IsError {
		t.Error("IsError = false, want tool error for missing title")
	}
}

func TestSaveRecordToolEmptyContent(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	result, _, err := server.SaveRecord(context.Background(), nil, SaveRecordInput{Title: "t", Content: "  "})
	if err != nil {
		t.Fatalf("SaveRecord error = %v", err)
	}
	if !result.IsError {
		t.Error("IsError = false, want tool error for empty content")
	}
}

func TestSaveRecordToolVisibilityDefault(t *testing.T) {
	tests := []struct {
		name       string
		isPublic   *bool
		wantPublic bool
	}{
		{"omitted defaults to public", nil, true},
		{"explicit false stays private", lo.ToPtr(false), false},
		{"explicit true stays public", lo.ToPtr(true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{saveID: uuid.New()}
			server := newTestServer(t, store)

			result, _, err := server.SaveRecord(context.Background(), nil, SaveRecordInput{
				Title:    "t",
				Content:  "some content worth keeping",
				IsPublic: tt.isPublic,
			})
			if err != nil {
				t.Fatalf("SaveRecord error = %v", err)
			}
			if result.IsError {
				t.Fatalf("result.IsError = true: %v", result.Content)
			}
			if len(store.saved) != 1 {
				t.Fatalf("saved %d drafts, want 1", len(store.saved))
			}
			if store.saved[0].IsPublic != tt.wantPublic {
				t.Errorf("draft.IsPublic = %v, want %v", store.saved[0].IsPublic, tt.wantPublic)
			}
		})
	}
}

func TestFindRelatedTool(t *testing.T) {
	hitID := uuid.New()
	store := &fakeStore{searchOut: []*record.SearchResult{
		{Summary: record.Summary{ID: hitID, Title: "scheduler deadlock notes"}, Similarity: 0.42},
	}}
	server := newTestServer(t, store)

	result, _, err := server.FindRelated(context.Background(), nil, FindRelatedInput{
		Context: "we are mid-task debugging a nil map write in the scheduler",
	})
	if err != nil {
		t.Fatalf("FindRelated error = %v", err)
	}
	if result.IsError {
		t.Fatalf("result.IsError = true: %v", result.Content)
	}

	var hits []searchHitResponse
	decodeResult(t, result, &hits)
	if len(hits) != 1 || hits[0].ID != hitID.String() {
		t.Errorf("hits = %+v", hits)
	}
}

func TestFindRelatedToolRequiresContext(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	result, _, err := server.FindRelated(context.Background(), nil, FindRelatedInput{})
	if err != nil {
		t.Fatalf("FindRelated error = %v", err)
	}
	if !result.IsError {
		t.Error("IsError = false, want tool error for missing context")
	}
}

func TestSearchRecordsTool(t *testing.T) {
	hitID := uuid.New()
	store := &fakeStore{searchOut: []*record.SearchResult{
		{Summary: record.Summary{ID: hitID, Title: "scheduler deadlock"}, Similarity: 0.91},
	}}
	server := newTestServer(t, store)

	result, _, err := server.SearchRecords(context.Background(), nil, SearchRecordsInput{Query: "deadlock"})
	if err != nil {
		t.Fatalf("SearchRecords error = %v", err)
	}

	var hits []searchHitResponse
	decodeResult(t, result, &hits)
	if len(hits) != 1 || hits[0].ID != hitID.String() || hits[0].Similarity != 0.91 {
		t.Errorf("hits = %+v", hits)
	}
}

func TestGetRecordToolInvalidID(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	result, _, err := server.GetRecord(context.Background(), nil, RecordIDInput{ID: "not-a-uuid"})
	if err != nil {
		t.Fatalf("GetRecord error = %v", err)
	}
	if !result.IsError {
		t.Error("IsError = false, want tool error for a malformed id")
	}
}

func TestGetRecordToolNotFound(t *testing.T) {
	server := newTestServer(t, &fakeStore{getErr: record.ErrNotFound})

	result, _, err := server.GetRecord(context.Background(), nil, RecordIDInput{ID: uuid.NewString()})
	if err != nil {
		t.Fatalf("GetRecord error = %v", err)
	}
	if !result.IsError {
		t.Error("IsError = false, want tool error for a missing record")
	}
}

func TestDeleteRecordToolNoMatch(t *testing.T) {
	server := newTestServer(t, &fakeStore{deleted: false})

	result, _, err := server.DeleteRecord(context.Background(), nil, RecordIDInput{ID: uuid.NewString()})
	if err != nil {
		t.Fatalf("DeleteRecord error = %v", err)
	}
	if !result.IsError {
		t.Error("IsError = false, want tool error when nothing was deleted")
	}
}

func TestUpdateVisibilityTool(t *testing.T) {
	server := newTestServer(t, &fakeStore{deleted: true})
	id := uuid.NewString()

	result, _, err := server.UpdateVisibility(context.Background(), nil, UpdateVisibilityInput{ID: id, IsPublic: true})
	if err != nil {
		t.Fatalf("UpdateVisibility error = %v", err)
	}

	var resp mutationResponse
	decodeResult(t, result, &resp)
	if resp.ID != id || !resp.Updated {
		t.Errorf("resp = %+v", resp)
	}
}

// decodeResult unmarshals the single text content of a tool result.
func decodeResult(t *testing.T, result *sdk.CallToolResult, v any) {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("result has %d content blocks, want 1", len(result.Content))
	}
	text, ok := result.Content[0].(*sdk.TextContent)
	if !ok {
		t.Fatalf("content is %T, want text", result.Content[0])
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("unmarshaling result %q: %v", text.Text, err)
	}
}
