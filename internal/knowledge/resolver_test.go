package knowledge

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

type stubWorkspace struct {
	files   map[string]string // path -> content
	listing map[string][]FileInfo
	listErr error
}

func (s *stubWorkspace) ReadFile(path string) ([]byte, error) {
	content, ok := s.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return []byte(content), nil
}

func (s *stubWorkspace) List(dir string) ([]FileInfo, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listing[dir], nil
}

func TestResolveExplicitFile(t *testing.T) {
	ws := &stubWorkspace{files: map[string]string{
		"/notes/session.md": "full conversation text",
	}}
	r := NewResolver(ws, 1.5, nil)

	got, err := r.Resolve(ResolveInput{
		Content:  "short inline",
		FilePath: "/notes/session.md",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Content != "full conversation text" {
		t.Errorf("Content = %q, want file content", got.Content)
	}
	if got.Source != "file:/notes/session.md" {
		t.Errorf("Source = %q", got.Source)
	}
}

func TestResolveExplicitFileUnreadable(t *testing.T) {
	r := NewResolver(&stubWorkspace{}, 1.5, nil)

	_, err := r.Resolve(ResolveInput{
		Content:  "inline that must not be used",
		FilePath: "/gone/file.md",
	})
	if !errors.Is(err, ErrContentSource) {
		t.Fatalf("error = %v, want ErrContentSource", err)
	}
}

func TestResolveAutoDetect(t *testing.T) {
	root := "/ws"
	inline := strings.Repeat("x", 100)

	tests := []struct {
		name       string
		exportSize int
		wantAuto   bool
	}{
		{"larger than ratio wins", 151, true},
		{"exactly at ratio stays inline", 150, false},
		{"smaller stays inline", 80, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			export := strings.Repeat("y", tt.exportSize)
			ws := &stubWorkspace{
				files: map[string]string{
					filepath.Join(root, "cursor_fix_auth_bug.md"): export,
				},
				listing: map[string][]FileInfo{
					root: {{Name: "cursor_fix_auth_bug.md", Size: int64(tt.exportSize)}},
				},
			}
			r := NewResolver(ws, 1.5, nil)

			got, err := r.Resolve(ResolveInput{Content: inline, Root: root, AutoFind: true})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if tt.wantAuto {
				if got.Content != export {
					t.Errorf("Content = inline, want export file content")
				}
				wantSource := "auto-detected:" + filepath.Join(root, "cursor_fix_auth_bug.md")
				if got.Source != wantSource {
					t.Errorf("Source = %q, want %q", got.Source, wantSource)
				}
			} else {
				if got.Content != inline {
					t.Errorf("Content = export, want inline")
				}
				if got.Source != "direct" {
					t.Errorf("Source = %q, want direct", got.Source)
				}
			}
		})
	}
}

func TestResolveAutoDetectFiltering(t *testing.T) {
	root := "/ws"
	ws := &stubWorkspace{
		files: map[string]string{
			filepath.Join(root, "cursor_real_export.md"): strings.Repeat("y", 500),
		},
		listing: map[string][]FileInfo{
			root: {
				{Name: "cursor_rules.md", Size: 9000},
				{Name: "cursor_rules_extra.md", Size: 9000},
				{Name: "notes.md", Size: 9000},
				{Name: "cursor_export.txt", Size: 9000},
				{Name: "cursor_real_export.md", Size: 500},
			},
		},
	}
	r := NewResolver(ws, 1.5, nil)

	got, err := r.Resolve(ResolveInput{Content: "tiny", Root: root, AutoFind: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.HasPrefix(got.Source, "auto-detected:") {
		t.Fatalf("Source = %q, want auto-detected", got.Source)
	}
	if !strings.HasSuffix(got.Source, "cursor_real_export.md") {
		t.Errorf("Source = %q, want the one non-excluded export", got.Source)
	}
}

func TestResolveAutoDetectTitleHint(t *testing.T) {
	root := "/ws"
	ws := &stubWorkspace{
		files: map[string]string{
			filepath.Join(root, "cursor_fix_login_timeout.md"): strings.Repeat("y", 300),
		},
		listing: map[string][]FileInfo{
			root: {
				{Name: "cursor_refactor_database_layer.md", Size: 5000},
				{Name: "cursor_fix_login_timeout.md", Size: 300},
			},
		},
	}
	r := NewResolver(ws, 1.5, nil)

	got, err := r.Resolve(ResolveInput{
		Content:   "tiny",
		Root:      root,
		TitleHint: "Fix login timeout",
		AutoFind:  true,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.HasSuffix(got.Source, "cursor_fix_login_timeout.md") {
		t.Errorf("Source = %q, want title-matched export despite smaller size", got.Source)
	}
}

func TestResolveAutoDetectReadFailureFallsBack(t *testing.T) {
	root := "/ws"
	ws := &stubWorkspace{
		// File is in the listing but not readable.
		listing: map[string][]FileInfo{
			root: {{Name: "cursor_gone.md", Size: 9000}},
		},
	}
	r := NewResolver(ws, 1.5, nil)

	got, err := r.Resolve(ResolveInput{Content: "inline survives", Root: root, AutoFind: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Content != "inline survives" || got.Source != "direct" {
		t.Errorf("got %+v, want inline fallback", got)
	}
}

func TestResolveAutoDetectListFailureFallsBack(t *testing.T) {
	ws := &stubWorkspace{listErr: errors.New("permission denied")}
	r := NewResolver(ws, 1.5, nil)

	got, err := r.Resolve(ResolveInput{Content: "inline", Root: "/ws", AutoFind: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Source != "direct" {
		t.Errorf("Source = %q, want direct", got.Source)
	}
}

func TestResolveEmptyContent(t *testing.T) {
	r := NewResolver(&stubWorkspace{}, 1.5, nil)

	for _, content := range []string{"", "   \n\t  "} {
		_, err := r.Resolve(ResolveInput{Content: content})
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Resolve(%q) error = %v, want ErrEmptyContent", content, err)
		}
	}
}

func TestResolveEmptyExplicitFile(t *testing.T) {
	ws := &stubWorkspace{files: map[string]string{"/f.md": "  \n "}}
	r := NewResolver(ws, 1.5, nil)

	_, err := r.Resolve(ResolveInput{Content: "inline", FilePath: "/f.md"})
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("error = %v, want ErrEmptyContent for whitespace-only file", err)
	}
}
