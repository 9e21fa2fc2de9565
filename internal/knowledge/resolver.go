package knowledge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrContentSource indicates an explicitly referenced file could not
	// be read. Fatal: the caller named a source and it is unusable.
	ErrContentSource = errors.New("unreadable content source")

	// ErrEmptyContent indicates resolution produced nothing to save.
	// Fatal, raised before any external call is made.
	ErrEmptyContent = errors.New("content is empty")
)

// Export file naming convention. Editor chat exports are written as
// cursor_<slugified-title>.md next to the workspace root; cursor_rules*
// files share the prefix but are configuration, not conversations.
const (
	exportPrefix  = "cursor_"
	exportExt     = ".md"
	exportExclude = "cursor_rules"
)

// Workspace is a read-only filesystem capability injected into the
// resolver, so content resolution stays testable with a stub listing.
type Workspace interface {
	ReadFile(path string) ([]byte, error)
	// List returns name and size for each regular file directly inside dir.
	List(dir string) ([]FileInfo, error)
}

// FileInfo is the minimal listing entry the resolver ranks on.
type FileInfo struct {
	Name string
	Size int64
}

// OSWorkspace implements Workspace against the local filesystem.
type OSWorkspace struct{}

// ReadFile reads the file at path.
func (OSWorkspace) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// List returns the regular files directly inside dir.
func (OSWorkspace) List(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, FileInfo{Name: e.Name(), Size: info.Size()})
	}
	return infos, nil
}

// ResolveInput carries the candidate content sources for one save.
type ResolveInput struct {
	// Content is the inline text supplied by the caller. May be
	// truncated by upstream assistants, hence the export-file heuristic.
	Content string

	// FilePath, when set, names the authoritative source explicitly.
	FilePath string

	// Root is the workspace directory scanned during auto-discovery.
	Root string

	// TitleHint ranks export candidates by name similarity when set.
	TitleHint string

	// AutoFind enables the export-file scan.
	AutoFind bool
}

// Resolved is the outcome of source selection.
type Resolved struct {
	Content string
	// Source is the human-readable provenance label:
	// "direct", "file:<path>" or "auto-detected:<path>".
	Source string
}

// Resolver chooses the authoritative text to persist from up to three
// candidate sources. An export file replaces inline content only when it
// is substantially larger (sizeRatio), so explicitly supplied content is
// never silently discarded without a size-based justification.
type Resolver struct {
	ws        Workspace
	sizeRatio float64
	logger    *slog.Logger
}

// NewResolver creates a Resolver. sizeRatio is the auto-detect threshold;
// values <= 1 fall back to the 1.5 default.
func NewResolver(ws Workspace, sizeRatio float64, logger *slog.Logger) *Resolver {
	if ws == nil {
		ws = OSWorkspace{}
	}
	if sizeRatio <= 1 {
		sizeRatio = 1.5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{ws: ws, sizeRatio: sizeRatio, logger: logger}
}

// Resolve picks exactly one content source. Resolution order: explicit
// file, then auto-discovered export, then inline content. Whichever wins,
// empty or whitespace-only content is a hard stop.
func (r *Resolver) Resolve(in ResolveInput) (Resolved, error) {
	resolved, err := r.pick(in)
	if err != nil {
		return Resolved{}, err
	}
	if strings.TrimSpace(resolved.Content) == "" {
		return Resolved{}, fmt.Errorf("%w: nothing to save from source %q", ErrEmptyContent, resolved.Source)
	}
	return resolved, nil
}

func (r *Resolver) pick(in ResolveInput) (Resolved, error) {
	if in.FilePath != "" {
		data, err := r.ws.ReadFile(in.FilePath)
		if err != nil {
			return Resolved{}, fmt.Errorf("%w: %s: %v", ErrContentSource, in.FilePath, err)
		}
		return Resolved{Content: string(data), Source: "file:" + in.FilePath}, nil
	}

	if in.AutoFind && in.Root != "" {
		if resolved, ok := r.autoDetect(in); ok {
			return resolved, nil
		}
	}

	return Resolved{Content: in.Content, Source: "direct"}, nil
}

// autoDetect scans the workspace root for export files and uses the best
// candidate when it exceeds the inline content's length by the configured
// ratio. Failures here are never fatal; inline content remains a valid
// fallback.
func (r *Resolver) autoDetect(in ResolveInput) (Resolved, bool) {
	candidate, ok := r.bestCandidate(in.Root, in.TitleHint)
	if !ok {
		return Resolved{}, false
	}

	if float64(candidate.Size) <= r.sizeRatio*float64(len(in.Content)) {
		r.logger.Debug("export file not substantially larger, keeping inline content",
			"candidate", candidate.Name, "size", candidate.Size, "inline_len", len(in.Content))
		return Resolved{}, false
	}

	path := filepath.Join(in.Root, candidate.Name)
	data, err := r.ws.ReadFile(path)
	if err != nil {
		r.logger.Warn("export file vanished during resolution, keeping inline content",
			"path", path, "error", err)
		return Resolved{}, false
	}

	return Resolved{Content: string(data), Source: "auto-detected:" + path}, true
}

// bestCandidate ranks export files by title similarity when a hint is
// given, else by size as a completeness proxy.
func (r *Resolver) bestCandidate(root, titleHint string) (FileInfo, bool) {
	infos, err := r.ws.List(root)
	if err != nil {
		r.logger.Warn("scanning workspace for export files", "root", root, "error", err)
		return FileInfo{}, false
	}

	var candidates []FileInfo
	for _, info := range infos {
		if !strings.HasPrefix(info.Name, exportPrefix) {
			continue
		}
		if !strings.HasSuffix(info.Name, exportExt) {
			continue
		}
		if strings.HasPrefix(info.Name, exportExclude) {
			continue
		}
		candidates = append(candidates, info)
	}
	if len(candidates) == 0 {
		return FileInfo{}, false
	}

	if titleHint != "" {
		sort.SliceStable(candidates, func(i, j int) bool {
			return nameSimilarity(candidates[i].Name, titleHint) > nameSimilarity(candidates[j].Name, titleHint)
		})
	} else {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Size > candidates[j].Size
		})
	}

	return candidates[0], true
}

// nameSimilarity scores word overlap between a normalized export filename
// and the title hint.
func nameSimilarity(name, title string) int {
	name = strings.TrimSuffix(strings.TrimPrefix(name, exportPrefix), exportExt)
	nameWords := splitWords(name)
	titleWords := splitWords(title)

	score := 0
	for w := range titleWords {
		if nameWords[w] {
			score++
		}
	}
	return score
}

// splitWords lowercases and tokenizes on non-alphanumeric runes.
func splitWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		words[w] = true
	}
	return words
}
