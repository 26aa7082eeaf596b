package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source is a retrieval source adapter: any participant in the
// retrieval fan-out. Candidates from a source carry either a
// keyword_rank or a vector_score, never both.
type Source interface {
	Name() string
	Capabilities() Capabilities
	KeywordCandidates(ctx context.Context, query string, limit int, sessionID string) ([]RetrievalCandidate, error)
	HealthCheck(ctx context.Context) bool
	// Deinit releases resources this source owns. Sources borrowed by
	// the engine (OwnsSelf() == false) are not deinited by the engine.
	Deinit() error
	// OwnsSelf reports whether the retrieval engine should destroy this
	// source on its own deinit, versus leaving it to whoever lent it.
	OwnsSelf() bool
}

// PrimarySource wraps a primary Backend so it can participate in the
// fan-out; its candidates carry a 1-based keyword_rank derived from
// the order Backend.Recall returns.
type PrimarySource struct {
	backend  Backend
	ownsSelf bool
}

// NewPrimarySource wraps backend. ownsSelf controls whether the engine
// closes backend on its own deinit.
func NewPrimarySource(backend Backend, ownsSelf bool) *PrimarySource {
	return &PrimarySource{backend: backend, ownsSelf: ownsSelf}
}

func (s *PrimarySource) Name() string { return "primary:" + s.backend.Name() }
func (s *PrimarySource) Capabilities() Capabilities { return s.backend.Capabilities() }
func (s *PrimarySource) HealthCheck(ctx context.Context) bool { return s.backend.HealthCheck(ctx) }
func (s *PrimarySource) OwnsSelf() bool { return s.ownsSelf }

func (s *PrimarySource) Deinit() error {
	if !s.ownsSelf {
		return nil
	}
	return s.backend.Close()
}

func (s *PrimarySource) KeywordCandidates(ctx context.Context, query string, limit int, sessionID string) ([]RetrievalCandidate, error) {
	entries, err := s.backend.Recall(ctx, query, limit, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]RetrievalCandidate, 0, len(entries))
	for i, e := range entries {
		out = append(out, RetrievalCandidate{
			ID:          e.ID,
			Key:         e.Key,
			Content:     e.Content,
			Snippet:     snippet(e.Content, query),
			Category:    e.Category,
			KeywordRank: i + 1,
			Source:      s.Name(),
		})
	}
	return out, nil
}

func snippet(content, query string) string {
	const maxLen = 200
	if len(content) <= maxLen {
		return content
	}
	lower := strings.ToLower(content)
	tokens := strings.Fields(strings.ToLower(query))
	idx := -1
	for _, t := range tokens {
		if i := strings.Index(lower, t); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return content[:maxLen] + "..."
	}
	start := idx - 40
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(content) {
		end = len(content)
	}
	return content[start:end]
}

// MarkdownQuerySource is a secondary retrieval source: it scans a
// directory of markdown files line by line for substring matches,
// independent of the primary backend, so hybrid fan-out can fuse
// candidates from a source the primary backend never touches.
type MarkdownQuerySource struct {
	dir      string
	ownsSelf bool
}

// NewMarkdownQuerySource scans dir for *.md files at query time.
func NewMarkdownQuerySource(dir string, ownsSelf bool) *MarkdownQuerySource {
	return &MarkdownQuerySource{dir: dir, ownsSelf: ownsSelf}
}

func (s *MarkdownQuerySource) Name() string { return "markdown-scan" }

func (s *MarkdownQuerySource) Capabilities() Capabilities {
	return Capabilities{SupportsKeywordRank: true}
}

func (s *MarkdownQuerySource) OwnsSelf() bool { return s.ownsSelf }
func (s *MarkdownQuerySource) Deinit() error  { return nil }

func (s *MarkdownQuerySource) HealthCheck(ctx context.Context) bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

func (s *MarkdownQuerySource) KeywordCandidates(ctx context.Context, query string, limit int, sessionID string) ([]RetrievalCandidate, error) {
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	var out []RetrievalCandidate
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(out) >= limit {
			return filepath.SkipAll
		}
		matches, err := scanMarkdownFile(path, needle, limit-len(out))
		if err != nil {
			return nil // non-primary source failure: skip this file, not fatal
		}
		out = append(out, matches...)
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return nil, err
	}

	for i := range out {
		out[i].KeywordRank = i + 1
		out[i].Source = s.Name()
	}
	return out, nil
}

func scanMarkdownFile(path, needle string, remaining int) ([]RetrievalCandidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []RetrievalCandidate
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() && len(out) < remaining {
		lineNo++
		line := scanner.Text()
		if strings.Contains(strings.ToLower(line), needle) {
			out = append(out, RetrievalCandidate{
				Key:        fmt.Sprintf("%s:%d", path, lineNo),
				Content:    line,
				Snippet:    line,
				Category:   CategoryCore,
				SourcePath: path,
				LineStart:  lineNo,
				LineEnd:    lineNo,
			})
		}
	}
	return out, scanner.Err()
}
