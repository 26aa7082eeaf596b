package memory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MarkdownBackend stores each entry as one markdown file under
// workspace/entries, keyed by a filesystem-safe slug of the entry
// key. A small header block carries category/session/timestamp;
// everything after the blank line is content. Recall ranks by
// substring-match count, with ties broken by recency (newest first).
type MarkdownBackend struct {
	mu  sync.RWMutex
	dir string
}

func NewMarkdownBackend(workspace string) (*MarkdownBackend, error) {
	dir := filepath.Join(workspace, "entries")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newErr(BackendIo, "NewMarkdownBackend", err)
	}
	return &MarkdownBackend{dir: dir}, nil
}

func (b *MarkdownBackend) Name() string { return "markdown" }

func (b *MarkdownBackend) Capabilities() Capabilities {
	return Capabilities{SupportsKeywordRank: true}
}

func slugify(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

func (b *MarkdownBackend) pathFor(key string) string {
	return filepath.Join(b.dir, slugify(key)+".md")
}

func (b *MarkdownBackend) Store(ctx context.Context, key, content string, category MemoryCategory, sessionID string) (MemoryEntry, error) {
	if strings.TrimSpace(key) == "" {
		return MemoryEntry{}, newErr(BackendInvalid, "Store", errors.New("empty key"))
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	entry := MemoryEntry{
		ID:        slugify(key),
		Key:       key,
		Content:   content,
		Category:  category,
		Timestamp: now,
		SessionID: sessionID,
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "key: %s\n", key)
	fmt.Fprintf(&buf, "category: %s\n", category.String())
	fmt.Fprintf(&buf, "session_id: %s\n", sessionID)
	fmt.Fprintf(&buf, "timestamp: %d\n", now.UnixMilli())
	buf.WriteString("\n")
	buf.WriteString(content)

	tmp := b.pathFor(key) + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return MemoryEntry{}, newErr(BackendIo, "Store", err)
	}
	if err := os.Rename(tmp, b.pathFor(key)); err != nil {
		return MemoryEntry{}, newErr(BackendIo, "Store", err)
	}
	return entry, nil
}

func (b *MarkdownBackend) readEntry(path string) (MemoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return MemoryEntry{}, err
	}
	defer f.Close()

	e := MemoryEntry{ID: strings.TrimSuffix(filepath.Base(path), ".md")}
	scanner := bufio.NewScanner(f)
	var content strings.Builder
	inBody := false
	for scanner.Scan() {
		line := scanner.Text()
		if !inBody {
			if line == "" {
				inBody = true
				continue
			}
			k, v, ok := strings.Cut(line, ": ")
			if !ok {
				inBody = true
				content.WriteString(line + "\n")
				continue
			}
			switch k {
			case "key":
				e.Key = v
			case "category":
				e.Category = ParseCategory(v)
			case "session_id":
				e.SessionID = v
			case "timestamp":
				if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
					e.Timestamp = time.UnixMilli(ms).UTC()
				}
			}
			continue
		}
		content.WriteString(line)
		content.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return MemoryEntry{}, err
	}
	e.Content = strings.TrimSuffix(content.String(), "\n")
	return e, nil
}

func (b *MarkdownBackend) allEntries() ([]MemoryEntry, error) {
	files, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}
	var out []MemoryEntry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
			continue
		}
		e, err := b.readEntry(filepath.Join(b.dir, f.Name()))
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *MarkdownBackend) Recall(ctx context.Context, query string, limit int, sessionID string) ([]MemoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	b.mu.RLock()
	entries, err := b.allEntries()
	b.mu.RUnlock()
	if err != nil {
		return nil, newErr(BackendIo, "Recall", err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	type scored struct {
		entry MemoryEntry
		hits  int
	}
	var candidates []scored
	for _, e := range entries {
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		hits := strings.Count(strings.ToLower(e.Content), needle) + strings.Count(strings.ToLower(e.Key), needle)
		if hits > 0 {
			candidates = append(candidates, scored{entry: e, hits: hits})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].hits != candidates[j].hits {
			return candidates[i].hits > candidates[j].hits
		}
		return candidates[i].entry.Timestamp.After(candidates[j].entry.Timestamp)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]MemoryEntry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out, nil
}

func (b *MarkdownBackend) Get(ctx context.Context, key string) (MemoryEntry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, err := b.readEntry(b.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return MemoryEntry{}, false, nil
		}
		return MemoryEntry{}, false, newErr(BackendIo, "Get", err)
	}
	return e, true, nil
}

func (b *MarkdownBackend) List(ctx context.Context, category MemoryCategory, hasCategory bool, sessionID string) ([]MemoryEntry, error) {
	b.mu.RLock()
	entries, err := b.allEntries()
	b.mu.RUnlock()
	if err != nil {
		return nil, newErr(BackendIo, "List", err)
	}
	var out []MemoryEntry
	for _, e := range entries {
		if hasCategory && e.Category.String() != category.String() {
			continue
		}
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (b *MarkdownBackend) Forget(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := os.Remove(b.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, newErr(BackendIo, "Forget", err)
	}
	return true, nil
}

func (b *MarkdownBackend) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries, err := b.allEntries()
	if err != nil {
		return 0, newErr(BackendIo, "Count", err)
	}
	return len(entries), nil
}

func (b *MarkdownBackend) HealthCheck(ctx context.Context) bool {
	info, err := os.Stat(b.dir)
	return err == nil && info.IsDir()
}

func (b *MarkdownBackend) Close() error { return nil }

// Archive implements Hygienic.
func (b *MarkdownBackend) Archive(ctx context.Context, cutoff int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.allEntries()
	if err != nil {
		return 0, newErr(BackendIo, "Archive", err)
	}
	moved := 0
	for _, e := range entries {
		if e.Category == CategoryCore || e.Category == CategoryArchive {
			continue
		}
		if e.Timestamp.UnixMilli() >= cutoff {
			continue
		}
		if _, err := b.storeLocked(e.Key, e.Content, CategoryArchive, e.SessionID, e.Timestamp); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (b *MarkdownBackend) Purge(ctx context.Context, cutoff int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.allEntries()
	if err != nil {
		return 0, newErr(BackendIo, "Purge", err)
	}
	purged := 0
	for _, e := range entries {
		if e.Timestamp.UnixMilli() >= cutoff {
			continue
		}
		if err := os.Remove(b.pathFor(e.Key)); err == nil {
			purged++
		}
	}
	return purged, nil
}

func (b *MarkdownBackend) TrimConversations(ctx context.Context, cutoff int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.allEntries()
	if err != nil {
		return 0, newErr(BackendIo, "TrimConversations", err)
	}
	trimmed := 0
	for _, e := range entries {
		if e.Category != CategoryConversation || e.Timestamp.UnixMilli() >= cutoff {
			continue
		}
		if err := os.Remove(b.pathFor(e.Key)); err == nil {
			trimmed++
		}
	}
	return trimmed, nil
}

// storeLocked writes an entry preserving an existing timestamp; callers
// must already hold b.mu.
func (b *MarkdownBackend) storeLocked(key, content string, category MemoryCategory, sessionID string, ts time.Time) (MemoryEntry, error) {
	entry := MemoryEntry{ID: slugify(key), Key: key, Content: content, Category: category, Timestamp: ts, SessionID: sessionID}

	var buf strings.Builder
	fmt.Fprintf(&buf, "key: %s\n", key)
	fmt.Fprintf(&buf, "category: %s\n", category.String())
	fmt.Fprintf(&buf, "session_id: %s\n", sessionID)
	fmt.Fprintf(&buf, "timestamp: %d\n", ts.UnixMilli())
	buf.WriteString("\n")
	buf.WriteString(content)

	tmp := b.pathFor(key) + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return MemoryEntry{}, newErr(BackendIo, "storeLocked", err)
	}
	if err := os.Rename(tmp, b.pathFor(key)); err != nil {
		return MemoryEntry{}, newErr(BackendIo, "storeLocked", err)
	}
	return entry, nil
}

// ExportAll implements Exportable.
func (b *MarkdownBackend) ExportAll(ctx context.Context) ([]MemoryEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries, err := b.allEntries()
	if err != nil {
		return nil, newErr(BackendIo, "ExportAll", err)
	}
	return entries, nil
}

func (b *MarkdownBackend) ImportAll(ctx context.Context, entries []MemoryEntry) (int, error) {
	imported := 0
	for _, e := range entries {
		if _, err := b.Store(ctx, e.Key, e.Content, e.Category, e.SessionID); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
