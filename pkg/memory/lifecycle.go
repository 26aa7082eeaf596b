package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// HygieneConfig controls the lifecycle archive/purge/trim sweep.
type HygieneConfig struct {
	ArchiveAfterDays      int
	PurgeAfterDays        int
	ConversationRetention int
}

// HygieneReport counts what a sweep did.
type HygieneReport struct {
	Archived             int
	Purged               int
	ConversationsTrimmed int
}

// RunHygiene archives, purges, and trims according to cfg. backend
// must implement Hygienic; callers should check that before invoking.
func RunHygiene(ctx context.Context, backend Hygienic, cfg HygieneConfig) (HygieneReport, error) {
	now := time.Now().UTC()
	var report HygieneReport

	archiveCutoff := now.AddDate(0, 0, -cfg.ArchiveAfterDays).UnixMilli()
	archived, err := backend.Archive(ctx, archiveCutoff)
	if err != nil {
		return report, err
	}
	report.Archived = archived

	purgeCutoff := now.AddDate(0, 0, -cfg.PurgeAfterDays).UnixMilli()
	purged, err := backend.Purge(ctx, purgeCutoff)
	if err != nil {
		return report, err
	}
	report.Purged = purged

	convoCutoff := now.AddDate(0, 0, -cfg.ConversationRetention).UnixMilli()
	trimmed, err := backend.TrimConversations(ctx, convoCutoff)
	if err != nil {
		return report, err
	}
	report.ConversationsTrimmed = trimmed

	return report, nil
}

// hygieneMarker records when hygiene last ran, so runtime init can
// decide whether a sweep is due without re-running it on every
// process start.
type hygieneMarker struct {
	LastRunAt int64 `json:"last_run_at"`
}

func markerPath(workspace string) string {
	return filepath.Join(workspace, "hygiene_marker.json")
}

// HygieneDue reports whether enough time has passed since the last
// recorded run to warrant another sweep.
func HygieneDue(workspace string, interval time.Duration) bool {
	data, err := os.ReadFile(markerPath(workspace))
	if err != nil {
		return true // no marker: treat as due
	}
	var m hygieneMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return true
	}
	return time.Since(time.UnixMilli(m.LastRunAt)) >= interval
}

// MarkHygieneRun records the current time as the last hygiene run.
func MarkHygieneRun(workspace string) error {
	m := hygieneMarker{LastRunAt: time.Now().UTC().UnixMilli()}
	data, err := json.Marshal(m)
	if err != nil {
		return newErr(Serialization, "MarkHygieneRun", err)
	}
	tmp := markerPath(workspace) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return newErr(BackendIo, "MarkHygieneRun", err)
	}
	return os.Rename(tmp, markerPath(workspace))
}

// snapshotFile is the self-describing serialization format written
// under workspace/snapshots.
type snapshotFile struct {
	Version   int            `json:"version"`
	CreatedAt int64          `json:"created_at"`
	Entries   []MemoryEntry  `json:"entries"`
	Messages  []MessageEntry `json:"messages"`
}

func snapshotPath(workspace string) string {
	return filepath.Join(workspace, "snapshots", "current.json")
}

// ExportSnapshot serializes entries and messages into a self-describing
// file under the workspace directory, atomically replacing any prior
// snapshot via write-temp + rename.
func ExportSnapshot(workspace string, entries []MemoryEntry, messages []MessageEntry) error {
	dir := filepath.Join(workspace, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newErr(BackendIo, "ExportSnapshot", err)
	}

	snap := snapshotFile{
		Version:   1,
		CreatedAt: time.Now().UTC().UnixMilli(),
		Entries:   entries,
		Messages:  messages,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return newErr(Serialization, "ExportSnapshot", err)
	}

	path := snapshotPath(workspace)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return newErr(BackendIo, "ExportSnapshot", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return newErr(BackendIo, "ExportSnapshot", err)
	}
	return nil
}

// LoadSnapshot reads and validates the current snapshot, if any.
func LoadSnapshot(workspace string) (*snapshotFile, error) {
	data, err := os.ReadFile(snapshotPath(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newErr(BackendIo, "LoadSnapshot", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, newErr(Serialization, "LoadSnapshot", err)
	}
	if snap.Version == 0 {
		return nil, newErr(Serialization, "LoadSnapshot", fmt.Errorf("malformed snapshot: missing version"))
	}
	return &snap, nil
}

// ShouldHydrate is conservative: only true when the primary store is
// empty and a well-formed snapshot exists.
func ShouldHydrate(ctx context.Context, backend Backend, workspace string) (bool, *snapshotFile, error) {
	n, err := backend.Count(ctx)
	if err != nil {
		return false, nil, err
	}
	if n != 0 {
		return false, nil, nil
	}
	snap, err := LoadSnapshot(workspace)
	if err != nil {
		// a malformed snapshot should not block startup; hydrate logs
		// and continues with an empty store, per the Serialization
		// error kind's surfacing rule.
		return false, nil, nil
	}
	if snap == nil {
		return false, nil, nil
	}
	return true, snap, nil
}

// Hydrate restores entries into backend and, if sessionStore is
// non-nil, restores session messages from snap as well. It returns
// the count of entries and messages restored.
func Hydrate(ctx context.Context, backend Backend, sessionStore SessionStore, snap *snapshotFile) (entries int, messages int, err error) {
	exportable, ok := backend.(Exportable)
	if !ok {
		return 0, 0, newErr(BackendInvalid, "Hydrate", fmt.Errorf("backend %q does not support import", backend.Name()))
	}
	entries, err = exportable.ImportAll(ctx, snap.Entries)
	if err != nil {
		return entries, 0, err
	}
	if sessionStore == nil || len(snap.Messages) == 0 {
		return entries, 0, nil
	}
	messages, err = sessionStore.RestoreMessages(ctx, snap.Messages)
	return entries, messages, err
}
