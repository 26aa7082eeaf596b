package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strconv"
	"strings"
)

// SyncBackend shells out to an external CLI tool for every operation,
// invoked as `<command> <op> [args...]` with the entry (if any) piped
// as JSON on stdin and expected as JSON on stdout. It never
// participates in a transaction and never gets an outbox: a failed
// shell-out is not something the vector plane can wait out.
type SyncBackend struct {
	command string
}

func NewSyncBackend(command string) (*SyncBackend, error) {
	if strings.TrimSpace(command) == "" {
		return nil, newErr(BackendInvalid, "NewSyncBackend", errors.New("sync backend requires a command"))
	}
	return &SyncBackend{command: command}, nil
}

func (b *SyncBackend) Name() string { return "sync" }

func (b *SyncBackend) Capabilities() Capabilities {
	return Capabilities{SupportsKeywordRank: true}
}

func (b *SyncBackend) run(ctx context.Context, op string, args []string, stdin any) ([]byte, error) {
	var in []byte
	if stdin != nil {
		encoded, err := json.Marshal(stdin)
		if err != nil {
			return nil, newErr(Serialization, "run", err)
		}
		in = encoded
	}

	fullArgs := append([]string{op}, args...)
	cmd := exec.CommandContext(ctx, b.command, fullArgs...)
	if in != nil {
		cmd.Stdin = bytes.NewReader(in)
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, newErr(BackendIo, "run:"+op, err)
	}
	return out, nil
}

func (b *SyncBackend) Store(ctx context.Context, key, content string, category MemoryCategory, sessionID string) (MemoryEntry, error) {
	entry := MemoryEntry{Key: key, Content: content, Category: category, SessionID: sessionID}
	out, err := b.run(ctx, "store", nil, entry)
	if err != nil {
		return MemoryEntry{}, err
	}
	var result MemoryEntry
	if err := json.Unmarshal(out, &result); err != nil {
		return MemoryEntry{}, newErr(Serialization, "Store", err)
	}
	return result, nil
}

func (b *SyncBackend) Recall(ctx context.Context, query string, limit int, sessionID string) ([]MemoryEntry, error) {
	out, err := b.run(ctx, "recall", []string{query, strconv.Itoa(limit), sessionID}, nil)
	if err != nil {
		return nil, err
	}
	var results []MemoryEntry
	if err := json.Unmarshal(out, &results); err != nil {
		return nil, newErr(Serialization, "Recall", err)
	}
	return results, nil
}

func (b *SyncBackend) Get(ctx context.Context, key string) (MemoryEntry, bool, error) {
	out, err := b.run(ctx, "get", []string{key}, nil)
	if err != nil {
		return MemoryEntry{}, false, err
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return MemoryEntry{}, false, nil
	}
	var e MemoryEntry
	if err := json.Unmarshal(out, &e); err != nil {
		return MemoryEntry{}, false, newErr(Serialization, "Get", err)
	}
	return e, true, nil
}

func (b *SyncBackend) List(ctx context.Context, category MemoryCategory, hasCategory bool, sessionID string) ([]MemoryEntry, error) {
	catArg := ""
	if hasCategory {
		catArg = category.String()
	}
	out, err := b.run(ctx, "list", []string{catArg, sessionID}, nil)
	if err != nil {
		return nil, err
	}
	var results []MemoryEntry
	if err := json.Unmarshal(out, &results); err != nil {
		return nil, newErr(Serialization, "List", err)
	}
	return results, nil
}

func (b *SyncBackend) Forget(ctx context.Context, key string) (bool, error) {
	out, err := b.run(ctx, "forget", []string{key}, nil)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

func (b *SyncBackend) Count(ctx context.Context) (int, error) {
	out, err := b.run(ctx, "count", nil, nil)
	if err != nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(out, &n); err != nil {
		return 0, newErr(Serialization, "Count", err)
	}
	return n, nil
}

func (b *SyncBackend) HealthCheck(ctx context.Context) bool {
	_, err := b.run(ctx, "health", nil, nil)
	return err == nil
}

func (b *SyncBackend) Close() error { return nil }
