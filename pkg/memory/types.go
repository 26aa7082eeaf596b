package memory

import (
	"encoding/json"
	"time"
)

// MemoryCategory classifies a stored entry. The zero value renders as
// "core" (see String) but does not compare equal to CategoryCore.
type MemoryCategory struct {
	variant string
	custom  string
}

var (
	CategoryCore         = MemoryCategory{variant: "core"}
	CategoryDaily        = MemoryCategory{variant: "daily"}
	CategoryConversation = MemoryCategory{variant: "conversation"}
	CategoryArchive      = MemoryCategory{variant: "archive"}
)

// CustomCategory builds a named custom category. name must be non-empty.
func CustomCategory(name string) MemoryCategory {
	return MemoryCategory{variant: "custom", custom: name}
}

// String renders the category as its stable wire name.
func (c MemoryCategory) String() string {
	if c.variant == "custom" {
		return c.custom
	}
	if c.variant == "" {
		return CategoryCore.variant
	}
	return c.variant
}

// IsCustom reports whether this category is a user-defined name.
func (c MemoryCategory) IsCustom() bool { return c.variant == "custom" }

// MarshalJSON encodes the category as its stable wire name, since its
// fields are unexported and would otherwise marshal to "{}".
func (c MemoryCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON reconstructs the category from its wire name.
func (c *MemoryCategory) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*c = ParseCategory(name)
	return nil
}

// ParseCategory reconstructs a MemoryCategory from its wire name.
func ParseCategory(name string) MemoryCategory {
	switch name {
	case "", "core":
		return CategoryCore
	case "daily":
		return CategoryDaily
	case "conversation":
		return CategoryConversation
	case "archive":
		return CategoryArchive
	default:
		return CustomCategory(name)
	}
}

// MemoryEntry is one row of the primary backend.
type MemoryEntry struct {
	ID        string
	Key       string
	Content   string
	Category  MemoryCategory
	Timestamp time.Time
	SessionID string // empty means not session-scoped
	Score     float64
	HasScore  bool
}

// MessageRole constrains session message entries.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

// MessageEntry is one append-only row of a session's chat history.
type MessageEntry struct {
	ID        string
	SessionID string
	Role      MessageRole
	Content   string
	Timestamp time.Time
	AutoSaved bool
}

// RetrievalCandidate is one scored result produced during a search,
// before or after RRF fusion.
type RetrievalCandidate struct {
	ID          string
	Key         string
	Content     string
	Snippet     string
	Category    MemoryCategory
	KeywordRank int // 1-based; 0 means unset
	VectorScore float64
	HasVector   bool
	FinalScore  float64
	Source      string
	SourcePath  string
	LineStart   int
	LineEnd     int
}

// VectorResult is a transient nearest-neighbor hit.
type VectorResult struct {
	Key   string
	Score float64
}

// Capabilities describes what a primary backend implementation supports.
type Capabilities struct {
	SupportsSessionStore bool
	SupportsKeywordRank  bool
	SupportsTransactions bool
	SupportsOutbox       bool
}
