// Package session implements Component B: Markdown-on-disk session storage
// with a SQLite index as a rebuildable mirror. The Markdown file under
// <home>/sessions/<project-hash>/<session-id>.md is always the source of
// truth; the index exists purely to make search and listing fast.
package session

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Priority-free role enumeration for a turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ToolCall is one tool invocation recorded inside a turn.
type ToolCall struct {
	Name   string `yaml:"name" json:"name"`
	Args   string `yaml:"args" json:"args"`
	Result string `yaml:"result" json:"result"`
	Error  bool   `yaml:"error" json:"error"`
}

// Turn is one append-only entry in a session's transcript.
type Turn struct {
	TurnNumber int        `yaml:"-"`
	Role       string     `yaml:"role"`
	Content    string     `yaml:"-"`
	ToolCalls  []ToolCall `yaml:"tool_calls,omitempty"`
	AgentID    string     `yaml:"agent_id,omitempty"`
	ModelID    string     `yaml:"model_id,omitempty"`
	CreatedAt  int64      `yaml:"created_at"`
}

// Meta is the frontmatter-backed session metadata (§3.1).
type Meta struct {
	ID              string            `yaml:"id"`
	Title           string            `yaml:"title"`
	ProjectHash     string            `yaml:"project_hash"`
	ProjectPath     string            `yaml:"project_path"`
	AgentID         string            `yaml:"agent_id"`
	ModelID         string            `yaml:"model_id"`
	ParentSessionID string            `yaml:"parent_session_id,omitempty"`
	Branch          string            `yaml:"branch,omitempty"`
	CreatedAt       int64             `yaml:"created_at"`
	UpdatedAt       int64             `yaml:"updated_at"`
	TotalCost       float64           `yaml:"total_cost"`
	TotalTokens     int64             `yaml:"total_tokens"`
	TurnCount       int               `yaml:"turn_count"`
	Tags            []string          `yaml:"tags,omitempty"`
	Metadata        map[string]string `yaml:"metadata,omitempty"`
}

// Session is a fully materialized session: metadata plus its turns.
type Session struct {
	Meta  Meta
	Turns []Turn
}

// NewSessionID mints a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ProjectHash is the pure function from project path to the 12-hex scope key
// (§3.1's invariant: identical paths always hash identically, distinct paths
// collide only as an accepted hash collision).
func ProjectHash(projectPath string) string {
	sum := sha256.Sum256([]byte(projectPath))
	return hex.EncodeToString(sum[:])[:12]
}
