package store

import "time"

// SessionRow mirrors one row of the sessions table.
type SessionRow struct {
	ID              string
	Title           string
	ProjectHash     string
	ProjectPath     string
	AgentID         string
	ModelID         string
	ParentSessionID string
	Branch          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	TotalCost       float64
	TotalTokens     int64
	TurnCount       int
	TagsJSON        string
	MetadataJSON    string
}

// ToolCallRow is the JSON shape stored inside a turn's tool_calls column.
type ToolCallRow struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Result string `json:"result"`
	Error  bool   `json:"error"`
}

// TurnRow mirrors one row of the turns table.
type TurnRow struct {
	SessionID    string
	TurnNumber   int
	Role         string
	Content      string
	ToolCallsRaw string
	AgentID      string
	ModelID      string
	CreatedAt    time.Time
}

// EmbeddingRow mirrors one row of the vectors.db embeddings table (§3.6).
type EmbeddingRow struct {
	ID           string
	Vector       []byte
	Text         string
	SourceType   string
	SourceID     string
	Dimensions   int
	MetadataJSON string
	CreatedAt    time.Time
}

// KnowledgeEdge mirrors one row of the knowledge_graph table, used by the
// graph retriever's bounded adjacency walk.
type KnowledgeEdge struct {
	EntityA   string
	Relation  string
	EntityB   string
	Weight    float64
	UpdatedAt time.Time
}

// NidraStateRow mirrors the singleton nidra_state row. Instants are stored
// as Unix-millisecond integers.
type NidraStateRow struct {
	CurrentState           string
	LastStateChangeMillis  int64
	LastHeartbeatMillis    int64
	LastConsolidationStart *int64
	LastConsolidationEnd   *int64
	ConsolidationPhase     string
	ConsolidationProgress  float64
	LastMonthlyReport      string
	LastYearlyReport       string
	PendingBackfillJSON    string
	UpdatedAtMillis        int64
}

// RegistryEventRow mirrors one row of the registry_events table (§6.4).
type RegistryEventRow struct {
	ID         int64
	ServerID   string
	EventType  string
	DetailJSON string
	CreatedAt  time.Time
}
