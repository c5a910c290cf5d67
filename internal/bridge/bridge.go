// Package bridge implements Component J: the single orchestrator that
// wires session storage, recall indexing, and the sleep scheduler together
// per agent session (§4.9).
package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cogcore/internal/config"
	"cogcore/internal/logging"
	"cogcore/internal/nidra"
	"cogcore/internal/recall"
	"cogcore/internal/session"
)

// Bridge wires Components B, C, and D together behind the small operation
// set a generator loop actually needs.
type Bridge struct {
	home     string
	sessions *session.Store
	hybrid   *recall.Engine
	vector   *recall.VectorIndex
	graph    *recall.GraphRetriever
	dreamer  *nidra.Daemon
	smaran   *Smaran
	cfg      config.BridgeConfig

	mu          sync.Mutex
	turnCounter map[string]int
}

// New wires a Bridge over already-constructed component instances. Any of
// vector/graph/dreamer may be nil; indexing and sleep-touch become no-ops
// for the missing piece.
func New(home string, sessions *session.Store, hybrid *recall.Engine, vector *recall.VectorIndex, graph *recall.GraphRetriever, dreamer *nidra.Daemon, cfg config.BridgeConfig) *Bridge {
	return &Bridge{
		home:        home,
		sessions:    sessions,
		hybrid:      hybrid,
		vector:      vector,
		graph:       graph,
		dreamer:     dreamer,
		smaran:      NewSmaran(home),
		cfg:         cfg,
		turnCounter: make(map[string]int),
	}
}

// InitSession creates a session and resets its turn counter.
func (b *Bridge) InitSession(ctx context.Context, project, agent, model string) (string, error) {
	sess, err := b.sessions.CreateSession(ctx, project, agent, model, "", "")
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.turnCounter[sess.Meta.ID] = 0
	b.mu.Unlock()
	if b.dreamer != nil {
		b.dreamer.Touch(false)
	}
	return sess.Meta.ID, nil
}

func (b *Bridge) nextTurnNumber(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.turnCounter[sessionID] + 1
	b.turnCounter[sessionID] = n
	return n
}

// RecordUserTurn increments the turn counter and appends a user turn.
func (b *Bridge) RecordUserTurn(ctx context.Context, sessionID, project, text string) error {
	turn := session.Turn{
		TurnNumber: b.nextTurnNumber(sessionID),
		Role:       session.RoleUser,
		Content:    text,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := b.sessions.AddTurn(ctx, sessionID, project, turn); err != nil {
		return err
	}
	if b.dreamer != nil {
		b.dreamer.Touch(true)
	}
	return nil
}

// RecordAssistantTurn appends an assistant turn and fires off asynchronous
// indexing into vector, graph, and signal streams. Background indexing
// errors are logged, never surfaced to the caller (§4.9).
func (b *Bridge) RecordAssistantTurn(ctx context.Context, sessionID, project, text string, toolCalls []session.ToolCall) error {
	turn := session.Turn{
		TurnNumber: b.nextTurnNumber(sessionID),
		Role:       session.RoleAssistant,
		Content:    text,
		ToolCalls:  toolCalls,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := b.sessions.AddTurn(ctx, sessionID, project, turn); err != nil {
		return err
	}
	if b.dreamer != nil {
		b.dreamer.Touch(false)
	}

	go b.indexAssistantTurnAsync(sessionID, text)
	return nil
}

// indexAssistantTurnAsync runs vector indexing, graph indexing, and signal
// stream appends concurrently in a detached goroutine. A fresh context is
// used since the caller's request context may already be cancelled by the
// time this runs.
func (b *Bridge) indexAssistantTurnAsync(sessionID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if b.vector != nil {
		g.Go(func() error {
			return b.vector.Index(gctx, "session", sessionID, text)
		})
	}
	if b.graph != nil {
		g.Go(func() error {
			return indexGraphEntities(gctx, b.graph, sessionID, text)
		})
	}
	g.Go(func() error {
		return appendSignalStream(b.home, "flow", text)
	})

	if err := g.Wait(); err != nil {
		logging.BridgeDebug("background indexing failed for session %s: %v", sessionID, err)
	}
}

// SearchMemory proxies to the hybrid recall engine, giving callers outside
// the session/turn-recording path (e.g. a "what do we know about X"
// request) access to the same fused lexical/vector/graph search that
// indexing feeds.
func (b *Bridge) SearchMemory(ctx context.Context, query string, topK int) ([]recall.HybridResult, error) {
	if b.hybrid == nil {
		return nil, nil
	}
	return b.hybrid.HybridSearch(ctx, query, topK)
}

// CreateSubSession creates a session carrying parentID, for delegated
// sub-agent work.
func (b *Bridge) CreateSubSession(ctx context.Context, parentID, purpose, agent, model, project string) (string, error) {
	sess, err := b.sessions.CreateSession(ctx, project, agent, model, parentID, purpose)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.turnCounter[sess.Meta.ID] = 0
	b.mu.Unlock()
	logging.Bridge("created sub-session %s under parent %s", sess.Meta.ID, parentID)
	return sess.Meta.ID, nil
}

// BubbleUpFindings reads the sub-session's last assistant turn, truncates
// it at SubAgentFindingMaxChars, and appends it into project-scoped memory
// (§4.9).
func (b *Bridge) BubbleUpFindings(ctx context.Context, subID, parentID, project string) error {
	sub, err := b.sessions.LoadSession(ctx, subID, project)
	if err != nil {
		return err
	}

	var lastAssistant *session.Turn
	for i := len(sub.Turns) - 1; i >= 0; i-- {
		if sub.Turns[i].Role == session.RoleAssistant {
			lastAssistant = &sub.Turns[i]
			break
		}
	}
	if lastAssistant == nil {
		return nil
	}

	max := b.cfg.SubAgentFindingMaxChars
	if max <= 0 {
		max = 500
	}
	summary := lastAssistant.Content
	if len(summary) > max {
		summary = summary[:max]
	}

	entry := fmt.Sprintf("**Sub-agent finding** (%s, %s)\n\n%s", subID, parentID, summary)
	return appendMemoryScope(b.home, scopeFilenameForProject(project), entry)
}

// indexGraphEntities extracts a small set of seed tokens from text and
// links them to the session as a co-occurrence edge in the knowledge
// graph, mirroring how the hybrid engine later seeds graph walks from
// query tokens.
func indexGraphEntities(ctx context.Context, g *recall.GraphRetriever, sessionID, text string) error {
	entities := extractEntities(text)
	for _, e := range entities {
		if err := g.LinkToSession(ctx, sessionID, e); err != nil {
			return err
		}
	}
	return nil
}

// extractEntities is a deliberately small heuristic: capitalized, multi-
// character words are treated as candidate entities, capped to keep graph
// writes bounded per turn.
func extractEntities(text string) []string {
	const maxEntities = 8
	var out []string
	seen := map[string]bool{}
	for _, word := range strings.Fields(text) {
		trimmed := strings.Trim(word, ".,!?;:()[]{}\"'")
		if len(trimmed) < 3 || !startsUpper(trimmed) {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
		if len(out) >= maxEntities {
			break
		}
	}
	return out
}

func startsUpper(s string) bool {
	r := rune(s[0])
	return r >= 'A' && r <= 'Z'
}
