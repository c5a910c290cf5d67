package session

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cogcore/internal/errors"
	"cogcore/internal/logging"
	"cogcore/internal/store"
)

// Store is Component B: Markdown files are the source of truth, the SQLite
// index (store.Store) is a rebuildable mirror (§4.1).
type Store struct {
	home  string
	index *store.Store
}

// New wraps an opened index store with the Markdown filesystem layer.
func New(home string, index *store.Store) *Store {
	return &Store{home: home, index: index}
}

func (s *Store) sessionDir(projectHash string) string {
	return filepath.Join(s.home, "sessions", projectHash)
}

func (s *Store) sessionPath(projectHash, id string) string {
	return filepath.Join(s.sessionDir(projectHash), id+".md")
}

// CreateSession generates an id, writes the initial frontmatter+empty-body
// file, and upserts the index row. On write failure the session is
// discarded entirely (§4.1).
func (s *Store) CreateSession(ctx context.Context, projectPath, agentID, modelID, parentSessionID, title string) (Session, error) {
	timer := logging.StartTimer(logging.CategorySession, "CreateSession")
	defer timer.Stop()

	now := time.Now().UTC()
	meta := Meta{
		ID:              NewSessionID(),
		Title:           title,
		ProjectHash:     ProjectHash(projectPath),
		ProjectPath:     projectPath,
		AgentID:         agentID,
		ModelID:         modelID,
		ParentSessionID: parentSessionID,
		CreatedAt:       now.UnixMilli(),
		UpdatedAt:       now.UnixMilli(),
	}

	dir := s.sessionDir(meta.ProjectHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Session{}, errors.IOError{Op: "create session dir", Err: err}
	}

	doc, err := RenderFrontmatter(meta)
	if err != nil {
		return Session{}, err
	}
	path := s.sessionPath(meta.ProjectHash, meta.ID)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return Session{}, errors.IOError{Op: "write session file", Err: err}
	}

	if err := s.index.UpsertSession(ctx, toIndexRow(meta)); err != nil {
		logging.SessionDebug("index upsert failed for new session %s: %v", meta.ID, err)
	}

	logging.Session("created session %s for project %s", meta.ID, meta.ProjectHash)
	return Session{Meta: meta}, nil
}

// LoadSession reads the Markdown file and reconstructs the session. Returns
// SessionNotFound whenever the Markdown file is missing, whether or not an
// index row exists.
func (s *Store) LoadSession(ctx context.Context, id, projectPath string) (Session, error) {
	projectHash := ProjectHash(projectPath)
	path := s.sessionPath(projectHash, id)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Session{}, errors.IOError{Op: "read session file", Err: err}
		}
		// File missing: the index row (if any) cannot substitute for the
		// Markdown source of truth, but its absence confirms the session
		// never existed rather than being merely unwritten-to-disk.
		if _, idxErr := s.index.GetSession(ctx, id); idxErr != nil {
			return Session{}, errors.SessionNotFound{SessionID: id}
		}
		return Session{}, errors.SessionNotFound{SessionID: id}
	}

	meta, turns, err := Parse(string(data))
	if err != nil {
		return Session{}, err
	}
	// The frontmatter is written once at creation; the turn count comes from
	// the turns actually present in the file.
	meta.TurnCount = len(turns)
	return Session{Meta: meta, Turns: turns}, nil
}

// AddTurn appends to the Markdown file (the authority on replay) and then
// mirrors into the index. A write with an already-stored (session,
// turn-number) is a no-op per §3.2.
func (s *Store) AddTurn(ctx context.Context, sessionID, projectPath string, turn Turn) error {
	timer := logging.StartTimer(logging.CategorySession, "AddTurn")
	defer timer.Stop()

	projectHash := ProjectHash(projectPath)
	sess, err := s.LoadSession(ctx, sessionID, projectPath)
	if err != nil {
		return err
	}
	for _, existing := range sess.Turns {
		if existing.TurnNumber == turn.TurnNumber {
			return nil // idempotent no-op, §3.2
		}
	}

	path := s.sessionPath(projectHash, sessionID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.IOError{Op: "open session file for append", Err: err}
	}
	if _, err := f.WriteString(RenderTurn(turn)); err != nil {
		f.Close()
		return errors.IOError{Op: "append turn", Err: err}
	}
	if err := f.Close(); err != nil {
		return errors.IOError{Op: "close session file", Err: err}
	}

	now := time.Now().UTC()
	sess.Meta.TurnCount++
	sess.Meta.UpdatedAt = now.UnixMilli()

	if err := s.index.UpsertTurn(ctx, store.TurnRow{
		SessionID:    sessionID,
		TurnNumber:   turn.TurnNumber,
		Role:         turn.Role,
		Content:      turn.Content,
		ToolCallsRaw: "[]",
		AgentID:      turn.AgentID,
		ModelID:      turn.ModelID,
		CreatedAt:    time.UnixMilli(turn.CreatedAt).UTC(),
	}); err != nil {
		logging.SessionDebug("index upsert failed for turn %s/%d: %v", sessionID, turn.TurnNumber, err)
	}
	if err := s.index.UpsertSession(ctx, toIndexRow(sess.Meta)); err != nil {
		logging.SessionDebug("index session bump failed for %s: %v", sessionID, err)
	}
	return nil
}

// ListSessions returns sessions ordered by updated-at descending, using the
// index when available and falling back to a directory scan (§4.1).
func (s *Store) ListSessions(ctx context.Context, projectPath string) ([]Meta, error) {
	projectHash := ""
	if projectPath != "" {
		projectHash = ProjectHash(projectPath)
	}

	rows, err := s.index.ListSessions(ctx, projectHash)
	if err == nil {
		metas := make([]Meta, 0, len(rows))
		for _, r := range rows {
			metas = append(metas, fromIndexRow(r))
		}
		return metas, nil
	}

	logging.SessionDebug("index list failed, falling back to directory scan: %v", err)
	return s.scanSessionsFromDisk(projectHash)
}

func (s *Store) scanSessionsFromDisk(projectHash string) ([]Meta, error) {
	root := filepath.Join(s.home, "sessions")
	var dirs []string
	if projectHash != "" {
		dirs = []string{filepath.Join(root, projectHash)}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, errors.IOError{Op: "scan sessions root", Err: err}
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}

	var metas []Meta
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			meta, _, err := Parse(string(data))
			if err != nil {
				continue
			}
			metas = append(metas, meta)
		}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].UpdatedAt > metas[j].UpdatedAt })
	return metas, nil
}

// BranchSession clones meta, records a parent reference, and leaves turns
// empty. Tags and metadata carry over to the branch (supplemented behavior).
func (s *Store) BranchSession(ctx context.Context, sourceID, projectPath, name string) (Session, error) {
	source, err := s.LoadSession(ctx, sourceID, projectPath)
	if err != nil {
		return Session{}, err
	}

	now := time.Now().UTC()
	meta := Meta{
		ID:              NewSessionID(),
		Title:           source.Meta.Title,
		ProjectHash:     source.Meta.ProjectHash,
		ProjectPath:     source.Meta.ProjectPath,
		AgentID:         source.Meta.AgentID,
		ModelID:         source.Meta.ModelID,
		ParentSessionID: sourceID,
		Branch:          name,
		CreatedAt:       now.UnixMilli(),
		UpdatedAt:       now.UnixMilli(),
		Tags:            append([]string(nil), source.Meta.Tags...),
		Metadata:        copyMetadata(source.Meta.Metadata),
	}

	dir := s.sessionDir(meta.ProjectHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Session{}, errors.IOError{Op: "create branch session dir", Err: err}
	}
	doc, err := RenderFrontmatter(meta)
	if err != nil {
		return Session{}, err
	}
	path := s.sessionPath(meta.ProjectHash, meta.ID)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return Session{}, errors.IOError{Op: "write branch session file", Err: err}
	}
	if err := s.index.UpsertSession(ctx, toIndexRow(meta)); err != nil {
		logging.SessionDebug("index upsert failed for branch %s: %v", meta.ID, err)
	}

	logging.Session("branched session %s from %s (branch=%s)", meta.ID, sourceID, name)
	return Session{Meta: meta}, nil
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toIndexRow(m Meta) store.SessionRow {
	return store.SessionRow{
		ID:              m.ID,
		Title:           m.Title,
		ProjectHash:     m.ProjectHash,
		ProjectPath:     m.ProjectPath,
		AgentID:         m.AgentID,
		ModelID:         m.ModelID,
		ParentSessionID: m.ParentSessionID,
		Branch:          m.Branch,
		CreatedAt:       time.UnixMilli(m.CreatedAt).UTC(),
		UpdatedAt:       time.UnixMilli(m.UpdatedAt).UTC(),
		TotalCost:       m.TotalCost,
		TotalTokens:     m.TotalTokens,
		TurnCount:       m.TurnCount,
		TagsJSON:        joinTags(m.Tags),
		MetadataJSON:    "{}",
	}
}

func fromIndexRow(r store.SessionRow) Meta {
	return Meta{
		ID:              r.ID,
		Title:           r.Title,
		ProjectHash:     r.ProjectHash,
		ProjectPath:     r.ProjectPath,
		AgentID:         r.AgentID,
		ModelID:         r.ModelID,
		ParentSessionID: r.ParentSessionID,
		Branch:          r.Branch,
		CreatedAt:       r.CreatedAt.UnixMilli(),
		UpdatedAt:       r.UpdatedAt.UnixMilli(),
		TotalCost:       r.TotalCost,
		TotalTokens:     r.TotalTokens,
		TurnCount:       r.TurnCount,
	}
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	return `["` + strings.Join(tags, `","`) + `"]`
}
