// Package store provides Component A: the persistent KV/FTS/vector substrate
// backing sessions, turns, vector embeddings, and the Nidra daemon's
// singleton state row (§3.4, §3.6, §6.1).
//
// Three separate SQLite files are opened, matching §6.1's filesystem layout:
// sessions.db (sessions + turns + turns_fts mirror index), vectors.db (the
// embeddings table), and agent.db (the single-row nidra_state table). The
// first two use the CGO mattn/go-sqlite3 driver so FTS5 and the sqlite-vec
// extension are available; agent.db uses the pure-Go modernc.org/sqlite
// driver so the daemon's own liveness bookkeeping never requires CGO.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"cogcore/internal/logging"
)

// Store bundles the three SQLite handles that make up Component A.
type Store struct {
	mu sync.RWMutex

	Sessions *sql.DB // sessions.db: sessions, turns, turns_fts
	Vectors  *sql.DB // vectors.db: embeddings
	Agent    *sql.DB // agent.db: nidra_state

	home string
}

// Open opens (creating if necessary) all three database files under home and
// runs migrations on each.
func Open(ctx context.Context, home string, sessionsPath, vectorsPath, agentPath string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	sessionsDB, err := sql.Open("sqlite3", dsn(filepath.Join(home, sessionsPath)))
	if err != nil {
		return nil, fmt.Errorf("store: open sessions db: %w", err)
	}
	vectorsDB, err := sql.Open("sqlite3", dsn(filepath.Join(home, vectorsPath)))
	if err != nil {
		sessionsDB.Close()
		return nil, fmt.Errorf("store: open vectors db: %w", err)
	}
	agentDB, err := sql.Open("sqlite", filepath.Join(home, agentPath))
	if err != nil {
		sessionsDB.Close()
		vectorsDB.Close()
		return nil, fmt.Errorf("store: open agent db: %w", err)
	}

	s := &Store{Sessions: sessionsDB, Vectors: vectorsDB, Agent: agentDB, home: home}

	if err := migrateSessionsDB(ctx, sessionsDB); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: migrate sessions db: %w", err)
	}
	if err := migrateVectorsDB(ctx, vectorsDB); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: migrate vectors db: %w", err)
	}
	if err := migrateAgentDB(ctx, agentDB); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: migrate agent db: %w", err)
	}

	logging.Store("store opened: sessions=%s vectors=%s agent=%s", sessionsPath, vectorsPath, agentPath)
	return s, nil
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
}

// Close closes every open handle, carrying on past a failed close, and
// returns the first error encountered (nil if all closed cleanly).
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, db := range []*sql.DB{s.Sessions, s.Vectors, s.Agent} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Home returns the root directory this store was opened under.
func (s *Store) Home() string { return s.home }
