package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const playersSchema = `
CREATE TABLE IF NOT EXISTS players (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL UNIQUE,
	score INTEGER NOT NULL DEFAULT 0
);`

const (
	insertPlayerQuery = `INSERT INTO players (id, name, score) VALUES (?, ?, ?)`
	findByNameQuery   = `SELECT id, name, score FROM players WHERE name = ?`
	existsByNameQuery = `SELECT EXISTS(SELECT 1 FROM players WHERE name = ?)`
	updateScoreQuery  = `UPDATE players SET score = ? WHERE name = ?`
)

// SQLitePlayerStore persists player records and scores in a single SQLite
// file. Scores outlive the session; a process restart loses only the live
// game, not the stored records.
type SQLitePlayerStore struct {
	db *sql.DB
}

// OpenPlayerStore opens (and if needed creates) the player database.
func OpenPlayerStore(path string) (*SQLitePlayerStore, error) {
	if path == "" {
		return nil, errors.New("player database path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open player db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping player db: %w", err)
	}

	if _, err := db.Exec(playersSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create players table: %w", err)
	}

	return &SQLitePlayerStore{db: db}, nil
}

func (s *SQLitePlayerStore) Close() error {
	return s.db.Close()
}

// FindPlayer returns the record for name, or nil when none exists.
func (s *SQLitePlayerStore) FindPlayer(ctx context.Context, name string) (*Player, error) {
	var p Player

	err := s.db.QueryRowContext(ctx, findByNameQuery, name).Scan(&p.ID, &p.Name, &p.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find player %q: %w", name, err)
	}

	return &p, nil
}

// InsertPlayer creates a fresh record with a zero score.
func (s *SQLitePlayerStore) InsertPlayer(ctx context.Context, name string) (*Player, error) {
	exists, err := s.ExistsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("insert player %q: %w", name, ErrPlayerExists)
	}

	p := &Player{ID: uuid.NewString(), Name: name, Score: 0}

	if _, err := s.db.ExecContext(ctx, insertPlayerQuery, p.ID, p.Name, p.Score); err != nil {
		return nil, fmt.Errorf("insert player %q: %w", name, err)
	}

	return p, nil
}

// UpdateScore sets the stored score for name and returns the updated record.
func (s *SQLitePlayerStore) UpdateScore(ctx context.Context, name string, score int) (*Player, error) {
	res, err := s.db.ExecContext(ctx, updateScoreQuery, score, name)
	if err != nil {
		return nil, fmt.Errorf("update score for %q: %w", name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update score for %q: %w", name, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("update score: no player named %q", name)
	}

	return s.FindPlayer(ctx, name)
}

// ExistsByName reports whether a record with this name exists.
func (s *SQLitePlayerStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool

	if err := s.db.QueryRowContext(ctx, existsByNameQuery, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check player %q: %w", name, err)
	}

	return exists, nil
}
