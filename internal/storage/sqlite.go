// Package storage provides SQLite-based persistence for finished matches and
// per-player win/loss records. It is the server's match recorder.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/arena/internal/multiplayer"
)

// Store manages the SQLite database connection for match persistence.
type Store struct {
	db *sql.DB
}

// PlayerStats is the aggregated record of one user.
type PlayerStats struct {
	UserID     multiplayer.UserID
	Wins       int
	Losses     int
	Forfeits   int // Losses by forfeit
	LastPlayed time.Time
}

// Games returns the number of finished matches.
func (p PlayerStats) Games() int {
	return p.Wins + p.Losses
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// Serialize writers; sqlite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL UNIQUE,
			score_right INTEGER NOT NULL DEFAULT 0,
			score_left INTEGER NOT NULL DEFAULT 0,
			winner_id TEXT NOT NULL,
			loser_id TEXT NOT NULL,
			end_reason TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			ended_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_winner ON matches(winner_id);
		CREATE INDEX IF NOT EXISTS idx_matches_loser ON matches(loser_id);
		CREATE INDEX IF NOT EXISTS idx_matches_ended_at ON matches(ended_at DESC);

		CREATE TABLE IF NOT EXISTS player_stats (
			user_id TEXT PRIMARY KEY,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			forfeits INTEGER NOT NULL DEFAULT 0,
			last_played INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_player_stats_rank ON player_stats(wins DESC, losses ASC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordMatch implements multiplayer.MatchRecorder. The match row and both
// players' stats are written in one transaction. Recording the same match
// ID twice returns the stored record without counting it again, so callers
// may retry freely.
func (s *Store) RecordMatch(ctx context.Context, result multiplayer.MatchResult) (multiplayer.MatchRecord, error) {
	endedAt := result.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return multiplayer.MatchRecord{}, fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`INSERT INTO matches
		 (match_id, score_right, score_left, winner_id, loser_id, end_reason, duration_ms, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(match_id) DO NOTHING`,
		string(result.MatchID),
		result.Score[0],
		result.Score[1],
		string(result.WinnerID),
		string(result.LoserID),
		string(result.Reason),
		result.Duration.Milliseconds(),
		endedAt.UnixMilli(),
	)
	if err != nil {
		return multiplayer.MatchRecord{}, fmt.Errorf("storage: cannot save match: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return multiplayer.MatchRecord{}, fmt.Errorf("storage: cannot read affected rows: %w", err)
	}

	if inserted > 0 {
		forfeit := 0
		if result.Reason == multiplayer.MatchEndReasonForfeit {
			forfeit = 1
		}
		if err := upsertStats(ctx, tx, result.WinnerID, 1, 0, 0, endedAt); err != nil {
			return multiplayer.MatchRecord{}, err
		}
		if err := upsertStats(ctx, tx, result.LoserID, 0, 1, forfeit, endedAt); err != nil {
			return multiplayer.MatchRecord{}, err
		}
	}

	record, err := scanMatch(tx.QueryRowContext(ctx, selectMatch+` WHERE match_id = ?`, string(result.MatchID)))
	if err != nil {
		return multiplayer.MatchRecord{}, fmt.Errorf("storage: cannot read back match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return multiplayer.MatchRecord{}, fmt.Errorf("storage: cannot commit match: %w", err)
	}
	return record, nil
}

func upsertStats(ctx context.Context, tx *sql.Tx, user multiplayer.UserID, wins, losses, forfeits int, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO player_stats (user_id, wins, losses, forfeits, last_played)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   wins = wins + excluded.wins,
		   losses = losses + excluded.losses,
		   forfeits = forfeits + excluded.forfeits,
		   last_played = MAX(last_played, excluded.last_played)`,
		string(user), wins, losses, forfeits, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot update stats for %s: %w", user, err)
	}
	return nil
}

// Ensure Store implements MatchRecorder
var _ multiplayer.MatchRecorder = (*Store)(nil)

const selectMatch = `SELECT id, match_id, score_right, score_left, winner_id, loser_id,
		        end_reason, duration_ms, ended_at
		 FROM matches`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (multiplayer.MatchRecord, error) {
	var (
		rec        multiplayer.MatchRecord
		matchID    string
		winner     string
		loser      string
		reason     string
		durationMs int64
		endedAtMs  int64
	)
	if err := row.Scan(
		&rec.ID,
		&matchID,
		&rec.Score[0],
		&rec.Score[1],
		&winner,
		&loser,
		&reason,
		&durationMs,
		&endedAtMs,
	); err != nil {
		return multiplayer.MatchRecord{}, err
	}
	rec.MatchID = multiplayer.MatchID(matchID)
	rec.WinnerID = multiplayer.UserID(winner)
	rec.LoserID = multiplayer.UserID(loser)
	rec.Reason = multiplayer.MatchEndReason(reason)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	rec.EndedAt = time.UnixMilli(endedAtMs)
	return rec, nil
}

// MatchByID retrieves a match by its match ID. Returns nil if not found.
func (s *Store) MatchByID(ctx context.Context, matchID multiplayer.MatchID) (*multiplayer.MatchRecord, error) {
	rec, err := scanMatch(s.db.QueryRowContext(ctx, selectMatch+` WHERE match_id = ?`, string(matchID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query match: %w", err)
	}
	return &rec, nil
}

// RecentMatches retrieves the most recent matches, newest first.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]multiplayer.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryMatches(ctx, selectMatch+` ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
}

// PlayerHistory retrieves matches a user won or lost, newest first.
func (s *Store) PlayerHistory(ctx context.Context, user multiplayer.UserID, limit int) ([]multiplayer.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryMatches(ctx,
		selectMatch+` WHERE winner_id = ? OR loser_id = ? ORDER BY ended_at DESC, id DESC LIMIT ?`,
		string(user), string(user), limit,
	)
}

func (s *Store) queryMatches(ctx context.Context, query string, args ...any) ([]multiplayer.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query matches: %w", err)
	}
	defer rows.Close()

	var records []multiplayer.MatchRecord
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return records, nil
}

// Leaderboard returns players ordered by wins, then fewest losses.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]PlayerStats, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, wins, losses, forfeits, last_played
		 FROM player_stats
		 ORDER BY wins DESC, losses ASC, user_id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query leaderboard: %w", err)
	}
	defer rows.Close()

	var stats []PlayerStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan stats row: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return stats, nil
}

// Stats returns the record of one user. Unknown users get a zero record.
func (s *Store) Stats(ctx context.Context, user multiplayer.UserID) (PlayerStats, error) {
	st, err := scanStats(s.db.QueryRowContext(ctx,
		`SELECT user_id, wins, losses, forfeits, last_played FROM player_stats WHERE user_id = ?`,
		string(user),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return PlayerStats{UserID: user}, nil
	}
	if err != nil {
		return PlayerStats{}, fmt.Errorf("storage: cannot query stats: %w", err)
	}
	return st, nil
}

func scanStats(row rowScanner) (PlayerStats, error) {
	var (
		st         PlayerStats
		user       string
		lastPlayed int64
	)
	if err := row.Scan(&user, &st.Wins, &st.Losses, &st.Forfeits, &lastPlayed); err != nil {
		return PlayerStats{}, err
	}
	st.UserID = multiplayer.UserID(user)
	if lastPlayed > 0 {
		st.LastPlayed = time.UnixMilli(lastPlayed)
	}
	return st, nil
}
