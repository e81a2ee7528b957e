package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"mcsr-analyzer/internal/mcsr"
)

// SQLStore is a database/sql store speaking the SQLite dialect.
// It backs both the local SQLite file and a remote Turso (libSQL) database.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a local SQLite database file
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer keeps the file lock simple
	db.SetMaxOpenConns(1)

	return newSQLStore(ctx, db)
}

// OpenTurso connects to a Turso database
func OpenTurso(ctx context.Context, url, authToken string) (*SQLStore, error) {
	if url == "" {
		return nil, fmt.Errorf("TURSO_DATABASE_URL not set")
	}
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}

	return newSQLStore(ctx, db)
}

func newSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// CreateTables creates the matches table if it doesn't exist
func (s *SQLStore) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			match_type INTEGER NOT NULL DEFAULT 0,
			category TEXT,
			game_mode TEXT,
			forfeited INTEGER NOT NULL DEFAULT 0,
			winner_uuid TEXT,
			result_time INTEGER,
			season INTEGER,
			date INTEGER,
			seed_bastion TEXT,
			seed_overworld TEXT,
			players TEXT NOT NULL DEFAULT '[]',
			changes TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_username ON matches(username)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_seed ON matches(seed_bastion, seed_overworld)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// InsertMatch inserts a match unless its id is already stored
func (s *SQLStore) InsertMatch(ctx context.Context, username string, m *mcsr.Match) (bool, error) {
	row, err := NewMatchRow(username, m)
	if err != nil {
		return false, err
	}

	forfeited := 0
	if row.Forfeited {
		forfeited = 1
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO matches (
			id, username, match_type, category, game_mode, forfeited, winner_uuid, result_time,
			season, date, seed_bastion, seed_overworld, players, changes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.ID, row.Username, row.MatchType, nullString(row.Category), nullString(row.GameMode), forfeited,
		nullString(row.WinnerUUID), row.ResultTime, row.Season, row.Date,
		nullString(row.SeedBastion), nullString(row.SeedOverworld), string(row.Players), string(row.Changes))
	if err != nil {
		return false, fmt.Errorf("failed to insert match %d: %w", row.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MatchCount returns the number of stored matches
func (s *SQLStore) MatchCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&count)
	return count, err
}

// Query runs an arbitrary statement and stringifies every value
func (s *SQLStore) Query(ctx context.Context, query string) (*QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}
