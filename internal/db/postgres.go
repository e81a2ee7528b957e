package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"mcsr-analyzer/internal/mcsr"
)

// PostgresStore keeps matches in PostgreSQL through a pgx pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a new connection pool
func OpenPostgres(ctx context.Context, dbURL string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// MatchCount returns the number of stored matches
func (s *PostgresStore) MatchCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&count)
	return count, err
}

// CreateTables creates the matches table if it doesn't exist
func (s *PostgresStore) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL,
			match_type INTEGER NOT NULL DEFAULT 0,
			category TEXT,
			game_mode TEXT,
			forfeited BOOLEAN NOT NULL DEFAULT FALSE,
			winner_uuid TEXT,
			result_time BIGINT,
			season INTEGER,
			date BIGINT,
			seed_bastion TEXT,
			seed_overworld TEXT,
			players JSONB NOT NULL DEFAULT '[]',
			changes JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_username ON matches(username)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_seed ON matches(seed_bastion, seed_overworld)`,
	}

	for _, query := range queries {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// InsertMatch inserts a match if it doesn't exist
func (s *PostgresStore) InsertMatch(ctx context.Context, username string, m *mcsr.Match) (bool, error) {
	row, err := NewMatchRow(username, m)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO matches (
			id, username, match_type, category, game_mode, forfeited, winner_uuid, result_time,
			season, date, seed_bastion, seed_overworld, players, changes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`, row.ID, row.Username, row.MatchType, nullString(row.Category), nullString(row.GameMode), row.Forfeited,
		nullString(row.WinnerUUID), row.ResultTime, row.Season, row.Date,
		nullString(row.SeedBastion), nullString(row.SeedOverworld), row.Players, row.Changes)
	if err != nil {
		return false, fmt.Errorf("failed to insert match %d: %w", row.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Query runs an arbitrary statement and stringifies every value
func (s *PostgresStore) Query(ctx context.Context, query string) (*QueryResult, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &QueryResult{Columns: make([]string, len(fields))}
	for i, f := range fields {
		result.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
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
