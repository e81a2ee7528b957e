package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	json "github.com/goccy/go-json"

	"mcsr-analyzer/internal/mcsr"
)

// Store is the relational persistence adapter. Inserts are insert-or-ignore on match id.
type Store interface {
	// CreateTables creates the schema if it doesn't exist
	CreateTables(ctx context.Context) error
	// InsertMatch stores a match for username; added is false when the id already exists
	InsertMatch(ctx context.Context, username string, m *mcsr.Match) (added bool, err error)
	// MatchCount returns the number of stored matches
	MatchCount(ctx context.Context) (int, error)
	// Query runs an ad-hoc SQL statement and returns every row as text
	Query(ctx context.Context, query string) (*QueryResult, error)
	Close() error
}

// ErrMissingID is returned for records that cannot be keyed
var ErrMissingID = errors.New("match has no id")

// QueryResult is a fully materialized ad-hoc query result
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

// MatchRow is the flattened column set stored for one match
type MatchRow struct {
	ID            int64
	Username      string
	MatchType     int
	Category      string
	GameMode      string
	Forfeited     bool
	WinnerUUID    string
	ResultTime    int64
	Season        int
	Date          int64
	SeedBastion   string
	SeedOverworld string
	Players       []byte // JSON array
	Changes       []byte // JSON array
}

// NewMatchRow flattens a match into its table row
func NewMatchRow(username string, m *mcsr.Match) (*MatchRow, error) {
	if !m.HasID() {
		return nil, ErrMissingID
	}

	players, err := json.Marshal(nonNil(m.Players))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal players: %w", err)
	}
	changes, err := json.Marshal(nonNil(m.Changes))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal changes: %w", err)
	}

	row := &MatchRow{
		ID:        *m.ID,
		Username:  username,
		MatchType: m.Type,
		Category:  m.Category,
		GameMode:  m.GameMode,
		Forfeited: m.Forfeited,
		Season:    m.Season,
		Date:      m.Date,
		Players:   players,
		Changes:   changes,
	}
	if m.Result != nil {
		row.WinnerUUID = m.Result.UUID
		row.ResultTime = m.Result.Time
	}
	if m.Seed != nil {
		row.SeedBastion = m.Seed.Bastion
		row.SeedOverworld = m.Seed.Overworld
	}
	return row, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// InsertMatches inserts every match for username and returns how many rows were actually added.
// Records without an id are skipped.
func InsertMatches(ctx context.Context, s Store, username string, matches []mcsr.Match) (int, error) {
	added := 0
	for i := range matches {
		ok, err := s.InsertMatch(ctx, username, &matches[i])
		if errors.Is(err, ErrMissingID) {
			log.Printf("[Store] Skipping match without id for %s", username)
			continue
		}
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Open connects to the store for the given driver name
func Open(ctx context.Context, driver string, cfg Options) (Store, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case DriverTurso:
		return OpenTurso(ctx, cfg.TursoURL, cfg.TursoAuthToken)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// Driver names accepted by Open
const (
	DriverSQLite   = "sqlite"
	DriverTurso    = "turso"
	DriverPostgres = "postgres"
)

// Options carries the connection settings for every driver
type Options struct {
	SQLitePath     string
	TursoURL       string
	TursoAuthToken string
	PostgresURL    string
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// formatValue renders a scanned column value for display
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case map[string]any, []any:
		if data, err := json.Marshal(val); err == nil {
			return string(data)
		}
		return fmt.Sprint(val)
	default:
		return fmt.Sprint(val)
	}
}
