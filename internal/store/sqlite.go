// ABOUTME: Session-scoped SQLite Store using modernc.org/sqlite in memory
// ABOUTME: Keeps the conversation log queryable by connection without touching disk

package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/2389/council/internal/turn"
)

// appendTimeout bounds a single insert.
const appendTimeout = 5 * time.Second

// SQLite is a Store backed by an in-memory SQLite database. The database
// is discarded on Close.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	failed atomic.Int64
}

// NewSQLite opens a fresh in-memory database. Pass nil logger for default.
func NewSQLite(logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &SQLite{
		db:     db,
		logger: logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger.Debug("SQLite store initialized")
	return s, nil
}

// migrations holds the goose migrations for the turns schema.
//
//go:embed migrations/*.sql
var migrations embed.FS

// migrate applies the embedded migrations.
func (s *SQLite) migrate() error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := provider.Up(context.Background())
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Debug("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Append inserts t. The Store contract has no error return, so a failed
// insert is logged and counted in Failed.
func (s *SQLite) Append(t turn.Turn) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (connection_id, sequence, kind, agent, content, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		t.ConnectionID,
		t.Sequence,
		string(t.Kind),
		t.Agent,
		t.Content,
		t.Raw,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.failed.Add(1)
		s.logger.Error("failed to append turn",
			"connection_id", t.ConnectionID,
			"sequence", t.Sequence,
			"error", err)
	}
}

// Failed returns the number of turns that could not be inserted.
func (s *SQLite) Failed() int64 {
	return s.failed.Load()
}

// Turns returns every turn in insertion order.
func (s *SQLite) Turns(ctx context.Context) ([]turn.Turn, error) {
	return s.query(ctx, `
		SELECT connection_id, sequence, kind, agent, content, raw
		FROM turns
		ORDER BY id
	`)
}

// ByConnection returns the turns produced by one connection, in order.
func (s *SQLite) ByConnection(ctx context.Context, connectionID string) ([]turn.Turn, error) {
	return s.query(ctx, `
		SELECT connection_id, sequence, kind, agent, content, raw
		FROM turns
		WHERE connection_id = ?
		ORDER BY id
	`, connectionID)
}

// Agents returns the distinct agent names in order of first appearance.
func (s *SQLite) Agents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent
		FROM turns
		WHERE kind = 'agent'
		GROUP BY agent
		ORDER BY MIN(id)
	`)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		agents = append(agents, name)
	}
	return agents, rows.Err()
}

func (s *SQLite) query(ctx context.Context, query string, args ...any) ([]turn.Turn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []turn.Turn
	for rows.Next() {
		var t turn.Turn
		var kind string
		if err := rows.Scan(&t.ConnectionID, &t.Sequence, &kind, &t.Agent, &t.Content, &t.Raw); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Kind = turn.Kind(kind)
		t.Segments = turn.Segments(t.Content)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

// Close discards the database.
func (s *SQLite) Close() error {
	s.logger.Debug("closing SQLite store")
	return s.db.Close()
}
