// Package store persists batch results so a run can be audited and resumed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fluxorio/threadpool/pkg/conjecture"
	"github.com/fluxorio/threadpool/pkg/core"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Config selects the database. An empty Driver disables persistence.
type Config struct {
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Driver {
	case "":
		return nil
	case DriverSQLite, DriverPostgres, DriverPgx:
	default:
		return &core.Error{Code: core.CodeInvalidConfig, Message: fmt.Sprintf("unsupported store driver %q", c.Driver)}
	}
	if c.DSN == "" {
		return &core.Error{Code: core.CodeInvalidConfig, Message: "store dsn is required"}
	}
	return nil
}

// Counterexample is a value for which the conjecture failed.
type Counterexample struct {
	N          uint64
	RunID      string
	Batch      conjecture.Batch
	RecordedAt time.Time
}

// Store records batch results in a SQL database.
//
// Numbers are kept as zero-padded decimal text so that the full uint64 range
// fits every backend and text order matches numeric order.
type Store struct {
	db     *sql.DB
	driver string
	logger core.Logger
}

// Open connects to the database named by driver and dsn and checks it is
// reachable. Call Migrate before recording.
func Open(ctx context.Context, driver, dsn string, logger core.Logger) (*Store, error) {
	if err := (Config{Driver: driver, DSN: dsn}).Validate(); err != nil {
		return nil, err
	}
	if driver == "" {
		return nil, &core.Error{Code: core.CodeInvalidConfig, Message: "store driver is required"}
	}
	if logger == nil {
		logger = core.DefaultLogger()
	}

	if driver == DriverPostgres && !strings.Contains(dsn, "://") && !strings.Contains(dsn, "sslmode") {
		dsn += " sslmode=disable"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite serialises writers; one connection avoids "database is locked"
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		driver: driver,
		logger: logger.WithFields(map[string]interface{}{"store": driver}),
	}
	s.logger.Info("Successfully connected to the database")
	return s, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Debug("Running database migrations")
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			run_id TEXT NOT NULL,
			batch_begin TEXT NOT NULL,
			batch_end TEXT NOT NULL,
			checked BIGINT NOT NULL,
			counterexample TEXT,
			duration_ns BIGINT NOT NULL,
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, batch_begin)
		)`,
		`CREATE INDEX IF NOT EXISTS batches_begin_idx ON batches (batch_begin)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	s.logger.Debug("Database migrations completed")
	return nil
}

// RecordBatch stores the outcome of one batch. Recording the same batch for
// the same run again replaces the earlier row.
func (s *Store) RecordBatch(ctx context.Context, runID string, res conjecture.BatchResult) error {
	var counterexample sql.NullString
	if res.Counterexample != nil {
		counterexample = sql.NullString{String: encode(*res.Counterexample), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO batches (run_id, batch_begin, batch_end, checked, counterexample, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, batch_begin) DO UPDATE SET
			batch_end = EXCLUDED.batch_end,
			checked = EXCLUDED.checked,
			counterexample = EXCLUDED.counterexample,
			duration_ns = EXCLUDED.duration_ns`),
		runID, encode(res.Begin), encode(res.End), int64(res.Checked), counterexample, res.Duration.Nanoseconds())
	if err != nil {
		return fmt.Errorf("failed to record batch %s: %w", res.Batch, err)
	}
	return nil
}

// Checkpoint returns the end of the contiguous range covered by recorded
// batches, starting from the lowest recorded value. A batch that stopped at a
// counterexample covers up to and including that value. ok is false when
// nothing has been recorded.
func (s *Store) Checkpoint(ctx context.Context) (uint64, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT batch_begin, checked FROM batches ORDER BY batch_begin`)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	defer rows.Close()

	var frontier uint64
	found := false
	for rows.Next() {
		var beginText string
		var checked int64
		if err := rows.Scan(&beginText, &checked); err != nil {
			return 0, false, err
		}
		begin, err := decode(beginText)
		if err != nil {
			return 0, false, err
		}
		if !found {
			frontier, found = begin, true
		}
		if begin > frontier {
			break
		}
		if end := begin + uint64(checked); end > frontier {
			frontier = end
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	return frontier, found, nil
}

// Counterexamples lists every recorded counterexample in ascending order.
func (s *Store) Counterexamples(ctx context.Context) ([]Counterexample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT counterexample, run_id, batch_begin, batch_end, recorded_at
		FROM batches
		WHERE counterexample IS NOT NULL
		ORDER BY counterexample`)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterexamples: %w", err)
	}
	defer rows.Close()

	var out []Counterexample
	for rows.Next() {
		var n, begin, end string
		var c Counterexample
		if err := rows.Scan(&n, &c.RunID, &begin, &end, &c.RecordedAt); err != nil {
			return nil, err
		}
		if c.N, err = decode(n); err != nil {
			return nil, err
		}
		if c.Batch.Begin, err = decode(begin); err != nil {
			return nil, err
		}
		if c.Batch.End, err = decode(end); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Reset drops every recorded batch and recreates the schema.
func (s *Store) Reset(ctx context.Context) error {
	s.logger.Info("Dropping table: batches")
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS batches`); err != nil {
		return fmt.Errorf("failed to drop table batches: %w", err)
	}
	return s.Migrate(ctx)
}

// PingContext checks the database is reachable.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $n for the postgres drivers.
func (s *Store) rebind(query string) string {
	if s.driver == DriverSQLite {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func encode(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

func decode(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt number %q: %w", s, err)
	}
	return n, nil
}
