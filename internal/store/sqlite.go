package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "btscreener/internal/errors"
	"btscreener/internal/models"
)

var (
	_ CandleStore = (*SQLiteStore)(nil)
	_ RunStore    = (*SQLiteStore)(nil)
)

// SQLiteStore implements CandleStore and RunStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		chart_range TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, chart_range, timestamp)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		group_names TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS run_rows (
		run_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		row_json TEXT NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_range ON candles(symbol, chart_range);
	CREATE INDEX IF NOT EXISTS idx_run_rows_symbol ON run_rows(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCandles upserts candles for symbol under rng.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, rng string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", apperrors.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, chart_range, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", apperrors.ErrDatabaseError, err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, rng, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("%w: insert candle: %w", apperrors.ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", apperrors.ErrDatabaseError, err)
	}
	return nil
}

// GetCandles returns the saved candles for symbol under rng, oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, rng string) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND chart_range = ?
		ORDER BY timestamp ASC
	`, symbol, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: query candles: %w", apperrors.ErrDatabaseError, err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("%w: scan candle: %w", apperrors.ErrDatabaseError, err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate candles: %w", apperrors.ErrDatabaseError, err)
	}

	return candles, nil
}

// SaveRun stores run and returns its new ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", apperrors.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, finished_at, group_names) VALUES (?, ?, ?)
	`, run.StartedAt.UTC(), run.FinishedAt.UTC(), strings.Join(run.Groups, ","))
	if err != nil {
		return 0, fmt.Errorf("%w: insert run: %w", apperrors.ErrDatabaseError, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: run id: %w", apperrors.ErrDatabaseError, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_rows (run_id, position, symbol, row_json, error) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare: %w", apperrors.ErrDatabaseError, err)
	}
	defer stmt.Close()

	for i, symbol := range run.Symbols {
		data, err := json.Marshal(run.Rows[symbol])
		if err != nil {
			return 0, fmt.Errorf("encoding row for %s: %w", symbol, err)
		}
		var errText sql.NullString
		if msg, ok := run.Errors[symbol]; ok {
			errText = sql.NullString{String: msg, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, i, symbol, string(data), errText); err != nil {
			return 0, fmt.Errorf("%w: insert row: %w", apperrors.ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", apperrors.ErrDatabaseError, err)
	}

	run.ID = id
	return id, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.started_at, r.finished_at, r.group_names,
			COUNT(rr.symbol), COUNT(rr.error)
		FROM runs r
		LEFT JOIN run_rows rr ON rr.run_id = r.id
		GROUP BY r.id
		ORDER BY r.id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query runs: %w", apperrors.ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r      RunSummary
			groups string
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &groups, &r.Symbols, &r.Failed); err != nil {
			return nil, fmt.Errorf("%w: scan run: %w", apperrors.ErrDatabaseError, err)
		}
		r.Groups = splitGroups(groups)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate runs: %w", apperrors.ErrDatabaseError, err)
	}
	return out, nil
}

// GetRun loads a saved run. An unknown id wraps ErrDataNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	run := &Run{
		ID:     id,
		Rows:   map[string]models.Row{},
		Errors: map[string]string{},
	}

	var groups string
	err := s.db.QueryRowContext(ctx, `
		SELECT started_at, finished_at, group_names FROM runs WHERE id = ?
	`, id).Scan(&run.StartedAt, &run.FinishedAt, &groups)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, apperrors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query run: %w", apperrors.ErrDatabaseError, err)
	}
	run.Groups = splitGroups(groups)

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, row_json, error FROM run_rows WHERE run_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: query rows: %w", apperrors.ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			symbol, data string
			errText      sql.NullString
		)
		if err := rows.Scan(&symbol, &data, &errText); err != nil {
			return nil, fmt.Errorf("%w: scan row: %w", apperrors.ErrDatabaseError, err)
		}
		row := models.Row{}
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("decoding row for %s: %w", symbol, err)
		}
		run.Symbols = append(run.Symbols, symbol)
		run.Rows[symbol] = row
		if errText.Valid {
			run.Errors[symbol] = errText.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", apperrors.ErrDatabaseError, err)
	}

	return run, nil
}

func splitGroups(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
