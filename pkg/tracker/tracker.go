package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/persona/pkg/models"
)

// Tracker records and queries budget spend.
type Tracker interface {
	// Record stores an admitted charge.
	Record(ctx context.Context, rec models.SpendRecord) error
	// Query returns spend records since a given time, newest first.
	Query(ctx context.Context, since time.Time) ([]models.SpendRecord, error)
	// TotalSince returns the characters charged since a given time.
	TotalSince(ctx context.Context, since time.Time) (int64, error)
	// Summary returns spend grouped by day and purpose since a given time.
	Summary(ctx context.Context, since time.Time) ([]models.SpendSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS spend_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	purpose TEXT NOT NULL,
	cost INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_spend_time ON spend_records(created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a spend record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.SpendRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO spend_records (purpose, cost, created_at) VALUES (?, ?, ?)`,
		string(rec.Purpose), rec.Cost, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record spend: %w", err)
	}
	return nil
}

// Query returns spend records since a given time.
func (t *SQLiteTracker) Query(ctx context.Context, since time.Time) ([]models.SpendRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, purpose, cost, created_at FROM spend_records
		 WHERE created_at >= ? ORDER BY created_at DESC, id DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query spend: %w", err)
	}
	defer rows.Close()

	var records []models.SpendRecord
	for rows.Next() {
		var r models.SpendRecord
		var purpose string
		if err := rows.Scan(&r.ID, &purpose, &r.Cost, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan spend: %w", err)
		}
		r.Purpose = models.SpendPurpose(purpose)
		records = append(records, r)
	}
	return records, rows.Err()
}

// TotalSince returns the characters charged since a given time.
func (t *SQLiteTracker) TotalSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM spend_records WHERE created_at >= ?`,
		since.UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total spend: %w", err)
	}
	return total, nil
}

// Summary returns spend grouped by day and purpose.
func (t *SQLiteTracker) Summary(ctx context.Context, since time.Time) ([]models.SpendSummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT date(created_at) AS day, purpose, COUNT(*), SUM(cost)
		 FROM spend_records WHERE created_at >= ?
		 GROUP BY day, purpose ORDER BY day DESC, purpose`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.SpendSummary
	for rows.Next() {
		var s models.SpendSummary
		var day sql.NullString
		var purpose string
		if err := rows.Scan(&day, &purpose, &s.Charges, &s.Total); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Day = day.String
		s.Purpose = models.SpendPurpose(purpose)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
