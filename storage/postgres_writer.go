package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"poll-reader/models"
)

const pollColumns = 6

// PostgresWriter persists loaded polls to PostgreSQL and reads them back in
// insertion order.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string, pingAttempts int) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if pingAttempts < 1 {
		pingAttempts = 1
	}

	for i := 0; i < pingAttempts; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i < pingAttempts-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after %d attempts: %w", pingAttempts, err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS polls (
			id            SERIAL PRIMARY KEY,
			month         TEXT             NOT NULL,
			poll_date     INTEGER          NOT NULL,
			sample_size   INTEGER          NOT NULL,
			sample_type   VARCHAR(16)      NOT NULL,
			harris_result DOUBLE PRECISION NOT NULL,
			trump_result  DOUBLE PRECISION NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_polls_sample_type ON polls(sample_type);
	`)
	return err
}

// Write replaces the stored polls with the table's rows inside one
// transaction, keeping input order in the id sequence.
func (pw *PostgresWriter) Write(table *models.PollTable) error {
	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM polls"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	rows := table.Rows()
	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		query, args := insertBatchQuery(rows[i:end])
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch at row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func insertBatchQuery(batch []models.Row) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*pollColumns)

	for idx, r := range batch {
		base := idx * pollColumns
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
		valueArgs = append(valueArgs,
			r.Month, r.Date, r.SampleSize, r.SampleType, r.HarrisResult, r.TrumpResult)
	}

	query := fmt.Sprintf(`
		INSERT INTO polls (month, poll_date, sample_size, sample_type, harris_result, trump_result)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll reads every stored poll back into a loaded table, ordered by id.
func (pw *PostgresWriter) FetchAll() (*models.PollTable, error) {
	rows, err := pw.db.Query(`
		SELECT month, poll_date, sample_size, sample_type, harris_result, trump_result
		FROM polls
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var polls []models.Row
	for rows.Next() {
		var r models.Row
		if err := rows.Scan(
			&r.Month, &r.Date, &r.SampleSize, &r.SampleType, &r.HarrisResult, &r.TrumpResult,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		polls = append(polls, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}
	return models.NewPollTable(polls), nil
}
