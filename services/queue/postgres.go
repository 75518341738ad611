package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"land_leads_app_go/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createInquiriesTable = `
	CREATE TABLE IF NOT EXISTS lead_inquiries (
		seq          BIGSERIAL PRIMARY KEY,
		id           UUID NOT NULL UNIQUE,
		queue_key    TEXT NOT NULL,
		campaign     TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		fields       JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lead_inquiries_queue_seq ON lead_inquiries (queue_key, seq DESC);
`

// PostgresBackend stores queues in Postgres. The global BIGSERIAL gives
// completion order within each queue key.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend connects and pings the database
func NewPostgresBackend(ctx context.Context, connString string) (*PostgresBackend, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres is not responding: %w", err)
	}

	return &PostgresBackend{pool: p}, nil
}

// EnsureSchema creates the inquiries table if it does not exist
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, createInquiriesTable); err != nil {
		return fmt.Errorf("failed to create lead_inquiries: %w", err)
	}
	return nil
}

// Append inserts one row; a single INSERT is atomic on its own
func (b *PostgresBackend) Append(ctx context.Context, key string, rec models.SubmissionRecord) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	query := `
		INSERT INTO lead_inquiries (id, queue_key, campaign, submitted_at, fields)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := b.pool.Exec(ctx, query, rec.ID, key, rec.Campaign, rec.SubmittedAt, fields); err != nil {
		return fmt.Errorf("failed to insert inquiry: %w", err)
	}
	return nil
}

// ReadAll returns the queue newest first
func (b *PostgresBackend) ReadAll(ctx context.Context, key string) ([]models.SubmissionRecord, error) {
	query := `
		SELECT id::text, campaign, submitted_at, fields
		FROM lead_inquiries
		WHERE queue_key = $1
		ORDER BY seq DESC
	`
	rows, err := b.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inquiries: %w", err)
	}
	defer rows.Close()

	records := []models.SubmissionRecord{}
	for rows.Next() {
		var (
			rec    models.SubmissionRecord
			fields []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Campaign, &rec.SubmittedAt, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan inquiry: %w", err)
		}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("corrupted fields for inquiry %s: %w", rec.ID, err)
		}
		rec.SubmittedAt = rec.SubmittedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inquiries: %w", err)
	}

	return records, nil
}

// Close releases the pool
func (b *PostgresBackend) Close() {
	b.pool.Close()
}
