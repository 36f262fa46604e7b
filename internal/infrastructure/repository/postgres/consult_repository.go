package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

// ConsultRepository is the authoritative audit trail of triage consults.
type ConsultRepository struct {
	db *sql.DB
}

func NewConsultRepository(db *sql.DB) *ConsultRepository {
	return &ConsultRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ConsultRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ai_consults (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	symptoms TEXT NOT NULL,
	species TEXT NOT NULL DEFAULT '',
	age TEXT NOT NULL DEFAULT '',
	context TEXT NOT NULL DEFAULT '',
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	raw_response TEXT NOT NULL DEFAULT '',
	parsed_response JSONB,
	status TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	reviewer_id TEXT,
	reviewer_comment TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ai_consults_status ON ai_consults(status);
CREATE INDEX IF NOT EXISTS idx_ai_consults_created_at ON ai_consults(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ConsultRepository) Create(ctx context.Context, record *domain.ConsultRecord) error {
	sourcesJSON, err := json.Marshal(record.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	var parsedJSON any
	if record.ParsedResponse != nil {
		raw, err := json.Marshal(record.ParsedResponse)
		if err != nil {
			return fmt.Errorf("marshal parsed response: %w", err)
		}
		parsedJSON = raw
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO ai_consults (
	id, user_id, symptoms, species, age, context, sources, raw_response, parsed_response, status, note, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		record.ID, record.UserID, record.Symptoms, record.Species, record.Age, record.Context,
		sourcesJSON, record.RawResponse, parsedJSON, string(record.Status), record.Note,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consult: %w", err)
	}
	return nil
}

const consultColumns = `id, user_id, symptoms, species, age, context, sources, raw_response, parsed_response, status, note, reviewer_id, reviewer_comment, created_at, updated_at`

func (r *ConsultRepository) GetByID(ctx context.Context, id string) (*domain.ConsultRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+consultColumns+`
FROM ai_consults
WHERE id = $1
`, id)

	record, err := scanConsult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrConsultNotFound, "get consult", err)
		}
		return nil, fmt.Errorf("scan consult: %w", err)
	}
	return record, nil
}

func (r *ConsultRepository) List(ctx context.Context, limit int) ([]domain.ConsultRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+consultColumns+`
FROM ai_consults
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query consults: %w", err)
	}
	defer rows.Close()

	var records []domain.ConsultRecord
	for rows.Next() {
		record, err := scanConsult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consult: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consults: %w", err)
	}
	return records, nil
}

// Review is the only mutation a persisted consult admits: status transition
// plus reviewer attribution. Query and response fields stay immutable.
func (r *ConsultRepository) Review(ctx context.Context, id, reviewerID, comment string, status domain.ConsultStatus) error {
	if status != domain.ConsultReviewed && status != domain.ConsultClosed {
		return domain.WrapError(domain.ErrInvalidInput, "review consult", fmt.Errorf("status %q not allowed", status))
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE ai_consults
SET status = $2, reviewer_id = $3, reviewer_comment = $4, updated_at = $5
WHERE id = $1
`, id, string(status), reviewerID, comment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update consult: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConsultNotFound, "review consult", sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsult(row rowScanner) (*domain.ConsultRecord, error) {
	var record domain.ConsultRecord
	var sourcesRaw []byte
	var parsedRaw []byte
	var status string
	var reviewerID, reviewerComment sql.NullString

	err := row.Scan(
		&record.ID, &record.UserID, &record.Symptoms, &record.Species, &record.Age, &record.Context,
		&sourcesRaw, &record.RawResponse, &parsedRaw, &status, &record.Note,
		&reviewerID, &reviewerComment, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = domain.ConsultStatus(status)
	record.ReviewerID = reviewerID.String
	record.ReviewerComment = reviewerComment.String
	if err := json.Unmarshal(sourcesRaw, &record.Sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	if len(parsedRaw) > 0 {
		var parsed domain.TriageResult
		if err := json.Unmarshal(parsedRaw, &parsed); err != nil {
			return nil, fmt.Errorf("decode parsed response: %w", err)
		}
		record.ParsedResponse = &parsed
	}
	return &record, nil
}
