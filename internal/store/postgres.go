package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"userdeck/internal/util"
)

const submissionColumns = `id, name, source_db, image, image_hint, date_of_birth, id_type, id_number,
	id_image, selfie, status, reviewed_at, face_match_score, confidence, reference, created_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListSubmissions reads the whole collection in creation order.
func (s *PostgresStore) ListSubmissions(ctx context.Context) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+submissionColumns+` FROM kyc_submissions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		item, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM kyc_submissions WHERE id=$1`, id)
	item, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return item, err
}

// PatchReview sets the review status of one document. reviewed_at is assigned by the
// database clock, and cleared when the document goes back to pending.
func (s *PostgresStore) PatchReview(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE kyc_submissions
		SET status = $2::text,
			reviewed_at = CASE WHEN $2::text = 'pending' THEN NULL ELSE NOW() END
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("patch submission %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("patch submission %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSubmissions creates all documents in one transaction and returns their ids.
func (s *PostgresStore) InsertSubmissions(ctx context.Context, items []NewSubmission) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert submissions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := util.NewID("usr")
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kyc_submissions (id, name, source_db, image, image_hint, date_of_birth, id_type,
				id_number, id_image, selfie, status, face_match_score, confidence, reference)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			id, item.Name, item.SourceDB, item.Image, item.ImageHint, item.DateOfBirth, item.IDType,
			item.IDNumber, item.IDImage, item.Selfie, nullString(item.Status),
			item.FaceMatchScore, item.Confidence, nullString(item.Reference),
		)
		if err != nil {
			return nil, fmt.Errorf("insert submission: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert submissions: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	var (
		item       Submission
		status     sql.NullString
		reviewedAt sql.NullTime
		faceMatch  sql.NullFloat64
		confidence sql.NullFloat64
		reference  sql.NullString
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.SourceDB, &item.Image, &item.ImageHint, &item.DateOfBirth,
		&item.IDType, &item.IDNumber, &item.IDImage, &item.Selfie,
		&status, &reviewedAt, &faceMatch, &confidence, &reference, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, err
		}
		return Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	if status.Valid {
		item.Status = &status.String
	}
	if reviewedAt.Valid {
		item.ReviewedAt = &reviewedAt.Time
	}
	if faceMatch.Valid {
		item.FaceMatchScore = &faceMatch.Float64
	}
	if confidence.Valid {
		item.Confidence = &confidence.Float64
	}
	if reference.Valid {
		item.Reference = &reference.String
	}
	return item, nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
