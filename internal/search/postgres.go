package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch answers searches straight from the submissions table when the index is down.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Search matches the text case-insensitively against reference and name.
func (p *PgSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, 0, nil
	}

	where := "(reference ILIKE $1 ESCAPE '\\' OR name ILIKE $1 ESCAPE '\\')"
	args := []any{"%" + escapeLike(text) + "%"}
	if q.Status != "" {
		where += " AND COALESCE(status, 'pending') = $2"
		args = append(args, q.Status)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM kyc_submissions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg search count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, COALESCE(reference, ''), COALESCE(status, 'pending'), source_db
		FROM kyc_submissions
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT %d`, where, q.limit()), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.Reference, &r.Status, &r.SourceDB); err != nil {
			return nil, 0, fmt.Errorf("pg search scan: %w", err)
		}
		r.Snippet = firstNonBlank(r.Reference, r.Name)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
