package code

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"shepherd/internal/checkin/models"
	"shepherd/internal/platform/postgres"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// PostgresStore persists codes; uq_code_per_day is the collision check.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts code. A collision returns sentinel.ErrAlreadyUsed and leaves
// the surrounding transaction usable.
func (s *PostgresStore) Create(ctx context.Context, code *models.AttendanceCode) error {
	query := `
		INSERT INTO attendance_codes (id, issue_date, code, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT uq_code_per_day DO NOTHING`
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(code.ID), code.IssueDate, code.Code, code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create attendance code: %w", err)
	}
	if postgres.RowsAffected(res) == 0 {
		return fmt.Errorf("code %s on %s: %w", code.Code, code.IssueDate, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) CountForDate(ctx context.Context, date models.Date) (int, error) {
	var n int
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM attendance_codes WHERE issue_date = $1`, date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attendance codes: %w", err)
	}
	return n, nil
}
