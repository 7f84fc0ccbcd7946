package occurrence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"shepherd/internal/checkin/models"
	"shepherd/internal/platform/postgres"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// PostgresStore persists occurrences. Uniqueness of the tuple is enforced by
// uq_occurrence_tuple (NULLS NOT DISTINCT), so concurrent first check-ins from
// several instances converge on one row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const occurrenceColumns = `id, group_id, location_id, schedule_id, occurrence_date, week_anchor_date, status, created_at, cancelled_at`

func (s *PostgresStore) FindByKey(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + `
		FROM attendance_occurrences
		WHERE group_id = $1
		  AND location_id IS NOT DISTINCT FROM $2
		  AND schedule_id IS NOT DISTINCT FROM $3
		  AND occurrence_date = $4`
	occ, err := scanOccurrence(tx.Exec(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(key.GroupID),
		postgres.NullUUID(uuid.UUID(key.LocationID)),
		postgres.NullUUID(uuid.UUID(key.ScheduleID)),
		key.Date,
	))
	if err != nil {
		return nil, fmt.Errorf("find occurrence %s: %w", key, err)
	}
	return occ, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, occurrenceID id.OccurrenceID) (*models.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM attendance_occurrences WHERE id = $1`
	occ, err := scanOccurrence(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(occurrenceID)))
	if err != nil {
		return nil, fmt.Errorf("find occurrence %s: %w", occurrenceID, err)
	}
	return occ, nil
}

// Create inserts occ. A concurrent insert of the same tuple yields
// sentinel.ErrAlreadyUsed without aborting the surrounding transaction.
func (s *PostgresStore) Create(ctx context.Context, occ *models.Occurrence) error {
	query := `
		INSERT INTO attendance_occurrences (id, group_id, location_id, schedule_id, occurrence_date, week_anchor_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT uq_occurrence_tuple DO NOTHING`
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(occ.ID),
		uuid.UUID(occ.GroupID),
		postgres.NullUUID(uuid.UUID(occ.LocationID)),
		postgres.NullUUID(uuid.UUID(occ.ScheduleID)),
		occ.Date,
		occ.WeekAnchorDate,
		string(occ.Status),
		occ.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create occurrence: %w", err)
	}
	if postgres.RowsAffected(res) == 0 {
		return fmt.Errorf("occurrence %s: %w", occ.Key(), sentinel.ErrAlreadyUsed)
	}
	return nil
}

// Execute locks the row, validates and mutates it, then writes the status back.
// Call it inside RunInTx so the row lock spans the update.
func (s *PostgresStore) Execute(ctx context.Context, occurrenceID id.OccurrenceID, validate func(*models.Occurrence) error, mutate func(*models.Occurrence)) (*models.Occurrence, error) {
	exec := tx.Exec(ctx, s.db)
	query := `SELECT ` + occurrenceColumns + ` FROM attendance_occurrences WHERE id = $1 FOR UPDATE`
	occ, err := scanOccurrence(exec.QueryRowContext(ctx, query, uuid.UUID(occurrenceID)))
	if err != nil {
		return nil, fmt.Errorf("lock occurrence %s: %w", occurrenceID, err)
	}
	if err := validate(occ); err != nil {
		return nil, err
	}
	mutate(occ)
	_, err = exec.ExecContext(ctx,
		`UPDATE attendance_occurrences SET status = $2, cancelled_at = $3 WHERE id = $1`,
		uuid.UUID(occ.ID), string(occ.Status), occ.CancelledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update occurrence %s: %w", occurrenceID, err)
	}
	return occ, nil
}

func scanOccurrence(row *sql.Row) (*models.Occurrence, error) {
	var (
		occ                    models.Occurrence
		occID, groupID         uuid.UUID
		locationID, scheduleID uuid.NullUUID
		status                 string
		cancelledAt            sql.NullTime
	)
	err := row.Scan(&occID, &groupID, &locationID, &scheduleID, &occ.Date, &occ.WeekAnchorDate, &status, &occ.CreatedAt, &cancelledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	occ.ID = id.OccurrenceID(occID)
	occ.GroupID = id.GroupID(groupID)
	occ.LocationID = id.LocationID(locationID.UUID)
	occ.ScheduleID = id.ScheduleID(scheduleID.UUID)
	occ.Status = models.OccurrenceStatus(status)
	if cancelledAt.Valid {
		occ.CancelledAt = &cancelledAt.Time
	}
	return &occ, nil
}
