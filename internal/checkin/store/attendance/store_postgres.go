package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"shepherd/internal/checkin/models"
	"shepherd/internal/platform/postgres"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// PostgresStore persists attendances. The partial unique index
// uq_attendance_live enforces one live row per (occurrence, person).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const attendanceColumns = `id, occurrence_id, person_id, device_id, code_id, code, campus_id,
	start_at, end_at, state, pending_pickup, reversed_at`

// Create inserts att. A live duplicate maps to sentinel.ErrAlreadyUsed; the
// caller's transaction must then be rolled back (Postgres aborts it).
func (s *PostgresStore) Create(ctx context.Context, att *models.Attendance) error {
	pending, err := encodeClaim(att.PendingPickup)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO attendances (` + attendanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(att.ID),
		uuid.UUID(att.OccurrenceID),
		uuid.UUID(att.PersonID),
		postgres.NullUUID(uuid.UUID(att.DeviceID)),
		postgres.NullUUID(uuid.UUID(att.CodeID)),
		att.Code,
		postgres.NullUUID(uuid.UUID(att.CampusID)),
		att.StartAt,
		att.EndAt,
		string(att.State),
		pending,
		att.ReversedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("attendance for person %s: %w", att.PersonID, sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, attendanceID id.AttendanceID) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendances WHERE id = $1`
	att, err := scanAttendance(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(attendanceID)))
	if err != nil {
		return nil, fmt.Errorf("find attendance %s: %w", attendanceID, err)
	}
	return att, nil
}

func (s *PostgresStore) FindLive(ctx context.Context, occurrenceID id.OccurrenceID, personID id.PersonID) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE occurrence_id = $1 AND person_id = $2 AND state <> 'reversed'`
	att, err := scanAttendance(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(occurrenceID), uuid.UUID(personID)))
	if err != nil {
		return nil, fmt.Errorf("find live attendance for person %s: %w", personID, err)
	}
	return att, nil
}

// Execute locks the row, validates and mutates it, then writes the mutable
// columns back. Call it inside RunInTx so the lock spans the pickup log write.
func (s *PostgresStore) Execute(ctx context.Context, attendanceID id.AttendanceID, validate func(*models.Attendance) error, mutate func(*models.Attendance)) (*models.Attendance, error) {
	exec := tx.Exec(ctx, s.db)
	query := `SELECT ` + attendanceColumns + ` FROM attendances WHERE id = $1 FOR UPDATE`
	att, err := scanAttendance(exec.QueryRowContext(ctx, query, uuid.UUID(attendanceID)))
	if err != nil {
		return nil, fmt.Errorf("lock attendance %s: %w", attendanceID, err)
	}
	if err := validate(att); err != nil {
		return nil, err
	}
	mutate(att)

	pending, err := encodeClaim(att.PendingPickup)
	if err != nil {
		return nil, err
	}
	_, err = exec.ExecContext(ctx, `
		UPDATE attendances
		SET state = $2, end_at = $3, pending_pickup = $4, reversed_at = $5
		WHERE id = $1`,
		uuid.UUID(att.ID), string(att.State), att.EndAt, pending, att.ReversedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update attendance %s: %w", attendanceID, err)
	}
	return att, nil
}

func (s *PostgresStore) CountLive(ctx context.Context, occurrenceID id.OccurrenceID) (int, error) {
	var n int
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM attendances WHERE occurrence_id = $1 AND state <> 'reversed'`,
		uuid.UUID(occurrenceID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count live attendances: %w", err)
	}
	return n, nil
}

func encodeClaim(claim *models.PickupClaim) (any, error) {
	if claim == nil {
		return nil, nil
	}
	b, err := json.Marshal(claim)
	if err != nil {
		return nil, fmt.Errorf("encode pending pickup: %w", err)
	}
	return string(b), nil
}

func scanAttendance(row *sql.Row) (*models.Attendance, error) {
	var (
		att                        models.Attendance
		attID, occID, personID     uuid.UUID
		deviceID, codeID, campusID uuid.NullUUID
		endAt, reversedAt          sql.NullTime
		state                      string
		pending                    []byte
	)
	err := row.Scan(&attID, &occID, &personID, &deviceID, &codeID, &att.Code, &campusID,
		&att.StartAt, &endAt, &state, &pending, &reversedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	att.ID = id.AttendanceID(attID)
	att.OccurrenceID = id.OccurrenceID(occID)
	att.PersonID = id.PersonID(personID)
	att.DeviceID = id.DeviceID(deviceID.UUID)
	att.CodeID = id.AttendanceCodeID(codeID.UUID)
	att.CampusID = id.CampusID(campusID.UUID)
	att.State = models.AttendanceState(state)
	if endAt.Valid {
		att.EndAt = &endAt.Time
	}
	if reversedAt.Valid {
		att.ReversedAt = &reversedAt.Time
	}
	if len(pending) > 0 {
		var claim models.PickupClaim
		if err := json.Unmarshal(pending, &claim); err != nil {
			return nil, fmt.Errorf("decode pending pickup: %w", err)
		}
		att.PendingPickup = &claim
	}
	return &att, nil
}
