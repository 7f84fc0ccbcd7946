package pickup

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

// PostgresStore persists authorized pickups and pickup logs. pickup_logs
// carries CHECK constraints mirroring the model: a row can never be both
// authorized and overridden.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pickupColumns = `id, child_id, adult_person_id, name, phone, relationship, level, custody_notes,
	status, valid_from, valid_until, created_at, revoked_at`

func (s *PostgresStore) CreateAuthorization(ctx context.Context, p *models.AuthorizedPickup) error {
	query := `INSERT INTO authorized_pickups (` + pickupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.ChildID),
		postgres.NullUUID(uuid.UUID(p.AdultPersonID)),
		p.Name,
		p.Phone,
		p.Relationship,
		string(p.Level),
		p.CustodyNotes,
		string(p.Status),
		p.ValidFrom,
		p.ValidUntil,
		p.CreatedAt,
		p.RevokedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("authorized pickup %s: %w", p.ID, sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("create authorized pickup: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAuthorization(ctx context.Context, pickupID id.PickupID) (*models.AuthorizedPickup, error) {
	query := `SELECT ` + pickupColumns + ` FROM authorized_pickups WHERE id = $1`
	p, err := scanPickup(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(pickupID)))
	if err != nil {
		return nil, fmt.Errorf("find authorized pickup %s: %w", pickupID, err)
	}
	return p, nil
}

func (s *PostgresStore) ListForChild(ctx context.Context, childID id.PersonID, activeOnly bool) ([]*models.AuthorizedPickup, error) {
	query := `SELECT ` + pickupColumns + `
		FROM authorized_pickups
		WHERE child_id = $1 AND ($2 = false OR status = 'active')
		ORDER BY created_at`
	return s.queryPickups(ctx, query, uuid.UUID(childID), activeOnly)
}

// LockActiveForChild reads the active authorizations of child FOR SHARE, so a
// concurrent revoke waits for the calling transaction and vice versa.
func (s *PostgresStore) LockActiveForChild(ctx context.Context, childID id.PersonID) ([]*models.AuthorizedPickup, error) {
	query := `SELECT ` + pickupColumns + `
		FROM authorized_pickups
		WHERE child_id = $1 AND status = 'active'
		ORDER BY created_at
		FOR SHARE`
	return s.queryPickups(ctx, query, uuid.UUID(childID))
}

func (s *PostgresStore) queryPickups(ctx context.Context, query string, args ...any) ([]*models.AuthorizedPickup, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list authorized pickups: %w", err)
	}
	defer rows.Close()

	var out []*models.AuthorizedPickup
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan authorized pickup: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExecuteAuthorization(ctx context.Context, pickupID id.PickupID, validate func(*models.AuthorizedPickup) error, mutate func(*models.AuthorizedPickup)) (*models.AuthorizedPickup, error) {
	exec := tx.Exec(ctx, s.db)
	query := `SELECT ` + pickupColumns + ` FROM authorized_pickups WHERE id = $1 FOR UPDATE`
	p, err := scanPickup(exec.QueryRowContext(ctx, query, uuid.UUID(pickupID)))
	if err != nil {
		return nil, fmt.Errorf("lock authorized pickup %s: %w", pickupID, err)
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	_, err = exec.ExecContext(ctx,
		`UPDATE authorized_pickups SET status = $2, revoked_at = $3 WHERE id = $1`,
		uuid.UUID(p.ID), string(p.Status), p.RevokedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update authorized pickup %s: %w", pickupID, err)
	}
	return p, nil
}

const logColumns = `id, attendance_id, child_id, pickup_person_id, pickup_name, pickup_phone,
	authorized_pickup_id, outcome, was_authorized, supervisor_override, supervisor_id, device_id, created_at`

func (s *PostgresStore) AppendLog(ctx context.Context, l *models.PickupLog) error {
	query := `INSERT INTO pickup_logs (` + logColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(l.ID),
		uuid.UUID(l.AttendanceID),
		uuid.UUID(l.ChildID),
		postgres.NullUUID(uuid.UUID(l.PickupPersonID)),
		l.PickupName,
		l.PickupPhone,
		postgres.NullUUID(uuid.UUID(l.AuthorizedPickupID)),
		string(l.Outcome),
		l.WasAuthorized(),
		l.SupervisorOverride(),
		postgres.NullUUID(uuid.UUID(l.SupervisorID)),
		postgres.NullUUID(uuid.UUID(l.DeviceID)),
		l.CreatedAt,
	)
	if postgres.IsCheckViolation(err) {
		return fmt.Errorf("pickup log %s violates %s: %w", l.ID, postgres.ConstraintName(err), sentinel.ErrInvalidState)
	}
	if err != nil {
		return fmt.Errorf("append pickup log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, attendanceID id.AttendanceID) ([]*models.PickupLog, error) {
	query := `SELECT ` + logColumns + ` FROM pickup_logs WHERE attendance_id = $1 ORDER BY created_at, id`
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, uuid.UUID(attendanceID))
	if err != nil {
		return nil, fmt.Errorf("list pickup logs: %w", err)
	}
	defer rows.Close()

	var out []*models.PickupLog
	for rows.Next() {
		var (
			l                                   models.PickupLog
			logID, attID, childID               uuid.UUID
			personID, pickupID, supID, deviceID uuid.NullUUID
			outcome                             string
			wasAuthorized, override             bool
		)
		err := rows.Scan(&logID, &attID, &childID, &personID, &l.PickupName, &l.PickupPhone,
			&pickupID, &outcome, &wasAuthorized, &override, &supID, &deviceID, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan pickup log: %w", err)
		}
		l.ID = id.PickupLogID(logID)
		l.AttendanceID = id.AttendanceID(attID)
		l.ChildID = id.PersonID(childID)
		l.PickupPersonID = id.PersonID(personID.UUID)
		l.AuthorizedPickupID = id.PickupID(pickupID.UUID)
		l.Outcome = models.PickupOutcome(outcome)
		l.SupervisorID = id.PersonID(supID.UUID)
		l.DeviceID = id.DeviceID(deviceID.UUID)
		out = append(out, &l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPickup(row rowScanner) (*models.AuthorizedPickup, error) {
	var (
		p                     models.AuthorizedPickup
		pickupID, childID     uuid.UUID
		adultID               uuid.NullUUID
		level, status         string
		validFrom, validUntil sql.NullTime
		revokedAt             sql.NullTime
	)
	err := row.Scan(&pickupID, &childID, &adultID, &p.Name, &p.Phone, &p.Relationship, &level,
		&p.CustodyNotes, &status, &validFrom, &validUntil, &p.CreatedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ID = id.PickupID(pickupID)
	p.ChildID = id.PersonID(childID)
	p.AdultPersonID = id.PersonID(adultID.UUID)
	p.Level = models.PickupLevel(level)
	p.Status = models.PickupStatus(status)
	if validFrom.Valid {
		p.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		p.ValidUntil = &validUntil.Time
	}
	if revokedAt.Valid {
		p.RevokedAt = &revokedAt.Time
	}
	return &p, nil
}
