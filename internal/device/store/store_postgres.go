package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"shepherd/internal/device"
	"shepherd/internal/platform/postgres"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const deviceColumns = `id, name, kind, campus_id, location_ids, token_hash, token_expires_at, status, created_at`

func locationStrings(ids []id.LocationID) []string {
	out := make([]string, len(ids))
	for i, l := range ids {
		out[i] = l.String()
	}
	return out
}

func (s *PostgresStore) Create(ctx context.Context, d *device.Device) error {
	query := `INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5::uuid[], $6, $7, $8, $9)`
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(d.ID),
		d.Name,
		string(d.Kind),
		postgres.NullUUID(uuid.UUID(d.CampusID)),
		pq.Array(locationStrings(d.LocationIDs)),
		d.TokenHash,
		d.TokenExpiresAt,
		string(d.Status),
		d.CreatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("device %s: %w", d.ID, sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, deviceID id.DeviceID) (*device.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	var (
		d         device.Device
		rawID     uuid.UUID
		campus    uuid.NullUUID
		locations []string
		kind      string
		status    string
	)
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(deviceID)).Scan(
		&rawID, &d.Name, &kind, &campus, pq.Array(&locations), &d.TokenHash, &d.TokenExpiresAt, &status, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", deviceID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find device %s: %w", deviceID, err)
	}
	d.ID = id.DeviceID(rawID)
	d.Kind = device.Kind(kind)
	d.Status = device.Status(status)
	if campus.Valid {
		d.CampusID = id.CampusID(campus.UUID)
	}
	for _, raw := range locations {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("device %s location %q: %w", deviceID, raw, err)
		}
		d.LocationIDs = append(d.LocationIDs, id.LocationID(parsed))
	}
	return &d, nil
}

func (s *PostgresStore) Update(ctx context.Context, d *device.Device) error {
	query := `UPDATE devices
		SET name = $2, kind = $3, campus_id = $4, location_ids = $5::uuid[],
		    token_hash = $6, token_expires_at = $7, status = $8
		WHERE id = $1`
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(d.ID),
		d.Name,
		string(d.Kind),
		postgres.NullUUID(uuid.UUID(d.CampusID)),
		pq.Array(locationStrings(d.LocationIDs)),
		d.TokenHash,
		d.TokenExpiresAt,
		string(d.Status),
	)
	if err != nil {
		return fmt.Errorf("update device %s: %w", d.ID, err)
	}
	if postgres.RowsAffected(res) == 0 {
		return fmt.Errorf("device %s: %w", d.ID, sentinel.ErrNotFound)
	}
	return nil
}
