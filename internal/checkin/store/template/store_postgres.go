package template

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

// PostgresStore persists label templates. Publish must run inside a
// transaction so retiring the old version and inserting the new one commit
// together; uq_template_active_type rejects a racing publisher.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const columns = `id, name, type, format, content, version, status, created_at`

func (s *PostgresStore) Publish(ctx context.Context, t *models.LabelTemplate) (*models.LabelTemplate, error) {
	exec := tx.Exec(ctx, s.db)

	var version int
	err := exec.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM label_templates WHERE type = $1 AND name = $2`,
		string(t.Type), t.Name,
	).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("read template version: %w", err)
	}

	_, err = exec.ExecContext(ctx,
		`UPDATE label_templates SET status = 'retired' WHERE type = $1 AND status = 'active'`,
		string(t.Type),
	)
	if err != nil {
		return nil, fmt.Errorf("retire %s templates: %w", t.Type, err)
	}

	stored := *t
	stored.Version = version + 1
	stored.Status = models.TemplateStatusActive
	_, err = exec.ExecContext(ctx,
		`INSERT INTO label_templates (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(stored.ID), stored.Name, string(stored.Type), string(stored.Format),
		stored.Content, stored.Version, string(stored.Status), stored.CreatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return nil, fmt.Errorf("publish %s template: %w", t.Type, sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return &stored, nil
}

func (s *PostgresStore) ActiveByType(ctx context.Context, labelType models.LabelType) (*models.LabelTemplate, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+columns+` FROM label_templates WHERE type = $1 AND status = 'active'`,
		string(labelType),
	)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("active %s template: %w", labelType, err)
	}
	return t, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, templateID id.LabelTemplateID) (*models.LabelTemplate, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+columns+` FROM label_templates WHERE id = $1`, uuid.UUID(templateID))
	t, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", templateID, err)
	}
	return t, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.LabelTemplate, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+columns+` FROM label_templates WHERE status = 'active' ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*models.LabelTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.LabelTemplate, error) {
	var (
		t                         models.LabelTemplate
		templateID                uuid.UUID
		labelType, format, status string
	)
	err := row.Scan(&templateID, &t.Name, &labelType, &format, &t.Content, &t.Version, &status, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.ID = id.LabelTemplateID(templateID)
	t.Type = models.LabelType(labelType)
	t.Format = models.LabelFormat(format)
	t.Status = models.TemplateStatus(status)
	return &t, nil
}
