package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"shepherd/internal/platform/postgres"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// PostgresOutbox writes events to audit_outbox through the transaction in
// ctx, so an event commits or rolls back with the change it describes.
type PostgresOutbox struct {
	db *sql.DB
}

func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

func (o *PostgresOutbox) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	_, err = tx.Exec(ctx, o.db).ExecContext(ctx,
		`INSERT INTO audit_outbox (event_id, action, subject_id, payload, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		event.ID, string(event.Action), event.SubjectID, string(payload), event.Timestamp,
	)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("audit event %s: %w", event.ID, sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) Unpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT id, payload FROM audit_outbox WHERE published_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var (
			entry   OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&entry.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Event); err != nil {
			return nil, fmt.Errorf("decode outbox entry %d: %w", entry.Seq, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (o *PostgresOutbox) MarkPublished(ctx context.Context, seqs []int64, at time.Time) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := o.db.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = $2 WHERE id = ANY($1::bigint[]) AND published_at IS NULL`,
		pq.Array(seqs), at)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
