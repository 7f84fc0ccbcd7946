package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shepherd/internal/checkin/models"
	"shepherd/internal/platform/postgres"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// PostgresStore keeps idempotency claims in checkin_submissions. Claims are
// taken with a single upsert so two instances cannot both win a key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Claim(ctx context.Context, key string, now time.Time, ttl time.Duration) (*models.Submission, bool, error) {
	exec := tx.Exec(ctx, s.db)
	query := `
		INSERT INTO checkin_submissions (idempotency_key, status, claimed_at)
		VALUES ($1, 'processing', $2)
		ON CONFLICT (idempotency_key) DO UPDATE SET claimed_at = EXCLUDED.claimed_at
		WHERE checkin_submissions.status = 'processing' AND checkin_submissions.claimed_at < $3
		RETURNING idempotency_key`
	var claimedKey string
	err := exec.QueryRowContext(ctx, query, key, now, now.Add(-ttl)).Scan(&claimedKey)
	if err == nil {
		return &models.Submission{Key: key, Status: models.SubmissionProcessing, ClaimedAt: now}, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("claim submission: %w", err)
	}

	sub, err := s.find(ctx, exec, key)
	if err != nil {
		return nil, false, err
	}
	return sub, false, nil
}

func (s *PostgresStore) find(ctx context.Context, exec tx.Executor, key string) (*models.Submission, error) {
	var (
		sub         models.Submission
		status      string
		result      []byte
		completedAt sql.NullTime
	)
	err := exec.QueryRowContext(ctx,
		`SELECT idempotency_key, status, result, claimed_at, completed_at
		 FROM checkin_submissions WHERE idempotency_key = $1`, key,
	).Scan(&sub.Key, &status, &result, &sub.ClaimedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %q: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find submission: %w", err)
	}
	sub.Status = models.SubmissionStatus(status)
	if completedAt.Valid {
		sub.CompletedAt = &completedAt.Time
	}
	if len(result) > 0 {
		var batch models.BatchResult
		if err := json.Unmarshal(result, &batch); err != nil {
			return nil, fmt.Errorf("decode submission result: %w", err)
		}
		sub.Result = &batch
	}
	return &sub, nil
}

func (s *PostgresStore) Complete(ctx context.Context, key string, result *models.BatchResult, now time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode submission result: %w", err)
	}
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE checkin_submissions SET status = 'completed', result = $2::jsonb, completed_at = $3
		 WHERE idempotency_key = $1 AND status = 'processing'`,
		key, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("complete submission: %w", err)
	}
	if postgres.RowsAffected(res) == 0 {
		return fmt.Errorf("submission %q is not processing: %w", key, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, key string) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM checkin_submissions WHERE idempotency_key = $1 AND status = 'processing'`, key)
	if err != nil {
		return fmt.Errorf("release submission: %w", err)
	}
	return nil
}
