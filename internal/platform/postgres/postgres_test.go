package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConstraintClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "uq_code_per_day"}
	check := &pgconn.PgError{Code: "23514", ConstraintName: "ck_pickup_exclusive"}

	assert.True(t, IsUniqueViolation(fmt.Errorf("insert code: %w", unique)))
	assert.False(t, IsUniqueViolation(check))
	assert.True(t, IsCheckViolation(check))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.Equal(t, "uq_code_per_day", ConstraintName(fmt.Errorf("wrapped: %w", unique)))
	assert.Equal(t, "", ConstraintName(errors.New("plain")))
}

func TestNullUUID(t *testing.T) {
	assert.Nil(t, NullUUID(uuid.Nil))
	u := uuid.New()
	assert.Equal(t, u, NullUUID(u))
}
