package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "shepherd/pkg/domain-errors"
)

func TestMemoryRunner(t *testing.T) {
	runner := NewMemoryRunner()

	t.Run("failed callback runs compensations in reverse", func(t *testing.T) {
		var order []string
		err := runner.RunInTx(context.Background(), func(txCtx context.Context) error {
			OnRollback(txCtx, func() { order = append(order, "code") })
			OnRollback(txCtx, func() { order = append(order, "attendance") })
			return errors.New("audit write failed")
		})
		require.Error(t, err)
		assert.Equal(t, []string{"attendance", "code"}, order)
	})

	t.Run("successful callback keeps writes", func(t *testing.T) {
		undone := false
		err := runner.RunInTx(context.Background(), func(txCtx context.Context) error {
			OnRollback(txCtx, func() { undone = true })
			return nil
		})
		require.NoError(t, err)
		assert.False(t, undone)
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		undone := 0
		err := runner.RunInTx(context.Background(), func(outer context.Context) error {
			_ = runner.RunInTx(outer, func(inner context.Context) error {
				OnRollback(inner, func() { undone++ })
				return nil
			})
			return errors.New("outer fails")
		})
		require.Error(t, err)
		assert.Equal(t, 1, undone)
	})

	t.Run("cancelled context is a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := runner.RunInTx(ctx, func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}
