package tx

import (
	"context"
	"sync"
	"time"

	dErrors "shepherd/pkg/domain-errors"
)

type memKey struct{}

// memTx collects compensations registered by in-memory stores. They run in
// reverse order when the callback fails, so a code allocated for an item that
// then failed is released again.
type memTx struct {
	mu   sync.Mutex
	undo []func()
}

// OnRollback registers undo to run if the enclosing memory transaction fails.
// Outside a memory transaction it is a no-op.
func OnRollback(ctx context.Context, undo func()) {
	t, ok := ctx.Value(memKey{}).(*memTx)
	if !ok {
		return
	}
	t.mu.Lock()
	t.undo = append(t.undo, undo)
	t.mu.Unlock()
}

// MemoryRunner gives in-memory stores all-or-nothing writes. It does not
// isolate concurrent transactions; uniqueness is still enforced by each store.
type MemoryRunner struct {
	timeout time.Duration
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{timeout: defaultTxTimeout}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := ctx.Value(memKey{}).(*memTx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	t := &memTx{}
	if err := fn(context.WithValue(ctx, memKey{}, t)); err != nil {
		t.mu.Lock()
		undo := t.undo
		t.mu.Unlock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}
	return nil
}
