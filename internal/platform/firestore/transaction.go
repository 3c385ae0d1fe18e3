package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxBudget   = 15 * time.Second
)

// TxFunc runs inside a Firestore transaction. It may run more than once on contention,
// so it must not touch anything outside tx.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption tunes a single RunTransaction call.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	budget   time.Duration
}

// WithTxAttempts caps how often Firestore retries an aborted transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the whole transaction including retries.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.budget = timeout
		}
	}
}

// RunTransaction executes fn on client and maps the outcome through WrapError.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	switch {
	case client == nil:
		return WrapError("transaction", errors.New("firestore: client is nil"))
	case fn == nil:
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	settings := txSettings{attempts: defaultTxAttempts, budget: defaultTxBudget}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	ctx, cancel := withBudget(ctx, settings.budget)
	defer cancel()

	return WrapError("transaction", client.RunTransaction(ctx, fn, firestore.MaxAttempts(settings.attempts)))
}

// withBudget only shortens ctx; a caller deadline tighter than budget wins.
func withBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= budget {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, budget)
}
