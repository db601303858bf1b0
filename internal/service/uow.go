package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const defaultMaxVersionRetries = 5

var (
	// errSkip aborts a unit of work whose precondition no longer holds.
	errSkip = errors.New("skip")
	// errUnknownReference means a gateway event names an entity that does
	// not exist yet. The event stays retryable.
	errUnknownReference = errors.New("unknown gateway reference")
	// errAlreadyApplied means another delivery applied the event first.
	errAlreadyApplied = errors.New("webhook event already applied")
)

func utcNow() time.Time {
	return time.Now().UTC()
}

// runInTx begins a transaction, runs fn and commits. Any error rolls back.
func runInTx(ctx context.Context, transactor ports.DBTransactor, fn func(tx pgx.Tx) error) error {
	dbTx, err := transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := fn(dbTx); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// versionRetrier reruns a whole unit of work when an optimistic version
// check loses, up to a bounded number of attempts.
type versionRetrier struct {
	attempts int
	metrics  *metrics.SettlementMetrics
	log      zerolog.Logger
}

func newVersionRetrier(attempts int, m *metrics.SettlementMetrics, log zerolog.Logger) versionRetrier {
	if attempts <= 0 {
		attempts = defaultMaxVersionRetries
	}
	return versionRetrier{attempts: attempts, metrics: m, log: log}
}

func (r versionRetrier) do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrStaleVersion) {
			return toAppError(err)
		}
		r.metrics.VersionConflict(op)
		r.log.Debug().Str("op", op).Int("attempt", attempt).Msg("version conflict, reloading")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperror.InternalError(ctxErr)
		}
	}
	return apperror.ErrConflict(err)
}

// toAppError maps domain errors to their API errors. AppErrors pass through;
// anything else is internal.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var te *domain.TransitionError
	switch {
	case errors.As(err, &te):
		return apperror.ErrInvalidTransition(te.Entity, te.From, te.To)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientBalance()
	case errors.Is(err, domain.ErrNonPositiveAmount):
		return apperror.Validation("amount must be positive")
	case errors.Is(err, domain.ErrGatewayTimeout):
		return apperror.ErrGatewayTimeout(err)
	case errors.Is(err, domain.ErrGatewayRejected):
		return apperror.ErrGatewayPermanentFailure(err)
	case errors.Is(err, domain.ErrStaleVersion):
		return apperror.ErrConflict(err)
	default:
		return apperror.InternalError(err)
	}
}

// clampPage bounds listing windows.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
