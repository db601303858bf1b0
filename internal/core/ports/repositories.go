package ports

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repositories follow one convention: plain reads run against the pool and
// return (nil, nil) when the row is absent; methods taking pgx.Tx are used
// inside transaction blocks. Versioned updates return domain.ErrStaleVersion
// when the row moved underneath the caller.

// OrderRepository persists orders.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	GetByGatewayRefTx(ctx context.Context, tx pgx.Tx, gatewayOrderRef string) (*domain.Order, error)
	// Update writes status, settlement fields and version+1 where version matches.
	Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error
}

// LedgerRepository is append-only.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entries ...domain.LedgerEntry) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error)
	// SumByOwner excludes kinds that do not affect balance.
	SumByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	Totals(ctx context.Context) (domain.LedgerTotals, error)
}

// BalanceRepository persists the per-seller balance cache.
type BalanceRepository interface {
	// Get returns an unpersisted zero balance (Version 0) when no row exists.
	Get(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error)
	GetTx(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID) (*domain.SellerBalance, error)
	// Save inserts when Version is 0, otherwise updates where version matches.
	Save(ctx context.Context, tx pgx.Tx, balance *domain.SellerBalance) error
}

// WithdrawalRepository persists withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error)
	Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]domain.WithdrawalRequest, error)
	// ListStale returns requests in status whose updated_at is before cutoff, oldest first.
	ListStale(ctx context.Context, status domain.WithdrawalStatus, cutoff time.Time, limit int) ([]domain.WithdrawalRequest, error)
	// CountInFlightByAccountTx counts requests still holding funds against the account.
	CountInFlightByAccountTx(ctx context.Context, tx pgx.Tx, bankAccountID uuid.UUID) (int, error)
}

// DisputeRepository persists disputes.
type DisputeRepository interface {
	// Create returns domain.ErrDuplicate when the order already has an open dispute.
	Create(ctx context.Context, tx pgx.Tx, d *domain.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Dispute, error)
	Update(ctx context.Context, tx pgx.Tx, d *domain.Dispute) error
}

// BankAccountRepository persists payout destinations. Deleted rows are hidden.
type BankAccountRepository interface {
	Create(ctx context.Context, tx pgx.Tx, a *domain.BankAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BankAccount, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.BankAccount, error)
	GetPrimary(ctx context.Context, ownerID uuid.UUID) (*domain.BankAccount, error)
	ClearPrimary(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) error
	// MarkPrimary returns domain.ErrStaleVersion when another primary appeared concurrently.
	MarkPrimary(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	SoftDelete(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
}

// WebhookEventRepository is the dedup table and command outbox.
type WebhookEventRepository interface {
	// Insert records the event; inserted is false when the event id already exists.
	Insert(ctx context.Context, tx pgx.Tx, e *domain.ProcessedWebhookEvent) (inserted bool, err error)
	GetByEventID(ctx context.Context, eventID string) (*domain.ProcessedWebhookEvent, error)
	// MarkAppliedTx flips a not-yet-applied event to applied inside the apply
	// transaction. marked is false when the event was already applied.
	MarkAppliedTx(ctx context.Context, tx pgx.Tx, eventID string, at time.Time) (marked bool, err error)
	// RecordFailure bumps attempts and stores the error with status failed or rejected.
	RecordFailure(ctx context.Context, eventID string, status domain.WebhookEventStatus, reason string, at time.Time) error
	// ListRetryable returns pending or failed events received before cutoff with attempts below maxAttempts.
	ListRetryable(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]domain.ProcessedWebhookEvent, error)
}

// AuditRepository persists audit logs.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// NotificationRepository records notification delivery attempts.
type NotificationRepository interface {
	Create(ctx context.Context, d *domain.NotificationDelivery) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, attempt int, lastError *string) error
}

// ProductCatalog is the read-only catalog collaborator.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
