package ports

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService validates principals issued by the auth layer.
type TokenService interface {
	Generate(principal domain.Principal, ttl time.Duration) (string, error)
	Validate(tokenString string) (*domain.Principal, error)
}

// IdempotencyCache is the Redis fast path in front of the dedup table.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Notifier publishes committed changes. It never blocks or fails the caller.
type Notifier interface {
	Notify(ctx context.Context, events ...domain.NotificationEvent)
}

// NotificationSink delivers a single event to the notification collaborator.
type NotificationSink interface {
	Name() string
	Deliver(ctx context.Context, event domain.NotificationEvent) error
}

// AuditService records audited actions asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// IngressService verifies, deduplicates and applies gateway webhooks.
type IngressService interface {
	Ingest(ctx context.Context, channel domain.WebhookChannel, rawBody []byte, signature string) (*IngestResult, error)
	// Process ingests and, on first sight, applies the command. Apply failures
	// are logged and left to the sweep; they do not surface as errors.
	Process(ctx context.Context, channel domain.WebhookChannel, rawBody []byte, signature string) (*IngestResult, error)
	Sweep(ctx context.Context) (int, error)
}

// IngestResult is the outcome of recording one webhook delivery.
type IngestResult struct {
	EventID   string                    `json:"event_id"`
	Duplicate bool                      `json:"duplicate"`
	Command   domain.Command            `json:"command"`
	Status    domain.WebhookEventStatus `json:"status"`
}

// OrderService covers checkout and order queries.
type OrderService interface {
	CreateOrder(ctx context.Context, buyerID, productID uuid.UUID) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrderStatus(ctx context.Context, orderID uuid.UUID) (domain.OrderStatus, error)
	IsOrderPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// SettlementService applies payment outcomes to orders.
type SettlementService interface {
	Settle(ctx context.Context, orderID uuid.UUID, outcome domain.SettlementOutcome, gatewayPaymentRef string) error
}

// DisputeService opens and resolves buyer disputes.
type DisputeService interface {
	OpenDispute(ctx context.Context, orderID, buyerID uuid.UUID, reason string) (*domain.Dispute, error)
	ApproveDispute(ctx context.Context, disputeID uuid.UUID) error
	RejectDispute(ctx context.Context, disputeID uuid.UUID, note string) error
	GetDispute(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error)
}

// PayoutService drives the withdrawal state machine.
type PayoutService interface {
	RequestWithdrawal(ctx context.Context, sellerID uuid.UUID, amount int64, bankAccountID uuid.UUID) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error)
	Reject(ctx context.Context, withdrawalID uuid.UUID, reason string) (*domain.WithdrawalRequest, error)
	Hold(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error)
	Retry(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error)
	SubmitToGateway(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]domain.WithdrawalRequest, error)
	Reconcile(ctx context.Context) (int, error)
	ExpireStaleRequests(ctx context.Context) (int, error)
}

// BankAccountService is the payout destination registry.
type BankAccountService interface {
	Register(ctx context.Context, req RegisterBankAccountRequest) (*domain.BankAccount, error)
	Verify(ctx context.Context, accountID uuid.UUID) error
	SetPrimary(ctx context.Context, ownerID, accountID uuid.UUID) error
	Delete(ctx context.Context, accountID uuid.UUID) error
	GetPrimary(ctx context.Context, ownerID uuid.UUID) (*domain.BankAccount, error)
	Get(ctx context.Context, accountID uuid.UUID) (*domain.BankAccount, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]domain.BankAccount, error)
}

// RegisterBankAccountRequest holds validated input for a new payout destination.
type RegisterBankAccountRequest struct {
	OwnerID       uuid.UUID
	HolderName    string
	AccountNumber string
	IFSC          string
}

// LedgerQueryService answers balance and ledger reads.
type LedgerQueryService interface {
	GetBalance(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error)
	ListLedger(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error)
	VerifySellerBalance(ctx context.Context, sellerID uuid.UUID) (*BalanceAudit, error)
	LedgerTotals(ctx context.Context) (domain.LedgerTotals, error)
}

// BalanceAudit compares the cached balance with the ledger.
type BalanceAudit struct {
	SellerID   uuid.UUID `json:"seller_id"`
	LedgerSum  int64     `json:"ledger_sum"`
	Available  int64     `json:"available_balance"`
	Held       int64     `json:"held_balance"`
	Consistent bool      `json:"consistent"`
}
