package ports

import "context"

// PaymentGateway is the charge side of the external gateway.
type PaymentGateway interface {
	// CreateOrder registers a charge and returns the gateway order ref.
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (string, error)
}

type GatewayOrderRequest struct {
	Receipt  string // our order id
	Amount   int64
	Currency string
}

// PayoutGateway is the bank-transfer side. CreatePayout is idempotent on
// IdempotencyKey: repeating it returns the original transfer.
// Errors wrap domain.ErrGatewayTimeout or domain.ErrGatewayRejected.
type PayoutGateway interface {
	CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
	GetPayoutStatus(ctx context.Context, payoutRef string) (*PayoutResult, error)
}

type PayoutRequest struct {
	IdempotencyKey string
	Amount         int64
	Currency       string
	Destination    PayoutDestination
	Narration      string
}

type PayoutDestination struct {
	HolderName    string
	AccountNumber string
	IFSC          string
}

// PayoutState is the gateway's view of a transfer.
type PayoutState string

const (
	PayoutStateProcessing PayoutState = "processing"
	PayoutStateProcessed  PayoutState = "processed"
	PayoutStateFailed     PayoutState = "failed"
	PayoutStateReversed   PayoutState = "reversed"
)

type PayoutResult struct {
	PayoutRef     string
	State         PayoutState
	FailureReason string
}
