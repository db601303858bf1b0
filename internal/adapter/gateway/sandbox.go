package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
)

// Sandbox is an in-process gateway for local runs and tests. Payouts stay in
// processing until Resolve moves them, mirroring an asynchronous bank rail.
type Sandbox struct {
	mu      sync.Mutex
	orders  map[string]string // receipt -> gateway order id
	payouts map[string]*ports.PayoutResult
	byKey   map[string]string // idempotency key -> payout ref
	calls   int
}

// NewSandbox creates an empty sandbox gateway.
func NewSandbox() *Sandbox {
	return &Sandbox{
		orders:  make(map[string]string),
		payouts: make(map[string]*ports.PayoutResult),
		byKey:   make(map[string]string),
	}
}

// CreateOrder returns a stable gateway order id per receipt.
func (s *Sandbox) CreateOrder(ctx context.Context, req ports.GatewayOrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGatewayTimeout, err)
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", domain.ErrGatewayRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.orders[req.Receipt]; ok {
		return id, nil
	}
	id := "order_" + compactID()
	s.orders[req.Receipt] = id
	return id, nil
}

// CreatePayout is idempotent on the request key.
func (s *Sandbox) CreatePayout(ctx context.Context, req ports.PayoutRequest) (*ports.PayoutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayTimeout, err)
	}
	if req.IdempotencyKey == "" || req.Amount <= 0 {
		return nil, fmt.Errorf("%w: invalid payout request", domain.ErrGatewayRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if ref, ok := s.byKey[req.IdempotencyKey]; ok {
		out := *s.payouts[ref]
		return &out, nil
	}
	ref := "pout_" + compactID()
	res := &ports.PayoutResult{PayoutRef: ref, State: ports.PayoutStateProcessing}
	s.payouts[ref] = res
	s.byKey[req.IdempotencyKey] = ref
	out := *res
	return &out, nil
}

// GetPayoutStatus returns the current sandbox state of a payout.
func (s *Sandbox) GetPayoutStatus(ctx context.Context, payoutRef string) (*ports.PayoutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayTimeout, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.payouts[payoutRef]
	if !ok {
		return nil, fmt.Errorf("%w: unknown payout %s", domain.ErrGatewayRejected, payoutRef)
	}
	out := *res
	return &out, nil
}

// Resolve moves a payout to a terminal state.
func (s *Sandbox) Resolve(payoutRef string, state ports.PayoutState, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.payouts[payoutRef]
	if !ok {
		return fmt.Errorf("unknown payout %s", payoutRef)
	}
	res.State = state
	res.FailureReason = reason
	return nil
}

// PayoutCalls reports how many CreatePayout calls the sandbox has served.
func (s *Sandbox) PayoutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func compactID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
