package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"marketplace-settlement/internal/adapter/storage/memory"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testAESKey        = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testPaymentSecret = "payment-webhook-secret"
	testPayoutSecret  = "payout-webhook-secret"
)

var testPlatformID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakeGateway is an in-process stand-in for both gateway ports. Payouts
// are idempotent on the request key like the real gateway.
type fakeGateway struct {
	mu          sync.Mutex
	seq         int
	orderErr    error
	payoutErr   error // returned once by the next CreatePayout
	payoutState ports.PayoutState
	byKey       map[string]*ports.PayoutResult
	status      map[string]*ports.PayoutResult
	requests    []ports.PayoutRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payoutState: ports.PayoutStateProcessing,
		byKey:       make(map[string]*ports.PayoutResult),
		status:      make(map[string]*ports.PayoutResult),
	}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req ports.GatewayOrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return "", g.orderErr
	}
	g.seq++
	return fmt.Sprintf("order_%d", g.seq), nil
}

func (g *fakeGateway) CreatePayout(ctx context.Context, req ports.PayoutRequest) (*ports.PayoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if err := g.payoutErr; err != nil {
		g.payoutErr = nil
		return nil, err
	}
	if existing, ok := g.byKey[req.IdempotencyKey]; ok {
		return existing, nil
	}
	g.seq++
	res := &ports.PayoutResult{PayoutRef: fmt.Sprintf("pout_%d", g.seq), State: g.payoutState}
	g.byKey[req.IdempotencyKey] = res
	return res, nil
}

func (g *fakeGateway) GetPayoutStatus(ctx context.Context, payoutRef string) (*ports.PayoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.status[payoutRef]; ok {
		return res, nil
	}
	return &ports.PayoutResult{PayoutRef: payoutRef, State: ports.PayoutStateProcessing}, nil
}

func (g *fakeGateway) setStatus(ref string, state ports.PayoutState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[ref] = &ports.PayoutResult{PayoutRef: ref, State: state}
}

func (g *fakeGateway) payoutRequests() []ports.PayoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.PayoutRequest(nil), g.requests...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, events ...domain.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
}

func (n *recordingNotifier) types() []domain.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

// harness wires every service over one memory store and a settable clock.
type harness struct {
	t     *testing.T
	ctx   context.Context
	clock time.Time

	store       *memory.Store
	orders      *memory.OrderRepository
	ledger      *memory.LedgerRepository
	balances    *memory.BalanceRepository
	withdrawals *memory.WithdrawalRepository
	events      *memory.WebhookEventRepository
	catalog     *memory.Catalog
	cache       *memory.Cache

	gateway  *fakeGateway
	notifier *recordingNotifier
	sig      *HMACSignatureService

	orderSvc   *OrderServiceImpl
	settlement *SettlementServiceImpl
	disputes   *DisputeServiceImpl
	banks      *BankAccountServiceImpl
	payouts    *PayoutServiceImpl
	ingress    *IngressServiceImpl
	query      ports.LedgerQueryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		store:    memory.NewStore(),
		gateway:  newFakeGateway(),
		notifier: &recordingNotifier{},
		sig:      NewHMACSignatureService(),
		cache:    memory.NewCache(),
	}
	log := newTestLogger()
	now := func() time.Time { return h.clock }

	h.orders = memory.NewOrderRepository(h.store)
	h.ledger = memory.NewLedgerRepository(h.store)
	h.balances = memory.NewBalanceRepository(h.store)
	h.withdrawals = memory.NewWithdrawalRepository(h.store)
	h.events = memory.NewWebhookEventRepository(h.store)
	h.catalog = memory.NewCatalog(h.store)
	disputeRepo := memory.NewDisputeRepository(h.store)
	accounts := memory.NewBankAccountRepository(h.store)

	enc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	policy := NewCommissionPolicy(decimal.RequireFromString("0.10"), map[string]decimal.Decimal{
		"ebooks": decimal.RequireFromString("0.05"),
		"zero":   decimal.Zero,
	})

	h.orderSvc = NewOrderService(h.orders, h.catalog, h.gateway, h.store, "INR", log)
	h.orderSvc.now = now
	h.settlement = NewSettlementService(h.orders, h.ledger, h.balances, h.store, policy, h.notifier, nil, testPlatformID, 3, log)
	h.settlement.now = now
	h.disputes = NewDisputeService(disputeRepo, h.orders, h.ledger, h.balances, h.store, h.notifier, nil, testPlatformID, 3, log)
	h.disputes.now = now
	h.banks = NewBankAccountService(accounts, h.withdrawals, enc, h.store, nil, 3, log)
	h.banks.now = now
	h.payouts = NewPayoutService(h.withdrawals, h.balances, h.ledger, accounts, h.banks, h.gateway, h.store, h.notifier, nil, PayoutSettings{
		Currency:           "INR",
		ReconcileAfter:     30 * time.Minute,
		HoldReleaseTimeout: 7 * 24 * time.Hour,
		BatchSize:          50,
		MaxVersionRetries:  3,
	}, log)
	h.payouts.now = now
	h.ingress = NewIngressService(h.events, h.orders, h.store, h.sig, h.cache, h.settlement, h.payouts, nil, IngressSettings{
		PaymentSecret:    testPaymentSecret,
		PayoutSecret:     testPayoutSecret,
		SweepGrace:       2 * time.Minute,
		MaxApplyAttempts: 3,
		DedupCacheTTL:    time.Hour,
	}, log)
	h.ingress.now = now
	h.query = NewLedgerQueryService(h.ledger, h.balances, log)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

// newOrder lists a product and checks it out.
func (h *harness) newOrder(sellerID uuid.UUID, price int64, category string) *domain.Order {
	h.t.Helper()
	product := domain.Product{ID: uuid.New(), SellerID: sellerID, Price: price, Category: category}
	h.catalog.Put(product)
	order, err := h.orderSvc.CreateOrder(h.ctx, uuid.New(), product.ID)
	require.NoError(h.t, err)
	return order
}

// paidOrder creates and settles an order.
func (h *harness) paidOrder(sellerID uuid.UUID, price int64, category string) *domain.Order {
	h.t.Helper()
	order := h.newOrder(sellerID, price, category)
	require.NoError(h.t, h.settlement.Settle(h.ctx, order.ID, domain.OutcomePaid, "pay_"+order.ID.String()[:8]))
	got, err := h.orderSvc.GetOrder(h.ctx, order.ID)
	require.NoError(h.t, err)
	return got
}

// earn credits exactly amount to the seller through a commission-free sale.
func (h *harness) earn(sellerID uuid.UUID, amount int64) {
	h.t.Helper()
	h.paidOrder(sellerID, amount, "zero")
}

// primaryAccount registers, verifies and promotes an account.
func (h *harness) primaryAccount(ownerID uuid.UUID) *domain.BankAccount {
	h.t.Helper()
	account, err := h.banks.Register(h.ctx, ports.RegisterBankAccountRequest{
		OwnerID:       ownerID,
		HolderName:    "Asha Rao",
		AccountNumber: "001122334455",
		IFSC:          "hdfc0001234",
	})
	require.NoError(h.t, err)
	require.NoError(h.t, h.banks.Verify(h.ctx, account.ID))
	require.NoError(h.t, h.banks.SetPrimary(h.ctx, ownerID, account.ID))
	got, err := h.banks.Get(h.ctx, account.ID)
	require.NoError(h.t, err)
	return got
}

func (h *harness) balance(sellerID uuid.UUID) *domain.SellerBalance {
	h.t.Helper()
	b, err := h.query.GetBalance(h.ctx, sellerID)
	require.NoError(h.t, err)
	return b
}

func (h *harness) withdrawal(id uuid.UUID) *domain.WithdrawalRequest {
	h.t.Helper()
	w, err := h.payouts.GetWithdrawal(h.ctx, id)
	require.NoError(h.t, err)
	return w
}

func (h *harness) entries(ownerID uuid.UUID) []domain.LedgerEntry {
	h.t.Helper()
	list, err := h.ledger.ListByOwner(h.ctx, ownerID, 1000, 0)
	require.NoError(h.t, err)
	return list
}

func (h *harness) requireConsistent(sellerID uuid.UUID) {
	h.t.Helper()
	audit, err := h.query.VerifySellerBalance(h.ctx, sellerID)
	require.NoError(h.t, err)
	require.True(h.t, audit.Consistent, "ledger sum %d, cached %d+%d", audit.LedgerSum, audit.Available, audit.Held)
}

// webhook builds a signed delivery.
func (h *harness) webhook(channel domain.WebhookChannel, payload map[string]any) ([]byte, string) {
	h.t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(h.t, err)
	secret := testPaymentSecret
	if channel == domain.ChannelPayout {
		secret = testPayoutSecret
	}
	return body, h.sig.Sign(secret, string(body))
}

func (h *harness) process(channel domain.WebhookChannel, payload map[string]any) *ports.IngestResult {
	h.t.Helper()
	body, sig := h.webhook(channel, payload)
	res, err := h.ingress.Process(h.ctx, channel, body, sig)
	require.NoError(h.t, err)
	return res
}
