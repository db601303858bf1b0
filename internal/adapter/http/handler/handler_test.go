package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-settlement/internal/adapter/http/middleware"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	testBuyer  = domain.Principal{UserID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: domain.RoleBuyer}
	testSeller = domain.Principal{UserID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Role: domain.RoleSeller}
	testAdmin  = domain.Principal{UserID: uuid.MustParse("33333333-3333-3333-3333-333333333333"), Role: domain.RoleAdmin}
)

type testDeps struct {
	router   *gin.Engine
	ingress  *mocks.MockIngressService
	orders   *mocks.MockOrderService
	disputes *mocks.MockDisputeService
	payouts  *mocks.MockPayoutService
	banks    *mocks.MockBankAccountService
	ledger   *mocks.MockLedgerQueryService
	health   *mocks.MockHealthChecker
}

func newTestRouter(t *testing.T) *testDeps {
	t.Helper()
	ctrl := gomock.NewController(t)

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate(gomock.Any()).DoAndReturn(func(token string) (*domain.Principal, error) {
		switch token {
		case "buyer":
			return &testBuyer, nil
		case "seller":
			return &testSeller, nil
		case "admin":
			return &testAdmin, nil
		}
		return nil, errors.New("invalid token")
	}).AnyTimes()

	d := &testDeps{
		ingress:  mocks.NewMockIngressService(ctrl),
		orders:   mocks.NewMockOrderService(ctrl),
		disputes: mocks.NewMockDisputeService(ctrl),
		payouts:  mocks.NewMockPayoutService(ctrl),
		banks:    mocks.NewMockBankAccountService(ctrl),
		ledger:   mocks.NewMockLedgerQueryService(ctrl),
		health:   mocks.NewMockHealthChecker(ctrl),
	}
	d.router = SetupRouter(RouterDeps{
		IngressSvc:      d.ingress,
		OrderSvc:        d.orders,
		DisputeSvc:      d.disputes,
		PayoutSvc:       d.payouts,
		BankAccountSvc:  d.banks,
		LedgerSvc:       d.ledger,
		TokenSvc:        tokens,
		MetricsGatherer: prometheus.NewRegistry(),
		HealthCheckers:  []ports.HealthChecker{d.health},
		Logger:          zerolog.Nop(),
	})
	return d
}

func (d *testDeps) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case []byte:
			buf.Write(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	RequestID string          `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &out))
	return out
}

// --- Webhooks ---

func TestWebhook_PaymentAcknowledged(t *testing.T) {
	d := newTestRouter(t)
	body := []byte(`{"eventId":"evt_1","eventType":"payment.captured","referenceId":"order_1","amount":1000}`)

	d.ingress.EXPECT().Process(gomock.Any(), domain.ChannelPayment, body, "sig-abc").
		Return(&ports.IngestResult{EventID: "evt_1", Status: domain.WebhookEventApplied}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(middleware.HeaderGatewaySignature, "sig-abc")
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	ack := decodeData[map[string]any](t, w)
	assert.Equal(t, "evt_1", ack["event_id"])
	assert.Equal(t, false, ack["duplicate"])
}

func TestWebhook_DuplicateStillOK(t *testing.T) {
	d := newTestRouter(t)
	d.ingress.EXPECT().Process(gomock.Any(), domain.ChannelPayout, gomock.Any(), gomock.Any()).
		Return(&ports.IngestResult{EventID: "evt_2", Duplicate: true, Status: domain.WebhookEventApplied}, nil)

	w := d.do(http.MethodPost, "/webhooks/payout", "", []byte(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData[map[string]any](t, w)["duplicate"])
}

func TestWebhook_InvalidSignature(t *testing.T) {
	d := newTestRouter(t)
	d.ingress.EXPECT().Process(gomock.Any(), domain.ChannelPayment, gomock.Any(), "").
		Return(nil, apperror.ErrInvalidSignature())

	w := d.do(http.MethodPost, "/webhooks/payment", "", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SEC_001", decode(t, w).ErrorCode)
}

// --- Auth ---

func TestAPI_RequiresToken(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodGet, "/api/v1/bank-accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = d.do(http.MethodGet, "/api/v1/bank-accounts", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_AdminRoutesRejectSellers(t *testing.T) {
	d := newTestRouter(t)
	paths := []string{
		"/api/v1/withdrawals/" + uuid.NewString() + "/approve",
		"/api/v1/withdrawals/" + uuid.NewString() + "/submit",
		"/api/v1/disputes/" + uuid.NewString() + "/approve",
		"/api/v1/bank-accounts/" + uuid.NewString() + "/verify",
	}
	for _, p := range paths {
		w := d.do(http.MethodPost, p, "seller", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, p)
		assert.Equal(t, "SEC_003", decode(t, w).ErrorCode, p)
	}
}

// --- Orders ---

func TestCreateOrder(t *testing.T) {
	d := newTestRouter(t)
	productID := uuid.New()
	order := &domain.Order{ID: uuid.New(), BuyerID: testBuyer.UserID, ProductID: productID, GrossAmount: 1000, Status: domain.OrderStatusCreated}

	d.orders.EXPECT().CreateOrder(gomock.Any(), testBuyer.UserID, productID).Return(order, nil)

	w := d.do(http.MethodPost, "/api/v1/orders", "buyer", map[string]string{"product_id": productID.String()})
	assert.Equal(t, http.StatusCreated, w.Code)
	got := decodeData[domain.Order](t, w)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, int64(1000), got.GrossAmount)
}

func TestCreateOrder_Validation(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodPost, "/api/v1/orders", "buyer", map[string]string{"product_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "GEN_002", decode(t, w).ErrorCode)

	w = d.do(http.MethodPost, "/api/v1/orders", "seller", map[string]string{"product_id": uuid.NewString()})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrderStatus(t *testing.T) {
	d := newTestRouter(t)
	order := &domain.Order{ID: uuid.New(), BuyerID: testBuyer.UserID, SellerID: testSeller.UserID, Status: domain.OrderStatusPaid}

	d.orders.EXPECT().GetOrder(gomock.Any(), order.ID).Return(order, nil).Times(2)
	d.orders.EXPECT().GetOrderStatus(gomock.Any(), order.ID).Return(domain.OrderStatusPaid, nil)
	d.orders.EXPECT().IsOrderPaid(gomock.Any(), order.ID).Return(true, nil)

	w := d.do(http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/status", "buyer", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", decodeData[map[string]any](t, w)["status"])

	w = d.do(http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/paid", "seller", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData[map[string]any](t, w)["paid"])
}

func TestOrderStatus_HiddenFromOtherUsers(t *testing.T) {
	d := newTestRouter(t)
	order := &domain.Order{ID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(), Status: domain.OrderStatusPaid}
	d.orders.EXPECT().GetOrder(gomock.Any(), order.ID).Return(order, nil)

	w := d.do(http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/status", "buyer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrder_InvalidID(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodGet, "/api/v1/orders/not-a-uuid", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpenDispute(t *testing.T) {
	d := newTestRouter(t)
	orderID := uuid.New()
	dispute := domain.NewDispute(orderID, testBuyer.UserID, "file corrupted", time.Now())

	d.disputes.EXPECT().OpenDispute(gomock.Any(), orderID, testBuyer.UserID, "file corrupted").Return(dispute, nil)

	w := d.do(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/disputes", "buyer", map[string]string{"reason": "  file corrupted "})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestOpenDispute_AlreadyOpen(t *testing.T) {
	d := newTestRouter(t)
	orderID := uuid.New()
	d.disputes.EXPECT().OpenDispute(gomock.Any(), orderID, testBuyer.UserID, gomock.Any()).Return(nil, apperror.ErrDisputeAlreadyOpen())

	w := d.do(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/disputes", "buyer", map[string]string{"reason": "never arrived"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DSP_001", decode(t, w).ErrorCode)
}

// --- Disputes ---

func TestApproveDispute(t *testing.T) {
	d := newTestRouter(t)
	dispute := domain.NewDispute(uuid.New(), testBuyer.UserID, "refund", time.Now())
	dispute.Status = domain.DisputeApproved

	gomock.InOrder(
		d.disputes.EXPECT().ApproveDispute(gomock.Any(), dispute.ID).Return(nil),
		d.disputes.EXPECT().GetDispute(gomock.Any(), dispute.ID).Return(dispute, nil),
	)

	w := d.do(http.MethodPost, "/api/v1/disputes/"+dispute.ID.String()+"/approve", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.DisputeApproved), decodeData[map[string]any](t, w)["status"])
}

func TestRejectDispute_RequiresNote(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodPost, "/api/v1/disputes/"+uuid.NewString()+"/reject", "admin", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRejectDispute(t *testing.T) {
	d := newTestRouter(t)
	id := uuid.New()
	d.disputes.EXPECT().RejectDispute(gomock.Any(), id, "not eligible").Return(nil)
	d.disputes.EXPECT().GetDispute(gomock.Any(), id).Return(nil, errors.New("replica lag"))

	w := d.do(http.MethodPost, "/api/v1/disputes/"+id.String()+"/reject", "admin", map[string]string{"note": "not eligible"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetDispute_OwnerOnly(t *testing.T) {
	d := newTestRouter(t)
	dispute := domain.NewDispute(uuid.New(), uuid.New(), "x", time.Now())
	d.disputes.EXPECT().GetDispute(gomock.Any(), dispute.ID).Return(dispute, nil)

	w := d.do(http.MethodGet, "/api/v1/disputes/"+dispute.ID.String(), "buyer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Withdrawals ---

func TestCreateWithdrawal(t *testing.T) {
	d := newTestRouter(t)
	accountID := uuid.New()
	wr := domain.NewWithdrawalRequest(testSeller.UserID, accountID, 500, time.Now())

	d.payouts.EXPECT().RequestWithdrawal(gomock.Any(), testSeller.UserID, int64(500), accountID).Return(wr, nil)

	w := d.do(http.MethodPost, "/api/v1/withdrawals", "seller", map[string]any{"amount": 500, "bank_account_id": accountID.String()})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "requested", decodeData[map[string]any](t, w)["status"])
}

func TestCreateWithdrawal_InsufficientBalance(t *testing.T) {
	d := newTestRouter(t)
	d.payouts.EXPECT().RequestWithdrawal(gomock.Any(), testSeller.UserID, int64(900), gomock.Any()).
		Return(nil, apperror.ErrInsufficientBalance())

	w := d.do(http.MethodPost, "/api/v1/withdrawals", "seller", map[string]any{"amount": 900, "bank_account_id": uuid.NewString()})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "BAL_001", decode(t, w).ErrorCode)
}

func TestCreateWithdrawal_BuyerForbidden(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodPost, "/api/v1/withdrawals", "buyer", map[string]any{"amount": 5, "bank_account_id": uuid.NewString()})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWithdrawalAdminTransitions(t *testing.T) {
	d := newTestRouter(t)
	wr := domain.NewWithdrawalRequest(testSeller.UserID, uuid.New(), 500, time.Now())

	d.payouts.EXPECT().Approve(gomock.Any(), wr.ID).Return(wr, nil)
	d.payouts.EXPECT().Hold(gomock.Any(), wr.ID).Return(wr, nil)
	d.payouts.EXPECT().SubmitToGateway(gomock.Any(), wr.ID).Return(nil, apperror.ErrGatewayTimeout(errors.New("deadline")))
	d.payouts.EXPECT().Reject(gomock.Any(), wr.ID, "fraud review").Return(wr, nil)

	base := "/api/v1/withdrawals/" + wr.ID.String()
	assert.Equal(t, http.StatusOK, d.do(http.MethodPost, base+"/approve", "admin", nil).Code)
	assert.Equal(t, http.StatusOK, d.do(http.MethodPost, base+"/hold", "admin", nil).Code)
	assert.Equal(t, http.StatusGatewayTimeout, d.do(http.MethodPost, base+"/submit", "admin", nil).Code)
	assert.Equal(t, http.StatusOK, d.do(http.MethodPost, base+"/reject", "admin", map[string]string{"reason": "fraud review"}).Code)
}

func TestWithdrawalRetry_OwnerOnly(t *testing.T) {
	d := newTestRouter(t)
	own := domain.NewWithdrawalRequest(testSeller.UserID, uuid.New(), 500, time.Now())
	other := domain.NewWithdrawalRequest(uuid.New(), uuid.New(), 500, time.Now())

	d.payouts.EXPECT().GetWithdrawal(gomock.Any(), own.ID).Return(own, nil)
	d.payouts.EXPECT().Retry(gomock.Any(), own.ID).Return(own, nil)
	d.payouts.EXPECT().GetWithdrawal(gomock.Any(), other.ID).Return(other, nil)

	assert.Equal(t, http.StatusOK, d.do(http.MethodPost, "/api/v1/withdrawals/"+own.ID.String()+"/retry", "seller", nil).Code)
	assert.Equal(t, http.StatusNotFound, d.do(http.MethodPost, "/api/v1/withdrawals/"+other.ID.String()+"/retry", "seller", nil).Code)
}

// --- Sellers ---

func TestSellerBalance(t *testing.T) {
	d := newTestRouter(t)
	bal := &domain.SellerBalance{SellerID: testSeller.UserID, Available: 0, Reserved: 0, Debt: 1800}
	d.ledger.EXPECT().GetBalance(gomock.Any(), testSeller.UserID).Return(bal, nil)

	w := d.do(http.MethodGet, "/api/v1/sellers/"+testSeller.UserID.String()+"/balance", "seller", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	got := decodeData[map[string]any](t, w)
	assert.Equal(t, float64(0), got["available_balance"])
	assert.Equal(t, float64(-1800), got["held_balance"])
}

func TestSellerBalance_OtherSellerForbidden(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodGet, "/api/v1/sellers/"+uuid.NewString()+"/balance", "seller", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSellerLedger_Paged(t *testing.T) {
	d := newTestRouter(t)
	entries := []domain.LedgerEntry{domain.OrderEntry(uuid.New(), testSeller.UserID, domain.LedgerSellerEarning, 900, time.Now())}
	d.ledger.EXPECT().ListLedger(gomock.Any(), testSeller.UserID, 10, 20).Return(entries, nil)

	w := d.do(http.MethodGet, "/api/v1/sellers/"+testSeller.UserID.String()+"/ledger?limit=10&offset=20", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Page struct {
			Limit, Offset, Count int
		} `json:"page"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 10, body.Page.Limit)
	assert.Equal(t, 20, body.Page.Offset)
	assert.Equal(t, 1, body.Page.Count)
}

func TestSellerLedger_BadPage(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodGet, "/api/v1/sellers/"+testSeller.UserID.String()+"/ledger?limit=1000", "seller", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSellerWithdrawals_DefaultPage(t *testing.T) {
	d := newTestRouter(t)
	d.payouts.EXPECT().ListWithdrawals(gomock.Any(), testSeller.UserID, defaultPageLimit, 0).Return(nil, nil)

	w := d.do(http.MethodGet, "/api/v1/sellers/"+testSeller.UserID.String()+"/withdrawals", "seller", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBalanceAudit_AdminOnly(t *testing.T) {
	d := newTestRouter(t)
	audit := &ports.BalanceAudit{SellerID: testSeller.UserID, LedgerSum: 900, Available: 900, Consistent: true}
	d.ledger.EXPECT().VerifySellerBalance(gomock.Any(), testSeller.UserID).Return(audit, nil)

	path := "/api/v1/sellers/" + testSeller.UserID.String() + "/balance/audit"
	assert.Equal(t, http.StatusForbidden, d.do(http.MethodGet, path, "seller", nil).Code)
	w := d.do(http.MethodGet, path, "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData[map[string]any](t, w)["consistent"])
}

func TestLedgerTotals(t *testing.T) {
	d := newTestRouter(t)
	d.ledger.EXPECT().LedgerTotals(gomock.Any()).Return(domain.LedgerTotals{
		domain.LedgerSaleGross:     1000,
		domain.LedgerSellerEarning: 900,
	}, nil)

	w := d.do(http.MethodGet, "/api/v1/ledger/totals", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Bank accounts ---

func TestRegisterBankAccount(t *testing.T) {
	d := newTestRouter(t)
	account := &domain.BankAccount{ID: uuid.New(), OwnerID: testSeller.UserID, HolderName: "Asha Rao", AccountNumberMasked: "XXXXXXXX9012", IFSC: "HDFC0001234"}

	d.banks.EXPECT().Register(gomock.Any(), ports.RegisterBankAccountRequest{
		OwnerID:       testSeller.UserID,
		HolderName:    "Asha Rao",
		AccountNumber: "123456789012",
		IFSC:          "HDFC0001234",
	}).Return(account, nil)

	w := d.do(http.MethodPost, "/api/v1/bank-accounts", "seller", map[string]string{
		"holder_name":    "Asha Rao",
		"account_number": "123456789012",
		"ifsc":           "HDFC0001234",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "123456789012")
}

func TestRegisterBankAccount_InvalidIFSC(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodPost, "/api/v1/bank-accounts", "seller", map[string]string{
		"holder_name":    "Asha Rao",
		"account_number": "123456789012",
		"ifsc":           "BAD",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetPrimaryAndDelete(t *testing.T) {
	d := newTestRouter(t)
	account := &domain.BankAccount{ID: uuid.New(), OwnerID: testSeller.UserID, IsVerified: true}

	d.banks.EXPECT().Get(gomock.Any(), account.ID).Return(account, nil).Times(2)
	d.banks.EXPECT().SetPrimary(gomock.Any(), testSeller.UserID, account.ID).Return(nil)
	d.banks.EXPECT().Delete(gomock.Any(), account.ID).Return(apperror.ErrPrimaryAccountProtected())

	w := d.do(http.MethodPut, "/api/v1/bank-accounts/"+account.ID.String()+"/primary", "seller", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData[map[string]any](t, w)["is_primary"])

	w = d.do(http.MethodDelete, "/api/v1/bank-accounts/"+account.ID.String(), "seller", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BNK_003", decode(t, w).ErrorCode)
}

func TestDeleteBankAccount_NotOwner(t *testing.T) {
	d := newTestRouter(t)
	account := &domain.BankAccount{ID: uuid.New(), OwnerID: uuid.New()}
	d.banks.EXPECT().Get(gomock.Any(), account.ID).Return(account, nil)

	w := d.do(http.MethodDelete, "/api/v1/bank-accounts/"+account.ID.String(), "seller", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyBankAccount(t *testing.T) {
	d := newTestRouter(t)
	account := &domain.BankAccount{ID: uuid.New(), OwnerID: testSeller.UserID, IsVerified: true}
	d.banks.EXPECT().Verify(gomock.Any(), account.ID).Return(nil)
	d.banks.EXPECT().Get(gomock.Any(), account.ID).Return(account, nil)

	w := d.do(http.MethodPost, "/api/v1/bank-accounts/"+account.ID.String()+"/verify", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData[map[string]any](t, w)["is_verified"])
}

func TestListBankAccounts(t *testing.T) {
	d := newTestRouter(t)
	d.banks.EXPECT().List(gomock.Any(), testSeller.UserID).Return([]domain.BankAccount{{ID: uuid.New(), OwnerID: testSeller.UserID}}, nil)

	w := d.do(http.MethodGet, "/api/v1/bank-accounts", "seller", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]map[string]any](t, w), 1)
}

// --- Operational ---

func TestHealthCheck(t *testing.T) {
	d := newTestRouter(t)
	d.health.EXPECT().Name().Return("postgresql").AnyTimes()
	d.health.EXPECT().Ping(gomock.Any()).Return(nil)

	w := d.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestHealthCheck_Degraded(t *testing.T) {
	d := newTestRouter(t)
	d.health.EXPECT().Name().Return("redis").AnyTimes()
	d.health.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	w := d.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	d := newTestRouter(t)
	w := d.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSwagger(t *testing.T) {
	d := newTestRouter(t)
	SetSwaggerSpec(nil)
	assert.Equal(t, http.StatusNotFound, d.do(http.MethodGet, "/swagger/spec", "", nil).Code)

	SetSwaggerSpec([]byte("openapi: 3.0.3"))
	defer SetSwaggerSpec(nil)
	w := d.do(http.MethodGet, "/swagger/spec", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, d.do(http.MethodGet, "/swagger", "", nil).Code)
}
