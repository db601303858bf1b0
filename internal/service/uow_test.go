package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"marketplace-settlement/internal/adapter/storage/memory"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestSettle_RetriesExhaustedIsConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memory.NewStore()
	orders := mocks.NewMockOrderRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	order := &domain.Order{ID: uuid.New(), SellerID: uuid.New(), GrossAmount: 1000, Status: domain.OrderStatusCreated, Version: 1}

	orders.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), order.ID).
		DoAndReturn(func(context.Context, pgx.Tx, uuid.UUID) (*domain.Order, error) {
			cp := *order
			return &cp, nil
		}).Times(3)
	orders.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ErrStaleVersion).Times(3)

	svc := NewSettlementService(orders, memory.NewLedgerRepository(store), memory.NewBalanceRepository(store), store,
		NewCommissionPolicy(decimal.RequireFromString("0.1"), nil), notifier, nil, testPlatformID, 3, newTestLogger())

	err := svc.Settle(context.Background(), order.ID, domain.OutcomePaid, "pay_1")
	assert.ErrorIs(t, err, apperror.ErrConflict(nil))
}

func TestSettle_RecoversFromOneConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memory.NewStore()
	orders := mocks.NewMockOrderRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	order := &domain.Order{ID: uuid.New(), SellerID: uuid.New(), GrossAmount: 1000, Status: domain.OrderStatusCreated, Version: 1}

	orders.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), order.ID).
		DoAndReturn(func(context.Context, pgx.Tx, uuid.UUID) (*domain.Order, error) {
			cp := *order
			return &cp, nil
		}).Times(2)
	gomock.InOrder(
		orders.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ErrStaleVersion),
		orders.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
	)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(1)

	ledger := memory.NewLedgerRepository(store)
	svc := NewSettlementService(orders, ledger, memory.NewBalanceRepository(store), store,
		NewCommissionPolicy(decimal.RequireFromString("0.1"), nil), notifier, nil, testPlatformID, 3, newTestLogger())

	err := svc.Settle(context.Background(), order.ID, domain.OutcomePaid, "pay_1")
	assert.NoError(t, err)

	// The losing attempt was rolled back: one set of entries only.
	totals, _ := ledger.Totals(context.Background())
	assert.Equal(t, int64(1000), totals[domain.LedgerSaleGross])
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *apperror.AppError
	}{
		{"transition", &domain.TransitionError{Entity: "order", From: "paid", To: "created"}, apperror.ErrInvalidTransition("", "", "")},
		{"insufficient", fmt.Errorf("reserve: %w", domain.ErrInsufficientFunds), apperror.ErrInsufficientBalance()},
		{"non-positive", domain.ErrNonPositiveAmount, apperror.Validation("")},
		{"gateway timeout", domain.ErrGatewayTimeout, apperror.ErrGatewayTimeout(nil)},
		{"gateway rejected", domain.ErrGatewayRejected, apperror.ErrGatewayPermanentFailure(nil)},
		{"stale", domain.ErrStaleVersion, apperror.ErrConflict(nil)},
		{"app error passes", apperror.ErrOrderNotPaid(), apperror.ErrOrderNotPaid()},
		{"unknown", errors.New("disk full"), apperror.InternalError(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, toAppError(tt.err), tt.want)
		})
	}
	assert.NoError(t, toAppError(nil))
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	store := memory.NewStore()
	ledger := memory.NewLedgerRepository(store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := runInTx(ctx, store, func(tx pgx.Tx) error {
		if err := ledger.Append(ctx, tx, domain.OrderEntry(uuid.New(), uuid.New(), domain.LedgerSellerEarning, 10, time.Now())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	totals, _ := ledger.Totals(ctx)
	assert.Empty(t, totals)
}

func TestClampPage(t *testing.T) {
	l, o := clampPage(0, -5)
	assert.Equal(t, 50, l)
	assert.Equal(t, 0, o)
	l, _ = clampPage(1000, 0)
	assert.Equal(t, 200, l)
}
