package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withdrawalCols() []string {
	return []string{"id", "seller_id", "amount", "status", "bank_account_id", "gateway_payout_ref", "failure_reason",
		"attempt", "version", "created_at", "updated_at", "submitted_at", "resolved_at"}
}

func withdrawalRows(ws ...*domain.WithdrawalRequest) *pgxmock.Rows {
	rows := pgxmock.NewRows(withdrawalCols())
	for _, w := range ws {
		rows.AddRow(w.ID, w.SellerID, w.Amount, w.Status, w.BankAccountID, w.GatewayPayoutRef, w.FailureReason,
			w.Attempt, w.Version, w.CreatedAt, w.UpdatedAt, w.SubmittedAt, w.ResolvedAt)
	}
	return rows
}

func TestWithdrawalRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWithdrawalRepo(mock)
	w := domain.NewWithdrawalRequest(uuid.New(), uuid.New(), 4000, testNow())

	tx := beginTx(t, mock)
	mock.ExpectExec("INSERT INTO withdrawal_requests").
		WithArgs(w.ID, w.SellerID, w.Amount, w.Status, w.BankAccountID, w.GatewayPayoutRef, w.FailureReason,
			w.Attempt, w.Version, w.CreatedAt, w.UpdatedAt, w.SubmittedAt, w.ResolvedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByIDTx(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWithdrawalRepo(mock)
	w := domain.NewWithdrawalRequest(uuid.New(), uuid.New(), 4000, testNow())
	w.Status = domain.WithdrawalProcessing
	w.GatewayPayoutRef = strPtr("pout_1")

	tx := beginTx(t, mock)
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id .+ FOR UPDATE").
		WithArgs(w.ID).
		WillReturnRows(withdrawalRows(w))

	got, err := repo.GetByIDTx(context.Background(), tx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalProcessing, got.Status)
	assert.Equal(t, "pout_1", *got.GatewayPayoutRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_Update(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWithdrawalRepo(mock)
	w := domain.NewWithdrawalRequest(uuid.New(), uuid.New(), 4000, testNow())
	w.Status = domain.WithdrawalApproved

	tx := beginTx(t, mock)
	mock.ExpectExec("UPDATE withdrawal_requests SET .+ WHERE id = .+ AND version").
		WithArgs(w.Status, w.GatewayPayoutRef, w.FailureReason, w.Attempt, w.UpdatedAt, w.SubmittedAt, w.ResolvedAt, w.ID, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), tx, w))
	assert.Equal(t, int64(2), w.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListStale(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWithdrawalRepo(mock)
	cutoff := testNow().Add(-30 * time.Minute)
	old := domain.NewWithdrawalRequest(uuid.New(), uuid.New(), 500, cutoff.Add(-time.Hour))
	old.Status = domain.WithdrawalProcessing

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests\\s+WHERE status = .+ AND updated_at < .+ ORDER BY updated_at ASC").
		WithArgs(domain.WithdrawalProcessing, cutoff, 100).
		WillReturnRows(withdrawalRows(old))

	got, err := repo.ListStale(context.Background(), domain.WithdrawalProcessing, cutoff, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListBySeller_Empty(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWithdrawalRepo(mock)
	sellerID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests\\s+WHERE seller_id").
		WithArgs(sellerID, 20, 40).
		WillReturnRows(withdrawalRows())

	got, err := repo.ListBySeller(context.Background(), sellerID, 20, 40)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_CountInFlightByAccountTx(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWithdrawalRepo(mock)
	accountID := uuid.New()

	tx := beginTx(t, mock)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM withdrawal_requests").
		WithArgs(accountID, domain.WithdrawalRequested, domain.WithdrawalApproved, domain.WithdrawalProcessing).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountInFlightByAccountTx(context.Background(), tx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
