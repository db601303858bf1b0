package postgres

import (
	"context"
	"testing"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepo_Append(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLedgerRepo(mock)
	orderID, sellerID, platformID := uuid.New(), uuid.New(), uuid.New()
	now := testNow()

	entries := []domain.LedgerEntry{
		domain.OrderEntry(orderID, sellerID, domain.LedgerSaleGross, 10000, now),
		domain.OrderEntry(orderID, platformID, domain.LedgerPlatformCommission, 1000, now),
		domain.OrderEntry(orderID, sellerID, domain.LedgerSellerEarning, 9000, now),
	}

	tx := beginTx(t, mock)
	for _, e := range entries {
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(e.ID, e.OrderID, e.PayoutID, e.OwnerID, e.Kind, e.Amount, e.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	assert.NoError(t, repo.Append(context.Background(), tx, entries...))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByOwner(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLedgerRepo(mock)
	sellerID, payoutID := uuid.New(), uuid.New()
	e := domain.PayoutEntry(payoutID, sellerID, domain.LedgerPayoutDebit, -4000, testNow())

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE owner_id .+ ORDER BY seq DESC").
		WithArgs(sellerID, 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "payout_id", "owner_id", "kind", "amount", "created_at"}).
			AddRow(e.ID, e.OrderID, e.PayoutID, e.OwnerID, e.Kind, e.Amount, e.CreatedAt))

	got, err := repo.ListByOwner(context.Background(), sellerID, 50, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(-4000), got[0].Amount)
	assert.Equal(t, payoutID, *got[0].PayoutID)
	assert.Nil(t, got[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumByOwner_ExcludesGross(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLedgerRepo(mock)
	sellerID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)::BIGINT FROM ledger_entries WHERE owner_id .+ AND kind <>").
		WithArgs(sellerID, domain.LedgerSaleGross).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(5000)))

	sum, err := repo.SumByOwner(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Totals(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT kind, .+ FROM ledger_entries GROUP BY kind").
		WillReturnRows(pgxmock.NewRows([]string{"kind", "sum"}).
			AddRow(domain.LedgerSaleGross, int64(10000)).
			AddRow(domain.LedgerPlatformCommission, int64(1000)).
			AddRow(domain.LedgerSellerEarning, int64(9000)))

	totals, err := repo.Totals(context.Background())
	require.NoError(t, err)
	assert.True(t, totals.Conserved())
	assert.Equal(t, int64(10000), totals[domain.LedgerSaleGross])
	assert.NoError(t, mock.ExpectationsWereMet())
}
