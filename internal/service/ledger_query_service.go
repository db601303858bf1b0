package service

import (
	"context"
	"fmt"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ledgerQueryService implements ports.LedgerQueryService.
type ledgerQueryService struct {
	ledger   ports.LedgerRepository
	balances ports.BalanceRepository
	log      zerolog.Logger
}

// NewLedgerQueryService creates a new ledger query service.
func NewLedgerQueryService(
	ledger ports.LedgerRepository,
	balances ports.BalanceRepository,
	log zerolog.Logger,
) ports.LedgerQueryService {
	return &ledgerQueryService{
		ledger:   ledger,
		balances: balances,
		log:      log,
	}
}

// GetBalance returns the cached balance; a seller with no sales gets zeros.
func (s *ledgerQueryService) GetBalance(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	balance, err := s.balances.Get(ctx, sellerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return balance, nil
}

// ListLedger returns entries newest first.
func (s *ledgerQueryService) ListLedger(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error) {
	limit, offset = clampPage(limit, offset)
	entries, err := s.ledger.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return entries, nil
}

// VerifySellerBalance recomputes the seller's balance from the ledger and
// compares it with the cached row.
func (s *ledgerQueryService) VerifySellerBalance(ctx context.Context, sellerID uuid.UUID) (*ports.BalanceAudit, error) {
	balance, err := s.balances.Get(ctx, sellerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	sum, err := s.ledger.SumByOwner(ctx, sellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum ledger: %w", err))
	}

	audit := &ports.BalanceAudit{
		SellerID:   sellerID,
		LedgerSum:  sum,
		Available:  balance.Available,
		Held:       balance.HeldBalance(),
		Consistent: sum == balance.LedgerBalance(),
	}
	if !audit.Consistent {
		s.log.Error().
			Str("seller_id", sellerID.String()).
			Int64("ledger_sum", sum).
			Int64("cached", balance.LedgerBalance()).
			Msg("seller balance drifted from ledger")
	}
	return audit, nil
}

// LedgerTotals sums every entry by kind.
func (s *ledgerQueryService) LedgerTotals(ctx context.Context) (domain.LedgerTotals, error) {
	totals, err := s.ledger.Totals(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !totals.Conserved() {
		s.log.Error().Interface("totals", totals).Msg("ledger conservation check failed")
	}
	return totals, nil
}
