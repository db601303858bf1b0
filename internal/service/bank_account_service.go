package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// BankAccountServiceImpl implements ports.BankAccountService.
type BankAccountServiceImpl struct {
	accounts    ports.BankAccountRepository
	withdrawals ports.WithdrawalRepository
	encSvc      ports.EncryptionService
	transactor  ports.DBTransactor
	retry       versionRetrier
	log         zerolog.Logger
	now         func() time.Time
}

// NewBankAccountService creates a new BankAccountServiceImpl.
func NewBankAccountService(
	accounts ports.BankAccountRepository,
	withdrawals ports.WithdrawalRepository,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	m *metrics.SettlementMetrics,
	maxRetries int,
	log zerolog.Logger,
) *BankAccountServiceImpl {
	return &BankAccountServiceImpl{
		accounts:    accounts,
		withdrawals: withdrawals,
		encSvc:      encSvc,
		transactor:  transactor,
		retry:       newVersionRetrier(maxRetries, m, log),
		log:         log,
		now:         utcNow,
	}
}

// Register stores a new unverified, non-primary account.
func (s *BankAccountServiceImpl) Register(ctx context.Context, req ports.RegisterBankAccountRequest) (*domain.BankAccount, error) {
	number := strings.TrimSpace(req.AccountNumber)
	if number == "" || strings.TrimSpace(req.HolderName) == "" {
		return nil, apperror.Validation("holder name and account number are required")
	}

	enc, err := s.encSvc.Encrypt(number)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt account number: %w", err))
	}

	now := s.now()
	account := &domain.BankAccount{
		ID:                  uuid.New(),
		OwnerID:             req.OwnerID,
		HolderName:          strings.TrimSpace(req.HolderName),
		AccountNumberEnc:    enc,
		AccountNumberMasked: domain.MaskAccountNumber(number),
		IFSC:                strings.ToUpper(strings.TrimSpace(req.IFSC)),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
		return s.accounts.Create(ctx, tx, account)
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("owner_id", account.OwnerID.String()).
		Msg("bank account registered")
	return account, nil
}

// Verify marks an account as verified. Admin only at the API boundary.
func (s *BankAccountServiceImpl) Verify(ctx context.Context, accountID uuid.UUID) error {
	err := runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
		account, err := s.accounts.GetByIDTx(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if account == nil {
			return apperror.ErrNotFound("Bank account")
		}
		return s.accounts.MarkVerified(ctx, tx, accountID)
	})
	return toAppError(err)
}

// SetPrimary makes accountID the single primary account of ownerID. The
// old primary is cleared in the same transaction.
func (s *BankAccountServiceImpl) SetPrimary(ctx context.Context, ownerID, accountID uuid.UUID) error {
	err := s.retry.do(ctx, "set_primary", func() error {
		return runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
			account, err := s.accounts.GetByIDTx(ctx, tx, accountID)
			if err != nil {
				return fmt.Errorf("load account: %w", err)
			}
			if account == nil || account.OwnerID != ownerID {
				return apperror.ErrNotFound("Bank account")
			}
			if !account.IsVerified {
				return apperror.ErrAccountNotVerified()
			}
			if account.IsPrimary {
				return nil
			}
			if err := s.accounts.ClearPrimary(ctx, tx, ownerID); err != nil {
				return fmt.Errorf("clear primary: %w", err)
			}
			if err := s.accounts.MarkPrimary(ctx, tx, accountID); err != nil {
				return fmt.Errorf("mark primary: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("account_id", accountID.String()).
		Str("owner_id", ownerID.String()).
		Msg("primary bank account changed")
	return nil
}

// Delete removes a non-primary account that no in-flight withdrawal targets.
func (s *BankAccountServiceImpl) Delete(ctx context.Context, accountID uuid.UUID) error {
	err := runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
		account, err := s.accounts.GetByIDTx(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if account == nil {
			return apperror.ErrNotFound("Bank account")
		}
		if account.IsPrimary {
			return apperror.ErrPrimaryAccountProtected()
		}
		inFlight, err := s.withdrawals.CountInFlightByAccountTx(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("count in-flight withdrawals: %w", err)
		}
		if inFlight > 0 {
			return apperror.ErrAccountInUse()
		}
		return s.accounts.SoftDelete(ctx, tx, accountID, s.now())
	})
	if err != nil {
		return toAppError(err)
	}

	s.log.Info().Str("account_id", accountID.String()).Msg("bank account deleted")
	return nil
}

// GetPrimary returns the verified primary account. It fails closed: a
// missing or unverified primary is NotFound.
func (s *BankAccountServiceImpl) GetPrimary(ctx context.Context, ownerID uuid.UUID) (*domain.BankAccount, error) {
	account, err := s.accounts.GetPrimary(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get primary account: %w", err))
	}
	if account == nil || !account.IsVerified {
		return nil, apperror.ErrNotFound("Primary bank account")
	}
	return account, nil
}

func (s *BankAccountServiceImpl) Get(ctx context.Context, accountID uuid.UUID) (*domain.BankAccount, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Bank account")
	}
	return account, nil
}

func (s *BankAccountServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]domain.BankAccount, error) {
	accounts, err := s.accounts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list accounts: %w", err))
	}
	return accounts, nil
}

// Destination resolves the payout destination for ownerID through
// GetPrimary and decrypts the account number for the gateway.
func (s *BankAccountServiceImpl) Destination(ctx context.Context, ownerID uuid.UUID) (*domain.BankAccount, ports.PayoutDestination, error) {
	account, err := s.GetPrimary(ctx, ownerID)
	if err != nil {
		return nil, ports.PayoutDestination{}, err
	}
	number, err := s.encSvc.Decrypt(account.AccountNumberEnc)
	if err != nil {
		return nil, ports.PayoutDestination{}, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt account number: %w", err))
	}
	return account, ports.PayoutDestination{
		HolderName:    account.HolderName,
		AccountNumber: number,
		IFSC:          account.IFSC,
	}, nil
}
