// Package memory is a process-local implementation of the storage ports.
// It backs the test suites and single-node development runs
// (storage.driver=memory). A transaction holds the store lock from Begin
// until Commit or Rollback, so transactions are fully serialized; the
// pool-level reads take the same lock and must not be called inside one.
package memory

import (
	"context"
	"errors"
	"sync"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds every table.
type Store struct {
	mu sync.Mutex

	orders      map[uuid.UUID]domain.Order
	ledger      []domain.LedgerEntry
	balances    map[uuid.UUID]domain.SellerBalance
	withdrawals map[uuid.UUID]domain.WithdrawalRequest
	disputes    map[uuid.UUID]domain.Dispute
	accounts    map[uuid.UUID]domain.BankAccount
	events      map[string]domain.ProcessedWebhookEvent
	audit       []domain.AuditLog
	deliveries  map[uuid.UUID]domain.NotificationDelivery
	products    map[uuid.UUID]domain.Product
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orders:      make(map[uuid.UUID]domain.Order),
		balances:    make(map[uuid.UUID]domain.SellerBalance),
		withdrawals: make(map[uuid.UUID]domain.WithdrawalRequest),
		disputes:    make(map[uuid.UUID]domain.Dispute),
		accounts:    make(map[uuid.UUID]domain.BankAccount),
		events:      make(map[string]domain.ProcessedWebhookEvent),
		deliveries:  make(map[uuid.UUID]domain.NotificationDelivery),
		products:    make(map[uuid.UUID]domain.Product),
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &memTx{store: s}, nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// memTx records an undo entry for every write. Only Commit and Rollback
// are implemented; the embedded pgx.Tx is nil.
type memTx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

// open returns the live memTx for tx.
func (s *Store) open(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// put writes m[k] = v inside tx and remembers the previous state.
func put[K comparable, V any](tx *memTx, m map[K]V, k K, v V) {
	prev, existed := m[k]
	tx.onRollback(func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}
