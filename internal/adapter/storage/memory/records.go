package memory

import (
	"context"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
)

// AuditRepository implements ports.AuditRepository.
type AuditRepository struct{ s *Store }

func NewAuditRepository(s *Store) *AuditRepository { return &AuditRepository{s: s} }

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// Entries returns a copy of the audit trail.
func (r *AuditRepository) Entries() []domain.AuditLog {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.AuditLog(nil), r.s.audit...)
}

// NotificationRepository implements ports.NotificationRepository.
type NotificationRepository struct{ s *Store }

func NewNotificationRepository(s *Store) *NotificationRepository {
	return &NotificationRepository{s: s}
}

func (r *NotificationRepository) Create(ctx context.Context, d *domain.NotificationDelivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deliveries[d.ID] = *d
	return nil
}

func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, attempt int, lastError *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok {
		return fmt.Errorf("notification delivery %s not found", id)
	}
	d.Status = status
	d.Attempt = attempt
	d.LastError = lastError
	d.UpdatedAt = time.Now().UTC()
	r.s.deliveries[id] = d
	return nil
}

// Get returns one delivery record.
func (r *NotificationRepository) Get(id uuid.UUID) (domain.NotificationDelivery, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	return d, ok
}

// Catalog implements ports.ProductCatalog over products seeded with Put.
type Catalog struct{ s *Store }

func NewCatalog(s *Store) *Catalog { return &Catalog{s: s} }

func (c *Catalog) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	p, ok := c.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Put adds or replaces a product.
func (c *Catalog) Put(p domain.Product) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.products[p.ID] = p
}
