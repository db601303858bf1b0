package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CatalogRepo implements ports.ProductCatalog over the products read model
// the catalog service keeps in this database.
type CatalogRepo struct {
	pool Pool
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(pool Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// GetProduct fetches an active product.
func (r *CatalogRepo) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT id, seller_id, price, discount, category FROM products WHERE id = $1 AND active`

	p := &domain.Product{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.SellerID, &p.Price, &p.Discount, &p.Category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}
