package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
)

// CatalogRepository reads current service pricing. Results are never cached.
type CatalogRepository struct {
	db sqlx.ExtContext
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db sqlx.ExtContext) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetByIDs returns the active services among ids.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]models.CatalogService, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, name, sale_price, currency, lawyer_commission_type, lawyer_commission_value,
       influencer_commission_type, influencer_commission_value, refundable, active, updated_at
	FROM service_catalog WHERE active = TRUE AND id IN (%s)`, placeholders(len(ids)))
	var services []models.CatalogService
	if err := sqlx.SelectContext(ctx, r.db, &services, query, stringArgs(ids)...); err != nil {
		return nil, fmt.Errorf("load catalog services: %w", err)
	}
	return services, nil
}
