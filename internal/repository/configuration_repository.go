package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
)

// ConfigurationRepository persists configuration entries.
type ConfigurationRepository struct {
	db sqlx.ExtContext
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db sqlx.ExtContext) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// ListByKeys returns configurations whose key is in the provided slice.
func (r *ConfigurationRepository) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT key, value, type, description, version, updated_by, updated_at
FROM configurations WHERE key IN (%s) ORDER BY key ASC`, placeholders(len(keys)))
	var configs []models.Configuration
	if err := sqlx.SelectContext(ctx, r.db, &configs, query, stringArgs(keys)...); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return configs, nil
}

// Get fetches a single configuration by key.
func (r *ConfigurationRepository) Get(ctx context.Context, key string) (*models.Configuration, error) {
	const query = `SELECT key, value, type, description, version, updated_by, updated_at FROM configurations WHERE key = $1`
	var cfg models.Configuration
	if err := sqlx.GetContext(ctx, r.db, &cfg, query, key); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert inserts or updates a configuration entry and returns its new version.
func (r *ConfigurationRepository) Upsert(ctx context.Context, cfg *models.Configuration) (int64, error) {
	const query = `INSERT INTO configurations (key, value, type, description, version, updated_by, updated_at)
VALUES ($1, $2, $3, $4, 1, $5, $6)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, description = COALESCE(EXCLUDED.description, configurations.description),
              version = configurations.version + 1, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING version`
	cfg.UpdatedAt = time.Now().UTC()
	var version int64
	err := sqlx.GetContext(ctx, r.db, &version, query, cfg.Key, cfg.Value, cfg.Type, cfg.Description, cfg.UpdatedBy, cfg.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("upsert configuration: %w", err)
	}
	cfg.Version = version
	return version, nil
}
