package postgres

import (
	"context"
	"fmt"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
)

// PricingRepository handles model pricing rows in PostgreSQL. The pricing
// cache refreshes from this table.
type PricingRepository struct {
	db *database.PostgresDB
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db *database.PostgresDB) *PricingRepository {
	return &PricingRepository{db: db}
}

// List returns all model prices
func (r *PricingRepository) List(ctx context.Context) ([]domain.ModelPrice, error) {
	query := `
		SELECT model, input_price_per_token, output_price_per_token
		FROM model_pricing
		ORDER BY model ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list model prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.ModelPrice
	for rows.Next() {
		var p domain.ModelPrice
		if err := rows.Scan(&p.Model, &p.InputPricePerToken, &p.OutputPricePerToken); err != nil {
			return nil, fmt.Errorf("failed to scan model price: %w", err)
		}
		prices = append(prices, p)
	}

	return prices, rows.Err()
}

// Upsert inserts or replaces the price row for one model
func (r *PricingRepository) Upsert(ctx context.Context, price *domain.ModelPrice) error {
	query := `
		INSERT INTO model_pricing (model, input_price_per_token, output_price_per_token, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (model) DO UPDATE
		SET input_price_per_token = EXCLUDED.input_price_per_token,
		    output_price_per_token = EXCLUDED.output_price_per_token,
		    updated_at = NOW()
	`

	if _, err := r.db.Pool.Exec(ctx, query, price.Model, price.InputPricePerToken, price.OutputPricePerToken); err != nil {
		return fmt.Errorf("failed to upsert model price: %w", err)
	}

	return nil
}
