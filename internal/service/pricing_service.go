package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
)

// PricingSource is the persistent price table the cache refreshes from.
type PricingSource interface {
	// List returns every stored model price.
	List(ctx context.Context) ([]domain.ModelPrice, error)
}

// PricingService is the read-mostly model price cache consumed by the
// ingest pipelines and the cost backfill worker. Lookups never block
// ingestion for long: the table is guarded by an RWMutex and refreshed
// wholesale in the background.
type PricingService struct {
	mu      sync.RWMutex
	pricing map[string]domain.ModelPrice
	source  PricingSource
	logger  *zap.Logger
}

// NewPricingService creates a pricing cache seeded with the default price
// table. source may be nil when no database-backed refresh is configured.
func NewPricingService(source PricingSource, logger *zap.Logger) *PricingService {
	s := &PricingService{
		pricing: make(map[string]domain.ModelPrice),
		source:  source,
		logger:  logger,
	}
	s.loadDefaultPricing()
	return s
}

// GetByModel returns the per-token price pair for a model. The second
// return is false when no pricing is known; callers must store NULL costs
// in that case, never zero.
func (s *PricingService) GetByModel(model string) (domain.ModelPrice, bool) {
	if strings.TrimSpace(model) == "" {
		return domain.ModelPrice{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	normalized := normalizeModel(model)
	if price, ok := s.pricing[normalized]; ok {
		return price, true
	}

	// Partial matches cover versioned model names
	for key, price := range s.pricing {
		if strings.HasPrefix(normalized, key) || strings.HasPrefix(key, normalized) {
			return price, true
		}
	}

	return domain.ModelPrice{}, false
}

// CostFor computes the cost of a token pair against the cached pricing.
// The second return is false when the model has no pricing.
func (s *PricingService) CostFor(model string, inputTokens, outputTokens int64) (float64, bool) {
	price, ok := s.GetByModel(model)
	if !ok {
		return 0, false
	}
	return float64(inputTokens)*price.InputPricePerToken +
		float64(outputTokens)*price.OutputPricePerToken, true
}

// Refresh replaces cached entries with the stored price table. Defaults
// stay in place for models the table does not mention.
func (s *PricingService) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	prices, err := s.source.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prices {
		s.pricing[normalizeModel(p.Model)] = p
	}

	s.logger.Debug("pricing cache refreshed", zap.Int("models", len(prices)))
	return nil
}

// StartRefresh refreshes the cache periodically until ctx is cancelled.
func (s *PricingService) StartRefresh(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					s.logger.Warn("pricing refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// normalizeModel normalizes a model name for lookup
func normalizeModel(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

// loadDefaultPricing seeds per-token prices for commonly reported models.
// Values are USD per single token.
func (s *PricingService) loadDefaultPricing() {
	defaults := []domain.ModelPrice{
		// OpenAI
		{Model: "gpt-4o", InputPricePerToken: 0.0000025, OutputPricePerToken: 0.00001},
		{Model: "gpt-4o-mini", InputPricePerToken: 0.00000015, OutputPricePerToken: 0.0000006},
		{Model: "gpt-4-turbo", InputPricePerToken: 0.00001, OutputPricePerToken: 0.00003},
		{Model: "gpt-4", InputPricePerToken: 0.00003, OutputPricePerToken: 0.00006},
		{Model: "gpt-3.5-turbo", InputPricePerToken: 0.0000005, OutputPricePerToken: 0.0000015},
		{Model: "o1", InputPricePerToken: 0.000015, OutputPricePerToken: 0.00006},
		{Model: "o1-mini", InputPricePerToken: 0.000003, OutputPricePerToken: 0.000012},
		{Model: "o3-mini", InputPricePerToken: 0.0000011, OutputPricePerToken: 0.0000044},

		// Anthropic
		{Model: "claude-opus-4", InputPricePerToken: 0.000015, OutputPricePerToken: 0.000075},
		{Model: "claude-sonnet-4", InputPricePerToken: 0.000003, OutputPricePerToken: 0.000015},
		{Model: "claude-3-5-sonnet", InputPricePerToken: 0.000003, OutputPricePerToken: 0.000015},
		{Model: "claude-3-5-haiku", InputPricePerToken: 0.000001, OutputPricePerToken: 0.000005},
		{Model: "claude-3-opus", InputPricePerToken: 0.000015, OutputPricePerToken: 0.000075},
		{Model: "claude-3-haiku", InputPricePerToken: 0.00000025, OutputPricePerToken: 0.00000125},

		// Google
		{Model: "gemini-1.5-pro", InputPricePerToken: 0.00000125, OutputPricePerToken: 0.000005},
		{Model: "gemini-1.5-flash", InputPricePerToken: 0.000000075, OutputPricePerToken: 0.0000003},
		{Model: "gemini-2.0-flash", InputPricePerToken: 0.0000001, OutputPricePerToken: 0.0000004},

		// Meta
		{Model: "llama-3.1-405b", InputPricePerToken: 0.0000027, OutputPricePerToken: 0.0000027},
		{Model: "llama-3.1-70b", InputPricePerToken: 0.0000009, OutputPricePerToken: 0.0000009},
		{Model: "llama-3.1-8b", InputPricePerToken: 0.0000002, OutputPricePerToken: 0.0000002},

		// Mistral
		{Model: "mistral-large", InputPricePerToken: 0.000002, OutputPricePerToken: 0.000006},
		{Model: "mistral-small", InputPricePerToken: 0.0000002, OutputPricePerToken: 0.0000006},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range defaults {
		s.pricing[normalizeModel(p.Model)] = p
	}
}
