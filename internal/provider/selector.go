package provider

import (
	"log/slog"
	"sort"

	"github.com/emery-Xu/news-aggregator/internal/config"
)

// Selector orders the enabled provider pool by the configured strategy and
// hands out that order as a fallback chain.
type Selector struct {
	strategy string
	order    []string
}

// NewSelector builds the provider order once, from the enabled subset of
// configs. Strategies: "priority" (ascending priority number), "cost"
// (ascending static cost proxy), "performance" (currently identical to
// priority; no historical latency feeds the selector yet). Anything else
// falls back to priority.
func NewSelector(configs []config.ProviderConfig, strategy string, logger *slog.Logger) *Selector {
	enabled := make([]config.ProviderConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.IsEnabled() {
			enabled = append(enabled, cfg)
		}
	}

	switch strategy {
	case "cost":
		sort.SliceStable(enabled, func(i, j int) bool {
			return enabled[i].EstimatedCostPerRequest() < enabled[j].EstimatedCostPerRequest()
		})
	case "priority", "performance":
		sort.SliceStable(enabled, func(i, j int) bool {
			return enabled[i].Priority < enabled[j].Priority
		})
	default:
		if logger != nil {
			logger.Warn("unknown provider strategy, falling back to priority", "strategy", strategy)
		}
		sort.SliceStable(enabled, func(i, j int) bool {
			return enabled[i].Priority < enabled[j].Priority
		})
	}

	order := make([]string, 0, len(enabled))
	for _, cfg := range enabled {
		order = append(order, cfg.ProviderID)
	}

	return &Selector{strategy: strategy, order: order}
}

// Chain returns the ordered provider IDs to try. Always a fresh copy: callers
// may not mutate the selector's backing order.
func (s *Selector) Chain() []string {
	chain := make([]string, len(s.order))
	copy(chain, s.order)
	return chain
}
