package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emery-Xu/news-aggregator/internal/config"
)

// Registry owns provider instances and their lifecycle: one instance per
// enabled config, type-dispatched at construction.
type Registry struct {
	providers map[string]AIProvider
	order     []string
	logger    *slog.Logger
}

// HealthStatus is the outcome of one provider's connectivity check.
type HealthStatus struct {
	Healthy bool
	Message string
}

// NewRegistry instantiates every enabled provider config. Disabled configs
// are skipped entirely; an unknown provider type is a fatal construction
// error per the configuration-error taxonomy.
func NewRegistry(configs []config.ProviderConfig, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		providers: map[string]AIProvider{},
		logger:    logger,
	}

	for _, cfg := range configs {
		if !cfg.IsEnabled() {
			r.log().Info("skipping disabled provider", "provider", cfg.ProviderID)
			continue
		}

		var p AIProvider
		switch cfg.ProviderType {
		case "anthropic":
			p = NewAnthropicProvider(cfg)
		case "openai":
			p = NewOpenAIProvider(cfg)
		default:
			return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.ProviderType, cfg.ProviderID)
		}

		r.providers[cfg.ProviderID] = p
		r.order = append(r.order, cfg.ProviderID)
		r.log().Info("initialized provider",
			"provider", cfg.ProviderID, "type", cfg.ProviderType, "model", cfg.Model)
	}

	return r, nil
}

// Get returns the provider with the given ID or an error if absent.
func (r *Registry) Get(providerID string) (AIProvider, error) {
	p, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return p, nil
}

// All returns every registered provider keyed by ID.
func (r *Registry) All() map[string]AIProvider {
	return r.providers
}

// ValidateAll health-checks every registered provider sequentially and
// returns a per-ID status map.
func (r *Registry) ValidateAll(ctx context.Context) map[string]HealthStatus {
	results := make(map[string]HealthStatus, len(r.providers))

	for _, id := range r.order {
		p := r.providers[id]
		r.log().Info("validating provider", "provider", id)

		healthy, message := p.ValidateConnection(ctx)
		results[id] = HealthStatus{Healthy: healthy, Message: message}

		if healthy {
			r.log().Info("provider is healthy", "provider", id)
		} else {
			r.log().Warn("provider validation failed", "provider", id, "error", message)
		}
	}

	return results
}

func (r *Registry) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
