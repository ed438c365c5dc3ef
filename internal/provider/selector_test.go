package provider

import (
	"reflect"
	"testing"

	"github.com/emery-Xu/news-aggregator/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func selectorConfigs() []config.ProviderConfig {
	return []config.ProviderConfig{
		{
			ProviderID:            "claude",
			ProviderType:          "anthropic",
			Priority:              1,
			InputCostPer1MTokens:  3.0,
			OutputCostPer1MTokens: 15.0,
		},
		{
			ProviderID:            "gpt",
			ProviderType:          "openai",
			Priority:              2,
			InputCostPer1MTokens:  0.15,
			OutputCostPer1MTokens: 0.6,
		},
		{
			ProviderID:   "disabled",
			ProviderType: "openai",
			Priority:     0,
			Enabled:      boolPtr(false),
		},
	}
}

func TestSelectorPriorityStrategy(t *testing.T) {
	t.Parallel()

	s := NewSelector(selectorConfigs(), "priority", nil)
	if got, want := s.Chain(), []string{"claude", "gpt"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Chain() = %v, want %v", got, want)
	}
}

func TestSelectorCostStrategy(t *testing.T) {
	t.Parallel()

	s := NewSelector(selectorConfigs(), "cost", nil)
	if got, want := s.Chain(), []string{"gpt", "claude"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Chain() = %v, want %v", got, want)
	}
}

func TestSelectorPerformanceMatchesPriority(t *testing.T) {
	t.Parallel()

	perf := NewSelector(selectorConfigs(), "performance", nil)
	prio := NewSelector(selectorConfigs(), "priority", nil)
	if !reflect.DeepEqual(perf.Chain(), prio.Chain()) {
		t.Fatalf("performance chain %v differs from priority chain %v", perf.Chain(), prio.Chain())
	}
}

func TestSelectorUnknownStrategyFallsBack(t *testing.T) {
	t.Parallel()

	s := NewSelector(selectorConfigs(), "cheapest-first", nil)
	if got, want := s.Chain(), []string{"claude", "gpt"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Chain() = %v, want priority order %v", got, want)
	}
}

func TestSelectorSkipsDisabledProviders(t *testing.T) {
	t.Parallel()

	s := NewSelector(selectorConfigs(), "priority", nil)
	for _, id := range s.Chain() {
		if id == "disabled" {
			t.Fatal("disabled provider appeared in chain")
		}
	}
}

func TestChainReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewSelector(selectorConfigs(), "priority", nil)
	first := s.Chain()
	first[0] = "mutated"

	if got := s.Chain(); got[0] != "claude" {
		t.Fatalf("Chain() = %v, mutation leaked into selector", got)
	}
}

func TestSelectorStableOrderForEqualPriority(t *testing.T) {
	t.Parallel()

	configs := []config.ProviderConfig{
		{ProviderID: "a", ProviderType: "openai", Priority: 5},
		{ProviderID: "b", ProviderType: "openai", Priority: 5},
		{ProviderID: "c", ProviderType: "openai", Priority: 5},
	}
	s := NewSelector(configs, "priority", nil)
	if got, want := s.Chain(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Chain() = %v, want config order %v", got, want)
	}
}
