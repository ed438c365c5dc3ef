package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

// AnthropicProvider implements AIProvider on the Anthropic Messages API.
type AnthropicProvider struct {
	id      string
	client  anthropic.Client
	model   string
	timeout time.Duration
	cost    float64
	metrics *Metrics
}

var _ AIProvider = (*AnthropicProvider)(nil)

// NewAnthropicProvider builds a provider from configuration. SDK-internal
// retries are disabled; the retry loop in this package is the only one.
func NewAnthropicProvider(cfg config.ProviderConfig) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		id:      cfg.ProviderID,
		client:  anthropic.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout(),
		cost:    cfg.EstimatedCostPerRequest(),
		metrics: NewMetrics(cfg.ProviderID),
	}
}

// ID returns the configured provider identifier.
func (p *AnthropicProvider) ID() string { return p.id }

// Metrics returns a snapshot of this provider's counters.
func (p *AnthropicProvider) Metrics() MetricsSnapshot { return p.metrics.Snapshot() }

// EstimatedCostPerRequest returns the static cost proxy for this provider.
func (p *AnthropicProvider) EstimatedCostPerRequest() float64 { return p.cost }

// Summarize sends the prompt to the Messages API and parses bullet points
// from the response. Rate limiting is retried with backoff; any other API
// failure escalates immediately. Either way the outcome lands in metrics.
func (p *AnthropicProvider) Summarize(ctx context.Context, article domain.Article, prompt string, maxTokens int, temperature float64) ([]string, Usage, error) {
	start := time.Now()

	bullets, usage, err := callWithRetry(ctx, func(ctx context.Context) ([]string, Usage, error) {
		return p.call(ctx, prompt, maxTokens, temperature)
	})
	if err != nil {
		p.metrics.RecordFailure(err.Error())
		return nil, Usage{}, err
	}

	p.metrics.RecordSuccess(time.Since(start), usage.InputTokens, usage.OutputTokens)
	return bullets, usage, nil
}

func (p *AnthropicProvider) call(ctx context.Context, prompt string, maxTokens int, temperature float64) ([]string, Usage, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}, option.WithRequestTimeout(p.timeout))
	if err != nil {
		return nil, Usage{}, p.classify(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
			text.WriteString("\n")
		}
	}

	usage := Usage{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}
	return parseBullets(text.String()), usage, nil
}

// ValidateConnection performs a minimal echo request with a short timeout.
// It never returns a Go error; failures come back as (false, message).
func (p *AnthropicProvider) ValidateConnection(ctx context.Context) (bool, string) {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 10,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("test")),
		},
	}, option.WithRequestTimeout(10*time.Second))
	if err != nil {
		return false, err.Error()
	}
	return true, ""
}

// classify maps SDK errors onto the package error taxonomy. 429 and 529
// (overloaded) are the rate-limit class worth retrying.
func (p *AnthropicProvider) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:    p.id,
			Status:      apiErr.StatusCode,
			Message:     apiErr.Error(),
			RateLimited: apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == 529,
		}
	}
	return &APIError{Provider: p.id, Message: err.Error()}
}
