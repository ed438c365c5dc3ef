package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAIProvider implements AIProvider against an OpenAI-compatible
// chat-completions endpoint.
type OpenAIProvider struct {
	id       string
	endpoint string
	apiKey   string
	model    string
	cost     float64
	client   *http.Client
	metrics  *Metrics
}

var _ AIProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider builds a provider from configuration. BaseURL overrides
// the default endpoint, which allows Azure-style and proxy deployments.
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}

	return &OpenAIProvider{
		id:       cfg.ProviderID,
		endpoint: strings.TrimSuffix(endpoint, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		cost:     cfg.EstimatedCostPerRequest(),
		client:   &http.Client{Timeout: cfg.Timeout()},
		metrics:  NewMetrics(cfg.ProviderID),
	}
}

// ID returns the configured provider identifier.
func (p *OpenAIProvider) ID() string { return p.id }

// Metrics returns a snapshot of this provider's counters.
func (p *OpenAIProvider) Metrics() MetricsSnapshot { return p.metrics.Snapshot() }

// EstimatedCostPerRequest returns the static cost proxy for this provider.
func (p *OpenAIProvider) EstimatedCostPerRequest() float64 { return p.cost }

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Summarize posts the prompt as a chat completion and parses bullet points
// from the first choice. Rate limiting (HTTP 429) is retried with backoff.
func (p *OpenAIProvider) Summarize(ctx context.Context, article domain.Article, prompt string, maxTokens int, temperature float64) ([]string, Usage, error) {
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

func (p *OpenAIProvider) call(ctx context.Context, prompt string, maxTokens int, temperature float64) ([]string, Usage, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant that summarizes articles."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, Usage{}, &APIError{Provider: p.id, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, Usage{}, &APIError{
			Provider:    p.id,
			Status:      resp.StatusCode,
			Message:     strings.TrimSpace(string(payload)),
			RateLimited: resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, Usage{}, &APIError{Provider: p.id, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, Usage{}, &APIError{Provider: p.id, Message: "response contained no choices"}
	}

	usage := Usage{
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}
	return parseBullets(parsed.Choices[0].Message.Content), usage, nil
}

// ValidateConnection performs a minimal echo request with a short timeout.
// It never returns a Go error; failures come back as (false, message).
func (p *OpenAIProvider) ValidateConnection(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, _, err := p.call(ctx, "test", 10, 0)
	if err != nil {
		return false, err.Error()
	}
	return true, ""
}
