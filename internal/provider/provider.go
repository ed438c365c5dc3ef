package provider

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/emery-Xu/news-aggregator/internal/domain"
)

// Usage reports token consumption of a single provider call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// AIProvider is the uniform capability every AI backend implements. Summarize
// performs its own bounded retries for rate-limit-class failures; any error it
// returns means "this provider is done for this article, try the next one".
type AIProvider interface {
	ID() string
	Summarize(ctx context.Context, article domain.Article, prompt string, maxTokens int, temperature float64) ([]string, Usage, error)
	ValidateConnection(ctx context.Context) (bool, string)
	Metrics() MetricsSnapshot
	EstimatedCostPerRequest() float64
}

var numberedPrefix = regexp.MustCompile(`^\d+(?:[\).:]\s*|\s+)`)

var bulletMarkers = []string{"•", "-", "*", "→"}

// parseBullets extracts bullet lines from raw model output: strips common
// bullet markers and numbered prefixes, drops blank lines and lines under 10
// characters (formatting artifacts). No upper bound here; the summarizer
// enforces 3-5.
func parseBullets(text string) []string {
	var bullets []string

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, marker := range bulletMarkers {
			if strings.HasPrefix(line, marker) {
				line = strings.TrimSpace(strings.TrimPrefix(line, marker))
				break
			}
		}
		line = strings.TrimSpace(numberedPrefix.ReplaceAllString(line, ""))

		if utf8.RuneCountInString(line) < 10 {
			continue
		}
		bullets = append(bullets, line)
	}

	return bullets
}
