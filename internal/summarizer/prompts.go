package summarizer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

//go:embed templates/beginner.md
var defaultBeginnerPrompt string

//go:embed templates/cs_student.md
var defaultCSStudentPrompt string

// Input longer than this is clipped before prompting; model context is not a
// place for full article bodies.
const maxPromptContentRunes = 3000

// Prompts holds one summarization template per audience level. Templates use
// {topic}, {title} and {content} placeholders.
type Prompts struct {
	byAudience map[domain.AudienceLevel]string
}

// LoadPrompts returns the embedded default templates, with per-audience file
// overrides from configuration. A configured path that cannot be read is a
// startup error, not a silent fallback.
func LoadPrompts(cfg config.SummarizationConfig) (*Prompts, error) {
	p := &Prompts{
		byAudience: map[domain.AudienceLevel]string{
			domain.AudienceBeginner:  defaultBeginnerPrompt,
			domain.AudienceCSStudent: defaultCSStudentPrompt,
		},
	}

	if cfg.BeginnerPromptPath != "" {
		data, err := os.ReadFile(cfg.BeginnerPromptPath)
		if err != nil {
			return nil, fmt.Errorf("read beginner prompt: %w", err)
		}
		p.byAudience[domain.AudienceBeginner] = string(data)
	}
	if cfg.CSStudentPromptPath != "" {
		data, err := os.ReadFile(cfg.CSStudentPromptPath)
		if err != nil {
			return nil, fmt.Errorf("read cs_student prompt: %w", err)
		}
		p.byAudience[domain.AudienceCSStudent] = string(data)
	}

	return p, nil
}

// For returns the template for the audience level, defaulting to the beginner
// template for unknown levels.
func (p *Prompts) For(level domain.AudienceLevel) string {
	if tmpl, ok := p.byAudience[level]; ok {
		return tmpl
	}
	return p.byAudience[domain.AudienceBeginner]
}

// buildPrompt substitutes the article into the template, clipping the content
// body first.
func buildPrompt(tmpl, topic string, article domain.Article) string {
	content := article.Content
	if runes := []rune(content); len(runes) > maxPromptContentRunes {
		content = string(runes[:maxPromptContentRunes])
	}

	return strings.NewReplacer(
		"{topic}", topic,
		"{title}", article.Title,
		"{content}", content,
	).Replace(tmpl)
}
