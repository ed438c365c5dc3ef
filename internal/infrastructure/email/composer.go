package email

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

const subjectPrefix = "Daily AI News"

const htmlDigest = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, Helvetica, sans-serif; max-width: 680px; margin: 0 auto; color: #1a1a1a;">
  <h1 style="font-size: 22px;">{{.Heading}}</h1>
  {{range .Sections}}
  <h2 style="font-size: 18px; border-bottom: 1px solid #ddd; padding-bottom: 4px;">{{.Title}}</h2>
  {{if .Context}}<p style="color: #555; font-style: italic;">{{.Context}}</p>{{end}}
  {{range .Articles}}
  <div style="margin-bottom: 18px;">
    <p style="margin: 0 0 4px 0;"><a href="{{.URL}}" style="font-weight: bold; color: #0a66c2;">{{.Title}}</a></p>
    <p style="margin: 0 0 6px 0; color: #777; font-size: 13px;">{{.Source}} &middot; {{.Published}}</p>
    {{if .Failed}}
    <p style="margin: 0; color: #a15c00;">Summary unavailable &mdash; read the full article at the link above.</p>
    {{else}}
    <ul style="margin: 0; padding-left: 20px;">
      {{range .Bullets}}<li style="margin-bottom: 3px;">{{.}}</li>{{end}}
    </ul>
    {{end}}
  </div>
  {{end}}
  {{end}}
  <p style="color: #999; font-size: 12px;">You receive this digest because it is configured to be sent to you.</p>
</body>
</html>`

type digestSection struct {
	Title    string
	Context  string
	Articles []digestArticle
}

type digestArticle struct {
	Title     string
	URL       string
	Source    string
	Published string
	Bullets   []string
	Failed    bool
}

type digestData struct {
	Heading  string
	Sections []digestSection
}

// Composer renders summarized articles into the digest email, grouped by
// topic.
type Composer struct {
	topics map[string]config.TopicConfig
	tmpl   *template.Template
}

var _ ports.DigestComposer = (*Composer)(nil)

// NewComposer builds a composer; topic configuration supplies the optional
// per-topic context blurb.
func NewComposer(topics map[string]config.TopicConfig) (*Composer, error) {
	tmpl, err := template.New("digest").Parse(htmlDigest)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	return &Composer{topics: topics, tmpl: tmpl}, nil
}

// Compose renders both HTML and plain-text bodies. An empty article list
// still produces a valid email announcing that nothing was found.
func (c *Composer) Compose(articles []domain.SummarizedArticle, date time.Time) (domain.EmailContent, error) {
	dateText := date.Format("Jan 2, 2006")

	if len(articles) == 0 {
		subject := fmt.Sprintf("%s - %s - No new articles", subjectPrefix, dateText)
		body := fmt.Sprintf("No new articles passed the quality filters on %s.", dateText)
		return domain.EmailContent{
			Subject:       subject,
			HTMLBody:      fmt.Sprintf("<html><body><p>%s</p></body></html>", body),
			PlainTextBody: body,
		}, nil
	}

	data := digestData{
		Heading:  fmt.Sprintf("%s for %s", subjectPrefix, dateText),
		Sections: c.sections(articles),
	}

	var html strings.Builder
	if err := c.tmpl.Execute(&html, data); err != nil {
		return domain.EmailContent{}, fmt.Errorf("render digest: %w", err)
	}

	return domain.EmailContent{
		Subject:       fmt.Sprintf("%s - %s - %d articles", subjectPrefix, dateText, len(articles)),
		HTMLBody:      html.String(),
		PlainTextBody: c.plainText(data),
	}, nil
}

// sections groups articles by topic. Topic order is alphabetical so the
// digest layout is stable from day to day.
func (c *Composer) sections(articles []domain.SummarizedArticle) []digestSection {
	grouped := map[string][]domain.SummarizedArticle{}
	var order []string
	for _, a := range articles {
		if _, ok := grouped[a.Topic]; !ok {
			order = append(order, a.Topic)
		}
		grouped[a.Topic] = append(grouped[a.Topic], a)
	}
	sort.Strings(order)

	sections := make([]digestSection, 0, len(order))
	for _, topic := range order {
		section := digestSection{Title: topicTitle(topic)}
		if cfg, ok := c.topics[topic]; ok && cfg.IncludeContext {
			section.Context = cfg.ContextText
		}
		for _, a := range grouped[topic] {
			section.Articles = append(section.Articles, digestArticle{
				Title:     a.Title,
				URL:       a.URL,
				Source:    a.Source,
				Published: a.PublishedAt.Format("Jan 2, 15:04 MST"),
				Bullets:   a.SummaryBullets,
				Failed:    a.SummarizationFailed,
			})
		}
		sections = append(sections, section)
	}
	return sections
}

func (c *Composer) plainText(data digestData) string {
	var b strings.Builder
	b.WriteString(data.Heading + "\n")
	b.WriteString(strings.Repeat("=", len(data.Heading)) + "\n\n")

	for _, section := range data.Sections {
		b.WriteString(section.Title + "\n")
		b.WriteString(strings.Repeat("-", len(section.Title)) + "\n")
		if section.Context != "" {
			b.WriteString(section.Context + "\n")
		}
		b.WriteString("\n")

		for _, a := range section.Articles {
			fmt.Fprintf(&b, "%s\n%s (%s)\n", a.Title, a.URL, a.Source)
			if a.Failed {
				b.WriteString("Summary unavailable - read the full article at the link above.\n")
			} else {
				for _, bullet := range a.Bullets {
					b.WriteString("  - " + bullet + "\n")
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func topicTitle(topic string) string {
	runes := []rune(strings.ReplaceAll(topic, "_", " "))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
