package email

import (
	"strings"
	"testing"
	"time"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

var digestDate = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

func sampleArticles() []domain.SummarizedArticle {
	return []domain.SummarizedArticle{
		{
			Article: domain.Article{
				URL:         "https://example.com/gpt",
				Title:       "New model tops leaderboard",
				Topic:       "ai",
				Source:      "Example Blog",
				PublishedAt: digestDate.Add(-6 * time.Hour),
			},
			SummaryBullets: []string{
				"The model scores first place on three public benchmarks",
				"Training cost was cut in half compared to the previous run",
				"Weights will be released under a permissive license",
			},
			AudienceLevel: domain.AudienceBeginner,
		},
		{
			Article: domain.Article{
				URL:         "https://example.com/arm",
				Title:       "Robot arm learns by watching",
				Topic:       "robotics",
				Source:      "Lab Blog",
				PublishedAt: digestDate.Add(-10 * time.Hour),
			},
			SummaryBullets:      []string{},
			AudienceLevel:       domain.AudienceCSStudent,
			SummarizationFailed: true,
		},
	}
}

func newTestComposer(t *testing.T, topics map[string]config.TopicConfig) *Composer {
	t.Helper()
	c, err := NewComposer(topics)
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	return c
}

func TestComposeSubjectAndGrouping(t *testing.T) {
	t.Parallel()

	c := newTestComposer(t, map[string]config.TopicConfig{"ai": {}, "robotics": {}})
	content, err := c.Compose(sampleArticles(), digestDate)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if content.Subject != "Daily AI News - Mar 10, 2026 - 2 articles" {
		t.Fatalf("Subject = %q", content.Subject)
	}
	for _, fragment := range []string{"Ai", "Robotics", "https://example.com/gpt", "Example Blog"} {
		if !strings.Contains(content.HTMLBody, fragment) {
			t.Fatalf("HTML body missing %q", fragment)
		}
	}
	if !strings.Contains(content.HTMLBody, "scores first place") {
		t.Fatal("HTML body missing summary bullet")
	}

	// Topic sections are alphabetical: ai before robotics.
	if strings.Index(content.HTMLBody, "https://example.com/gpt") > strings.Index(content.HTMLBody, "https://example.com/arm") {
		t.Fatal("topic sections out of order")
	}
}

func TestComposeFailedSummaryIsVisible(t *testing.T) {
	t.Parallel()

	c := newTestComposer(t, map[string]config.TopicConfig{})
	content, err := c.Compose(sampleArticles(), digestDate)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if !strings.Contains(content.HTMLBody, "Summary unavailable") {
		t.Fatal("HTML body does not mark the failed summary")
	}
	if !strings.Contains(content.HTMLBody, "https://example.com/arm") {
		t.Fatal("failed article lost its link")
	}
	if !strings.Contains(content.PlainTextBody, "Summary unavailable") {
		t.Fatal("plain text does not mark the failed summary")
	}
}

func TestComposeIncludesTopicContext(t *testing.T) {
	t.Parallel()

	c := newTestComposer(t, map[string]config.TopicConfig{
		"ai": {IncludeContext: true, ContextText: "Selected for readers new to machine learning."},
	})
	content, err := c.Compose(sampleArticles(), digestDate)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if !strings.Contains(content.HTMLBody, "Selected for readers new to machine learning.") {
		t.Fatal("HTML body missing topic context")
	}
	if !strings.Contains(content.PlainTextBody, "Selected for readers new to machine learning.") {
		t.Fatal("plain text missing topic context")
	}
}

func TestComposeEmptyDigest(t *testing.T) {
	t.Parallel()

	c := newTestComposer(t, map[string]config.TopicConfig{})
	content, err := c.Compose(nil, digestDate)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if content.Subject != "Daily AI News - Mar 10, 2026 - No new articles" {
		t.Fatalf("Subject = %q", content.Subject)
	}
	if !strings.Contains(content.PlainTextBody, "No new articles") {
		t.Fatalf("PlainTextBody = %q", content.PlainTextBody)
	}
}

func TestComposeEscapesHTMLInTitles(t *testing.T) {
	t.Parallel()

	articles := []domain.SummarizedArticle{{
		Article: domain.Article{
			URL:         "https://example.com/x",
			Title:       `<script>alert("x")</script> headline`,
			Topic:       "ai",
			Source:      "Feed",
			PublishedAt: digestDate,
		},
		SummaryBullets: []string{
			"A bullet that is long enough to render",
			"Another bullet that is long enough to render",
			"A third bullet that is long enough to render",
		},
	}}

	c := newTestComposer(t, map[string]config.TopicConfig{})
	content, err := c.Compose(articles, digestDate)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if strings.Contains(content.HTMLBody, "<script>") {
		t.Fatal("HTML body contains unescaped markup from a title")
	}
}

func TestSaveToFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewSMTPSender(config.EmailConfig{FallbackDir: dir}, nil)

	path, err := s.SaveToFile(domain.EmailContent{Subject: "s", HTMLBody: "<html><body>digest</body></html>"})
	if err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("path = %s, want under %s", path, dir)
	}
}

func TestBuildMessageMultipart(t *testing.T) {
	t.Parallel()

	s := NewSMTPSender(config.EmailConfig{
		SMTP: config.SMTPConfig{FromEmail: "digest@example.com"},
	}, nil)

	msg := string(s.buildMessage("reader@example.com", domain.EmailContent{
		Subject:       "Daily AI News",
		HTMLBody:      "<html><body>html part</body></html>",
		PlainTextBody: "text part",
	}))

	for _, fragment := range []string{
		"From: digest@example.com",
		"To: reader@example.com",
		"multipart/alternative",
		"text/plain; charset=utf-8",
		"text/html; charset=utf-8",
		"text part",
		"html part",
	} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("message missing %q:\n%s", fragment, msg)
		}
	}
}
