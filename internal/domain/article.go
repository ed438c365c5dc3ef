package domain

import "time"

// Article is the core entity flowing through the pipeline. Identity is the
// URL: two articles with the same URL are the same article regardless of any
// other field.
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
	Topic       string    `json:"topic"`
	Source      string    `json:"source"`
}

// RankedArticle pairs an article with its quality score in [0,1].
// Created by the ranker, consumed by the summarizer, never mutated.
type RankedArticle struct {
	Article      Article `json:"article"`
	QualityScore float64 `json:"quality_score"`
}

// AudienceLevel selects which prompt template a summary is written for.
type AudienceLevel string

const (
	AudienceBeginner  AudienceLevel = "beginner"
	AudienceCSStudent AudienceLevel = "cs_student"
)

// SummarizedArticle is the terminal shape handed to delivery: the article plus
// 3-5 summary bullets, or zero bullets with SummarizationFailed set.
type SummarizedArticle struct {
	Article
	SummaryBullets      []string      `json:"summary_bullets"`
	AudienceLevel       AudienceLevel `json:"audience_level"`
	SummarizationFailed bool          `json:"summarization_failed"`
}

// NewSummarizedArticle builds the terminal article shape from its parts.
func NewSummarizedArticle(a Article, bullets []string, level AudienceLevel, failed bool) SummarizedArticle {
	if bullets == nil {
		bullets = []string{}
	}
	return SummarizedArticle{
		Article:             a,
		SummaryBullets:      bullets,
		AudienceLevel:       level,
		SummarizationFailed: failed,
	}
}

// ArticleHistoryEntry records a sent article. Presence of a URL in history
// means "do not resend".
type ArticleHistoryEntry struct {
	URL    string    `json:"url"`
	Title  string    `json:"title"`
	SentAt time.Time `json:"sent_at"`
}

// DedupStats counts removals per deduplication pass of a single run.
type DedupStats struct {
	Input           int `json:"input"`
	URLRemoved      int `json:"url_removed"`
	TitleRemoved    int `json:"title_removed"`
	HistoryFiltered int `json:"history_filtered"`
	Output          int `json:"output"`
}

// EmailContent is a composed digest ready to hand to the sender.
type EmailContent struct {
	Subject       string
	HTMLBody      string
	PlainTextBody string
}

// ExecutionResult summarizes one pipeline run for audit and reporting.
type ExecutionResult struct {
	RunID           string        `json:"run_id"`
	Success         bool          `json:"success"`
	ArticlesFetched int           `json:"articles_fetched"`
	ArticlesSent    int           `json:"articles_sent"`
	Errors          []string      `json:"errors"`
	ExecutionTime   time.Duration `json:"execution_time"`
	Timestamp       time.Time     `json:"timestamp"`
}
