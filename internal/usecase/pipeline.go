package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

// PipelineDeps wires all driven adapters into the digest pipeline.
type PipelineDeps struct {
	Source       ports.ArticleSource
	Deduplicator ports.Deduplicator
	Ranker       ports.Ranker
	Summarizer   ports.Summarizer
	Composer     ports.DigestComposer
	Sender       ports.DigestSender
	Executions   *ExecutionLog
	Recipient    string
	Logger       *slog.Logger
}

// Pipeline runs one digest cycle: fetch, deduplicate, rank, summarize,
// compose, deliver. Stage failures before delivery abort the run; a delivery
// failure falls back to saving the digest locally.
type Pipeline struct {
	source     ports.ArticleSource
	dedup      ports.Deduplicator
	ranker     ports.Ranker
	summarizer ports.Summarizer
	composer   ports.DigestComposer
	sender     ports.DigestSender
	executions *ExecutionLog
	recipient  string
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:     deps.Source,
		dedup:      deps.Deduplicator,
		ranker:     deps.Ranker,
		summarizer: deps.Summarizer,
		composer:   deps.Composer,
		sender:     deps.Sender,
		executions: deps.Executions,
		recipient:  deps.Recipient,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Run executes one full digest cycle and records the outcome. The returned
// result is recorded even when Run also returns an error.
func (p *Pipeline) Run(ctx context.Context) (domain.ExecutionResult, error) {
	start := p.now()
	result := domain.ExecutionResult{
		RunID:     uuid.NewString(),
		Timestamp: start,
		Errors:    []string{},
	}
	log := p.log().With("run_id", result.RunID)
	log.Info("pipeline run started")

	fail := func(err error) (domain.ExecutionResult, error) {
		result.Errors = append(result.Errors, err.Error())
		result.ExecutionTime = p.now().Sub(start)
		p.record(log, result)
		log.Error("pipeline run failed", "error", err)
		return result, err
	}

	articles, err := p.source.FetchAll(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetch articles: %w", err))
	}
	result.ArticlesFetched = len(articles)
	log.Info("fetch finished", "articles", len(articles))

	unique, stats := p.dedup.Deduplicate(articles)
	log.Info("deduplication finished",
		"input", stats.Input,
		"url_removed", stats.URLRemoved,
		"title_removed", stats.TitleRemoved,
		"history_filtered", stats.HistoryFiltered,
		"output", stats.Output)

	ranked := p.ranker.RankAndFilter(unique)
	log.Info("ranking finished", "selected", len(ranked))

	byTopic := groupByTopic(ranked)
	summarizedByTopic := p.summarizer.SummarizeByAudience(ctx, byTopic)
	summarized := flatten(summarizedByTopic)

	failed := 0
	for _, a := range summarized {
		if a.SummarizationFailed {
			failed++
		}
	}
	if failed > 0 {
		log.Warn("some articles could not be summarized", "failed", failed, "total", len(summarized))
	}

	content, err := p.composer.Compose(summarized, start)
	if err != nil {
		return fail(fmt.Errorf("compose digest: %w", err))
	}

	if err := p.sender.Send(ctx, p.recipient, content); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("send digest: %v", err))
		if path, saveErr := p.sender.SaveToFile(content); saveErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("save digest fallback: %v", saveErr))
		} else {
			log.Warn("digest delivery failed, saved locally", "path", path, "error", err)
		}
		result.ExecutionTime = p.now().Sub(start)
		p.record(log, result)
		return result, fmt.Errorf("send digest: %w", err)
	}
	result.ArticlesSent = len(summarized)

	// History is updated only after delivery: a failed send must not mark
	// articles as seen, or they would never reach the reader.
	sent := make([]domain.Article, len(summarized))
	for i, a := range summarized {
		sent[i] = a.Article
	}
	if err := p.dedup.UpdateHistory(ctx, sent); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("update history: %v", err))
		log.Error("history update failed, duplicates possible next run", "error", err)
	}

	result.Success = true
	result.ExecutionTime = p.now().Sub(start)
	p.record(log, result)
	log.Info("pipeline run finished",
		"fetched", result.ArticlesFetched,
		"sent", result.ArticlesSent,
		"duration", result.ExecutionTime)
	return result, nil
}

func (p *Pipeline) record(log *slog.Logger, result domain.ExecutionResult) {
	if p.executions == nil {
		return
	}
	if err := p.executions.Append(result); err != nil {
		log.Warn("could not persist execution result", "error", err)
	}
}

func groupByTopic(ranked []domain.RankedArticle) map[string][]domain.RankedArticle {
	byTopic := map[string][]domain.RankedArticle{}
	for _, r := range ranked {
		byTopic[r.Article.Topic] = append(byTopic[r.Article.Topic], r)
	}
	return byTopic
}

// flatten orders summarized articles by topic name so composed digests are
// deterministic.
func flatten(byTopic map[string][]domain.SummarizedArticle) []domain.SummarizedArticle {
	topics := make([]string, 0, len(byTopic))
	for topic := range byTopic {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var all []domain.SummarizedArticle
	for _, topic := range topics {
		all = append(all, byTopic[topic]...)
	}
	return all
}

func (p *Pipeline) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}
