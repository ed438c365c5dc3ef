package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/emery-Xu/news-aggregator/internal/domain"
)

type fakeSource struct {
	articles []domain.Article
	err      error
}

func (f *fakeSource) FetchAll(ctx context.Context) ([]domain.Article, error) {
	return f.articles, f.err
}

type fakeDedup struct {
	updated   []domain.Article
	updateErr error
}

func (f *fakeDedup) Deduplicate(articles []domain.Article) ([]domain.Article, domain.DedupStats) {
	return articles, domain.DedupStats{Input: len(articles), Output: len(articles)}
}

func (f *fakeDedup) UpdateHistory(ctx context.Context, sent []domain.Article) error {
	f.updated = append(f.updated, sent...)
	return f.updateErr
}

type fakeRanker struct{}

func (fakeRanker) RankAndFilter(articles []domain.Article) []domain.RankedArticle {
	ranked := make([]domain.RankedArticle, len(articles))
	for i, a := range articles {
		ranked[i] = domain.RankedArticle{Article: a, QualityScore: 0.9}
	}
	return ranked
}

type fakeSummarizer struct {
	failAll bool
}

func (f *fakeSummarizer) SummarizeByAudience(ctx context.Context, byTopic map[string][]domain.RankedArticle) map[string][]domain.SummarizedArticle {
	out := map[string][]domain.SummarizedArticle{}
	for topic, articles := range byTopic {
		for _, r := range articles {
			if f.failAll {
				out[topic] = append(out[topic], domain.NewSummarizedArticle(r.Article, nil, domain.AudienceBeginner, true))
				continue
			}
			out[topic] = append(out[topic], domain.NewSummarizedArticle(r.Article, []string{
				"First summary bullet for the test",
				"Second summary bullet for the test",
				"Third summary bullet for the test",
			}, domain.AudienceBeginner, false))
		}
	}
	return out
}

type fakeComposer struct {
	err      error
	composed []domain.SummarizedArticle
}

func (f *fakeComposer) Compose(articles []domain.SummarizedArticle, date time.Time) (domain.EmailContent, error) {
	f.composed = articles
	if f.err != nil {
		return domain.EmailContent{}, f.err
	}
	return domain.EmailContent{Subject: "digest", HTMLBody: "<html></html>", PlainTextBody: "digest"}, nil
}

type fakeSender struct {
	sendErr error
	sent    int
	saved   int
}

func (f *fakeSender) Send(ctx context.Context, to string, content domain.EmailContent) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent++
	return nil
}

func (f *fakeSender) SaveToFile(content domain.EmailContent) (string, error) {
	f.saved++
	return "/tmp/digest.html", nil
}

func testArticles() []domain.Article {
	now := time.Now()
	return []domain.Article{
		{URL: "https://example.com/1", Title: "One", Topic: "ai", PublishedAt: now},
		{URL: "https://example.com/2", Title: "Two", Topic: "robotics", PublishedAt: now},
	}
}

type pipelineFixture struct {
	pipeline *Pipeline
	dedup    *fakeDedup
	sender   *fakeSender
	log      *ExecutionLog
}

func newPipelineFixture(t *testing.T, deps PipelineDeps) *pipelineFixture {
	t.Helper()

	if deps.Source == nil {
		deps.Source = &fakeSource{articles: testArticles()}
	}
	dedup := &fakeDedup{}
	if deps.Deduplicator == nil {
		deps.Deduplicator = dedup
	} else {
		dedup = deps.Deduplicator.(*fakeDedup)
	}
	if deps.Ranker == nil {
		deps.Ranker = fakeRanker{}
	}
	if deps.Summarizer == nil {
		deps.Summarizer = &fakeSummarizer{}
	}
	if deps.Composer == nil {
		deps.Composer = &fakeComposer{}
	}
	sender := &fakeSender{}
	if deps.Sender == nil {
		deps.Sender = sender
	} else {
		sender = deps.Sender.(*fakeSender)
	}
	log := NewExecutionLog(filepath.Join(t.TempDir(), "executions.json"))
	if deps.Executions == nil {
		deps.Executions = log
	}
	if deps.Recipient == "" {
		deps.Recipient = "reader@example.com"
	}

	return &pipelineFixture{
		pipeline: NewPipeline(deps),
		dedup:    dedup,
		sender:   sender,
		log:      log,
	}
}

func TestPipelineRunSuccess(t *testing.T) {
	t.Parallel()

	fx := newPipelineFixture(t, PipelineDeps{})
	result, err := fx.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.ArticlesFetched != 2 || result.ArticlesSent != 2 {
		t.Fatalf("fetched/sent = %d/%d, want 2/2", result.ArticlesFetched, result.ArticlesSent)
	}
	if result.RunID == "" {
		t.Fatal("missing run ID")
	}
	if fx.sender.sent != 1 {
		t.Fatalf("sent = %d, want 1", fx.sender.sent)
	}
	if len(fx.dedup.updated) != 2 {
		t.Fatalf("history updated with %d articles, want 2", len(fx.dedup.updated))
	}

	recorded, err := fx.log.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(recorded) != 1 || recorded[0].RunID != result.RunID {
		t.Fatalf("execution log = %+v", recorded)
	}
}

func TestPipelineFetchFailureIsFatal(t *testing.T) {
	t.Parallel()

	fx := newPipelineFixture(t, PipelineDeps{
		Source: &fakeSource{err: errors.New("all sources down")},
	})
	result, err := fx.pipeline.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Success {
		t.Fatal("result marked success despite fetch failure")
	}
	if len(result.Errors) == 0 {
		t.Fatal("result carries no errors")
	}
	if fx.sender.sent != 0 {
		t.Fatal("digest sent despite fetch failure")
	}

	recorded, err := fx.log.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(recorded) != 1 || recorded[0].Success {
		t.Fatalf("execution log = %+v, want one failed record", recorded)
	}
}

func TestPipelineSendFailureFallsBackToFile(t *testing.T) {
	t.Parallel()

	fx := newPipelineFixture(t, PipelineDeps{
		Sender: &fakeSender{sendErr: errors.New("smtp refused")},
	})
	result, err := fx.pipeline.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Success {
		t.Fatal("result marked success despite send failure")
	}
	if fx.sender.saved != 1 {
		t.Fatalf("saved = %d, want fallback file written once", fx.sender.saved)
	}
	if len(fx.dedup.updated) != 0 {
		t.Fatal("history updated although the digest was never delivered")
	}
}

func TestPipelineSummarizationFailureDegrades(t *testing.T) {
	t.Parallel()

	composer := &fakeComposer{}
	fx := newPipelineFixture(t, PipelineDeps{
		Summarizer: &fakeSummarizer{failAll: true},
		Composer:   composer,
	})
	result, err := fx.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success {
		t.Fatal("summarization failures must not fail the run")
	}
	if len(composer.composed) != 2 {
		t.Fatalf("composed = %d articles, want 2 (failed summaries included)", len(composer.composed))
	}
	for _, a := range composer.composed {
		if !a.SummarizationFailed {
			t.Fatal("expected all summaries flagged failed")
		}
	}
}

func TestPipelineComposeFailureIsFatal(t *testing.T) {
	t.Parallel()

	fx := newPipelineFixture(t, PipelineDeps{
		Composer: &fakeComposer{err: errors.New("template broken")},
	})
	if _, err := fx.pipeline.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if fx.sender.sent != 0 {
		t.Fatal("digest sent despite compose failure")
	}
}

func TestPipelineHistoryFailureKeepsSuccess(t *testing.T) {
	t.Parallel()

	fx := newPipelineFixture(t, PipelineDeps{
		Deduplicator: &fakeDedup{updateErr: errors.New("disk full")},
	})
	result, err := fx.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success {
		t.Fatal("delivered digest must count as success even if history write fails")
	}
	if len(result.Errors) == 0 {
		t.Fatal("history failure should be recorded in result errors")
	}
}

func TestPipelineEmptyRunStillSendsDigest(t *testing.T) {
	t.Parallel()

	fx := newPipelineFixture(t, PipelineDeps{
		Source: &fakeSource{},
	})
	result, err := fx.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success || result.ArticlesSent != 0 {
		t.Fatalf("result = %+v", result)
	}
	if fx.sender.sent != 1 {
		t.Fatal("empty digest was not sent")
	}
}

func TestExecutionLogCapsRecords(t *testing.T) {
	t.Parallel()

	log := NewExecutionLog(filepath.Join(t.TempDir(), "executions.json"))
	for i := 0; i < maxExecutionRecords+10; i++ {
		if err := log.Append(domain.ExecutionResult{RunID: "run", Timestamp: time.Now()}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	results, err := log.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(results) != maxExecutionRecords {
		t.Fatalf("records = %d, want capped at %d", len(results), maxExecutionRecords)
	}
}
