package ranker

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestRanker(topics map[string]config.TopicConfig) *Ranker {
	r := New(topics, nil)
	r.now = func() time.Time { return fixedNow }
	return r
}

func aiTopics() map[string]config.TopicConfig {
	return map[string]config.TopicConfig{
		"ai": {
			AudienceLevel:     "beginner",
			MinQualityScore:   0.5,
			MaxArticlesPerDay: 5,
			TrustedSources:    []string{"TechCrunch", "MIT Technology Review"},
		},
	}
}

func article(url string, contentLen int, age time.Duration, source string) domain.Article {
	return domain.Article{
		URL:         url,
		Title:       "Title for " + url,
		Content:     strings.Repeat("x", contentLen),
		PublishedAt: fixedNow.Add(-age),
		Topic:       "ai",
		Source:      source,
	}
}

func TestScorePerfectArticle(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())

	// 1500 chars, 1 hour old, trusted source: every sub-score is 1.0.
	a := article("https://a.example/1", 1500, time.Hour, "TechCrunch")
	if got := r.Score(a); got != 1.0 {
		t.Fatalf("expected score 1.0, got %v", got)
	}
}

func TestScoreBoundsAndDeterminism(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())

	cases := []domain.Article{
		article("https://a.example/empty", 0, time.Hour, ""),
		article("https://a.example/short", 150, 30*time.Hour, "blog"),
		article("https://a.example/mid", 350, 60*time.Hour, "TechCrunch"),
		article("https://a.example/long", 5000, 100*time.Hour, "techcrunch.com"),
	}

	for _, a := range cases {
		first := r.Score(a)
		if first < 0 || first > 1 {
			t.Errorf("score %v for %s outside [0,1]", first, a.URL)
		}
		if second := r.Score(a); second != first {
			t.Errorf("score not deterministic for %s: %v != %v", a.URL, first, second)
		}
	}
}

func TestScoreContentDepthTiers(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())

	cases := []struct {
		length int
		want   float64
	}{
		{0, 0.0},
		{100, 0.25},
		{200, 0.5},
		{400, 0.7},
		{500, 0.8},
		{1000, 0.9},
		{1500, 1.0},
		{9000, 1.0},
	}

	const eps = 1e-9
	for _, tc := range cases {
		a := article("https://a.example/depth", tc.length, time.Hour, "")
		got := r.scoreContentDepth(a)
		if got < tc.want-eps || got > tc.want+eps {
			t.Errorf("content depth for length %d: got %v, want %v", tc.length, got, tc.want)
		}
	}
}

func TestScoreRecencyTiers(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())

	cases := []struct {
		age  time.Duration
		want float64
	}{
		{time.Hour, 1.0},
		{23 * time.Hour, 1.0},
		{25 * time.Hour, 0.5},
		{49 * time.Hour, 0.2},
		{80 * time.Hour, 0.0},
	}

	for _, tc := range cases {
		a := article("https://a.example/recency", 300, tc.age, "")
		if got := r.scoreRecency(a); got != tc.want {
			t.Errorf("recency for age %v: got %v, want %v", tc.age, got, tc.want)
		}
	}
}

func TestScoreSourceTrust(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())

	trusted := article("https://a.example/t", 300, time.Hour, "TechCrunch Daily")
	if got := r.scoreSourceTrust(trusted); got != 1.0 {
		t.Errorf("trusted source: got %v, want 1.0", got)
	}

	// Containment works in both directions.
	partial := article("https://a.example/p", 300, time.Hour, "MIT Tech")
	if got := r.scoreSourceTrust(partial); got != 1.0 {
		t.Errorf("partial trusted source: got %v, want 1.0", got)
	}

	unknown := article("https://a.example/u", 300, time.Hour, "Random Blog")
	if got := r.scoreSourceTrust(unknown); got != 0.5 {
		t.Errorf("unknown source: got %v, want 0.5", got)
	}

	unconfigured := unknown
	unconfigured.Topic = "quantum"
	if got := r.scoreSourceTrust(unconfigured); got != 0.5 {
		t.Errorf("unconfigured topic: got %v, want 0.5", got)
	}
}

func TestRankAndFilterEmptyInput(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())
	if got := r.RankAndFilter(nil); len(got) != 0 {
		t.Fatalf("expected empty output, got %d", len(got))
	}
}

func TestRankAndFilterDropsUnconfiguredTopic(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())

	a := article("https://a.example/known", 1500, time.Hour, "TechCrunch")
	b := a
	b.URL = "https://a.example/unknown"
	b.Topic = "gardening"

	result := r.RankAndFilter([]domain.Article{a, b})
	if len(result) != 1 {
		t.Fatalf("expected 1 article, got %d", len(result))
	}
	if result[0].Article.URL != a.URL {
		t.Fatalf("wrong survivor: %s", result[0].Article.URL)
	}
}

func TestRankAndFilterThreshold(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())

	good := article("https://a.example/good", 1500, time.Hour, "TechCrunch")
	// Old and thin: scores well below the 0.5 threshold.
	poor := article("https://a.example/poor", 50, 100*time.Hour, "nobody")

	result := r.RankAndFilter([]domain.Article{poor, good})
	if len(result) != 1 {
		t.Fatalf("expected 1 article, got %d", len(result))
	}
	if result[0].Article.URL != good.URL {
		t.Fatalf("wrong survivor: %s", result[0].Article.URL)
	}
}

func TestRankAndFilterCapKeepsHighestScores(t *testing.T) {
	t.Parallel()

	r := newTestRanker(aiTopics())

	// 10 qualifying articles with strictly decreasing content depth.
	var articles []domain.Article
	for i := 0; i < 10; i++ {
		articles = append(articles, article(
			fmt.Sprintf("https://a.example/%d", i),
			1500-i*100,
			time.Hour,
			"TechCrunch",
		))
	}

	result := r.RankAndFilter(articles)
	if len(result) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(result))
	}
	for i, ra := range result {
		want := fmt.Sprintf("https://a.example/%d", i)
		if ra.Article.URL != want {
			t.Errorf("position %d: got %s, want %s", i, ra.Article.URL, want)
		}
		if i > 0 && result[i-1].QualityScore < ra.QualityScore {
			t.Errorf("result not sorted descending at %d", i)
		}
	}
}

func TestRankAndFilterStableTies(t *testing.T) {
	t.Parallel()

	r := newTestRanker(map[string]config.TopicConfig{
		"ai": {MinQualityScore: 0, MaxArticlesPerDay: 10},
	})

	// Identical scores: fetch order must be preserved.
	var articles []domain.Article
	for i := 0; i < 4; i++ {
		articles = append(articles, article(fmt.Sprintf("https://tie.example/%d", i), 300, time.Hour, "same"))
	}

	result := r.RankAndFilter(articles)
	if len(result) != 4 {
		t.Fatalf("expected 4 articles, got %d", len(result))
	}
	for i, ra := range result {
		want := fmt.Sprintf("https://tie.example/%d", i)
		if ra.Article.URL != want {
			t.Errorf("tie order broken at %d: got %s", i, ra.Article.URL)
		}
	}
}

func TestRankAndFilterAllFilteredTopicIsNotAnError(t *testing.T) {
	t.Parallel()

	r := newTestRanker(map[string]config.TopicConfig{
		"ai": {MinQualityScore: 0.99, MaxArticlesPerDay: 5},
	})

	result := r.RankAndFilter([]domain.Article{
		article("https://a.example/1", 100, 90*time.Hour, "nobody"),
	})
	if len(result) != 0 {
		t.Fatalf("expected 0 articles, got %d", len(result))
	}
}
