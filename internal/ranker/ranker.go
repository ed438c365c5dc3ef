package ranker

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

// Scoring weights. They sum to 1.0 so the total stays in [0,1].
const (
	contentWeight = 0.4
	recencyWeight = 0.3
	sourceWeight  = 0.3
)

// Ranker scores articles and applies per-topic quality thresholds and caps.
type Ranker struct {
	topics map[string]config.TopicConfig
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.Ranker = (*Ranker)(nil)

// New builds a ranker over the configured topics.
func New(topics map[string]config.TopicConfig, logger *slog.Logger) *Ranker {
	return &Ranker{
		topics: topics,
		logger: logger,
		now:    time.Now,
	}
}

// RankAndFilter scores every article, groups by topic, drops topics without
// configuration, filters below each topic's quality threshold, and truncates
// to each topic's daily cap. Buckets are concatenated without any cross-topic
// ordering guarantee. Empty input yields empty output.
func (r *Ranker) RankAndFilter(articles []domain.Article) []domain.RankedArticle {
	if len(articles) == 0 {
		r.log().Info("no articles to rank")
		return []domain.RankedArticle{}
	}

	r.log().Info("ranking articles", "count", len(articles))

	ranked := make([]domain.RankedArticle, 0, len(articles))
	for _, article := range articles {
		ranked = append(ranked, domain.RankedArticle{
			Article:      article,
			QualityScore: r.Score(article),
		})
	}

	byTopic := map[string][]domain.RankedArticle{}
	var topicOrder []string
	for _, ra := range ranked {
		topic := ra.Article.Topic
		if _, seen := byTopic[topic]; !seen {
			topicOrder = append(topicOrder, topic)
		}
		byTopic[topic] = append(byTopic[topic], ra)
	}

	var (
		result        []domain.RankedArticle
		totalFiltered int
		totalLimited  int
	)

	for _, topic := range topicOrder {
		topicArticles := byTopic[topic]
		topicConfig, ok := r.topics[topic]
		if !ok {
			r.log().Warn("no config for topic, skipping", "topic", topic, "dropped", len(topicArticles))
			continue
		}

		kept := topicArticles[:0:0]
		for _, ra := range topicArticles {
			if ra.QualityScore >= topicConfig.MinQualityScore {
				kept = append(kept, ra)
			}
		}
		totalFiltered += len(topicArticles) - len(kept)

		// Stable sort: ties preserve fetch order.
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].QualityScore > kept[j].QualityScore
		})

		if len(kept) > topicConfig.MaxArticlesPerDay {
			totalLimited += len(kept) - topicConfig.MaxArticlesPerDay
			kept = kept[:topicConfig.MaxArticlesPerDay]
		}

		result = append(result, kept...)
		r.log().Info("topic ranked", "topic", topic, "kept", len(kept))
	}

	r.log().Info("ranking complete",
		"retained", len(result), "scored", len(ranked),
		"filtered", totalFiltered, "limited", totalLimited)

	if result == nil {
		result = []domain.RankedArticle{}
	}
	return result
}

// Score computes the quality score for one article: a weighted sum of content
// depth, recency, and source trust, rounded to 3 decimals. Deterministic for
// a fixed clock.
func (r *Ranker) Score(article domain.Article) float64 {
	total := r.scoreContentDepth(article)*contentWeight +
		r.scoreRecency(article)*recencyWeight +
		r.scoreSourceTrust(article)*sourceWeight

	return math.Round(total*1000) / 1000
}

// scoreContentDepth is piecewise-linear in content length:
// under 200 chars climbs to 0.5, 200-500 climbs to 0.8, past 500 diminishing
// returns cap at 1.0 around 1500 chars.
func (r *Ranker) scoreContentDepth(article domain.Article) float64 {
	length := utf8.RuneCountInString(article.Content)

	switch {
	case length < 200:
		return float64(length) / 400
	case length < 500:
		return 0.5 + float64(length-200)/1000
	default:
		extra := math.Min(float64(length-500), 1000)
		return 0.8 + extra/5000
	}
}

// scoreRecency uses discrete age tiers, not a smooth decay.
func (r *Ranker) scoreRecency(article domain.Article) float64 {
	age := r.now().Sub(article.PublishedAt)

	switch {
	case age < 24*time.Hour:
		return 1.0
	case age < 48*time.Hour:
		return 0.5
	case age < 72*time.Hour:
		return 0.2
	default:
		return 0.0
	}
}

// scoreSourceTrust returns 1.0 when the article source matches a trusted
// source for its topic (case-insensitive containment either direction) and a
// neutral 0.5 otherwise, including when the topic or list is unconfigured.
func (r *Ranker) scoreSourceTrust(article domain.Article) float64 {
	topicConfig, ok := r.topics[article.Topic]
	if !ok || len(topicConfig.TrustedSources) == 0 {
		return 0.5
	}

	source := strings.ToLower(article.Source)
	for _, trusted := range topicConfig.TrustedSources {
		t := strings.ToLower(trusted)
		if strings.Contains(source, t) || strings.Contains(t, source) {
			return 1.0
		}
	}

	return 0.5
}

func (r *Ranker) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
