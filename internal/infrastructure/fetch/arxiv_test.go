package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emery-Xu/news-aggregator/internal/config"
)

const arxivAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query: search_query=cat:%s</title>
  <entry>
    <id>http://arxiv.org/abs/2603.01001v1</id>
    <link href="http://arxiv.org/abs/2603.01001v1" rel="alternate" type="text/html"/>
    <title>Sample
  Paper   Title</title>
    <summary>We present a sample abstract describing the method and results.</summary>
    <published>2026-03-09T18:00:00Z</published>
    <updated>2026-03-09T18:00:00Z</updated>
  </entry>
</feed>`

func TestArxivFetchAll(t *testing.T) {
	t.Parallel()

	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries = append(queries, q.Get("search_query"))
		if q.Get("sortBy") != "submittedDate" {
			t.Errorf("sortBy = %q", q.Get("sortBy"))
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, arxivAtom, q.Get("search_query"))
	}))
	defer srv.Close()

	f := NewArxivFetcher(config.ArxivConfig{
		Categories:     []string{"cs.AI", "cs.RO"},
		MaxPerCategory: 5,
	}, nil)
	f.endpoint = srv.URL
	f.pace = time.Millisecond

	articles, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("articles = %d, want one per category", len(articles))
	}
	if len(queries) != 2 || queries[0] != "cat:cs.AI" || queries[1] != "cat:cs.RO" {
		t.Fatalf("queries = %v", queries)
	}

	first := articles[0]
	if first.Topic != "ai" {
		t.Fatalf("cs.AI topic = %s, want ai", first.Topic)
	}
	if first.Title != "Sample Paper Title" {
		t.Fatalf("Title = %q, want collapsed whitespace", first.Title)
	}
	if first.Source != "arXiv/cs.AI" {
		t.Fatalf("Source = %s", first.Source)
	}
	want := time.Date(2026, time.March, 9, 18, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", first.PublishedAt, want)
	}

	if articles[1].Topic != "robotics" {
		t.Fatalf("cs.RO topic = %s, want robotics", articles[1].Topic)
	}
}

func TestArxivFailingCategoryIsSkipped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search_query") == "cat:cs.AI" {
			http.Error(w, "throttled", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, arxivAtom, "cat:cs.RO")
	}))
	defer srv.Close()

	f := NewArxivFetcher(config.ArxivConfig{
		Categories:     []string{"cs.AI", "cs.RO"},
		MaxPerCategory: 5,
	}, nil)
	f.endpoint = srv.URL
	f.pace = time.Millisecond

	articles, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(articles) != 1 || articles[0].Topic != "robotics" {
		t.Fatalf("articles = %+v, want only the cs.RO entry", articles)
	}
}
