package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

// JSONStore persists sent-article history as a single JSON file keyed by URL.
type JSONStore struct {
	path string
}

var _ ports.HistoryStore = (*JSONStore)(nil)

// NewJSONStore wires the store to a file path; the file is created on first
// Save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the history file. A missing file means a fresh install and
// returns an empty map; a corrupt file returns an error so the caller can
// decide how to degrade.
func (s *JSONStore) Load(ctx context.Context) (map[string]domain.ArticleHistoryEntry, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]domain.ArticleHistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}

	entries := map[string]domain.ArticleHistoryEntry{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", s.path, err)
	}
	return entries, nil
}

// Save writes the full history map, creating parent directories as needed.
func (s *JSONStore) Save(ctx context.Context, entries map[string]domain.ArticleHistoryEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write history %s: %w", s.path, err)
	}
	return nil
}
