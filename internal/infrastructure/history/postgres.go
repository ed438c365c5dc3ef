package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

// PostgresStore persists sent-article history in a sent_articles table. URL
// is the primary key, matching article identity everywhere else.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.HistoryStore = (*PostgresStore)(nil)

const createSentArticles = `CREATE TABLE IF NOT EXISTS sent_articles (
	url     TEXT PRIMARY KEY,
	title   TEXT NOT NULL,
	sent_at TIMESTAMPTZ NOT NULL
)`

// NewPostgresStore opens the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSentArticles); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load reads the whole table into the in-memory history map.
func (s *PostgresStore) Load(ctx context.Context) (map[string]domain.ArticleHistoryEntry, error) {
	query, args, err := s.builder.
		Select("url", "title", "sent_at").
		From("sent_articles").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := map[string]domain.ArticleHistoryEntry{}
	for rows.Next() {
		var (
			entry  domain.ArticleHistoryEntry
			sentAt time.Time
		)
		if err := rows.Scan(&entry.URL, &entry.Title, &sentAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entry.SentAt = sentAt
		entries[entry.URL] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return entries, nil
}

// Save replaces the stored history with the given map in one transaction, so
// pruned entries disappear from the table too.
func (s *PostgresStore) Save(ctx context.Context, entries map[string]domain.ArticleHistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	deleteQuery, _, err := s.builder.Delete("sent_articles").ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	if len(entries) > 0 {
		insert := s.builder.Insert("sent_articles").Columns("url", "title", "sent_at")
		for _, entry := range entries {
			insert = insert.Values(entry.URL, entry.Title, entry.SentAt)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}
