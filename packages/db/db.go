// Package db
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quoteminer/packages/domain"
	"quoteminer/packages/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage is the persistence gateway: the pipeline's sole means of durable
// writes. It never exposes raw queries to callers.
type Storage struct {
	DB *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &Storage{DB: pool}, nil
}

func (s *Storage) Close() {
	s.DB.Close()
}

func observe(queryName string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(queryName).Observe(time.Since(start).Seconds())
}

// FindAuthorByName looks an author up by canonical English name. A missing
// author is (nil, nil), not an error; the lookup is idempotent on resume.
func (s *Storage) FindAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	defer observe("find_author_by_name", time.Now())

	var a domain.Author
	err := s.DB.QueryRow(ctx,
		`SELECT id, english_full_name FROM authors WHERE english_full_name = $1`, name,
	).Scan(&a.ID, &a.EnglishFullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find author %q: %w", name, err)
	}
	return &a, nil
}

func (s *Storage) CreateAuthor(ctx context.Context, name string) (*domain.Author, error) {
	defer observe("create_author", time.Now())

	a := domain.Author{EnglishFullName: name}
	err := s.DB.QueryRow(ctx,
		`INSERT INTO authors (english_full_name) VALUES ($1) RETURNING id`, name,
	).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create author %q: %w", name, err)
	}
	return &a, nil
}

func (s *Storage) AppendTranslatedName(ctx context.Context, authorID int64, language, fullName string) error {
	defer observe("append_translated_name", time.Now())

	_, err := s.DB.Exec(ctx,
		`INSERT INTO translated_author_names (author_id, language_abbreviation, full_name) VALUES ($1, $2, $3)`,
		authorID, language, fullName,
	)
	if err != nil {
		return fmt.Errorf("failed to append translated name for author %d: %w", authorID, err)
	}
	return nil
}

func (s *Storage) FindLanguageByAbbreviation(ctx context.Context, abbreviation string) (*domain.Language, error) {
	defer observe("find_language", time.Now())

	var l domain.Language
	err := s.DB.QueryRow(ctx,
		`SELECT id, abbreviation FROM languages WHERE abbreviation = $1`, abbreviation,
	).Scan(&l.ID, &l.Abbreviation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find language %q: %w", abbreviation, err)
	}
	return &l, nil
}

// SaveQuotes bulk-inserts one page's accepted quotes with COPY.
func (s *Storage) SaveQuotes(ctx context.Context, quotes []domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	defer observe("save_quotes", time.Now())

	rows := make([][]any, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, []any{q.Text, q.Source, q.Score, q.AuthorID, q.Language})
	}
	_, err := s.DB.CopyFrom(ctx,
		pgx.Identifier{"quotes"},
		[]string{"text", "source", "score", "author_id", "language_abbreviation"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert quotes: %w", err)
	}
	return nil
}

func (s *Storage) CountQuotes(ctx context.Context) (int64, error) {
	defer observe("count_quotes", time.Now())

	var count int64
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM quotes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	return count, nil
}
