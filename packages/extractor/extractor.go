// Package extractor
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"quoteminer/packages/domain"
	"quoteminer/packages/metrics"
)

const (
	// Candidates longer than this are rejected before ever reaching the
	// scorer; the model is known to fail on over-length inputs.
	maxRawCandidateRunes = 1000

	// Acceptance requires score strictly above the threshold and a
	// non-empty cleaned text no longer than the maximum.
	acceptScoreThreshold = 50
	maxCleanQuoteRunes   = 500
)

// Scorer rates one candidate line against its claimed author.
type Scorer interface {
	Score(ctx context.Context, authorName, candidateText string) (domain.ParsedQuote, error)
}

// Extractor is the per-language capability set: pre-filtering structurally
// irrelevant page titles and turning raw page markup into accepted quotes.
type Extractor interface {
	IsForbiddenPageName(title string) bool
	Extract(ctx context.Context, pageURL, rawContent string, author domain.Author, language string) ([]domain.Quote, error)
}

type languageRules struct {
	sections          []string
	forbiddenPrefixes []string
}

// One rule set per supported dump language. An absent entry is a
// configuration-time fatal error, never a per-page branch.
var languages = map[string]languageRules{
	"en": {
		sections: []string{"Quotes", "Quotations"},
		forbiddenPrefixes: []string{
			"Category:", "Template:", "Help:", "Talk:", "User:", "User talk:",
			"Wikiquote:", "File:", "Module:", "MediaWiki:", "Portal:", "Draft:",
		},
	},
	"ru": {
		sections: []string{"Цитаты", "Высказывания"},
		forbiddenPrefixes: []string{
			"Категория:", "Шаблон:", "Справка:", "Обсуждение:", "Участник:",
			"Обсуждение участника:", "Викицитатник:", "Файл:", "Модуль:",
			"MediaWiki:", "Портал:",
		},
	},
}

// ForLanguage returns the extractor for a dump language abbreviation.
func ForLanguage(language string, scorer Scorer) (Extractor, error) {
	rules, ok := languages[language]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, language)
	}
	return &wikitextExtractor{rules: rules, scorer: scorer}, nil
}

type wikitextExtractor struct {
	rules  languageRules
	scorer Scorer
}

func (e *wikitextExtractor) IsForbiddenPageName(title string) bool {
	for _, prefix := range e.rules.forbiddenPrefixes {
		if strings.HasPrefix(title, prefix) {
			return true
		}
	}
	return false
}

// Extract walks the quotations section(s) of rawContent and returns the
// candidates the scorer accepted. A page without a recognizable quotations
// section yields an empty list, not an error.
func (e *wikitextExtractor) Extract(ctx context.Context, pageURL, rawContent string, author domain.Author, language string) ([]domain.Quote, error) {
	lines := quoteLines(rawContent, e.rules.sections)

	var quotes []domain.Quote
	for _, line := range lines {
		candidate := CleanCandidate(line)
		if candidate == "" {
			continue
		}
		if utf8.RuneCountInString(candidate) > maxRawCandidateRunes {
			metrics.QuotesRejected.WithLabelValues("oversize_candidate").Inc()
			slog.Debug("Candidate too long for scoring", "url", pageURL, "length", utf8.RuneCountInString(candidate))
			continue
		}

		parsed, err := e.scorer.Score(ctx, author.EnglishFullName, candidate)
		if err != nil {
			return nil, err
		}

		clean := strings.TrimSpace(parsed.CleanQuote)
		switch {
		case parsed.Score <= acceptScoreThreshold:
			metrics.QuotesRejected.WithLabelValues("low_score").Inc()
			continue
		case clean == "":
			metrics.QuotesRejected.WithLabelValues("empty_clean_text").Inc()
			continue
		case utf8.RuneCountInString(clean) > maxCleanQuoteRunes:
			metrics.QuotesRejected.WithLabelValues("oversize_clean_text").Inc()
			continue
		}

		metrics.QuotesAccepted.Inc()
		quotes = append(quotes, domain.Quote{
			Text:     clean,
			Source:   pageURL,
			Score:    parsed.Score,
			AuthorID: author.ID,
			Language: language,
		})
	}
	return quotes, nil
}
