// Package pipeline
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"quoteminer/packages/checkpoint"
	"quoteminer/packages/domain"
	"quoteminer/packages/dump"
	"quoteminer/packages/extractor"
	"quoteminer/packages/metrics"

	"github.com/abadojack/whatlanggo"
)

// Classifier decides whether a page title denotes a human and, if so,
// returns the canonical English name.
type Classifier interface {
	Classify(ctx context.Context, candidateName string) (name string, isHuman bool, err error)
}

// Gateway is the persistence collaborator; see packages/db for the
// pgx-backed implementation.
type Gateway interface {
	FindAuthorByName(ctx context.Context, name string) (*domain.Author, error)
	CreateAuthor(ctx context.Context, name string) (*domain.Author, error)
	AppendTranslatedName(ctx context.Context, authorID int64, language, fullName string) error
	FindLanguageByAbbreviation(ctx context.Context, abbreviation string) (*domain.Language, error)
	SaveQuotes(ctx context.Context, quotes []domain.Quote) error
	CountQuotes(ctx context.Context) (int64, error)
}

// NewExtractor resolves the content extractor for a dump language; see
// extractor.ForLanguage.
type NewExtractor func(language string) (extractor.Extractor, error)

// Pipeline drives one ingestion run: checkpoint-aware skipping, author
// resolution, content extraction, persistence, and checkpoint-and-abort
// on failure. Pages are processed strictly in dump order; resume
// correctness depends on that order being stable between runs.
type Pipeline struct {
	classifier   Classifier
	gateway      Gateway
	newExtractor NewExtractor
}

func New(classifier Classifier, gateway Gateway, newExtractor NewExtractor) *Pipeline {
	return &Pipeline{
		classifier:   classifier,
		gateway:      gateway,
		newExtractor: newExtractor,
	}
}

// Run ingests the dump at dumpPath. On an unrecoverable error it writes a
// checkpoint recording the page that was being processed and re-raises the
// error; on full success it deletes any checkpoint and writes the done
// marker so the dump is never reprocessed.
func (p *Pipeline) Run(ctx context.Context, dumpPath string) error {
	if checkpoint.IsDone(dumpPath) {
		slog.Info("Dump already fully processed, nothing to do", "path", dumpPath)
		return nil
	}

	cp, err := checkpoint.Load(dumpPath)
	if err != nil {
		return err
	}
	if cp != nil {
		sum, err := checkpoint.ComputeChecksum(dumpPath)
		if err != nil {
			return err
		}
		if sum != cp.DumpChecksum {
			return fmt.Errorf("%w: %s (checkpoint %s, file %s)", domain.ErrStaleCheckpoint, dumpPath, cp.DumpChecksum, sum)
		}
		slog.Info("Resuming from checkpoint", "path", dumpPath, "last_page", cp.LastPageTitle, "created_at", cp.CreatedAt)
	}

	d, err := dump.Load(dumpPath)
	if err != nil {
		return err
	}

	ext, err := p.newExtractor(d.Language)
	if err != nil {
		return err
	}
	lang, err := p.gateway.FindLanguageByAbbreviation(ctx, d.Language)
	if err != nil {
		return err
	}
	if lang == nil {
		return fmt.Errorf("%w: %q is not registered in storage", domain.ErrUnsupportedLanguage, d.Language)
	}

	// While a checkpoint is active, pages are skipped in original order up
	// to the checkpointed title. That page is reprocessed (inclusive
	// resume): the checkpoint records the page that was in flight when the
	// run died, not the last one completed.
	skipping := cp != nil
	for _, page := range d.Pages {
		if skipping {
			if page.Title != cp.LastPageTitle {
				metrics.PagesSkipped.WithLabelValues("before_resume_point").Inc()
				continue
			}
			skipping = false
		}

		if err := p.processPage(ctx, d.Language, ext, page); err != nil {
			p.saveCheckpoint(dumpPath, page.Title)
			return fmt.Errorf("processing page %q: %w", page.Title, err)
		}
	}

	if cp != nil {
		if err := checkpoint.Delete(dumpPath); err != nil {
			slog.Warn("Failed to delete consumed checkpoint", "path", dumpPath, "error", err)
		}
	}
	if err := checkpoint.MarkDone(dumpPath); err != nil {
		return err
	}

	if total, err := p.gateway.CountQuotes(ctx); err != nil {
		slog.Warn("Failed to count stored quotes", "error", err)
	} else {
		slog.Info("Ingestion run finished", "path", dumpPath, "language", d.Language, "quotes_total", total)
	}
	return nil
}

func (p *Pipeline) processPage(ctx context.Context, language string, ext extractor.Extractor, page domain.Page) error {
	if page.IsRedirect {
		metrics.PagesSkipped.WithLabelValues("redirect").Inc()
		slog.Debug("Skipping redirect page", "title", page.Title)
		return nil
	}
	if ext.IsForbiddenPageName(page.Title) {
		metrics.PagesSkipped.WithLabelValues("forbidden").Inc()
		slog.Debug("Skipping forbidden page name", "title", page.Title)
		return nil
	}

	name, isHuman, err := p.classifier.Classify(ctx, page.Title)
	if err != nil {
		return err
	}
	if !isHuman {
		metrics.PagesSkipped.WithLabelValues("not_human").Inc()
		slog.Debug("Title does not denote a person", "title", page.Title)
		return nil
	}

	author, err := p.gateway.FindAuthorByName(ctx, name)
	if err != nil {
		return err
	}
	if author == nil {
		if author, err = p.gateway.CreateAuthor(ctx, name); err != nil {
			return err
		}
		slog.Info("New author", "name", name, "id", author.ID)
	}
	if err := p.gateway.AppendTranslatedName(ctx, author.ID, language, page.Title); err != nil {
		return err
	}

	sourceURL := pageURL(language, page.Title)
	quotes, err := ext.Extract(ctx, sourceURL, page.RawContent, *author, language)
	if err != nil {
		return err
	}

	metrics.PagesProcessed.Inc()
	if len(quotes) == 0 {
		slog.Debug("No quotes found on page", "title", page.Title)
		return nil
	}

	checkQuoteLanguages(language, quotes)

	if err := p.gateway.SaveQuotes(ctx, quotes); err != nil {
		return err
	}
	slog.Info("Persisted quotes", "title", page.Title, "author", name, "count", len(quotes))
	return nil
}

// saveCheckpoint is best effort: losing the checkpoint is bad, but masking
// the error that triggered it would be worse.
func (p *Pipeline) saveCheckpoint(dumpPath, pageTitle string) {
	sum, err := checkpoint.ComputeChecksum(dumpPath)
	if err != nil {
		slog.Error("Failed to compute checksum for checkpoint", "path", dumpPath, "error", err)
		return
	}
	cp := domain.Checkpoint{
		CreatedAt:     time.Now().UTC(),
		DumpChecksum:  sum,
		LastPageTitle: pageTitle,
	}
	if err := checkpoint.Save(dumpPath, cp); err != nil {
		slog.Error("Failed to save checkpoint", "path", dumpPath, "page", pageTitle, "error", err)
		return
	}
	slog.Info("Checkpoint saved", "path", dumpPath, "page", pageTitle)
}

var iso6393 = map[string]string{
	"en": "eng",
	"ru": "rus",
}

// checkQuoteLanguages flags cleaned quotes whose detected language differs
// from the dump language. Detection is advisory only.
func checkQuoteLanguages(language string, quotes []domain.Quote) {
	want, ok := iso6393[language]
	if !ok {
		return
	}
	for _, q := range quotes {
		info := whatlanggo.Detect(q.Text)
		if info.IsReliable() && info.Lang.Iso6393() != want {
			metrics.LanguageMismatches.Inc()
			slog.Warn("Accepted quote language differs from dump language",
				"expected", want, "detected", info.Lang.Iso6393(), "source", q.Source)
		}
	}
}

func pageURL(language, title string) string {
	return fmt.Sprintf("https://%s.wikiquote.org/wiki/%s",
		language, url.PathEscape(strings.ReplaceAll(title, " ", "_")))
}
