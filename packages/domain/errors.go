package domain

import "errors"

var (
	// ErrFormat means the dump decoded but is missing required structure
	// (site identifier, page list).
	ErrFormat = errors.New("dump is missing required structure")

	// ErrStaleCheckpoint means the dump file changed since its checkpoint
	// was written; resuming would silently skip unprocessed pages.
	ErrStaleCheckpoint = errors.New("checkpoint is stale: dump content changed since the partial run")

	// ErrClassification means an external model call failed after
	// exhausting all retry attempts.
	ErrClassification = errors.New("classification service failed")

	// ErrUnsupportedLanguage means no extractor is registered for the
	// dump's declared language. This is a configuration error, not a
	// per-page condition.
	ErrUnsupportedLanguage = errors.New("no extractor registered for language")
)
