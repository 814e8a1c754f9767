// Package domain
package domain

import "time"

// Dump is one decoded source file: the declared language plus the ordered
// page list. It lives only for the duration of a single ingestion run.
type Dump struct {
	Language string
	Pages    []Page
}

type Page struct {
	Title      string
	IsRedirect bool
	RawContent string
}

// Checkpoint is the resume marker written next to the dump file after a
// fatal mid-run failure. LastPageTitle is the page that was being processed
// when the run died; resume is inclusive of that page.
type Checkpoint struct {
	CreatedAt     time.Time `json:"created_at"`
	DumpChecksum  string    `json:"dump_checksum"`
	LastPageTitle string    `json:"last_page_title"`
}

type Author struct {
	ID              int64
	EnglishFullName string
}

type Language struct {
	ID           int64
	Abbreviation string
}

type Quote struct {
	Text     string
	Source   string
	Score    int
	AuthorID int64
	Language string
}

// ParsedQuote is the scorer's verdict on one candidate line. CleanQuote is
// only meaningful when Score clears the acceptance threshold.
type ParsedQuote struct {
	Score      int
	CleanQuote string
}
