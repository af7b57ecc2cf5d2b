// Package models defines data structures for the scraper.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Poem is a single record extracted from a listing item or a detail page.
type Poem struct {
	Title     string    `csv:"title" json:"title"`
	Era       string    `csv:"era" json:"era"`
	Body      string    `csv:"body" json:"body"`
	URL       string    `csv:"url" json:"url"`
	ScrapedAt time.Time `csv:"scraped_at" json:"scraped_at"`
}

// CrawlState is the controller state of a crawl.
type CrawlState int

const (
	StateListing CrawlState = iota
	StateHarvesting
	StateDone
	StateFailed
)

func (s CrawlState) String() string {
	switch s {
	case StateListing:
		return "listing"
	case StateHarvesting:
		return "harvesting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s CrawlState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// ScraperResult holds the overall result of a scraping operation.
// Poems is in encounter order: page order, then position within the page.
type ScraperResult struct {
	RunID        uuid.UUID
	Query        CrawlQuery
	Poems        []*Poem
	State        CrawlState
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	PageCount    int
	LinkCount    int
	RequestCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	// Exhausted is set when the source ran out of records before the quota.
	Exhausted bool
}
