package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput marks operator input rejected before any network activity.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedMode is returned for modes that are listed but not implemented.
	ErrUnsupportedMode = errors.New("unsupported mode")
)

// Mode selects how poems are grouped on the remote site.
type Mode int

const (
	ModeAuthor Mode = iota + 1
	ModeEra
	ModeCategory
	ModeTitle
)

func (m Mode) String() string {
	switch m {
	case ModeAuthor:
		return "author"
	case ModeEra:
		return "era"
	case ModeCategory:
		return "category"
	case ModeTitle:
		return "title"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// QueryParam returns the listing query parameter that carries the mode's value.
func (m Mode) QueryParam() string {
	switch m {
	case ModeAuthor:
		return "astr"
	case ModeEra:
		return "cstr"
	case ModeCategory:
		return "tstr"
	default:
		return ""
	}
}

// ParseMode accepts either the menu number ("1".."4") or the mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "author":
		return ModeAuthor, nil
	case "2", "era", "dynasty":
		return ModeEra, nil
	case "3", "category", "type":
		return ModeCategory, nil
	case "4", "title":
		return ModeTitle, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
	}
}

// CrawlQuery describes what to crawl. It is not modified once built.
type CrawlQuery struct {
	Mode        Mode
	Parameter   string
	TargetCount int
}

// NewCrawlQuery validates operator input and builds a query.
func NewCrawlQuery(mode Mode, parameter string, target int) (CrawlQuery, error) {
	q := CrawlQuery{
		Mode:        mode,
		Parameter:   strings.TrimSpace(parameter),
		TargetCount: target,
	}
	if err := q.Validate(); err != nil {
		return CrawlQuery{}, err
	}
	return q, nil
}

// Validate reports whether the query can be crawled.
func (q CrawlQuery) Validate() error {
	if q.Mode == ModeTitle {
		return fmt.Errorf("%w: %s", ErrUnsupportedMode, q.Mode)
	}
	if q.Mode.QueryParam() == "" {
		return fmt.Errorf("%w: unknown mode %s", ErrInvalidInput, q.Mode)
	}
	if q.Parameter == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, q.Mode)
	}
	if q.TargetCount <= 0 {
		return fmt.Errorf("%w: target count must be positive", ErrInvalidInput)
	}
	return nil
}
