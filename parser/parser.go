package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-poems/models"
)

// ValidatePoem ensures the scraper captured the required fields.
func ValidatePoem(p *models.Poem) error {
	if p == nil {
		return fmt.Errorf("poem is nil")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("poem missing title")
	}
	if strings.TrimSpace(p.Era) == "" {
		return fmt.Errorf("poem missing era for %s", p.Title)
	}
	if strings.TrimSpace(p.Body) == "" {
		return fmt.Errorf("poem missing body for %s", p.Title)
	}
	return nil
}

// NormalizeText trims surrounding whitespace, including full-width spaces.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}
