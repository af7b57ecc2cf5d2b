// Package parser turns fetched pages into poems and harvest links.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-poems/models"
)

// Structural markers of the listing and detail pages.
const (
	ListingContainerSelector = "div#leftZhankai"
	ListingItemSelector      = "div.sons"
	ListingContentSelector   = "div.cont"
	LabelSelector            = "p"
	BodySelector             = "div.contson"

	HarvestGroupSelector = "div.typecont"

	DetailContainerSelector = "#sonsyuanwen"
	DetailTitleSelector     = "h1"
	DetailEraSelector       = "p.source"
)

// ExtractionError reports a structural node that was missing or empty.
type ExtractionError struct {
	Field string
	Item  int // zero-based item index on listing pages, -1 otherwise
}

func (e *ExtractionError) Error() string {
	if e.Item >= 0 {
		return fmt.Sprintf("extract %s of item %d: node missing or empty", e.Field, e.Item)
	}
	return fmt.Sprintf("extract %s: node missing or empty", e.Field)
}

func missing(field string, item int) error {
	return &ExtractionError{Field: field, Item: item}
}

// ParseDocument parses raw markup.
func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ExtractListing returns the poems of a listing page in document order.
// A present container with no items yields an empty batch.
func ExtractListing(doc *goquery.Document) ([]*models.Poem, error) {
	container := doc.Find(ListingContainerSelector).First()
	if container.Length() == 0 {
		return nil, missing("listing container", -1)
	}

	items := container.Find(ListingItemSelector)
	poems := make([]*models.Poem, 0, items.Length())
	var err error
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		var poem *models.Poem
		poem, err = extractListingItem(item, i)
		if err != nil {
			return false
		}
		poems = append(poems, poem)
		return true
	})
	if err != nil {
		return nil, err
	}
	return poems, nil
}

func extractListingItem(item *goquery.Selection, index int) (*models.Poem, error) {
	content := item.Find(ListingContentSelector).First()
	if content.Length() == 0 {
		return nil, missing("content", index)
	}

	labels := content.Find(LabelSelector)
	title := NormalizeText(labels.First().Text())
	if title == "" {
		return nil, missing("title", index)
	}
	era := NormalizeText(labels.Last().Text())
	if era == "" {
		return nil, missing("era", index)
	}
	body := NormalizeText(content.Find(BodySelector).First().Text())
	if body == "" {
		return nil, missing("body", index)
	}

	return &models.Poem{Title: title, Era: era, Body: body}, nil
}

// ExtractHarvestLinks collects every link inside the category groups of an
// index page, resolved against base. Duplicates are kept.
func ExtractHarvestLinks(doc *goquery.Document, base string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	groups := doc.Find(HarvestGroupSelector)
	if groups.Length() == 0 {
		return nil, missing("category groups", -1)
	}

	var links []string
	groups.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			err = missing("link href", -1)
			return false
		}
		ref, parseErr := url.Parse(href)
		if parseErr != nil {
			err = fmt.Errorf("parse link %q: %w", href, parseErr)
			return false
		}
		links = append(links, baseURL.ResolveReference(ref).String())
		return true
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// ExtractDetail returns the single poem of a detail page.
func ExtractDetail(doc *goquery.Document) (*models.Poem, error) {
	container := doc.Find(DetailContainerSelector).First()
	if container.Length() == 0 {
		return nil, missing("detail container", -1)
	}

	title := NormalizeText(container.Find(DetailTitleSelector).First().Text())
	if title == "" {
		return nil, missing("title", -1)
	}
	era := NormalizeText(container.Find(DetailEraSelector).First().Text())
	if era == "" {
		return nil, missing("era", -1)
	}
	body := NormalizeText(container.Find(BodySelector).First().Text())
	if body == "" {
		return nil, missing("body", -1)
	}

	return &models.Poem{Title: title, Era: era, Body: body}, nil
}
