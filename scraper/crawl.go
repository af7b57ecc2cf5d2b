package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-poems/models"
	"github.com/aluiziolira/go-scrape-poems/parser"
	"github.com/google/uuid"
)

// Progress receives the number of poems accepted from each listing page.
type Progress interface {
	Add(n int) error
}

// ListingURL builds the URL of one listing page for a query parameter.
func ListingURL(base, param, value string, page int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u = u.ResolveReference(&url.URL{Path: "/shiwens/default.aspx"})
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set(param, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HarvestURL builds the URL of a special category's index page.
func HarvestURL(base, segment string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return u.ResolveReference(&url.URL{Path: "/gushi/" + segment + ".aspx"}).String(), nil
}

// crawl holds the controller state of a single Run.
type crawl struct {
	s        *Scraper
	query    models.CrawlQuery
	result   *models.ScraperResult
	progress Progress
	logger   *slog.Logger

	page    int
	segment string
	links   []string
	next    int
}

// Run crawls query until its quota is met or the source runs dry. Listing
// pages are fetched in order and the last one is truncated to the quota.
// Special categories harvest detail links first and visit each of them.
//
// On failure the partial result is returned together with the error.
func (s *Scraper) Run(ctx context.Context, query models.CrawlQuery, progress Progress) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	result := &models.ScraperResult{
		RunID:     uuid.New(),
		Query:     query,
		StartTime: time.Now(),
		State:     models.StateListing,
	}
	c := &crawl{
		s:        s,
		query:    query,
		result:   result,
		progress: progress,
		page:     1,
		logger: slog.With(
			slog.String("run_id", result.RunID.String()),
			slog.String("mode", query.Mode.String()),
			slog.String("parameter", query.Parameter),
		),
	}
	if query.Mode == models.ModeCategory {
		if segment, ok := s.cfg.HarvestSegment(query.Parameter); ok {
			c.segment = segment
			result.State = models.StateHarvesting
		}
	}

	c.logger.Info("crawl started",
		slog.Int("target", query.TargetCount),
		slog.String("state", result.State.String()),
	)

	var err error
	for !result.State.Terminal() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.State, err = models.StateFailed, ctxErr
			break
		}
		switch result.State {
		case models.StateListing:
			result.State, err = c.listingStep(ctx)
		case models.StateHarvesting:
			result.State, err = c.harvestStep(ctx)
		default:
			result.State, err = models.StateFailed, fmt.Errorf("unexpected crawl state %s", result.State)
		}
	}

	s.finish(result)
	if result.State == models.StateFailed {
		c.logger.Error("crawl failed",
			slog.Int("accepted", result.TotalCount),
			slog.Any("error", err),
		)
		return result, err
	}

	c.logger.Info("crawl finished",
		slog.Int("poems", result.TotalCount),
		slog.Bool("exhausted", result.Exhausted),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)
	return result, nil
}

func (c *crawl) listingStep(ctx context.Context) (models.CrawlState, error) {
	if c.page > c.s.cfg.MaxPages {
		c.logger.Warn("page limit reached before quota",
			slog.Int("max_pages", c.s.cfg.MaxPages),
			slog.Int("accepted", len(c.result.Poems)),
		)
		c.result.Exhausted = true
		return models.StateDone, nil
	}

	pageURL, err := ListingURL(c.s.cfg.BaseURL, c.query.Mode.QueryParam(), c.query.Parameter, c.page)
	if err != nil {
		return models.StateFailed, err
	}
	body, err := c.s.fetch(ctx, pageURL, phaseListing)
	if err != nil {
		return models.StateFailed, err
	}
	atomic.AddInt64(&c.s.pageCount, 1)

	batch, err := c.extract(body, pageURL, parser.ExtractListing)
	if err != nil {
		return models.StateFailed, err
	}

	if len(batch) == 0 {
		c.logger.Info("listing exhausted",
			slog.Int("page", c.page),
			slog.Int("accepted", len(c.result.Poems)),
		)
		c.result.Exhausted = true
		return models.StateDone, nil
	}

	accepted, done := Admit(len(c.result.Poems), len(batch), c.query.TargetCount)
	c.accept(batch[:accepted], pageURL, phaseListing)
	c.s.Metrics.AddTruncated(len(batch) - accepted)
	if c.progress != nil {
		if err := c.progress.Add(accepted); err != nil {
			c.logger.Debug("progress update failed", slog.Any("error", err))
		}
	}

	c.logger.Debug("listing page accepted",
		slog.Int("page", c.page),
		slog.Int("batch", len(batch)),
		slog.Int("accepted", accepted),
	)
	c.page++
	if done {
		return models.StateDone, nil
	}
	return models.StateListing, nil
}

func (c *crawl) harvestStep(ctx context.Context) (models.CrawlState, error) {
	if c.links == nil {
		return c.harvestLinks(ctx)
	}
	if c.next >= len(c.links) {
		return models.StateDone, nil
	}

	link := c.links[c.next]
	body, err := c.s.fetch(ctx, link, phaseDetail)
	if err != nil {
		return models.StateFailed, err
	}
	poems, err := c.extract(body, link, func(doc *goquery.Document) ([]*models.Poem, error) {
		poem, err := parser.ExtractDetail(doc)
		if err != nil {
			return nil, err
		}
		return []*models.Poem{poem}, nil
	})
	if err != nil {
		return models.StateFailed, err
	}
	c.accept(poems, link, phaseDetail)

	c.next++
	if c.next >= len(c.links) {
		return models.StateDone, nil
	}
	return models.StateHarvesting, nil
}

func (c *crawl) harvestLinks(ctx context.Context) (models.CrawlState, error) {
	indexURL, err := HarvestURL(c.s.cfg.BaseURL, c.segment)
	if err != nil {
		return models.StateFailed, err
	}
	body, err := c.s.fetch(ctx, indexURL, phaseHarvest)
	if err != nil {
		return models.StateFailed, err
	}
	atomic.AddInt64(&c.s.pageCount, 1)

	doc, err := parser.ParseDocument(body)
	if err != nil {
		return models.StateFailed, c.extractionFailed(indexURL, err)
	}
	links, err := parser.ExtractHarvestLinks(doc, c.s.cfg.BaseURL)
	if err != nil {
		return models.StateFailed, c.extractionFailed(indexURL, err)
	}

	if c.s.cfg.EnforceHarvestQuota {
		keep, _ := Admit(0, len(links), c.query.TargetCount)
		if keep < c.query.TargetCount {
			c.result.Exhausted = true
		}
		links = links[:keep]
	}
	if links == nil {
		links = []string{}
	}
	c.links = links
	atomic.AddInt64(&c.s.linkCount, int64(len(links)))
	c.s.Metrics.AddHarvestedLinks(len(links))

	c.logger.Info("category links harvested",
		slog.String("index", indexURL),
		slog.Int("links", len(links)),
		slog.Bool("quota_enforced", c.s.cfg.EnforceHarvestQuota),
	)
	if len(links) == 0 {
		return models.StateDone, nil
	}
	return models.StateHarvesting, nil
}

func (c *crawl) extract(body []byte, pageURL string, fn func(*goquery.Document) ([]*models.Poem, error)) ([]*models.Poem, error) {
	doc, err := parser.ParseDocument(body)
	if err != nil {
		return nil, c.extractionFailed(pageURL, err)
	}
	poems, err := fn(doc)
	if err != nil {
		return nil, c.extractionFailed(pageURL, err)
	}
	return poems, nil
}

func (c *crawl) extractionFailed(pageURL string, err error) error {
	c.s.Metrics.IncExtractionError()
	var extractErr *parser.ExtractionError
	if errors.As(err, &extractErr) {
		c.logger.Error("unexpected page structure",
			slog.String("url", pageURL),
			slog.String("field", extractErr.Field),
		)
	}
	return fmt.Errorf("%s: %w", pageURL, err)
}

func (c *crawl) accept(poems []*models.Poem, pageURL, phase string) {
	now := time.Now()
	for _, poem := range poems {
		poem.URL = pageURL
		poem.ScrapedAt = now
	}
	c.result.Poems = append(c.result.Poems, poems...)
	c.s.Metrics.AddPoems(phase, len(poems))
}

func (s *Scraper) finish(result *models.ScraperResult) {
	result.EndTime = time.Now()
	result.TotalCount = len(result.Poems)
	result.RequestCount = int(atomic.LoadInt64(&s.requestCount))
	result.PageCount = int(atomic.LoadInt64(&s.pageCount))
	result.LinkCount = int(atomic.LoadInt64(&s.linkCount))
	result.ErrorCount = int(atomic.LoadInt64(&s.errorCount))
	result.FailedURLs = s.snapshotFailedURLs()
	result.ErrorsByType = s.snapshotErrors()
}
