package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-poems/config"
	"github.com/gocolly/colly/v2"
)

const (
	phaseListing = "listing"
	phaseHarvest = "harvest"
	phaseDetail  = "detail"
)

var errNoBody = errors.New("response carried no body")

// Scraper wraps a synchronous colly collector. It fetches one page at a time
// and drives the crawl controller.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	requestCount int64
	pageCount    int64
	linkCount    int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
	)

	// Harvested links are visited as listed, duplicates included.
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.configureHandlers()
	return s, nil
}

// Fetch issues a single GET for rawURL and returns the raw markup. Transport
// failures and non-success statuses are returned as *FetchError.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return s.fetch(ctx, rawURL, phaseListing)
}

func (s *Scraper) fetch(ctx context.Context, rawURL, phase string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx := colly.NewContext()
	reqCtx.Put("phase", phase)

	err := s.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil)
	if err == nil {
		if body, ok := reqCtx.GetAny("body").([]byte); ok {
			return body, nil
		}
		err = errNoBody
	}

	status, _ := reqCtx.GetAny("status").(int)
	classified := classifyError(err, status)
	category := errorTypeLabel(classified)

	atomic.AddInt64(&s.errorCount, 1)
	s.mu.Lock()
	s.errorsByType[category]++
	s.failedURLs = append(s.failedURLs, rawURL)
	s.mu.Unlock()
	s.Metrics.IncError(category)

	slog.Error("request error",
		slog.String("url", rawURL),
		slog.String("phase", phase),
		slog.String("category", category),
		slog.Any("error", err),
	)
	return nil, &FetchError{URL: rawURL, Err: classified}
}

func (s *Scraper) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			current := atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest(r.Ctx.Get("phase"))
			slog.Debug("scraper request",
				slog.Int64("requests", current),
				slog.String("phase", r.Ctx.Get("phase")),
				slog.String("url", r.URL.String()),
			)
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			r.Ctx.Put("status", r.StatusCode)
			r.Ctx.Put("body", r.Body)
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			if r == nil || r.Ctx == nil {
				return
			}
			if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			r.Ctx.Put("status", r.StatusCode)
		})
	})
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
