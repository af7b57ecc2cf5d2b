package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	MaxPages            int
	OutputFile          string
	OutputFormat        string // text, json, csv, or dual
	UserAgent           string
	Verbose             bool
	RespectRobotsTxt    bool
	MetricsAddr         string
	EnforceHarvestQuota bool
	// SpecialCategories maps category names that are crawled through their
	// detail pages to the remote path segment of their index page.
	SpecialCategories map[string]string
}

// DefaultSpecialCategories returns the built-in harvest category table.
func DefaultSpecialCategories() map[string]string {
	return map[string]string{
		"楚辞": "chuci",
		"诗经": "shijing",
		"乐府": "yuefu",
	}
}

// DefaultConfig returns defaults for the public poetry site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:             "https://www.gushiwen.cn",
		Timeout:             10 * time.Second,
		MaxPages:            1000,
		OutputFile:          "poems.txt",
		OutputFormat:        "text",
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:             false,
		RespectRobotsTxt:    false,
		EnforceHarvestQuota: false,
		SpecialCategories:   DefaultSpecialCategories(),
	}
}

// HarvestSegment returns the index page segment for a special category.
func (c *Config) HarvestSegment(category string) (string, bool) {
	segment, ok := c.SpecialCategories[category]
	return segment, ok
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "text", "json", "csv", "dual":
	default:
		return fmt.Errorf("output format must be text, json, csv, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	for name, segment := range c.SpecialCategories {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(segment) == "" {
			return fmt.Errorf("special categories cannot contain empty names or segments")
		}
	}

	return nil
}
