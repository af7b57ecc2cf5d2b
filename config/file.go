package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up under the XDG config directories.
const DefaultConfigFile = "go-scrape-poems/config.yaml"

// ErrConfigNotFound is returned when an explicit configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File mirrors the YAML configuration file. Zero values leave defaults untouched.
type File struct {
	BaseURL             string            `yaml:"base_url"`
	Timeout             string            `yaml:"timeout"`
	MaxPages            int               `yaml:"max_pages"`
	Output              string            `yaml:"output"`
	Format              string            `yaml:"format"`
	UserAgent           string            `yaml:"user_agent"`
	MetricsAddr         string            `yaml:"metrics_addr"`
	RespectRobotsTxt    *bool             `yaml:"respect_robots"`
	EnforceHarvestQuota *bool             `yaml:"enforce_harvest_quota"`
	SpecialCategories   map[string]string `yaml:"special_categories"`
}

// FindConfigFile returns explicit when set, otherwise the first XDG match.
// An empty string means no file should be loaded.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	path, err := xdg.SearchConfigFile(DefaultConfigFile)
	if err != nil {
		return ""
	}
	return path
}

// LoadFile parses a YAML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &f, nil
}

// Apply copies the non-zero file values onto cfg.
func (f *File) Apply(cfg *Config) error {
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.Timeout != "" {
		timeout, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	if f.MaxPages != 0 {
		cfg.MaxPages = f.MaxPages
	}
	if f.Output != "" {
		cfg.OutputFile = f.Output
	}
	if f.Format != "" {
		cfg.OutputFormat = strings.ToLower(f.Format)
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
	if f.RespectRobotsTxt != nil {
		cfg.RespectRobotsTxt = *f.RespectRobotsTxt
	}
	if f.EnforceHarvestQuota != nil {
		cfg.EnforceHarvestQuota = *f.EnforceHarvestQuota
	}
	if len(f.SpecialCategories) > 0 {
		cfg.SpecialCategories = make(map[string]string, len(f.SpecialCategories))
		for name, segment := range f.SpecialCategories {
			cfg.SpecialCategories[strings.TrimSpace(name)] = strings.TrimSpace(segment)
		}
	}
	return nil
}
