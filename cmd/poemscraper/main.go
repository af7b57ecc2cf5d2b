package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-poems/config"
	"github.com/aluiziolira/go-scrape-poems/models"
	"github.com/aluiziolira/go-scrape-poems/pipeline"
	"github.com/aluiziolira/go-scrape-poems/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	mode       string
	param      string
	count      int
	configPath string

	outputFile          string
	outputFormat        string
	baseURL             string
	timeout             time.Duration
	maxPages            int
	enforceHarvestQuota bool
	respectRobots       bool
	metricsAddr         string
	verbose             bool

	// set holds the flag names given on the command line.
	set map[string]bool
}

func parseFlags(args []string, errOut io.Writer) (*options, error) {
	defaults := config.DefaultConfig()
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("poemscraper", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.mode, "mode", "", "Crawl mode: 1/author, 2/era, 3/category (prompted when empty)")
	fs.StringVar(&opts.param, "param", "", "Author, era or category to crawl")
	fs.IntVar(&opts.count, "count", 0, "Number of poems to collect")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (default: XDG config dir)")
	fs.StringVar(&opts.outputFile, "output", defaults.OutputFile, "Output file path")
	fs.StringVar(&opts.outputFormat, "format", defaults.OutputFormat, "Output format: text, json, csv, or dual")
	fs.StringVar(&opts.baseURL, "base-url", defaults.BaseURL, "Base URL of the poetry site")
	fs.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Per-request timeout")
	fs.IntVar(&opts.maxPages, "max-pages", defaults.MaxPages, "Maximum listing pages to fetch")
	fs.BoolVar(&opts.enforceHarvestQuota, "enforce-harvest-quota", defaults.EnforceHarvestQuota, "Visit at most -count links for special categories")
	fs.BoolVar(&opts.respectRobots, "respect-robots", defaults.RespectRobotsTxt, "Respect robots.txt directives")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&opts.verbose, "v", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// buildConfig layers defaults, the config file, POEMS_* variables and the
// flags given on the command line, in that order.
func buildConfig(opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if path := config.FindConfigFile(opts.configPath); path != "" {
		file, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := file.Apply(cfg); err != nil {
			return nil, err
		}
		slog.Debug("configuration file loaded", slog.String("path", path))
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if opts.set["output"] {
		cfg.OutputFile = opts.outputFile
	}
	if opts.set["format"] {
		cfg.OutputFormat = strings.ToLower(opts.outputFormat)
	}
	if opts.set["base-url"] {
		cfg.BaseURL = opts.baseURL
	}
	if opts.set["timeout"] {
		cfg.Timeout = opts.timeout
	}
	if opts.set["max-pages"] {
		cfg.MaxPages = opts.maxPages
	}
	if opts.set["enforce-harvest-quota"] {
		cfg.EnforceHarvestQuota = opts.enforceHarvestQuota
	}
	if opts.set["respect-robots"] {
		cfg.RespectRobotsTxt = opts.respectRobots
	}
	if opts.set["metrics-addr"] {
		cfg.MetricsAddr = opts.metricsAddr
	}
	cfg.Verbose = opts.verbose

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readQuery builds the query from flags, or prompts for it when no mode was
// given.
func readQuery(opts *options, in io.Reader, out io.Writer) (models.CrawlQuery, error) {
	if opts.mode == "" {
		return newPrompter(in, out).Query()
	}
	mode, err := models.ParseMode(opts.mode)
	if err != nil {
		return models.CrawlQuery{}, err
	}
	return models.NewCrawlQuery(mode, opts.param, opts.count)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger, level := newLogger(opts.verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := buildConfig(opts)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	query, err := readQuery(opts, stdin, stdout)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnsupportedMode):
			fmt.Fprint(stderr, diagnostic("该模式暂不支持: %v", err))
		default:
			fmt.Fprint(stderr, diagnostic("选择的模式无效! %v", err))
		}
		return 1
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	var bar *progressbar.ProgressBar
	var progress scraper.Progress
	if !isHarvest(cfg, query) {
		bar = progressbar.NewOptions(query.TargetCount,
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("爬取中, 请不要中断. 当前进度为"),
			progressbar.OptionShowCount(),
		)
		progress = bar
	}

	startTime := time.Now()
	result, err := s.Run(ctx, query, progress)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(stderr)
	}
	if err != nil {
		slog.Error("crawl failed, output left untouched", slog.Any("error", err))
		fmt.Fprint(stderr, diagnostic("爬取失败: %v", err))
		return 1
	}

	if err := save(cfg, result.Poems); err != nil {
		slog.Error("saving output failed", slog.Any("error", err))
		fmt.Fprint(stderr, diagnostic("写入失败: %v", err))
		return 1
	}

	printSummary(stdout, result, time.Since(startTime), cfg.OutputFile)
	return 0
}

func isHarvest(cfg *config.Config, query models.CrawlQuery) bool {
	if query.Mode != models.ModeCategory {
		return false
	}
	_, ok := cfg.HarvestSegment(query.Parameter)
	return ok
}

// save hands the poems to the pipeline. The destination is only replaced
// once every poem has been written and committed.
func save(cfg *config.Config, poems []*models.Poem) error {
	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	p := pipeline.NewPipeline(writer)
	if err := p.Flush(poems); err != nil {
		return err
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation: %w", err)
	}
	slog.Debug("pipeline finished", slog.Any("metrics", p.GetMetrics()))
	return nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "text":
		return pipeline.NewTextWriter(filename)
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		return pipeline.NewDualWriter(filename, jsonCompanion(filename))
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// jsonCompanion names the JSON lines file written next to the text output.
func jsonCompanion(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
}

func printSummary(out io.Writer, result *models.ScraperResult, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, heading("Crawl complete"))

	fmt.Fprint(out, formatRow("Run ID", result.RunID))
	fmt.Fprint(out, formatRow("Mode", result.Query.Mode))
	fmt.Fprint(out, formatRow("Parameter", result.Query.Parameter))
	fmt.Fprint(out, formatRow("Poems", fmt.Sprintf("%d/%d", result.TotalCount, result.Query.TargetCount)))
	if result.Exhausted {
		fmt.Fprint(out, formatRow("Note", "source exhausted before the requested count"))
	}
	fmt.Fprint(out, formatRow("Pages", result.PageCount))
	if result.LinkCount > 0 {
		fmt.Fprint(out, formatRow("Links", result.LinkCount))
	}
	fmt.Fprint(out, formatRow("Requests", result.RequestCount))
	fmt.Fprint(out, formatRow("Duration", duration.Round(time.Millisecond)))
	fmt.Fprint(out, formatRow("Output file", outputFile))
	fmt.Fprintln(out, separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
