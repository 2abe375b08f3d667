package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/browser"
	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/crawler"
	"github.com/amishk599/jobscout/internal/scheduler"
)

var crawlSchedule string

var crawlCmd = &cobra.Command{
	Use:   "crawl <keywords.txt> <locations.txt> <npages> <dsn>",
	Short: "Search every keyword in every location and store new postings",
	Long: "Runs one browser session over every (location, keyword) pair. Keyword and " +
		"location files hold one entry per line; blank lines and lines starting with # are ignored. " +
		"npages bounds the \"show more\" rounds per search.",
	Args: cobra.ExactArgs(4),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().StringVar(&crawlSchedule, "schedule", "", `repeat on a cron schedule, e.g. "@every 24h" or "0 6 * * *"`)
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()
	logger := setupLogger(debug)

	cfg, err := config.LoadResolved(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	keywords, err := readList(args[0])
	if err != nil {
		return err
	}
	locations, err := readList(args[1])
	if err != nil {
		return err
	}
	pages, err := strconv.Atoi(args[2])
	if err != nil || pages < 0 {
		return fmt.Errorf("npages must be a non-negative integer, got %q", args[2])
	}
	cfg.Crawler.Pages = pages

	st, err := openStore(ctx, args[3], cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer st.Close()

	n, closeNotifier, err := setupNotifier(cfg, newHTTPClient(), logger)
	if err != nil {
		return err
	}
	defer closeNotifier()
	m := setupMetrics(ctx, cfg, logger)

	logger.Info("config loaded",
		"keywords", len(keywords),
		"locations", len(locations),
		"pages", pages,
		"search_attempts", cfg.Crawler.SearchAttempts.String(),
		"link_threshold", cfg.Crawler.LinkThreshold.String(),
		"pause", cfg.Crawler.Pause.String(),
	)

	run := func(ctx context.Context) error {
		b, err := browser.Launch(ctx, browser.Options{Headless: cfg.Browser.Headless, ChromePath: cfg.Browser.ChromePath}, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		s := crawler.NewSession(b, st, cfg.Crawler, logger)
		s.Notifier = n
		s.Metrics = m
		_, err = s.Run(ctx, keywords, locations)
		return err
	}

	if crawlSchedule == "" {
		return run(ctx)
	}
	sched, err := scheduler.New(crawlSchedule, run, logger)
	if err != nil {
		return err
	}
	return sched.Run(ctx)
}

// readList returns the trimmed, non-empty, non-comment lines of path.
func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no entries", path)
	}
	return out, nil
}
