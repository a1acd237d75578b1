package web

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"poll-reader/config"
	"poll-reader/utils"
)

// extractTableJS returns the cell text of every row of the first table on the
// page, header cells included.
const extractTableJS = `
	(function() {
		var table = document.querySelector('table');
		if (!table) return [];
		var out = [];
		var rows = table.querySelectorAll('tr');
		for (var i = 0; i < rows.length; i++) {
			var cells = rows[i].querySelectorAll('th, td');
			var row = [];
			for (var j = 0; j < cells.length; j++) {
				row.push((cells[j].innerText || '').trim());
			}
			if (row.length > 0) out.push(row);
		}
		return out;
	})()
`

// Scraper fetches polling tables from web pages and turns them into CSV lines
// the parser understands.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	retry  *utils.RetryConfig
}

// New creates a ready-to-use Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Permanent:   isCancelled,
		},
	}
}

// Scrape loads every URL (duplicates skipped) on a bounded worker pool and
// returns their lines concatenated in URL order. Pages must be given oldest
// first, since row order is the chronological order of the polls.
func (s *Scraper) Scrape(ctx context.Context, urls []string) ([]string, error) {
	s.logger.Info("[web] Starting scrape of %d source pages", len(urls))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if bin := findChromeBinary(s.cfg.ChromeBin); bin != "" {
		s.logger.Info("[web] Using browser binary: %s", bin)
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	// start the browser once so page tabs share it
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("source: start browser: %w", err)
	}

	urls = uniqueURLs(urls)
	results := make([][]string, len(urls))
	errs := make([]error, len(urls))

	pool := utils.NewWorkerPool(s.cfg.MaxConcurrency, time.Duration(s.cfg.RateLimitMs)*time.Millisecond)
	for i, u := range urls {
		i, u := i, u
		pool.Submit(func() {
			results[i], errs[i] = s.scrapePage(browserCtx, u)
		})
	}
	pool.Wait()

	var lines []string
	for i, u := range urls {
		if errs[i] != nil {
			return nil, fmt.Errorf("source: %s: %w", u, errs[i])
		}
		s.logger.Debug("[web] %s: %d lines", u, len(results[i]))
		lines = append(lines, results[i]...)
	}

	s.logger.Info("[web] Scrape complete, %d lines from %d pages", len(lines), len(urls))
	return lines, nil
}

func (s *Scraper) scrapePage(browserCtx context.Context, url string) ([]string, error) {
	var lines []string

	err := s.retry.Do(browserCtx, "scrape "+url, func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		var cells [][]string
		if err := chromedp.Run(ctx,
			chromedp.Navigate(url),
			chromedp.WaitVisible("table", chromedp.ByQuery),
			chromedp.Evaluate(extractTableJS, &cells),
		); err != nil {
			return fmt.Errorf("chromedp table extract: %w", err)
		}

		lines = rowsToLines(cells)
		return nil
	})

	return lines, err
}

// isCancelled reports errors caused by the caller giving up. Per-page
// timeouts surface as context.DeadlineExceeded and are still retried.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// uniqueURLs drops repeated URLs while keeping first-seen order.
func uniqueURLs(urls []string) []string {
	seen := utils.NewURLSet()
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen.Add(u) {
			out = append(out, strings.TrimSpace(u))
		}
	}
	return out
}

// rowsToLines joins table cells into comma-separated lines. A header row is
// normalised so that it starts with the "month" token the parser skips.
func rowsToLines(rows [][]string) []string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.Join(strings.Fields(c), " ")
		}
		if strings.EqualFold(cells[0], "month") {
			cells[0] = "month"
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return lines
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the configured one.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
