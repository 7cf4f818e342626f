package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"pinscraper/internal/downloader"
	"pinscraper/pkg/browser"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/objectstore"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/resume"
	"pinscraper/pkg/scraper"
	"pinscraper/pkg/session"
	"pinscraper/pkg/ui"
)

var (
	// Scrape command flags
	categories   []string
	remoteBucket string
	localOnly    bool
	noDownload   bool
	resumeMode   string
	scrolls      int
	headful      bool
	browserURL   string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Crawl categories and grab new pins",
	Long: `Crawl the selected Pinterest categories and grab every pin that earlier
runs have not seen.

Anything not given by flag is asked for interactively: the categories, media
downloads and placement per category, and whether previously scraped
categories are extended or discarded.

Press Ctrl+C to stop. An interrupted run discards the pins it staged and
leaves the stored history as it was before the run.`,
	Example: `  # Interactive run
  pinscraper scrape

  # Two categories into a bucket, extending earlier data
  pinscraper scrape --category food --category travel --remote-bucket my-pins --resume extend

  # Records only, 5 scrolls per category
  pinscraper scrape --category animals --local --no-download --scrolls 5`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringSliceVar(&categories, "category", nil, "category to crawl (repeatable)")
	scrapeCmd.Flags().StringVar(&remoteBucket, "remote-bucket", "", "store every category in this bucket")
	scrapeCmd.Flags().BoolVar(&localOnly, "local", false, "store every category under the data root")
	scrapeCmd.Flags().BoolVar(&noDownload, "no-download", false, "keep records only, skip media downloads")
	scrapeCmd.Flags().StringVar(&resumeMode, "resume", "", "for previously scraped categories: extend or discard")
	scrapeCmd.Flags().IntVar(&scrolls, "scrolls", 0, "scroll passes per category")
	scrapeCmd.Flags().BoolVar(&headful, "show-browser", false, "run the browser with a visible window")
	scrapeCmd.Flags().StringVar(&browserURL, "browser-url", "", "DevTools websocket URL of a running browser")
	scrapeCmd.MarkFlagsMutuallyExclusive("remote-bucket", "local")

	// scrape is also the default command
	rootCmd.Flags().AddFlagSet(scrapeCmd.Flags())
	rootCmd.RunE = runScrape
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if scrolls > 0 {
		flags["scrolls"] = scrolls
	}
	if headful {
		flags["headless"] = false
	}
	if browserURL != "" {
		flags["browser-url"] = browserURL
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	chooser, err := dispositionFlag()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote, err := openRemote(cfg)
	if err != nil {
		return err
	}

	mgr := browser.NewManager(cfg.Browser, log)
	defer func() {
		if err := mgr.Close(); err != nil {
			log.WithError(err).Warn("Failed to close browser")
		}
	}()
	crawler := browser.NewCrawler(mgr, cfg.Site, cfg.Browser, log)

	var checker ui.BucketChecker
	if remote != nil {
		checker = remote
	}
	prompter := ui.NewPrompter(os.Stdin, os.Stdout, checker)

	opts := ui.RunOptions{
		Categories:     categories,
		RemoteBucket:   remoteBucket,
		Local:          localOnly,
		NoDownload:     noDownload,
		Scrolls:        scrolls,
		DefaultScrolls: cfg.Browser.ScrollCount,
	}
	if len(opts.Categories) == 0 {
		ui.PrintInfo("Listing categories", cfg.Site.RootURL)
		found, err := crawler.Categories(ctx)
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		for _, c := range found {
			opts.Available = append(opts.Available, c.Name)
		}
	}

	rc, err := prompter.RunConfig(ctx, opts)
	if err != nil {
		return err
	}
	if err := requireRemote(rc, remote); err != nil {
		return err
	}
	if chooser == nil {
		chooser = prompter
	}

	var reporter scraper.Reporter
	if !quiet {
		reporter = ui.NewProgressDisplay(os.Stdout, verbose)
	}

	s, err := scraper.New(cfg, scraper.Deps{
		Crawler:  crawler,
		Details:  browser.NewDetailProvider(mgr, cfg.Site, log),
		Fetcher:  downloader.New(cfg.Download, cfg.Retry, log),
		Remote:   remote,
		Chooser:  chooser,
		Reporter: reporter,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := s.Run(ctx, rc)
	return finishScrape(report, err, time.Since(start))
}

func finishScrape(report *scraper.Report, err error, elapsed time.Duration) error {
	var notifier *ui.Notifier
	if notifications && !quiet {
		notifier = ui.NewNotifier()
	}

	if errors.Is(err, pserrors.ErrCancelled) {
		ui.PrintWarning("Run interrupted, stored history left unchanged")
		return nil
	}
	if errors.Is(err, pserrors.ErrRunInProgress) {
		return fmt.Errorf("another run is using this data root: %w", err)
	}
	if err != nil {
		if notifier != nil {
			notifier.RunFailed(err)
		}
		return err
	}

	grabbed := 0
	for _, c := range report.Summary {
		grabbed += c.Processed
	}
	if notifier != nil {
		notifier.RunFinished(grabbed, len(report.Summary), elapsed)
	}
	ui.PrintSuccess("Run " + report.RunID + " committed")
	return nil
}

func dispositionFlag() (resume.DispositionChooser, error) {
	if resumeMode == "" {
		return nil, nil
	}
	d, err := resume.ParseDisposition(resumeMode)
	if err != nil {
		return nil, fmt.Errorf("--resume: %w", err)
	}
	return resume.Fixed(d), nil
}

// requireRemote fails early when a category is placed remotely but no
// object storage client could be configured
func requireRemote(rc *session.RunConfig, remote objectstore.Client) error {
	if remote != nil {
		return nil
	}
	for _, cat := range rc.Categories() {
		if rc.Placement(cat).Kind == placement.Remote {
			return fmt.Errorf("category %s is placed remotely but object storage is not configured; run 'pinscraper auth login'", cat)
		}
	}
	return nil
}
