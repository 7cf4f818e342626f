package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"pinscraper/internal/downloader"
	"pinscraper/pkg/browser"
	"pinscraper/pkg/commit"
	"pinscraper/pkg/config"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/migrate"
	"pinscraper/pkg/objectstore"
	"pinscraper/pkg/records"
	"pinscraper/pkg/resume"
	"pinscraper/pkg/retry"
	"pinscraper/pkg/runlock"
	"pinscraper/pkg/session"
	"pinscraper/pkg/storage"
)

// CrawlProvider discovers candidate items of a category
type CrawlProvider interface {
	Discover(ctx context.Context, category string, scrolls int) ([]ledger.ItemReference, error)
}

// DetailProvider reads the fields of one item page
type DetailProvider interface {
	Details(ctx context.Context, ref ledger.ItemReference) (browser.RawDetails, error)
}

// AssetFetcher downloads one media asset to a local path
type AssetFetcher interface {
	Fetch(ctx context.Context, url, dest string) (downloader.Result, error)
}

// Reporter receives progress events. All methods are called from the run
// goroutine.
type Reporter interface {
	StartCategory(category string, fresh int)
	ItemDone(category, key string, downloaded bool, size int64)
	ItemFailed(category string, ref ledger.ItemReference, err error)
	Finish(summary []session.CategorySummary)
}

// Deps are the collaborators of a Scraper. Remote may be nil when no
// category uses a Remote placement. Reporter and Logger are optional.
type Deps struct {
	Crawler  CrawlProvider
	Details  DetailProvider
	Fetcher  AssetFetcher
	Remote   objectstore.Client
	Chooser  resume.DispositionChooser
	Reporter Reporter
	Logger   logger.Logger
}

// Scraper runs one crawl session against a data root
type Scraper struct {
	config   *config.Config
	local    *storage.Manager
	crawler  CrawlProvider
	details  DetailProvider
	fetcher  AssetFetcher
	remote   objectstore.Client
	chooser  resume.DispositionChooser
	reporter Reporter
	logger   logger.Logger
}

// Report summarises a finished run
type Report struct {
	RunID       string
	Disposition resume.Disposition
	Overlap     []string
	Summary     []session.CategorySummary
	Commit      *commit.Result
}

// New creates a Scraper for cfg.Output.DataRoot
func New(cfg *config.Config, deps Deps) (*Scraper, error) {
	if deps.Crawler == nil || deps.Details == nil {
		return nil, fmt.Errorf("crawl and detail providers are required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	local, err := storage.NewManager(cfg.Output.DataRoot)
	if err != nil {
		log.WithError(err).WithField("data_root", cfg.Output.DataRoot).Error("Failed to create storage manager")
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}
	reporter := deps.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Scraper{
		config:   cfg,
		local:    local,
		crawler:  deps.Crawler,
		details:  deps.Details,
		fetcher:  deps.Fetcher,
		remote:   deps.Remote,
		chooser:  deps.Chooser,
		reporter: reporter,
		logger:   log,
	}, nil
}

// Run executes a session for rc: lock, sweep stale staging, plan, migrate,
// crawl and grab fresh items into staging, then commit. A cancelled ctx
// removes staged data, leaves the state files untouched and returns an
// error wrapping errors.ErrCancelled.
func (s *Scraper) Run(ctx context.Context, rc *session.RunConfig) (*Report, error) {
	root := s.local.Root()
	lock, err := runlock.Acquire(root)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.logger.WithError(err).Warn("Failed to release run lock")
		}
	}()

	if s.local.HasStaging() {
		s.logger.Info("Removing staged data left by an interrupted run")
		if err := s.local.RemoveStaging(); err != nil {
			return nil, fmt.Errorf("failed to remove stale staging: %w", err)
		}
	}

	plan, err := resume.NewPlanner(root, s.chooser, s.logger).Plan(rc)
	if err != nil {
		s.logger.WithError(err).Error("Resume planning failed")
		return nil, err
	}

	retryCfg := retry.FromSettings(ctx, s.config.Retry, s.logger)
	reg := plan.Registry.Clone()
	exec := migrate.NewExecutor(s.local, s.remote, s.config.Output.RemotePrefix, retryCfg, s.logger)
	if err := exec.Run(ctx, plan.Steps, reg); err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("Run cancelled during migration")
			return nil, fmt.Errorf("migration interrupted: %w", pserrors.ErrCancelled)
		}
		return nil, err
	}

	pipeline := commit.NewPipeline(s.local, s.remote, s.config.Output.RemotePrefix, retryCfg, s.logger)

	prior := make(map[string]records.CategoryRecord)
	for _, cat := range rc.Categories() {
		if !plan.Extending(cat) {
			continue
		}
		rec, err := pipeline.LoadRecord(ctx, rc.Placement(cat), cat)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("loading prior records: %w", pserrors.ErrCancelled)
			}
			return nil, fmt.Errorf("failed to load prior records of %s: %w", cat, err)
		}
		// entries of a run whose ledger write never happened are grabbed again
		dropped := rec.Retain(func(r records.PageRecord) bool {
			return plan.Ledger.Contains(ledger.ItemReference{Category: cat, Href: r.Link})
		})
		if dropped > 0 {
			s.logger.WithField("category", cat).WarnWithFields("Dropped uncommitted records", map[string]interface{}{
				"records": dropped,
			})
		}
		prior[cat] = rec
	}

	st := session.NewState(rc, plan.StartCounters(prior))
	for cat, rec := range prior {
		st.MergePrior(cat, rec)
	}
	s.logger.InfoWithFields("Starting session", map[string]interface{}{
		"run_id":      st.ID,
		"categories":  rc.Categories(),
		"disposition": plan.Disposition.String(),
	})

	for _, cat := range rc.Categories() {
		if err := s.crawlCategory(ctx, st, plan, cat); err != nil {
			if errors.Is(err, pserrors.ErrCancelled) {
				return nil, s.abort(pipeline, st)
			}
			return nil, err
		}
	}

	res, err := pipeline.Commit(ctx, st, plan, reg)
	report := &Report{
		RunID:       st.ID,
		Disposition: plan.Disposition,
		Overlap:     plan.Overlap,
		Summary:     st.Summary(),
		Commit:      res,
	}
	if err != nil {
		return report, err
	}
	s.reporter.Finish(report.Summary)
	return report, res.Err()
}

func (s *Scraper) abort(pipeline *commit.Pipeline, st *session.State) error {
	s.logger.Warn("Run cancelled, discarding staged data")
	if err := pipeline.Abort(st); err != nil {
		s.logger.WithError(err).Error("Failed to remove staged data")
	}
	return fmt.Errorf("run %s: %w", st.ID, pserrors.ErrCancelled)
}

// crawlCategory discovers items of cat and grabs every fresh one into the
// staging area. It returns ErrCancelled when ctx is done; per-item problems
// are logged and skipped.
func (s *Scraper) crawlCategory(ctx context.Context, st *session.State, plan *resume.Plan, cat string) error {
	log := s.logger.WithField("category", cat)
	rc := st.Config

	discovered, err := s.crawler.Discover(ctx, cat, rc.ScrollCount())
	if ctx.Err() != nil {
		return pserrors.ErrCancelled
	}
	if err != nil {
		log.WithError(err).Error("Discovery failed")
	}

	fresh := plan.Fresh(discovered)
	st.SetFresh(cat, fresh)
	log.InfoWithFields("Discovered items", map[string]interface{}{
		"discovered": len(discovered),
		"fresh":      len(fresh),
	})
	s.reporter.StartCategory(cat, len(fresh))

	for _, ref := range fresh {
		if ctx.Err() != nil {
			return pserrors.ErrCancelled
		}
		if err := s.grab(ctx, st, ref); err != nil {
			if ctx.Err() != nil {
				return pserrors.ErrCancelled
			}
			log.WithError(err).WithField("href", ref.Href).Warn("Item skipped")
			s.reporter.ItemFailed(cat, ref, err)
		}
	}
	return nil
}

// grab reads one item page, downloads its media into staging when enabled
// and stores the record in st. A sequence number is only consumed once the
// page was read.
func (s *Scraper) grab(ctx context.Context, st *session.State, ref ledger.ItemReference) error {
	cat := ref.Category
	rc := st.Config

	raw, err := s.details.Details(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to read item page: %w", err)
	}

	key := st.NextKey(cat)
	pl := rc.Placement(cat)
	rec := records.PageRecord{
		UniqueID:      st.UniqueID(ref),
		Link:          ref.Href,
		Title:         s.value(raw.Title, ref),
		Description:   s.value(raw.Description, ref),
		PosterName:    s.value(raw.PosterName, ref),
		FollowerCount: s.value(raw.FollowerCount, ref),
		Tags:          records.Tags(raw.Tags),
		MediaKind:     raw.MediaKind,
		MediaSource:   s.value(raw.MediaSource, ref),
		SaveLocation:  pl.SaveLocation(s.local.Root(), s.config.Output.RemotePrefix, cat),
	}

	var size int64
	if rc.DownloadMedia(cat) && raw.MediaSource.Available && s.fetcher != nil {
		dest := filepath.Join(s.local.StagingDir(cat), records.AssetName(key, raw.MediaKind))
		res, err := s.fetcher.Fetch(ctx, raw.MediaSource.Value, dest)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"category": cat,
				"key":      key,
			}).Warn("Media download failed, keeping record")
		} else {
			rec.Downloaded = true
			size = res.Size
		}
	}

	st.Record(ref, key, rec)
	s.reporter.ItemDone(cat, key, rec.Downloaded, size)
	return nil
}

// value resolves a field to its text or the Unavailable sentinel
func (s *Scraper) value(f browser.Field, ref ledger.ItemReference) string {
	v, err := f.Result()
	if err != nil {
		s.logger.DebugWithFields("Field unavailable", map[string]interface{}{
			"href":  ref.Href,
			"field": f.Name,
		})
		return records.Unavailable
	}
	return v
}

type nopReporter struct{}

func (nopReporter) StartCategory(string, int) {}
func (nopReporter) ItemDone(string, string, bool, int64) {}
func (nopReporter) ItemFailed(string, ledger.ItemReference, error) {}
func (nopReporter) Finish([]session.CategorySummary) {}
