// Package commit finalises a run: staged records and assets move to their
// placement, then the placement registry and ledger are written. The ledger
// write is always the last durable action of a run.
package commit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/objectstore"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/records"
	"pinscraper/pkg/resume"
	"pinscraper/pkg/retry"
	"pinscraper/pkg/session"
	"pinscraper/pkg/statefile"
	"pinscraper/pkg/storage"
)

// Pipeline commits session state for one data root
type Pipeline struct {
	local        *storage.Manager
	remote       objectstore.Client
	remotePrefix string
	retry        *retry.Config
	logger       logger.Logger
}

// Result describes which categories reached their placement
type Result struct {
	Committed []string
	Failed    map[string]error
	// Added is the number of references appended to the ledger
	Added int
}

// Err joins the per-category failures, or returns nil
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	cats := make([]string, 0, len(r.Failed))
	for c := range r.Failed {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	errs := make([]error, 0, len(cats))
	for _, c := range cats {
		errs = append(errs, fmt.Errorf("commit %s: %w", c, r.Failed[c]))
	}
	return errors.Join(errs...)
}

// NewPipeline creates a pipeline. remote may be nil when every category is Local.
func NewPipeline(local *storage.Manager, remote objectstore.Client, remotePrefix string, rc *retry.Config, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	if rc == nil {
		rc = &retry.Config{MaxAttempts: 1}
	}
	return &Pipeline{local: local, remote: remote, remotePrefix: remotePrefix, retry: rc, logger: log}
}

// Commit finalises every requested category of st. A category that fails is
// reported in the Result and excluded from the ledger; the others proceed.
// reg is updated with the placement of each committed category and saved,
// then the working ledger of plan plus the processed references of the
// committed categories is written in one step.
//
// If ctx is cancelled before the ledger write, staging is removed and
// neither file is written; the returned error wraps errors.ErrCancelled.
func (p *Pipeline) Commit(ctx context.Context, st *session.State, plan *resume.Plan, reg placement.Registry) (*Result, error) {
	res := &Result{Failed: map[string]error{}}
	var added []ledger.ItemReference

	for _, cat := range st.Config.Categories() {
		if ctx.Err() != nil {
			return res, p.cancelled(st)
		}
		log := p.logger.WithField("category", cat)
		if err := p.commitCategory(ctx, st, cat); err != nil {
			if ctx.Err() != nil {
				return res, p.cancelled(st)
			}
			log.WithError(err).Error("Category commit failed")
			res.Failed[cat] = err
			continue
		}
		reg[cat] = st.Config.Placement(cat)
		refs := st.Processed(cat)
		added = append(added, refs...)
		res.Committed = append(res.Committed, cat)
		log.InfoWithFields("Category committed", map[string]interface{}{
			"records": len(st.Records(cat)),
			"new":     len(refs),
		})
	}

	if ctx.Err() != nil {
		return res, p.cancelled(st)
	}

	root := p.local.Root()
	if err := reg.Save(placement.Path(root)); err != nil {
		return res, fmt.Errorf("failed to save placement registry: %w", err)
	}

	final := plan.Ledger.Clone()
	before := final.Len()
	final.Add(added...)
	res.Added = final.Len() - before

	path := ledger.Path(root)
	if err := statefile.Backup(path); err != nil {
		p.logger.WithError(err).Warn("Failed to back up ledger")
	}
	if err := final.Save(path); err != nil {
		return res, fmt.Errorf("failed to save ledger: %w", err)
	}

	p.logger.InfoWithFields("Run committed", map[string]interface{}{
		"committed":   len(res.Committed),
		"failed":      len(res.Failed),
		"ledger_size": final.Len(),
	})
	return res, nil
}

// Abort removes the staging data of every requested category
func (p *Pipeline) Abort(st *session.State) error {
	if err := p.local.RemoveStaging(st.Config.Categories()...); err != nil {
		return err
	}
	p.logger.Info("Removed staged data")
	return nil
}

func (p *Pipeline) cancelled(st *session.State) error {
	if err := p.Abort(st); err != nil {
		p.logger.WithError(err).Error("Failed to remove staged data")
	}
	return fmt.Errorf("commit: %w", pserrors.ErrCancelled)
}

func (p *Pipeline) commitCategory(ctx context.Context, st *session.State, cat string) error {
	staging := p.local.StagingDir(cat)
	if err := records.Write(filepath.Join(staging, records.FileName(cat)), st.Records(cat)); err != nil {
		return fmt.Errorf("failed to stage record: %w", err)
	}

	names, err := storage.List(staging)
	if err != nil {
		return err
	}

	pl := st.Config.Placement(cat)
	if !pl.IsLocal() && p.remote == nil {
		return fmt.Errorf("object storage is not configured")
	}
	for _, name := range recordLast(names, records.FileName(cat)) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		src := filepath.Join(staging, name)
		if pl.IsLocal() {
			if err := p.local.Move(src, cat, name); err != nil {
				return err
			}
			continue
		}
		key := objectstore.Key(p.remotePrefix, cat, name)
		op := func() error { return p.remote.Upload(ctx, pl.Bucket, key, src) }
		if err := retry.Do(op, p.retry.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}
	return p.local.RemoveStaging(cat)
}

// recordLast orders names so the record file is finalised only after every
// asset it lists
func recordLast(names []string, record string) []string {
	out := make([]string, 0, len(names))
	found := false
	for _, n := range names {
		if n == record {
			found = true
			continue
		}
		out = append(out, n)
	}
	if found {
		out = append(out, record)
	}
	return out
}

// LoadRecord reads the committed CategoryRecord of category from pl. A
// category that was never committed yields an empty record.
func (p *Pipeline) LoadRecord(ctx context.Context, pl placement.Placement, category string) (records.CategoryRecord, error) {
	if pl.IsLocal() {
		return records.Read(records.LocalPath(p.local.Root(), category))
	}
	if p.remote == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	tmp, err := os.CreateTemp("", "pinscraper-record-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	key := objectstore.Key(p.remotePrefix, category, records.FileName(category))
	err = retry.Do(func() error {
		err := p.remote.Download(ctx, pl.Bucket, key, tmpPath)
		if errors.Is(err, objectstore.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	}, p.retry.WithContext(ctx))
	if errors.Is(err, objectstore.ErrNotFound) {
		return records.CategoryRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download record %s: %w", key, err)
	}
	rec, err := records.ReadFile(tmpPath)
	var corrupt *pserrors.CorruptStateError
	if errors.As(err, &corrupt) {
		return nil, &pserrors.CorruptStateError{Path: fmt.Sprintf("s3://%s/%s", pl.Bucket, key), Err: corrupt.Err}
	}
	return rec, err
}
