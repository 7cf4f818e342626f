// Package migrate moves or deletes a category's prior data when its
// placement or disposition changes between runs.
//
// Every (old, new, disposition) combination maps to exactly one action in
// transition. Copies always complete for the whole category before anything
// is deleted from the source.
package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/objectstore"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/resume"
	"pinscraper/pkg/retry"
	"pinscraper/pkg/storage"
)

// Action is the work a transition requires
type Action int

const (
	NoOp Action = iota
	DeleteLocal
	UploadThenDeleteLocal
	DeleteRemote
	DownloadThenDeleteRemote
	CopyThenDeleteRemote
)

func (a Action) String() string {
	switch a {
	case DeleteLocal:
		return "delete-local"
	case UploadThenDeleteLocal:
		return "upload-then-delete-local"
	case DeleteRemote:
		return "delete-remote"
	case DownloadThenDeleteRemote:
		return "download-then-delete-remote"
	case CopyThenDeleteRemote:
		return "copy-then-delete-remote"
	default:
		return "no-op"
	}
}

// Transition returns the action for one step, or
// *errors.UnhandledPlacementTransition when the combination is not defined.
func Transition(step resume.Step) (Action, error) {
	if step.Old == nil {
		return NoOp, nil
	}
	old, next, d := *step.Old, step.New, step.Disposition

	switch {
	case old.Kind == placement.Local && next.Kind == placement.Local && d == resume.Discard:
		return DeleteLocal, nil
	case old.Kind == placement.Local && next.Kind == placement.Local && d == resume.Extend:
		return NoOp, nil
	case old.Kind == placement.Local && next.Kind == placement.Remote && d == resume.Extend:
		return UploadThenDeleteLocal, nil
	case old.Kind == placement.Local && next.Kind == placement.Remote && d == resume.Discard:
		return DeleteLocal, nil
	case old.Kind == placement.Remote && next.Kind == placement.Local && d == resume.Extend:
		return DownloadThenDeleteRemote, nil
	case old.Kind == placement.Remote && next.Kind == placement.Local && d == resume.Discard:
		return DeleteRemote, nil
	case old.Kind == placement.Remote && next.Kind == placement.Remote && old.Bucket == next.Bucket && d == resume.Discard:
		return DeleteRemote, nil
	case old.Kind == placement.Remote && next.Kind == placement.Remote && old.Bucket == next.Bucket && d == resume.Extend:
		return NoOp, nil
	case old.Kind == placement.Remote && next.Kind == placement.Remote && old.Bucket != next.Bucket && d == resume.Extend:
		return CopyThenDeleteRemote, nil
	case old.Kind == placement.Remote && next.Kind == placement.Remote && old.Bucket != next.Bucket && d == resume.Discard:
		return DeleteRemote, nil
	}

	return NoOp, &pserrors.UnhandledPlacementTransition{
		Category:    step.Category,
		Old:         old.String(),
		New:         next.String(),
		Disposition: d.String(),
	}
}

// Executor performs migration steps against the local tree and object storage
type Executor struct {
	local        *storage.Manager
	remote       objectstore.Client
	remotePrefix string
	retry        *retry.Config
	logger       logger.Logger
}

// NewExecutor creates an executor. remote may be nil when no step touches
// object storage.
func NewExecutor(local *storage.Manager, remote objectstore.Client, remotePrefix string, rc *retry.Config, log logger.Logger) *Executor {
	if log == nil {
		log = logger.GetLogger()
	}
	if rc == nil {
		rc = &retry.Config{MaxAttempts: 1}
	}
	return &Executor{local: local, remote: remote, remotePrefix: remotePrefix, retry: rc, logger: log}
}

// Run executes steps in order and records each category's new placement in
// reg. It stops at the first failure; categories already migrated keep
// their new placement in reg. The caller persists reg.
func (e *Executor) Run(ctx context.Context, steps []resume.Step, reg placement.Registry) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.Apply(ctx, step); err != nil {
			return fmt.Errorf("migrate %s: %w", step.Category, err)
		}
		if step.Old != nil {
			reg[step.Category] = step.New
		}
	}
	return nil
}

// Apply executes the action for a single step
func (e *Executor) Apply(ctx context.Context, step resume.Step) error {
	action, err := Transition(step)
	if err != nil {
		return err
	}

	log := e.logger.WithFields(map[string]interface{}{
		"category":    step.Category,
		"action":      action.String(),
		"disposition": step.Disposition.String(),
	})
	if action != NoOp {
		log.Info("Migrating category")
	}

	switch action {
	case NoOp:
		return nil
	case DeleteLocal:
		return e.local.RemoveCategory(step.Category)
	case UploadThenDeleteLocal:
		return e.uploadLocal(ctx, step.Category, step.New.Bucket, log)
	case DeleteRemote:
		return e.deleteRemote(ctx, step.Category, step.Old.Bucket, log)
	case DownloadThenDeleteRemote:
		return e.downloadRemote(ctx, step.Category, step.Old.Bucket, log)
	case CopyThenDeleteRemote:
		return e.copyRemote(ctx, step.Category, step.Old.Bucket, step.New.Bucket, log)
	default:
		return fmt.Errorf("action %s has no implementation", action)
	}
}

func (e *Executor) needRemote() error {
	if e.remote == nil {
		return fmt.Errorf("object storage is not configured")
	}
	return nil
}

func (e *Executor) do(ctx context.Context, op retry.Operation) error {
	return retry.Do(op, e.retry.WithContext(ctx))
}

func (e *Executor) ensureBucket(ctx context.Context, bucket string) error {
	ok, err := e.remote.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	return nil
}

func (e *Executor) uploadLocal(ctx context.Context, category, bucket string, log logger.Logger) error {
	if err := e.needRemote(); err != nil {
		return err
	}
	if err := e.ensureBucket(ctx, bucket); err != nil {
		return err
	}
	names, err := e.local.ListCategory(category)
	if err != nil {
		return err
	}
	for _, name := range names {
		src := filepath.Join(e.local.CategoryDir(category), name)
		key := objectstore.Key(e.remotePrefix, category, name)
		if err := e.do(ctx, func() error { return e.remote.Upload(ctx, bucket, key, src) }); err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}
	log.InfoWithFields("Uploaded local tree", map[string]interface{}{"objects": len(names), "bucket": bucket})
	return e.local.RemoveCategory(category)
}

func (e *Executor) downloadRemote(ctx context.Context, category, bucket string, log logger.Logger) error {
	if err := e.needRemote(); err != nil {
		return err
	}
	prefix := objectstore.CategoryPrefix(e.remotePrefix, category)
	keys, err := e.remote.List(ctx, bucket, prefix)
	if err != nil {
		return fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, err)
	}
	dir := e.local.CategoryDir(category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create category directory: %w", err)
	}
	for _, key := range keys {
		dst := filepath.Join(dir, filepath.FromSlash(objectstore.RelativeName(prefix, key)))
		if err := e.do(ctx, func() error { return e.remote.Download(ctx, bucket, key, dst) }); err != nil {
			return fmt.Errorf("failed to download %s: %w", key, err)
		}
	}
	log.InfoWithFields("Downloaded remote objects", map[string]interface{}{"objects": len(keys), "bucket": bucket})
	return e.deleteKeys(ctx, bucket, keys)
}

func (e *Executor) copyRemote(ctx context.Context, category, from, to string, log logger.Logger) error {
	if err := e.needRemote(); err != nil {
		return err
	}
	if err := e.ensureBucket(ctx, to); err != nil {
		return err
	}
	prefix := objectstore.CategoryPrefix(e.remotePrefix, category)
	keys, err := e.remote.List(ctx, from, prefix)
	if err != nil {
		return fmt.Errorf("failed to list %s/%s: %w", from, prefix, err)
	}
	for _, key := range keys {
		if err := e.do(ctx, func() error { return e.remote.Copy(ctx, from, key, to, key) }); err != nil {
			return fmt.Errorf("failed to copy %s: %w", key, err)
		}
	}
	log.InfoWithFields("Copied remote objects", map[string]interface{}{"objects": len(keys), "from": from, "to": to})
	return e.deleteKeys(ctx, from, keys)
}

func (e *Executor) deleteRemote(ctx context.Context, category, bucket string, log logger.Logger) error {
	if err := e.needRemote(); err != nil {
		return err
	}
	n, err := objectstore.DeletePrefix(ctx, e.remote, bucket, objectstore.CategoryPrefix(e.remotePrefix, category))
	if err != nil {
		return err
	}
	log.InfoWithFields("Deleted remote objects", map[string]interface{}{"objects": n, "bucket": bucket})
	return nil
}

func (e *Executor) deleteKeys(ctx context.Context, bucket string, keys []string) error {
	for _, key := range keys {
		if err := e.do(ctx, func() error { return e.remote.Delete(ctx, bucket, key) }); err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
		}
	}
	return nil
}
