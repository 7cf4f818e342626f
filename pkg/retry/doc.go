// Package retry re-runs asset downloads and object storage calls that fail
// transiently.
//
//	cfg := retry.FromSettings(ctx, appConfig.Retry, logger.GetLogger())
//	err := retry.Do(func() error {
//		return store.Upload(ctx, bucket, key, path)
//	}, cfg)
//
// Wrap an error with Permanent to stop immediately, for example a missing
// object. Transport errors of type *errors.Error are retried only when their
// type is retryable. Context cancellation is never retried.
package retry
