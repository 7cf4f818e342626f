// Package ratelimit throttles media downloads so a crawl does not hammer
// the image CDN.
//
// TokenBucket wraps golang.org/x/time/rate; Unlimited is used when no
// throttling is configured.
//
//	limiter := ratelimit.PerMinute(cfg.Download.RequestsPerMinute, cfg.Download.Burst)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
