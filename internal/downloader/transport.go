package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"pinscraper/pkg/config"
	errs "pinscraper/pkg/errors"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/ratelimit"
	"pinscraper/pkg/retry"
	"pinscraper/pkg/storage"
)

// Result represents the outcome of one asset download
type Result struct {
	URL      string
	Dest     string
	Size     int64
	Duration time.Duration
}

// HTTPDoer is the subset of *http.Client used for downloads
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transport downloads media assets one at a time
type Transport struct {
	client      HTTPDoer
	rateLimiter ratelimit.Limiter
	retry       *retry.Config
	userAgent   string
	logger      logger.Logger
}

// New creates a Transport from the download and retry settings
func New(dl config.DownloadConfig, rc config.RetryConfig, log logger.Logger) *Transport {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Transport{
		client:      &http.Client{Timeout: dl.Timeout},
		rateLimiter: ratelimit.PerMinute(dl.RequestsPerMinute, dl.Burst),
		retry:       retry.FromSettings(context.Background(), rc, log),
		userAgent:   dl.UserAgent,
		logger:      log,
	}
}

// NewWithClient creates a Transport with explicit collaborators
func NewWithClient(client HTTPDoer, limiter ratelimit.Limiter, rc *retry.Config, log logger.Logger) *Transport {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if rc == nil {
		rc = &retry.Config{MaxAttempts: 1}
	}
	return &Transport{client: client, rateLimiter: limiter, retry: rc, logger: log}
}

// Fetch downloads url to dest. The file appears under dest only once the
// body has been fully written. A failure concerns this asset alone.
func (t *Transport) Fetch(ctx context.Context, url, dest string) (Result, error) {
	start := time.Now()
	result := Result{URL: url, Dest: dest}

	err := retry.Do(func() error {
		if err := t.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		n, err := t.fetchOnce(ctx, url, dest)
		result.Size = n
		return err
	}, t.retry.WithContext(ctx))
	result.Duration = time.Since(start)

	if err != nil {
		t.logger.WarnWithFields("Asset download failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return result, fmt.Errorf("download failed: %w", err)
	}

	t.logger.DebugWithFields("Asset downloaded", map[string]interface{}{
		"url":      url,
		"dest":     dest,
		"size":     result.Size,
		"duration": result.Duration,
	})
	return result, nil
}

func (t *Transport) fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &errs.Error{Type: errs.ErrorTypeUnknown, Message: err.Error()}
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &errs.Error{Type: errs.ErrorTypeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, errs.FromStatusCode(resp.StatusCode, resp.Status)
	}

	counter := &countingReader{r: resp.Body}
	if err := storage.SaveFile(counter, dest); err != nil {
		return counter.n, &errs.Error{Type: errs.ErrorTypeNetwork, Message: err.Error()}
	}
	return counter.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
