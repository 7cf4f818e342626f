// Package objectstore wraps bucket operations used for remote placements.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when an object or bucket does not exist
var ErrNotFound = errors.New("object not found")

// Client is the set of object storage operations the scraper needs. Keys
// use forward slashes regardless of platform.
type Client interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	Upload(ctx context.Context, bucket, key, localPath string) error
	Download(ctx context.Context, bucket, key, localPath string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// CategoryPrefix returns the key prefix holding a category's objects
func CategoryPrefix(remotePrefix, category string) string {
	return path.Join(remotePrefix, category) + "/"
}

// Key returns the object key of name under a category
func Key(remotePrefix, category, name string) string {
	return CategoryPrefix(remotePrefix, category) + name
}

// RelativeName strips prefix from key
func RelativeName(prefix, key string) string {
	return strings.TrimPrefix(key, prefix)
}

// DeletePrefix removes every object under prefix and returns how many were removed
func DeletePrefix(ctx context.Context, c Client, bucket, prefix string) (int, error) {
	keys, err := c.List(ctx, bucket, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, err)
	}
	for i, k := range keys {
		if err := c.Delete(ctx, bucket, k); err != nil {
			return i, fmt.Errorf("failed to delete %s/%s: %w", bucket, k, err)
		}
	}
	return len(keys), nil
}
