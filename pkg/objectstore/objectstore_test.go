package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pinscraper/pkg/config"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "pinterest/animals/", CategoryPrefix("pinterest", "animals"))
	assert.Equal(t, "pinterest/animals/animals_1.jpg", Key("pinterest", "animals", "animals_1.jpg"))
	assert.Equal(t, "animals/", CategoryPrefix("", "animals"))
	assert.Equal(t, "animals_1.jpg", RelativeName("pinterest/animals/", "pinterest/animals/animals_1.jpg"))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg"), 0644))

	m := NewMemoryStore("b1", "b2")
	ok, err := m.BucketExists(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = m.BucketExists(ctx, "nope")
	assert.False(t, ok)

	require.NoError(t, m.Upload(ctx, "b1", "p/animals/a.jpg", src))
	require.NoError(t, m.Copy(ctx, "b1", "p/animals/a.jpg", "b2", "p/animals/a.jpg"))

	dst := filepath.Join(dir, "out", "a.jpg")
	require.NoError(t, m.Download(ctx, "b2", "p/animals/a.jpg", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	keys, err := m.List(ctx, "b1", "p/animals/")
	require.NoError(t, err)
	assert.Equal(t, []string{"p/animals/a.jpg"}, keys)

	assert.ErrorIs(t, m.Download(ctx, "b1", "missing", dst), ErrNotFound)
}

func TestDeletePrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("b1")
	m.Put("b1", "p/food/food_1.jpg", []byte("1"))
	m.Put("b1", "p/food/food_2.jpg", []byte("2"))
	m.Put("b1", "p/animals/animals_1.jpg", []byte("3"))

	n, err := DeletePrefix(ctx, m, "b1", "p/food/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, m.Count("b1", "p/food/"))
	assert.Equal(t, 1, m.Count("b1", "p/animals/"))

	m.Put("b1", "p/food/food_3.jpg", []byte("x"))
	m.FailOn = map[string]string{"delete": "food_3"}
	_, err = DeletePrefix(ctx, m, "b1", "p/food/")
	assert.Error(t, err)
}

func TestMemoryStoreHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemoryStore("b1")
	_, err := m.List(ctx, "b1", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMinioStoreRequiresCredentials(t *testing.T) {
	_, err := NewMinioStore(config.StorageConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	s, err := NewMinioStore(config.StorageConfig{Endpoint: "localhost:9000", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}
