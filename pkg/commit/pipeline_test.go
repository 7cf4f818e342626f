package commit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/objectstore"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/records"
	"pinscraper/pkg/resume"
	"pinscraper/pkg/session"
	"pinscraper/pkg/storage"
)

const prefix = "pinterest"

func ref(cat, href string) ledger.ItemReference {
	return ledger.ItemReference{Category: cat, Href: href}
}

// stage grabs n fresh items of category into st with one staged asset each
func stage(t *testing.T, local *storage.Manager, st *session.State, category string, n int) {
	t.Helper()
	var refs []ledger.ItemReference
	for i := 0; i < n; i++ {
		refs = append(refs, ref(category, "https://x/pin/"+category+string(rune('a'+i))))
	}
	st.SetFresh(category, refs)
	for _, r := range refs {
		key := st.NextKey(category)
		name := records.AssetName(key, records.MediaImage)
		require.NoError(t, os.MkdirAll(local.StagingDir(category), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(local.StagingDir(category), name), []byte(key), 0644))
		st.Record(r, key, records.PageRecord{UniqueID: st.UniqueID(r), Link: r.Href, Downloaded: true})
	}
}

func newRun(t *testing.T, choices ...session.CategoryChoice) (*storage.Manager, *session.State) {
	t.Helper()
	local, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	rc, err := session.NewRunConfig(choices, 1)
	require.NoError(t, err)
	return local, session.NewState(rc, nil)
}

func TestCommitLocal(t *testing.T) {
	local, st := newRun(t, session.CategoryChoice{Name: "food", Placement: placement.LocalPlacement(), DownloadMedia: true})
	stage(t, local, st, "food", 2)

	prior := ledger.New(ref("travel", "https://x/pin/t1"))
	plan := &resume.Plan{Ledger: prior}
	reg := placement.Registry{"travel": placement.LocalPlacement()}

	p := NewPipeline(local, nil, prefix, nil, logger.NewNopLogger())
	res, err := p.Commit(context.Background(), st, plan, reg)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, []string{"food"}, res.Committed)
	assert.Equal(t, 2, res.Added)

	names, err := local.ListCategory("food")
	require.NoError(t, err)
	assert.Equal(t, []string{"food.json", "food_1.jpg", "food_2.jpg"}, names)
	assert.False(t, local.HasStaging() && dirHasEntries(t, local.StagingDir("food")))

	rec, err := records.Read(records.LocalPath(local.Root(), "food"))
	require.NoError(t, err)
	assert.Len(t, rec, 2)

	l, err := ledger.Load(ledger.Path(local.Root()))
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	assert.True(t, l.Contains(ref("travel", "https://x/pin/t1")))

	saved, err := placement.Load(placement.Path(local.Root()))
	require.NoError(t, err)
	assert.Equal(t, placement.LocalPlacement(), saved["food"])
	assert.Equal(t, placement.LocalPlacement(), saved["travel"])
}

func TestCommitRemoteUploadsAndClearsStaging(t *testing.T) {
	local, st := newRun(t, session.CategoryChoice{Name: "cars", Placement: placement.RemotePlacement("b1")})
	stage(t, local, st, "cars", 3)
	remote := objectstore.NewMemoryStore("b1")

	p := NewPipeline(local, remote, prefix, nil, logger.NewNopLogger())
	res, err := p.Commit(context.Background(), st, &resume.Plan{Ledger: ledger.New()}, placement.Registry{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cars"}, res.Committed)

	assert.Equal(t, 4, remote.Count("b1", objectstore.CategoryPrefix(prefix, "cars")))
	_, ok := remote.Get("b1", "pinterest/cars/cars.json")
	assert.True(t, ok)
	assert.False(t, dirHasEntries(t, local.StagingDir("cars")))

	names, err := local.ListCategory("cars")
	require.NoError(t, err)
	assert.Empty(t, names)

	rec, err := p.LoadRecord(context.Background(), placement.RemotePlacement("b1"), "cars")
	require.NoError(t, err)
	assert.Len(t, rec, 3)
}

func TestCommitExcludesFailedCategoryFromLedger(t *testing.T) {
	local, st := newRun(t,
		session.CategoryChoice{Name: "food", Placement: placement.LocalPlacement()},
		session.CategoryChoice{Name: "cars", Placement: placement.RemotePlacement("b1")},
	)
	stage(t, local, st, "food", 1)
	stage(t, local, st, "cars", 1)
	remote := objectstore.NewMemoryStore("b1")
	remote.FailOn = map[string]string{"upload": "cars"}

	p := NewPipeline(local, remote, prefix, nil, logger.NewNopLogger())
	res, err := p.Commit(context.Background(), st, &resume.Plan{Ledger: ledger.New()}, placement.Registry{})
	require.NoError(t, err)
	assert.Equal(t, []string{"food"}, res.Committed)
	require.Contains(t, res.Failed, "cars")
	assert.Error(t, res.Err())

	l, err := ledger.Load(ledger.Path(local.Root()))
	require.NoError(t, err)
	assert.Equal(t, []string{"food"}, l.Categories())

	saved, err := placement.Load(placement.Path(local.Root()))
	require.NoError(t, err)
	_, ok := saved.Lookup("cars")
	assert.False(t, ok)
}

func TestCommitUploadsRecordAfterAssets(t *testing.T) {
	local, st := newRun(t, session.CategoryChoice{Name: "cars", Placement: placement.RemotePlacement("b1")})
	stage(t, local, st, "cars", 2)
	remote := objectstore.NewMemoryStore("b1")
	remote.FailOn = map[string]string{"upload": "cars_2"}

	p := NewPipeline(local, remote, prefix, nil, logger.NewNopLogger())
	res, err := p.Commit(context.Background(), st, &resume.Plan{Ledger: ledger.New()}, placement.Registry{})
	require.NoError(t, err)
	require.Contains(t, res.Failed, "cars")

	_, ok := remote.Get("b1", "pinterest/cars/cars.json")
	assert.False(t, ok, "record must not be finalised before its assets")
}

func TestRecordLast(t *testing.T) {
	got := recordLast([]string{"food.json", "food_1.jpg", "food_2.mp4"}, "food.json")
	assert.Equal(t, []string{"food_1.jpg", "food_2.mp4", "food.json"}, got)
	assert.Equal(t, []string{"food_1.jpg"}, recordLast([]string{"food_1.jpg"}, "food.json"))
}

func TestLoadRecordCorruptRemote(t *testing.T) {
	local, _ := newRun(t, session.CategoryChoice{Name: "food", Placement: placement.LocalPlacement()})
	remote := objectstore.NewMemoryStore("b1")
	remote.Put("b1", "pinterest/food/food.json", []byte("{broken"))
	p := NewPipeline(local, remote, prefix, nil, logger.NewNopLogger())

	_, err := p.LoadRecord(context.Background(), placement.RemotePlacement("b1"), "food")
	var corrupt *pserrors.CorruptStateError
	require.True(t, errors.As(err, &corrupt), "got %v", err)
	assert.Equal(t, "s3://b1/pinterest/food/food.json", corrupt.Path)
}

func TestCommitPersistsDiscardedLedger(t *testing.T) {
	local, st := newRun(t, session.CategoryChoice{Name: "food", Placement: placement.LocalPlacement()})
	stage(t, local, st, "food", 1)

	working := ledger.New(ref("food", "https://x/pin/old"))
	working.DropCategories("food")
	p := NewPipeline(local, nil, prefix, nil, logger.NewNopLogger())
	_, err := p.Commit(context.Background(), st, &resume.Plan{Ledger: working}, placement.Registry{})
	require.NoError(t, err)

	l, err := ledger.Load(ledger.Path(local.Root()))
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
	assert.False(t, l.Contains(ref("food", "https://x/pin/old")))
}

func TestCommitCancelledWritesNothing(t *testing.T) {
	local, st := newRun(t, session.CategoryChoice{Name: "food", Placement: placement.LocalPlacement()})
	stage(t, local, st, "food", 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(local, nil, prefix, nil, logger.NewNopLogger())
	_, err := p.Commit(ctx, st, &resume.Plan{Ledger: ledger.New()}, placement.Registry{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pserrors.ErrCancelled))

	_, statErr := os.Stat(ledger.Path(local.Root()))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(placement.Path(local.Root()))
	assert.True(t, os.IsNotExist(statErr))
	assert.False(t, dirHasEntries(t, local.StagingDir("food")))
}

func TestLoadRecordMissing(t *testing.T) {
	local, _ := newRun(t, session.CategoryChoice{Name: "food", Placement: placement.LocalPlacement()})
	p := NewPipeline(local, objectstore.NewMemoryStore("b1"), prefix, nil, logger.NewNopLogger())

	rec, err := p.LoadRecord(context.Background(), placement.LocalPlacement(), "food")
	require.NoError(t, err)
	assert.Empty(t, rec)

	rec, err = p.LoadRecord(context.Background(), placement.RemotePlacement("b1"), "food")
	require.NoError(t, err)
	assert.Empty(t, rec)
}

func dirHasEntries(t *testing.T, dir string) bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return len(entries) > 0
}
