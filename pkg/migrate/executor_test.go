package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/objectstore"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/resume"
	"pinscraper/pkg/storage"
)

const prefix = "pinterest"

type fixture struct {
	local  *storage.Manager
	remote *objectstore.MemoryStore
	exec   *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	local, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	remote := objectstore.NewMemoryStore("A", "B")
	return &fixture{
		local:  local,
		remote: remote,
		exec:   NewExecutor(local, remote, prefix, nil, logger.NewNopLogger()),
	}
}

func (f *fixture) seedLocal(t *testing.T, category string, names ...string) {
	t.Helper()
	dir := f.local.CategoryDir(category)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0644))
	}
}

func (f *fixture) seedRemote(bucket, category string, names ...string) {
	for _, n := range names {
		f.remote.Put(bucket, objectstore.Key(prefix, category, n), []byte(n))
	}
}

func (f *fixture) localCount(t *testing.T, category string) int {
	t.Helper()
	names, err := f.local.ListCategory(category)
	require.NoError(t, err)
	return len(names)
}

func (f *fixture) remoteCount(bucket, category string) int {
	return f.remote.Count(bucket, objectstore.CategoryPrefix(prefix, category))
}

func ptr(p placement.Placement) *placement.Placement { return &p }

func TestTransitionTable(t *testing.T) {
	local := placement.LocalPlacement()
	a := placement.RemotePlacement("A")
	b := placement.RemotePlacement("B")
	const n = 3
	names := []string{"food_1.jpg", "food_2.jpg", "food.json"}

	tests := []struct {
		name        string
		old         placement.Placement
		new         placement.Placement
		disposition resume.Disposition
		action      Action
		// expected counts after migration: local, A, B
		wantLocal, wantA, wantB int
	}{
		{"local to local discard", local, local, resume.Discard, DeleteLocal, 0, 0, 0},
		{"local to local extend", local, local, resume.Extend, NoOp, n, 0, 0},
		{"local to remote extend", local, a, resume.Extend, UploadThenDeleteLocal, 0, n, 0},
		{"local to remote discard", local, a, resume.Discard, DeleteLocal, 0, 0, 0},
		{"remote to local extend", a, local, resume.Extend, DownloadThenDeleteRemote, n, 0, 0},
		{"remote to local discard", a, local, resume.Discard, DeleteRemote, 0, 0, 0},
		{"same bucket discard", a, a, resume.Discard, DeleteRemote, 0, 0, 0},
		{"same bucket extend", a, a, resume.Extend, NoOp, 0, n, 0},
		{"other bucket extend", a, b, resume.Extend, CopyThenDeleteRemote, 0, 0, n},
		{"other bucket discard", a, b, resume.Discard, DeleteRemote, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.old.IsLocal() {
				f.seedLocal(t, "food", names...)
			} else {
				f.seedRemote(tt.old.Bucket, "food", names...)
			}
			// an unrelated category must never be touched
			f.seedLocal(t, "animals", "animals_1.jpg")
			f.seedRemote("A", "animals", "animals_1.jpg")

			step := resume.Step{Category: "food", Old: ptr(tt.old), New: tt.new, Disposition: tt.disposition}
			action, err := Transition(step)
			require.NoError(t, err)
			assert.Equal(t, tt.action, action)

			reg := placement.Registry{"food": tt.old}
			require.NoError(t, f.exec.Run(context.Background(), []resume.Step{step}, reg))

			assert.Equal(t, tt.new, reg["food"], "registry entry must equal the new placement")
			assert.Equal(t, tt.wantLocal, f.localCount(t, "food"), "local")
			assert.Equal(t, tt.wantA, f.remoteCount("A", "food"), "bucket A")
			assert.Equal(t, tt.wantB, f.remoteCount("B", "food"), "bucket B")

			if tt.disposition == resume.Extend {
				total := f.localCount(t, "food") + f.remoteCount("A", "food") + f.remoteCount("B", "food")
				assert.Equal(t, n, total, "extend must conserve every asset")
			}
			assert.Equal(t, 1, f.localCount(t, "animals"))
			assert.Equal(t, 1, f.remoteCount("A", "animals"))
		})
	}
}

func TestFirstRunIsNoOp(t *testing.T) {
	for _, d := range []resume.Disposition{resume.None, resume.Extend, resume.Discard} {
		action, err := Transition(resume.Step{Category: "animals", New: placement.RemotePlacement("A"), Disposition: d})
		require.NoError(t, err)
		assert.Equal(t, NoOp, action)
	}
}

func TestUnhandledTransition(t *testing.T) {
	step := resume.Step{Category: "food", Old: ptr(placement.LocalPlacement()), New: placement.LocalPlacement(), Disposition: resume.None}
	_, err := Transition(step)
	var unhandled *pserrors.UnhandledPlacementTransition
	require.ErrorAs(t, err, &unhandled)
	assert.Equal(t, "food", unhandled.Category)

	f := newFixture(t)
	f.seedLocal(t, "food", "food_1.jpg")
	reg := placement.Registry{"food": placement.LocalPlacement()}
	err = f.exec.Run(context.Background(), []resume.Step{step}, reg)
	assert.ErrorAs(t, err, &unhandled)
	assert.Equal(t, 1, f.localCount(t, "food"), "nothing may happen on an unhandled transition")
}

func TestLocalToRemoteExtendUploadsThenClears(t *testing.T) {
	f := newFixture(t)
	f.remote = objectstore.NewMemoryStore("b1")
	f.exec = NewExecutor(f.local, f.remote, prefix, nil, logger.NewNopLogger())
	f.seedLocal(t, "animals", "animals_1.jpg", "animals_2.jpg", "animals.json")

	reg := placement.Registry{"animals": placement.LocalPlacement()}
	step := resume.Step{Category: "animals", Old: ptr(placement.LocalPlacement()), New: placement.RemotePlacement("b1"), Disposition: resume.Extend}
	require.NoError(t, f.exec.Run(context.Background(), []resume.Step{step}, reg))

	for _, n := range []string{"animals_1.jpg", "animals_2.jpg", "animals.json"} {
		data, ok := f.remote.Get("b1", "pinterest/animals/"+n)
		assert.True(t, ok, n)
		assert.Equal(t, n, string(data))
	}
	_, err := os.Stat(f.local.CategoryDir("animals"))
	assert.True(t, os.IsNotExist(err), "local tree must be deleted")
	assert.Equal(t, placement.RemotePlacement("b1"), reg["animals"])
}

func TestNoDeleteBeforeConfirmedCopy(t *testing.T) {
	t.Run("upload failure keeps local tree", func(t *testing.T) {
		f := newFixture(t)
		f.seedLocal(t, "food", "food_1.jpg", "food_2.jpg")
		f.remote.FailOn = map[string]string{"upload": "food_2"}

		reg := placement.Registry{"food": placement.LocalPlacement()}
		step := resume.Step{Category: "food", Old: ptr(placement.LocalPlacement()), New: placement.RemotePlacement("A"), Disposition: resume.Extend}
		assert.Error(t, f.exec.Run(context.Background(), []resume.Step{step}, reg))
		assert.Equal(t, 2, f.localCount(t, "food"))
		assert.Equal(t, placement.LocalPlacement(), reg["food"])
	})

	t.Run("copy failure keeps source objects", func(t *testing.T) {
		f := newFixture(t)
		f.seedRemote("A", "food", "food_1.jpg", "food_2.jpg")
		f.remote.FailOn = map[string]string{"copy": "food_2"}

		step := resume.Step{Category: "food", Old: ptr(placement.RemotePlacement("A")), New: placement.RemotePlacement("B"), Disposition: resume.Extend}
		assert.Error(t, f.exec.Apply(context.Background(), step))
		assert.Equal(t, 2, f.remoteCount("A", "food"))
	})

	t.Run("download failure keeps remote objects", func(t *testing.T) {
		f := newFixture(t)
		f.seedRemote("A", "food", "food_1.jpg", "food_2.jpg")
		f.remote.FailOn = map[string]string{"download": "food_2"}

		step := resume.Step{Category: "food", Old: ptr(placement.RemotePlacement("A")), New: placement.LocalPlacement(), Disposition: resume.Extend}
		assert.Error(t, f.exec.Apply(context.Background(), step))
		assert.Equal(t, 2, f.remoteCount("A", "food"))
	})
}

func TestMissingBucket(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, "food", "food_1.jpg")
	step := resume.Step{Category: "food", Old: ptr(placement.LocalPlacement()), New: placement.RemotePlacement("nope"), Disposition: resume.Extend}
	assert.Error(t, f.exec.Apply(context.Background(), step))
	assert.Equal(t, 1, f.localCount(t, "food"))
}

func TestRemoteRequired(t *testing.T) {
	local, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	exec := NewExecutor(local, nil, prefix, nil, logger.NewNopLogger())
	step := resume.Step{Category: "food", Old: ptr(placement.RemotePlacement("A")), New: placement.LocalPlacement(), Disposition: resume.Discard}
	assert.Error(t, exec.Apply(context.Background(), step))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, "food", "food_1.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := resume.Step{Category: "food", Old: ptr(placement.LocalPlacement()), New: placement.LocalPlacement(), Disposition: resume.Discard}
	assert.ErrorIs(t, f.exec.Run(ctx, []resume.Step{step}, placement.Registry{}), context.Canceled)
	assert.Equal(t, 1, f.localCount(t, "food"))
}
