package records

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pserrors "pinscraper/pkg/errors"
)

func TestTagsSentinel(t *testing.T) {
	data, err := json.Marshal(PageRecord{Title: Unavailable})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tag_list":"unavailable"`)

	data, err = json.Marshal(PageRecord{Tags: Tags{"cats", "dogs"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tag_list":["cats","dogs"]`)

	var rec PageRecord
	require.NoError(t, json.Unmarshal([]byte(`{"tag_list":"unavailable"}`), &rec))
	assert.Nil(t, rec.Tags)
	require.NoError(t, json.Unmarshal([]byte(`{"tag_list":[]}`), &rec))
	assert.NotNil(t, rec.Tags)
	assert.Empty(t, rec.Tags)
	assert.Error(t, json.Unmarshal([]byte(`{"tag_list":"maybe"}`), &rec))
}

func TestSequence(t *testing.T) {
	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{"animals_1", 1, true},
		{"animals_42", 42, true},
		{"animals_0", 0, false},
		{"animals_x", 0, false},
		{"food_3", 0, false},
		{"animals_cute_3", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			n, ok := Sequence("animals", tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestMaxSequenceAndKeys(t *testing.T) {
	rec := CategoryRecord{
		ItemKey("food", 10): {},
		ItemKey("food", 2):  {},
		ItemKey("food", 1):  {},
	}
	assert.Equal(t, 10, rec.MaxSequence("food"))
	assert.Equal(t, []string{"food_1", "food_2", "food_10"}, rec.Keys("food"))
	assert.Equal(t, 0, CategoryRecord{}.MaxSequence("food"))
}

func TestAssetName(t *testing.T) {
	assert.Equal(t, "food_3.jpg", AssetName("food_3", MediaImage))
	assert.Equal(t, "food_3.jpg", AssetName("food_3", MediaStoryImage))
	assert.Equal(t, "food_4.mp4", AssetName("food_4", MediaVideo))
	assert.Equal(t, "food_4.mp4", AssetName("food_4", MediaStoryMultiVideo))
}

func TestReadWrite(t *testing.T) {
	root := t.TempDir()
	path := LocalPath(root, "animals")

	empty, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, empty)

	rec := CategoryRecord{"animals_1": {UniqueID: "u1", Title: "Cat", Tags: Tags{"cat"}, MediaKind: MediaImage, Downloaded: true}}
	require.NoError(t, Write(path, rec))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rec, back)

	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.json"), []byte("[1,2]"), 0644))
	_, err = ReadFile(filepath.Join(root, "bad.json"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	rec := CategoryRecord{"a_1": {Title: "old"}}
	rec.Merge(CategoryRecord{"a_1": {Title: "new"}, "a_2": {Title: "two"}})
	assert.Equal(t, "new", rec["a_1"].Title)
	assert.Len(t, rec, 2)
}

func TestReadFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "food.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := ReadFile(path)
	var corrupt *pserrors.CorruptStateError
	require.True(t, errors.As(err, &corrupt), "got %v", err)
	assert.Equal(t, path, corrupt.Path)
}

func TestRetain(t *testing.T) {
	rec := CategoryRecord{
		"food_1": {Link: "a"},
		"food_2": {Link: "b"},
		"food_3": {Link: "c"},
	}
	n := rec.Retain(func(r PageRecord) bool { return r.Link != "b" })
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"food_1", "food_3"}, rec.Keys("food"))
}
