package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/records"
)

func TestNewRunConfig(t *testing.T) {
	tests := []struct {
		name    string
		choices []CategoryChoice
		scrolls int
		wantErr bool
	}{
		{name: "valid", choices: []CategoryChoice{{Name: "animals", Placement: placement.LocalPlacement(), DownloadMedia: true}}, scrolls: 3},
		{name: "empty", choices: nil, scrolls: 3, wantErr: true},
		{name: "zero scrolls", choices: []CategoryChoice{{Name: "animals"}}, scrolls: 0, wantErr: true},
		{name: "duplicate", choices: []CategoryChoice{{Name: "a"}, {Name: "a"}}, scrolls: 1, wantErr: true},
		{name: "remote without bucket", choices: []CategoryChoice{{Name: "a", Placement: placement.Placement{Kind: placement.Remote}}}, scrolls: 1, wantErr: true},
		{name: "unnamed", choices: []CategoryChoice{{Name: ""}}, scrolls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunConfig(tt.choices, tt.scrolls)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestCategoryNamesStayInsideDataRoot(t *testing.T) {
	for _, name := range []string{"", ".", "..", ".staging", ".pinscraper.lock", "a/b", "../x", `a\b`} {
		_, err := NewRunConfig([]CategoryChoice{{Name: name, Placement: placement.LocalPlacement()}}, 1)
		var inputErr *pserrors.UserInputError
		if !errors.As(err, &inputErr) {
			t.Errorf("NewRunConfig(%q): expected UserInputError, got %v", name, err)
		}
	}
	for _, name := range []string{"food", "home-decor", "diy_and_crafts", "a.b"} {
		if err := ValidateCategoryName(name); err != nil {
			t.Errorf("ValidateCategoryName(%q) = %v", name, err)
		}
	}
}

func TestRunConfigAccessors(t *testing.T) {
	rc, err := NewRunConfig([]CategoryChoice{
		{Name: "food", Placement: placement.RemotePlacement("b1")},
		{Name: "animals", Placement: placement.LocalPlacement(), DownloadMedia: true},
	}, 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"food", "animals"}, rc.Categories())
	assert.Equal(t, placement.RemotePlacement("b1"), rc.Placement("food"))
	assert.True(t, rc.DownloadMedia("animals"))
	assert.False(t, rc.DownloadMedia("food"))
	assert.Equal(t, 4, rc.ScrollCount())
	assert.True(t, rc.Requested("food"))
	assert.False(t, rc.Requested("travel"))

	cats := rc.Categories()
	cats[0] = "mutated"
	assert.Equal(t, "food", rc.Categories()[0])
}

func TestCountersContinue(t *testing.T) {
	rc, err := NewRunConfig([]CategoryChoice{{Name: "food"}, {Name: "animals"}}, 1)
	require.NoError(t, err)

	s := NewState(rc, map[string]int{"food": 7})
	assert.Equal(t, "food_8", s.NextKey("food"))
	assert.Equal(t, "food_9", s.NextKey("food"))
	assert.Equal(t, "animals_1", s.NextKey("animals"))
	assert.Equal(t, 9, s.Counter("food"))
	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err)
}

func TestUniqueIDStable(t *testing.T) {
	rc, err := NewRunConfig([]CategoryChoice{{Name: "food"}}, 1)
	require.NoError(t, err)
	s := NewState(rc, nil)

	a := ledger.ItemReference{Category: "food", Href: "/pin/1/"}
	b := ledger.ItemReference{Category: "food", Href: "/pin/2/"}
	idA := s.UniqueID(a)
	assert.Equal(t, idA, s.UniqueID(a))
	assert.NotEqual(t, idA, s.UniqueID(b))
}

func TestProcessedAndMerge(t *testing.T) {
	rc, err := NewRunConfig([]CategoryChoice{{Name: "food"}}, 1)
	require.NoError(t, err)
	s := NewState(rc, map[string]int{"food": 1})

	a := ledger.ItemReference{Category: "food", Href: "/pin/1/"}
	b := ledger.ItemReference{Category: "food", Href: "/pin/2/"}
	s.SetFresh("food", []ledger.ItemReference{a, b})
	s.Record(a, s.NextKey("food"), records.PageRecord{Title: "new"})

	assert.Equal(t, []ledger.ItemReference{a}, s.Processed("food"))

	s.MergePrior("food", records.CategoryRecord{"food_1": {Title: "prior"}})
	rec := s.Records("food")
	assert.Len(t, rec, 2)
	assert.Equal(t, "prior", rec["food_1"].Title)
	assert.Equal(t, "new", rec["food_2"].Title)

	summary := s.Summary()
	require.Len(t, summary, 1)
	assert.Equal(t, CategorySummary{Category: "food", Fresh: 2, Processed: 1, Records: 2}, summary[0])
}
