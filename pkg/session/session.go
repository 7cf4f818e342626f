// Package session holds the immutable run configuration and the per-run
// state accumulated while crawling.
package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/records"
)

// RunConfig is built once from prompts and flags and never mutated
type RunConfig struct {
	categories    []string
	placements    map[string]placement.Placement
	downloadMedia map[string]bool
	scrollCount   int
}

// CategoryChoice is the operator's selection for one category
type CategoryChoice struct {
	Name          string
	Placement     placement.Placement
	DownloadMedia bool
}

// NewRunConfig validates choices and returns a RunConfig
func NewRunConfig(choices []CategoryChoice, scrollCount int) (*RunConfig, error) {
	if len(choices) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}
	if scrollCount <= 0 {
		return nil, fmt.Errorf("scroll count must be positive, got %d", scrollCount)
	}

	rc := &RunConfig{
		placements:    make(map[string]placement.Placement, len(choices)),
		downloadMedia: make(map[string]bool, len(choices)),
		scrollCount:   scrollCount,
	}
	for _, c := range choices {
		if err := ValidateCategoryName(c.Name); err != nil {
			return nil, err
		}
		if _, dup := rc.placements[c.Name]; dup {
			return nil, fmt.Errorf("category %q selected twice", c.Name)
		}
		if c.Placement.Kind == placement.Remote && c.Placement.Bucket == "" {
			return nil, fmt.Errorf("category %q: remote placement needs a bucket", c.Name)
		}
		rc.categories = append(rc.categories, c.Name)
		rc.placements[c.Name] = c.Placement
		rc.downloadMedia[c.Name] = c.DownloadMedia
	}
	return rc, nil
}

// ValidateCategoryName rejects names that cannot be used as a single
// directory under the data root. Names starting with a dot would collide
// with the staging area and lock file.
func ValidateCategoryName(name string) error {
	switch {
	case name == "":
		return &pserrors.UserInputError{Input: name, Reason: "category name is empty"}
	case strings.ContainsAny(name, `/\`):
		return &pserrors.UserInputError{Input: name, Reason: "category name must not contain a path separator"}
	case strings.HasPrefix(name, "."):
		return &pserrors.UserInputError{Input: name, Reason: "category name must not start with a dot"}
	}
	return nil
}

// Categories returns the requested categories in selection order
func (rc *RunConfig) Categories() []string {
	out := make([]string, len(rc.categories))
	copy(out, rc.categories)
	return out
}

// Placement returns the desired placement of category
func (rc *RunConfig) Placement(category string) placement.Placement {
	return rc.placements[category]
}

// DownloadMedia reports whether media of category is downloaded
func (rc *RunConfig) DownloadMedia(category string) bool {
	return rc.downloadMedia[category]
}

// ScrollCount is the number of scroll passes per category
func (rc *RunConfig) ScrollCount() int {
	return rc.scrollCount
}

// Requested reports whether category is part of the run
func (rc *RunConfig) Requested(category string) bool {
	_, ok := rc.placements[category]
	return ok
}

// State accumulates the results of one run. It is owned by a single
// goroutine.
type State struct {
	ID        string
	Config    *RunConfig
	counters  map[string]int
	fresh     map[string][]ledger.ItemReference
	records   map[string]records.CategoryRecord
	ids       map[ledger.ItemReference]string
	processed map[ledger.ItemReference]bool
	newIDs    func() string
}

// NewState starts a run. start holds the last sequence number already used
// per category; counting continues after it.
func NewState(rc *RunConfig, start map[string]int) *State {
	s := &State{
		ID:        uuid.NewString(),
		Config:    rc,
		counters:  make(map[string]int, len(rc.categories)),
		fresh:     make(map[string][]ledger.ItemReference),
		records:   make(map[string]records.CategoryRecord, len(rc.categories)),
		ids:       make(map[ledger.ItemReference]string),
		processed: make(map[ledger.ItemReference]bool),
		newIDs:    uuid.NewString,
	}
	for _, c := range rc.categories {
		s.counters[c] = start[c]
		s.records[c] = records.CategoryRecord{}
	}
	return s
}

// SetFresh records the fresh references of category for this run
func (s *State) SetFresh(category string, refs []ledger.ItemReference) {
	s.fresh[category] = refs
}

// Fresh returns the fresh references of category
func (s *State) Fresh(category string) []ledger.ItemReference {
	return s.fresh[category]
}

// NextKey advances the counter of category and returns the new item key
func (s *State) NextKey(category string) string {
	s.counters[category]++
	return records.ItemKey(category, s.counters[category])
}

// Counter returns the last sequence number issued for category
func (s *State) Counter(category string) int {
	return s.counters[category]
}

// UniqueID returns the id of ref, assigning one on first call
func (s *State) UniqueID(ref ledger.ItemReference) string {
	if id, ok := s.ids[ref]; ok {
		return id
	}
	id := s.newIDs()
	s.ids[ref] = id
	return id
}

// Record stores rec under key and marks ref processed
func (s *State) Record(ref ledger.ItemReference, key string, rec records.PageRecord) {
	s.records[ref.Category][key] = rec
	s.processed[ref] = true
}

// Records returns the accumulated record of category, including any prior
// entries merged in with MergePrior.
func (s *State) Records(category string) records.CategoryRecord {
	return s.records[category]
}

// MergePrior seeds category with previously committed entries
func (s *State) MergePrior(category string, prior records.CategoryRecord) {
	merged := records.CategoryRecord{}
	merged.Merge(prior)
	merged.Merge(s.records[category])
	s.records[category] = merged
}

// Processed returns the fresh references of category that produced a
// record, in discovery order. Media download success does not matter.
func (s *State) Processed(category string) []ledger.ItemReference {
	refs := make([]ledger.ItemReference, 0, len(s.fresh[category]))
	for _, r := range s.fresh[category] {
		if s.processed[r] {
			refs = append(refs, r)
		}
	}
	return refs
}

// Summary returns per-category counts of processed references, sorted by name
func (s *State) Summary() []CategorySummary {
	var out []CategorySummary
	for _, c := range s.Config.categories {
		out = append(out, CategorySummary{
			Category:  c,
			Fresh:     len(s.fresh[c]),
			Processed: len(s.Processed(c)),
			Records:   len(s.records[c]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// CategorySummary is a count line for one category
type CategorySummary struct {
	Category  string
	Fresh     int
	Processed int
	Records   int
}
