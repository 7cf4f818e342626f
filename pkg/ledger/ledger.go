// Package ledger tracks every item ever discovered under a data root.
//
// The ledger is a set of (category, href) pairs persisted as a JSON list of
// two-element arrays. Membership answers "have we seen this item before";
// the fresh set of a crawl pass is the discovered set minus the ledger.
package ledger

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"pinscraper/pkg/statefile"
)

// FileName is the ledger file name inside a data root
const FileName = "ledger.json"

// ItemReference identifies one discovered content item
type ItemReference struct {
	Category string
	Href     string
}

// MarshalJSON encodes the reference as a [category, href] pair
func (r ItemReference) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{r.Category, r.Href})
}

// UnmarshalJSON decodes a [category, href] pair
func (r *ItemReference) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("item reference must have 2 elements, got %d", len(pair))
	}
	r.Category, r.Href = pair[0], pair[1]
	return nil
}

// Ledger is a set of ItemReference. The zero value is not usable; call New.
type Ledger struct {
	items map[ItemReference]struct{}
}

// New returns a ledger holding refs
func New(refs ...ItemReference) *Ledger {
	l := &Ledger{items: make(map[ItemReference]struct{}, len(refs))}
	l.Add(refs...)
	return l
}

// Path returns the ledger file path for a data root
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads the ledger at path. It returns nil, nil when no file exists,
// which callers treat as "no history".
func Load(path string) (*Ledger, error) {
	var refs []ItemReference
	found, err := statefile.Read(path, &refs)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return New(refs...), nil
}

// Save atomically writes the ledger to path
func (l *Ledger) Save(path string) error {
	if err := statefile.Write(path, l.Items()); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// Add inserts refs; existing members are ignored
func (l *Ledger) Add(refs ...ItemReference) {
	for _, r := range refs {
		l.items[r] = struct{}{}
	}
}

// Contains reports membership
func (l *Ledger) Contains(ref ItemReference) bool {
	_, ok := l.items[ref]
	return ok
}

// Len returns the number of members
func (l *Ledger) Len() int {
	return len(l.items)
}

// Items returns the members sorted by category then href
func (l *Ledger) Items() []ItemReference {
	out := make([]ItemReference, 0, len(l.items))
	for r := range l.items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Href < out[j].Href
	})
	return out
}

// Clone returns an independent copy
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{items: make(map[ItemReference]struct{}, len(l.items))}
	for r := range l.items {
		c.items[r] = struct{}{}
	}
	return c
}

// Diff returns the discovered references that are not members, in
// discovery order and without duplicates.
func (l *Ledger) Diff(discovered []ItemReference) []ItemReference {
	seen := make(map[ItemReference]struct{}, len(discovered))
	var fresh []ItemReference
	for _, r := range discovered {
		if l.Contains(r) {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh
}

// DropCategories removes every member belonging to one of categories
func (l *Ledger) DropCategories(categories ...string) int {
	drop := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		drop[c] = struct{}{}
	}
	removed := 0
	for r := range l.items {
		if _, ok := drop[r.Category]; ok {
			delete(l.items, r)
			removed++
		}
	}
	return removed
}

// Categories returns the distinct categories present, sorted
func (l *Ledger) Categories() []string {
	counts := l.CountByCategory()
	out := make([]string, 0, len(counts))
	for c := range counts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CountByCategory returns the number of members per category
func (l *Ledger) CountByCategory() map[string]int {
	counts := make(map[string]int)
	for r := range l.items {
		counts[r.Category]++
	}
	return counts
}
