// Package resume decides, at startup, how a run relates to the history kept
// under its data root.
//
// The planner compares the requested categories against the ledger and the
// placement registry. When they overlap the operator chooses to extend the
// prior data or discard it; the resulting Plan carries the working ledger
// copy used for fresh-set computation and one migration step per requested
// category.
package resume

import (
	"fmt"
	"sort"
	"strings"

	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/records"
	"pinscraper/pkg/session"
)

// Disposition is the operator's choice for categories with history
type Disposition int

const (
	// None means no requested category has history
	None Disposition = iota
	// Extend keeps prior items and records; new items merge in
	Extend
	// Discard drops prior items from the working ledger and deletes prior data
	Discard
)

func (d Disposition) String() string {
	switch d {
	case Extend:
		return "extend"
	case Discard:
		return "discard"
	default:
		return "none"
	}
}

// ParseDisposition accepts "extend" or "discard"
func ParseDisposition(s string) (Disposition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "extend", "e", "y", "yes":
		return Extend, nil
	case "discard", "d", "n", "no":
		return Discard, nil
	default:
		return None, &pserrors.UserInputError{Input: s, Reason: "expected extend or discard"}
	}
}

// DispositionChooser resolves extend versus discard for overlapping categories
type DispositionChooser interface {
	ChooseDisposition(overlap []string) (Disposition, error)
}

// Fixed is a DispositionChooser that always answers d
type Fixed Disposition

func (f Fixed) ChooseDisposition([]string) (Disposition, error) {
	return Disposition(f), nil
}

// Step is the migration required for one requested category
type Step struct {
	Category    string
	Old         *placement.Placement
	New         placement.Placement
	Disposition Disposition
}

// Plan is the outcome of resume planning
type Plan struct {
	Disposition Disposition
	// Overlap lists requested categories that have history, sorted
	Overlap []string
	// Ledger is the working copy; discarded categories are already removed
	Ledger *ledger.Ledger
	// Registry is the persisted registry as loaded
	Registry   placement.Registry
	Steps      []Step
	HadHistory bool
}

// Fresh returns the discovered references not yet in the working ledger
func (p *Plan) Fresh(discovered []ledger.ItemReference) []ledger.ItemReference {
	return p.Ledger.Diff(discovered)
}

// Extending reports whether prior data of category is kept and merged
func (p *Plan) Extending(category string) bool {
	return p.Disposition == Extend && contains(p.Overlap, category)
}

// StartCounters returns the last sequence number used per category. The
// count continues after both the ledger entries and any prior record keys;
// discarded categories restart.
func (p *Plan) StartCounters(prior map[string]records.CategoryRecord) map[string]int {
	counts := p.Ledger.CountByCategory()
	start := make(map[string]int, len(p.Steps))
	for _, s := range p.Steps {
		n := counts[s.Category]
		if rec, ok := prior[s.Category]; ok {
			if m := rec.MaxSequence(s.Category); m > n {
				n = m
			}
		}
		start[s.Category] = n
	}
	return start
}

// Planner builds a Plan from the state files of a data root
type Planner struct {
	root    string
	chooser DispositionChooser
	logger  logger.Logger
}

// NewPlanner creates a planner for root
func NewPlanner(root string, chooser DispositionChooser, log logger.Logger) *Planner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Planner{root: root, chooser: chooser, logger: log}
}

// Plan loads the ledger and registry and resolves the disposition for rc.
// Corrupt state files fail with *errors.CorruptStateError.
func (p *Planner) Plan(rc *session.RunConfig) (*Plan, error) {
	prior, err := ledger.Load(ledger.Path(p.root))
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	reg, err := placement.Load(placement.Path(p.root))
	if err != nil {
		return nil, fmt.Errorf("failed to load placement registry: %w", err)
	}
	return p.plan(rc, prior, reg)
}

func (p *Planner) plan(rc *session.RunConfig, prior *ledger.Ledger, reg placement.Registry) (*Plan, error) {
	plan := &Plan{
		Disposition: None,
		HadHistory:  prior != nil || reg != nil,
		Registry:    reg,
	}
	if prior == nil {
		plan.Ledger = ledger.New()
	} else {
		plan.Ledger = prior.Clone()
	}
	if plan.Registry == nil {
		plan.Registry = placement.Registry{}
	}

	history := make(map[string]struct{})
	for _, c := range plan.Ledger.Categories() {
		history[c] = struct{}{}
	}
	for _, c := range plan.Registry.Categories() {
		history[c] = struct{}{}
	}
	for _, c := range rc.Categories() {
		if _, ok := history[c]; ok {
			plan.Overlap = append(plan.Overlap, c)
		}
	}
	sort.Strings(plan.Overlap)

	if len(plan.Overlap) > 0 {
		if p.chooser == nil {
			return nil, fmt.Errorf("categories %v have history but no disposition was given", plan.Overlap)
		}
		d, err := p.chooser.ChooseDisposition(plan.Overlap)
		if err != nil {
			return nil, err
		}
		if d != Extend && d != Discard {
			return nil, fmt.Errorf("disposition must be extend or discard, got %s", d)
		}
		plan.Disposition = d
		if d == Discard {
			removed := plan.Ledger.DropCategories(plan.Overlap...)
			p.logger.InfoWithFields("Dropped prior items from working ledger", map[string]interface{}{
				"categories": plan.Overlap,
				"removed":    removed,
			})
		}
	}

	for _, c := range rc.Categories() {
		step := Step{Category: c, New: rc.Placement(c), Disposition: None}
		if old, ok := plan.Registry.Lookup(c); ok {
			o := old
			step.Old = &o
		}
		if contains(plan.Overlap, c) {
			step.Disposition = plan.Disposition
		}
		plan.Steps = append(plan.Steps, step)
	}

	p.logger.InfoWithFields("Resume plan ready", map[string]interface{}{
		"disposition": plan.Disposition.String(),
		"overlap":     plan.Overlap,
		"ledger_size": plan.Ledger.Len(),
	})
	return plan, nil
}

func contains(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	return i < len(sorted) && sorted[i] == s
}
