package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/resume"
	"pinscraper/pkg/session"
)

// maxAttempts bounds how often one question is asked again after an
// invalid answer.
const maxAttempts = 5

// BucketChecker confirms that a bucket exists
type BucketChecker interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// Prompter asks the operator for run settings on a line-oriented terminal.
// An invalid answer is reported as a UserInputError and the question is
// asked again.
type Prompter struct {
	in      *bufio.Scanner
	out     io.Writer
	buckets BucketChecker
}

// NewPrompter creates a prompter. buckets may be nil, in which case remote
// buckets are accepted unchecked.
func NewPrompter(in io.Reader, out io.Writer, buckets BucketChecker) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out, buckets: buckets}
}

// RunOptions prefill a RunConfig. Zero values are asked for.
type RunOptions struct {
	// Available are the discovered category names offered for selection
	Available []string

	// Categories skips category selection when set
	Categories []string

	// RemoteBucket places every category in this bucket when set
	RemoteBucket string

	// Local places every category locally
	Local bool

	// NoDownload disables media downloads for every category
	NoDownload bool

	// Scrolls is the scroll count; 0 asks with DefaultScrolls
	Scrolls        int
	DefaultScrolls int
}

// RunConfig collects a complete RunConfig, asking only for what opts leaves open
func (p *Prompter) RunConfig(ctx context.Context, opts RunOptions) (*session.RunConfig, error) {
	cats := opts.Categories
	if len(cats) == 0 {
		var err error
		if cats, err = p.SelectCategories(opts.Available); err != nil {
			return nil, err
		}
	}

	var shared *placement.Placement
	switch {
	case opts.RemoteBucket != "":
		if err := p.confirmBucket(ctx, opts.RemoteBucket); err != nil {
			return nil, err
		}
		pl := placement.RemotePlacement(opts.RemoteBucket)
		shared = &pl
	case opts.Local:
		pl := placement.LocalPlacement()
		shared = &pl
	}

	choices := make([]session.CategoryChoice, 0, len(cats))
	for _, cat := range cats {
		choice := session.CategoryChoice{Name: cat, DownloadMedia: !opts.NoDownload}
		if !opts.NoDownload {
			ok, err := p.Confirm(fmt.Sprintf("Download media for %s?", cat), true)
			if err != nil {
				return nil, err
			}
			choice.DownloadMedia = ok
		}
		if shared != nil {
			choice.Placement = *shared
		} else {
			pl, err := p.ChoosePlacement(ctx, cat)
			if err != nil {
				return nil, err
			}
			choice.Placement = pl
		}
		choices = append(choices, choice)
	}

	scrolls := opts.Scrolls
	if scrolls <= 0 {
		var err error
		if scrolls, err = p.Integer("Number of scrolls per category", opts.DefaultScrolls); err != nil {
			return nil, err
		}
	}
	return session.NewRunConfig(choices, scrolls)
}

// SelectCategories lists available and reads a comma separated choice of
// numbers or names. "all" selects everything.
func (p *Prompter) SelectCategories(available []string) ([]string, error) {
	if len(available) == 0 {
		return p.freeCategories()
	}

	fmt.Fprintln(p.out, Cyan("Available categories:"))
	for i, c := range available {
		fmt.Fprintf(p.out, "  %3d. %s\n", i+1, c)
	}

	var selected []string
	err := p.ask("Select categories (e.g. 1,3,food or all)", "", func(answer string) error {
		cats, err := ParseSelection(answer, available)
		if err != nil {
			return err
		}
		selected = cats
		return nil
	})
	return selected, err
}

func (p *Prompter) freeCategories() ([]string, error) {
	var selected []string
	err := p.ask("Categories (comma separated)", "", func(answer string) error {
		cats := splitList(answer)
		if len(cats) == 0 {
			return &pserrors.UserInputError{Input: answer, Reason: "at least one category is required"}
		}
		for _, c := range cats {
			if err := session.ValidateCategoryName(c); err != nil {
				return err
			}
		}
		selected = cats
		return nil
	})
	return selected, err
}

// ChoosePlacement asks where category is stored. Remote placements ask for
// a bucket and confirm that it exists.
func (p *Prompter) ChoosePlacement(ctx context.Context, category string) (placement.Placement, error) {
	var remote bool
	err := p.ask(fmt.Sprintf("Store %s locally or remotely? (local/remote)", category), "local", func(answer string) error {
		switch strings.ToLower(answer) {
		case "local", "l":
			remote = false
		case "remote", "r":
			remote = true
		default:
			return &pserrors.UserInputError{Input: answer, Reason: "expected local or remote"}
		}
		return nil
	})
	if err != nil {
		return placement.Placement{}, err
	}
	if !remote {
		return placement.LocalPlacement(), nil
	}

	var bucket string
	err = p.ask(fmt.Sprintf("Bucket for %s", category), "", func(answer string) error {
		if answer == "" {
			return &pserrors.UserInputError{Input: answer, Reason: "bucket name is required"}
		}
		if err := p.confirmBucket(ctx, answer); err != nil {
			return err
		}
		bucket = answer
		return nil
	})
	if err != nil {
		return placement.Placement{}, err
	}
	return placement.RemotePlacement(bucket), nil
}

// ChooseDisposition asks whether overlapping categories are extended or
// discarded. It implements resume.DispositionChooser.
func (p *Prompter) ChooseDisposition(overlap []string) (resume.Disposition, error) {
	sorted := append([]string(nil), overlap...)
	sort.Strings(sorted)
	fmt.Fprintf(p.out, "%s %s\n", Yellow("Previously scraped:"), strings.Join(sorted, ", "))

	var d resume.Disposition
	err := p.ask("Extend the existing data or discard it? (extend/discard)", "extend", func(answer string) error {
		var err error
		d, err = resume.ParseDisposition(answer)
		return err
	})
	return d, err
}

// Confirm asks a yes/no question
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	hint := "Y/n"
	defAnswer := "y"
	if !def {
		hint = "y/N"
		defAnswer = "n"
	}
	var ok bool
	err := p.ask(fmt.Sprintf("%s (%s)", question, hint), defAnswer, func(answer string) error {
		switch strings.ToLower(answer) {
		case "y", "yes":
			ok = true
		case "n", "no":
			ok = false
		default:
			return &pserrors.UserInputError{Input: answer, Reason: "expected yes or no"}
		}
		return nil
	})
	return ok, err
}

// Integer asks for a positive integer
func (p *Prompter) Integer(question string, def int) (int, error) {
	var n int
	err := p.ask(question, strconv.Itoa(def), func(answer string) error {
		v, err := strconv.Atoi(answer)
		if err != nil || v <= 0 {
			return &pserrors.UserInputError{Input: answer, Reason: "expected a positive number"}
		}
		n = v
		return nil
	})
	return n, err
}

func (p *Prompter) confirmBucket(ctx context.Context, bucket string) error {
	if p.buckets == nil {
		return nil
	}
	ok, err := p.buckets.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !ok {
		return &pserrors.UserInputError{Input: bucket, Reason: "bucket does not exist"}
	}
	return nil
}

// ask prints question and passes the trimmed answer, or def when empty, to
// accept. A UserInputError asks again; any other error is returned.
func (p *Prompter) ask(question, def string, accept func(string) error) error {
	for attempt := 1; ; attempt++ {
		if def != "" {
			fmt.Fprintf(p.out, "%s [%s]: ", question, def)
		} else {
			fmt.Fprintf(p.out, "%s: ", question)
		}
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return fmt.Errorf("reading answer: %w", err)
			}
			return fmt.Errorf("reading answer: %w", io.ErrUnexpectedEOF)
		}
		answer := strings.TrimSpace(p.in.Text())
		if answer == "" {
			answer = def
		}

		err := accept(answer)
		var inputErr *pserrors.UserInputError
		if !errors.As(err, &inputErr) {
			return err
		}
		fmt.Fprintln(p.out, Red(inputErr.Error()))
		if attempt >= maxAttempts {
			return fmt.Errorf("too many invalid answers: %w", err)
		}
	}
}

// ParseSelection resolves a comma separated list of 1-based indices or
// names against available, keeping first-seen order without duplicates.
func ParseSelection(answer string, available []string) ([]string, error) {
	parts := splitList(answer)
	if len(parts) == 0 {
		return nil, &pserrors.UserInputError{Input: answer, Reason: "select at least one category"}
	}
	if len(parts) == 1 && strings.EqualFold(parts[0], "all") {
		return append([]string(nil), available...), nil
	}

	known := make(map[string]bool, len(available))
	for _, c := range available {
		known[c] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, part := range parts {
		name := part
		if n, err := strconv.Atoi(part); err == nil {
			if n < 1 || n > len(available) {
				return nil, &pserrors.UserInputError{Input: part, Reason: fmt.Sprintf("choose 1-%d", len(available))}
			}
			name = available[n-1]
		} else if !known[part] {
			return nil, &pserrors.UserInputError{Input: part, Reason: "unknown category"}
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
