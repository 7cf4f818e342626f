package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/runlock"
	"pinscraper/pkg/storage"
	"pinscraper/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what earlier runs have stored",
	Long: `Show the number of grabbed pins per category and where each category is
stored, as recorded under the data root.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	root := cfg.Output.DataRoot

	l, err := ledger.Load(ledger.Path(root))
	if err != nil {
		return err
	}
	reg, err := placement.Load(placement.Path(root))
	if err != nil {
		return err
	}
	if l == nil && reg == nil {
		ui.PrintWarning("No runs recorded under " + root)
		return nil
	}
	if l == nil {
		l = ledger.New()
	}

	counts := l.CountByCategory()
	seen := make(map[string]bool)
	var cats []string
	for _, c := range l.Categories() {
		seen[c] = true
		cats = append(cats, c)
	}
	for _, c := range reg.Categories() {
		if !seen[c] {
			cats = append(cats, c)
		}
	}

	ui.PrintInfo("Data root", root)
	ui.PrintInfo("Pins recorded", fmt.Sprintf("%d", l.Len()))
	fmt.Println()
	fmt.Printf("  %-24s %8s  %s\n", "CATEGORY", "PINS", "PLACEMENT")
	for _, c := range cats {
		where := "-"
		if pl, ok := reg.Lookup(c); ok {
			where = pl.SaveLocation(root, cfg.Output.RemotePrefix, c)
		}
		fmt.Printf("  %-24s %8d  %s\n", c, counts[c], where)
	}

	if local, err := storage.NewManager(root); err == nil && local.HasStaging() {
		fmt.Println()
		ui.PrintWarning("Staged data from an interrupted run is present; it is removed by the next run")
	}
	lock, err := runlock.Acquire(root)
	switch {
	case errors.Is(err, pserrors.ErrRunInProgress):
		ui.PrintWarning("A run is in progress", runlock.Path(root))
	case err == nil:
		_ = lock.Release()
	}
	return nil
}
