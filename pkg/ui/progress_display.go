package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"pinscraper/pkg/ledger"
	"pinscraper/pkg/session"
)

// ProgressDisplay renders crawl progress as one updating line per category.
// In debug mode every item gets its own line instead.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	isDebug   bool
	startTime time.Time

	category      string
	fresh         int
	done          int
	catStart      time.Time
	bytesTotal    int64
	downloaded    int
	errors        int
	totalGrabbed  int
	totalFailures int
}

// NewProgressDisplay creates a progress display writing to out
func NewProgressDisplay(out io.Writer, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		isDebug:   debug,
		startTime: time.Now(),
	}
}

// StartCategory begins the progress line of a category with fresh items
func (p *ProgressDisplay) StartCategory(category string, fresh int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.category != "" && !p.isDebug {
		fmt.Fprintln(p.out)
	}
	p.category = category
	p.fresh = fresh
	p.done = 0
	p.errors = 0
	p.catStart = time.Now()

	if fresh == 0 {
		fmt.Fprintf(p.out, "%s %s • nothing new\n", Dim("•"), Cyan(category))
		p.category = ""
		return
	}
	if p.isDebug {
		fmt.Fprintf(p.out, "%s %s • %d new items\n", Magenta("→"), Cyan(category), fresh)
		return
	}
	p.printProgress()
}

// ItemDone records a grabbed item
func (p *ProgressDisplay) ItemDone(category, key string, downloaded bool, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.totalGrabbed++
	p.bytesTotal += size
	if downloaded {
		p.downloaded++
	}

	if p.isDebug {
		media := Dim("record only")
		if downloaded {
			media = formatBytes(size)
		}
		fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), key, media)
		return
	}
	p.printProgress()
}

// ItemFailed records an item that was skipped
func (p *ProgressDisplay) ItemFailed(category string, ref ledger.ItemReference, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.errors++
	p.totalFailures++

	if p.isDebug {
		fmt.Fprintf(p.out, "%s Failed: %s - %v\n", Red("✗"), ref.Href, err)
		return
	}
	p.printProgress()
}

// Finish prints the per-category summary of the run
func (p *ProgressDisplay) Finish(summary []session.CategorySummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.category != "" && !p.isDebug {
		fmt.Fprintln(p.out)
	}
	p.category = ""

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.out, "\n%s Grabbed %d items in %s\n", Green("✓"), p.totalGrabbed, formatDuration(elapsed))
	fmt.Fprintf(p.out, "  %s %d assets, %s\n", Dim("•"), p.downloaded, formatBytes(p.bytesTotal))
	if p.totalFailures > 0 {
		fmt.Fprintf(p.out, "  %s %d items skipped\n", Dim("•"), p.totalFailures)
	}
	for _, s := range summary {
		fmt.Fprintf(p.out, "  %s %-20s %4d new / %4d fresh • %d records\n",
			Dim("•"), s.Category, s.Processed, s.Fresh, s.Records)
	}
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	progress := float64(p.done) / float64(p.fresh)
	barWidth := 20
	filled := int(progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %s • %s",
		Cyan(p.category),
		bar,
		p.done,
		p.fresh,
		formatBytes(p.bytesTotal),
		p.calculateETA(),
	)
	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

// calculateETA estimates the time left in the current category
func (p *ProgressDisplay) calculateETA() string {
	if p.done == 0 {
		return "calculating..."
	}
	rate := float64(p.done) / time.Since(p.catStart).Seconds()
	if rate == 0 {
		return "calculating..."
	}
	remaining := p.fresh - p.done
	return formatDuration(time.Duration(float64(remaining)/rate) * time.Second)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
