package utils

import (
	"fmt"
	"strings"
	"time"
)

// TransferBar renders byte-level progress for a single file transfer.
type TransferBar struct {
	total       int64
	current     int64
	description string
	startTime   time.Time
	width       int
	showRate    bool
}

// NewTransferBar creates a new transfer progress bar.
func NewTransferBar(total int64, description string) *TransferBar {
	return &TransferBar{
		total:       total,
		description: description,
		startTime:   time.Now(),
		width:       40,
		showRate:    true,
	}
}

// Update sets the cumulative transferred byte count.
func (tb *TransferBar) Update(current int64) {
	tb.current = current
	tb.render()
}

// Total returns the total byte count this bar was created for.
func (tb *TransferBar) Total() int64 {
	return tb.total
}

// SetDescription updates the description.
func (tb *TransferBar) SetDescription(desc string) {
	tb.description = desc
	tb.render()
}

// Finish completes the bar.
func (tb *TransferBar) Finish() {
	tb.current = tb.total
	tb.render()
	fmt.Println()
}

func (tb *TransferBar) render() {
	if tb.total <= 0 {
		return
	}

	percentage := float64(tb.current) / float64(tb.total) * 100
	filled := int(float64(tb.width) * float64(tb.current) / float64(tb.total))
	if filled > tb.width {
		filled = tb.width
	}

	bar := strings.Repeat("#", filled) + strings.Repeat("-", tb.width-filled)

	var rate string
	elapsed := time.Since(tb.startTime)
	if tb.showRate && elapsed > 0 && tb.current > 0 {
		kbps := float64(tb.current) / 1024 / elapsed.Seconds()
		rate = fmt.Sprintf(" %.0f KB/s", kbps)
	}

	fmt.Printf("\r%s [%s] %.1f%% (%s/%s)%s",
		tb.description, bar, percentage,
		FormatBytes(tb.current), FormatBytes(tb.total), rate)
}

// FormatBytes renders a byte count in a human-readable unit.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// RunProgress tracks unit-level statistics for one installation run.
type RunProgress struct {
	TotalUnits     int
	CompletedUnits int
	FailedUnits    int
	SkippedUnits   int
	StartTime      time.Time
	CurrentUnit    string
	CurrentDevice  string
}

// NewRunProgress creates a new run progress tracker.
func NewRunProgress(totalUnits int) *RunProgress {
	return &RunProgress{
		TotalUnits: totalUnits,
		StartTime:  time.Now(),
	}
}

// SetCurrent records the unit/device currently being installed.
func (rp *RunProgress) SetCurrent(pkg, serial string) {
	rp.CurrentUnit = pkg
	rp.CurrentDevice = serial
}

// AddCompleted increments the completed unit counter.
func (rp *RunProgress) AddCompleted() {
	rp.CompletedUnits++
}

// AddFailed increments the failed unit counter.
func (rp *RunProgress) AddFailed() {
	rp.FailedUnits++
}

// AddSkipped increments the skipped unit counter.
func (rp *RunProgress) AddSkipped() {
	rp.SkippedUnits++
}

// ShowProgress displays current progress.
func (rp *RunProgress) ShowProgress() {
	if rp.TotalUnits <= 0 {
		return
	}

	done := rp.CompletedUnits + rp.FailedUnits + rp.SkippedUnits
	percentage := float64(done) / float64(rp.TotalUnits) * 100

	current := rp.CurrentUnit
	if rp.CurrentDevice != "" {
		current = fmt.Sprintf("%s -> %s", rp.CurrentUnit, rp.CurrentDevice)
	}
	if len(current) > 48 {
		current = "..." + current[len(current)-45:]
	}

	fmt.Printf("\rProgress: %.1f%% (%d/%d) | %s", percentage, done, rp.TotalUnits, current)
}

// ShowFinalStats displays final run statistics.
func (rp *RunProgress) ShowFinalStats() {
	elapsed := time.Since(rp.StartTime)

	fmt.Print("\n\n")
	fmt.Println("=== Install Results ===")
	fmt.Printf("Units: %d\n", rp.TotalUnits)
	fmt.Printf("Succeeded: %d\n", rp.CompletedUnits)

	if rp.FailedUnits > 0 {
		fmt.Printf("Failed: %d\n", rp.FailedUnits)
	}
	if rp.SkippedUnits > 0 {
		fmt.Printf("Skipped: %d\n", rp.SkippedUnits)
	}

	fmt.Printf("Total time: %v\n", elapsed.Round(time.Millisecond))
}
