package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/finsync/internal/model"
)

// SyncProgress renders a progress bar for a sync pass. Its Update method
// matches syncer.ProgressFunc.
type SyncProgress struct {
	writer  io.Writer
	bar     *progressbar.ProgressBar
	failed  int
	mu      sync.Mutex
	enabled bool
}

// NewSyncProgress creates a progress renderer. A nil writer uses stderr.
// When enabled is false nothing is drawn.
func NewSyncProgress(writer io.Writer, enabled bool) *SyncProgress {
	if writer == nil {
		writer = os.Stderr
	}
	return &SyncProgress{writer: writer, enabled: enabled}
}

// Update records one processed queue item.
func (p *SyncProgress) Update(done, total int, item model.QueueItem, outcome model.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if outcome == model.OutcomeFailed {
		p.failed++
	}
	if !p.enabled {
		return
	}

	if p.bar == nil {
		p.bar = p.newBar(total)
	}
	p.bar.Describe(fmt.Sprintf("[cyan][bold]Syncing[reset] %s %s", item.Table, outcome))
	if err := p.bar.Set(done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Failed returns how many items failed so far.
func (p *SyncProgress) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Finish completes the bar if one was drawn.
func (p *SyncProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

func (p *SyncProgress) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Syncing queue...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
