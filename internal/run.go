package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Progress is advanced once per handled file.
type Progress interface {
	Add(num int) error
}

// RunStats counts what a run did.
type RunStats struct {
	Total       int                    `json:"total"`
	Processed   int                    `json:"processed"`
	Renamed     int                    `json:"renamed"`
	Planned     int                    `json:"planned,omitempty"`
	Unchanged   int                    `json:"unchanged"`
	Errors      int                    `json:"errors"`
	BySource    map[EvidenceSource]int `json:"by_source"`
	ByTier      map[Tier]int           `json:"by_tier"`
	Interrupted bool                   `json:"interrupted,omitempty"`
}

func NewRunStats() *RunStats {
	return &RunStats{
		BySource: make(map[EvidenceSource]int),
		ByTier:   make(map[Tier]int),
	}
}

// Batch drives the processor over many files. A failing file is recorded
// and the run moves on to the next one.
type Batch struct {
	Proc     *Processor
	Journal  *Journal // optional
	Logger   *zap.Logger
	Progress Progress // optional
	Stats    *RunStats
	Errors   *ErrorStats
}

func NewBatch(proc *Processor, logger *zap.Logger) *Batch {
	return &Batch{
		Proc:    proc,
		Journal: proc.Journal,
		Logger:  logger,
		Stats:   NewRunStats(),
		Errors:  NewErrorStats(),
	}
}

// Run processes files in order until done or ctx is cancelled. The file in
// flight when ctx is cancelled is finished first.
func (b *Batch) Run(ctx context.Context, files []string) *RunStats {
	b.Stats.Total += len(files)
	b.Journal.LogRunStart(len(files), b.Proc.DryRun)

	for i, path := range files {
		if ctx.Err() != nil {
			b.Stats.Interrupted = true
			b.Logger.Warn("interrupted, stopping",
				zap.Int("done", i),
				zap.Int("remaining", len(files)-i))
			break
		}
		b.ProcessOne(path)
		if b.Progress != nil {
			_ = b.Progress.Add(1)
		}
	}

	b.Journal.LogRunEnd(b.Stats)
	return b.Stats
}

// ProcessOne handles a single file and records the outcome.
func (b *Batch) ProcessOne(path string) *FileRecord {
	rec, err := b.Proc.Process(path)
	b.Stats.Processed++

	if rec.Source != "" {
		b.Stats.BySource[rec.Source]++
	}
	switch {
	case rec.FinalPath != rec.Path && b.Proc.DryRun:
		b.Stats.Planned++
	case rec.FinalPath != rec.Path:
		b.Stats.Renamed++
	case err == nil:
		b.Stats.Unchanged++
	}
	if rec.Metadata != TierNone {
		b.Stats.ByTier[rec.Metadata]++
	}

	if err == nil {
		b.Errors.ResetConsecutive()
		return rec
	}

	procErr := CategorizeError(path, err)
	b.Errors.Add(procErr)
	b.Journal.LogError(procErr)
	if procErr.Severity == ErrorSeverityWarning {
		// a warning still counts as a processed file
		b.Logger.Warn("file processed with warnings", zap.String("file", path), zap.Error(err))
	} else {
		b.Stats.Errors++
		b.Logger.Error("failed to process file",
			zap.String("file", path),
			zap.String("category", string(procErr.Category)),
			zap.Error(err))
	}
	return rec
}

// Summary renders the end-of-run statistics.
func (s *RunStats) Summary() string {
	var sb strings.Builder
	bold := color.New(color.Bold)

	sb.WriteString(bold.Sprintf("\nProcessed %s of %s files\n", humanize.Comma(int64(s.Processed)), humanize.Comma(int64(s.Total))))
	if s.Planned > 0 {
		sb.WriteString(color.CyanString("  Would rename: %s\n", humanize.Comma(int64(s.Planned))))
	}
	if s.Renamed > 0 {
		sb.WriteString(color.GreenString("  Renamed:      %s\n", humanize.Comma(int64(s.Renamed))))
	}
	sb.WriteString(fmt.Sprintf("  Unchanged:    %s\n", humanize.Comma(int64(s.Unchanged))))
	if s.Errors > 0 {
		sb.WriteString(color.RedString("  Failed:       %s\n", humanize.Comma(int64(s.Errors))))
	}

	sb.WriteString("\nDate evidence:\n")
	for _, src := range []EvidenceSource{SourceSidecar, SourceEmbedded, SourceFilename, SourceFallback} {
		if n := s.BySource[src]; n > 0 {
			line := fmt.Sprintf("  %-9s %s\n", src, humanize.Comma(int64(n)))
			if src == SourceFallback {
				line = color.YellowString("%s", line)
			}
			sb.WriteString(line)
		}
	}

	if len(s.ByTier) > 0 {
		sb.WriteString("\nMetadata:\n")
		for _, tier := range []Tier{TierFull, TierCleaned, TierMinimal, TierSkipped} {
			if n := s.ByTier[tier]; n > 0 {
				sb.WriteString(fmt.Sprintf("  %-9s %s\n", tier, humanize.Comma(int64(n))))
			}
		}
	}

	if s.Interrupted {
		sb.WriteString(color.YellowString("\nInterrupted: %s files not processed\n", humanize.Comma(int64(s.Total-s.Processed))))
	}
	return sb.String()
}
