package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Journal is the append-only manifest of one run, one JSON event per line
// in <journal_dir>/<run id>/manifest.jsonl. A nil *Journal records nothing.
type Journal struct {
	ID     string // run id (timestamp: 2025-01-15-103045)
	Dir    string
	Root   string
	file   afero.File
	logger *zap.Logger

	mu     sync.Mutex
	failed bool
}

// JournalEvent represents a single event in the manifest
type JournalEvent struct {
	Event string `json:"event"`
	Ts    string `json:"ts"`
	Src   string `json:"src,omitempty"`
	Dest  string `json:"dest,omitempty"`

	Source   string `json:"source,omitempty"`
	Taken    string `json:"taken,omitempty"`
	YearFrom string `json:"year_from,omitempty"`
	Sidecar  string `json:"sidecar,omitempty"`
	Tier     string `json:"tier,omitempty"`

	Error           string `json:"error,omitempty"`
	ErrorCategory   string `json:"error_category,omitempty"`
	ErrorSeverity   string `json:"error_severity,omitempty"`
	ErrorSuggestion string `json:"error_suggestion,omitempty"`

	// run start/end fields
	Root        string    `json:"root,omitempty"`
	DryRun      bool      `json:"dry_run,omitempty"`
	TotalFiles  int       `json:"total_files,omitempty"`
	Stats       *RunStats `json:"stats,omitempty"`
	Interrupted bool      `json:"interrupted,omitempty"`
}

// OpenJournal creates the run directory under dir and opens its manifest.
func OpenJournal(fs afero.Fs, dir, root string, logger *zap.Logger) (*Journal, error) {
	id := time.Now().Format("2006-01-02-150405")
	runDir := filepath.Join(dir, id)
	if err := fs.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	manifestPath := filepath.Join(runDir, "manifest.jsonl")
	f, err := fs.OpenFile(manifestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest file: %w", err)
	}

	return &Journal{
		ID:     id,
		Dir:    runDir,
		Root:   root,
		file:   f,
		logger: logger,
	}, nil
}

// ManifestPath is the path of the JSONL manifest.
func (j *Journal) ManifestPath() string {
	return filepath.Join(j.Dir, "manifest.jsonl")
}

func (j *Journal) LogRunStart(totalFiles int, dryRun bool) {
	if j == nil {
		return
	}
	j.write(JournalEvent{
		Event:      "run_start",
		Root:       j.Root,
		TotalFiles: totalFiles,
		DryRun:     dryRun,
	})
}

func (j *Journal) LogRenamed(rec *FileRecord) {
	e := fileEvent("renamed", rec)
	e.Dest = rec.FinalPath
	j.write(e)
}

func (j *Journal) LogUnchanged(rec *FileRecord) {
	j.write(fileEvent("unchanged", rec))
}

func (j *Journal) LogPlanned(rec *FileRecord) {
	e := fileEvent("planned", rec)
	e.Dest = rec.FinalPath
	j.write(e)
}

func (j *Journal) LogMetadata(rec *FileRecord) {
	j.write(JournalEvent{
		Event: "metadata",
		Src:   rec.FinalPath,
		Tier:  string(rec.Metadata),
	})
}

// LogError logs a categorized error with full details
func (j *Journal) LogError(procErr *ProcessError) {
	j.write(JournalEvent{
		Event:           "error",
		Src:             procErr.FilePath,
		Error:           procErr.OriginalErr.Error(),
		ErrorCategory:   string(procErr.Category),
		ErrorSeverity:   string(procErr.Severity),
		ErrorSuggestion: procErr.Suggestion,
	})
}

func (j *Journal) LogRunEnd(stats *RunStats) {
	j.write(JournalEvent{
		Event:       "run_end",
		Stats:       stats,
		Interrupted: stats.Interrupted,
	})
}

// Close closes the manifest file
func (j *Journal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	return j.file.Close()
}

func fileEvent(event string, rec *FileRecord) JournalEvent {
	return JournalEvent{
		Event:    event,
		Src:      rec.Path,
		Source:   string(rec.Source),
		Taken:    rec.Taken.Format(time.DateTime),
		YearFrom: rec.YearFrom,
		Sidecar:  rec.SidecarPath,
	}
}

// write appends event as a JSON line. The first failure is logged and
// disables the journal for the rest of the run.
func (j *Journal) write(event JournalEvent) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failed {
		return
	}

	event.Ts = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(event)
	if err == nil {
		_, err = j.file.Write(append(data, '\n'))
	}
	if err == nil {
		err = j.file.Sync()
	}
	if err != nil {
		j.failed = true
		j.logger.Warn("run journal disabled", zap.String("file", j.ManifestPath()), zap.Error(err))
	}
}
