package internal

import (
	"path/filepath"
	"strings"
	"time"
)

// EvidenceSource names where a capture timestamp came from.
type EvidenceSource string

const (
	SourceSidecar  EvidenceSource = "sidecar"
	SourceEmbedded EvidenceSource = "embedded"
	SourceFilename EvidenceSource = "filename"
	SourceFallback EvidenceSource = "fallback"
)

// FileRecord carries one file through processing.
type FileRecord struct {
	Path        string
	Folder      string // name of the immediate parent folder
	SidecarPath string // empty when no sidecar exists
	Taken       time.Time
	Source      EvidenceSource
	YearFrom    string // folder that overrode the year, if any
	FinalPath   string
	Metadata    Tier
}

func NewFileRecord(path string) *FileRecord {
	return &FileRecord{
		Path:      path,
		Folder:    filepath.Base(filepath.Dir(path)),
		FinalPath: path,
	}
}

// Ext is the lower-cased extension of the original path.
func (r *FileRecord) Ext() string {
	return strings.ToLower(filepath.Ext(r.Path))
}

const exifTimeLayout = "2006:01:02 15:04:05"

// exifTime formats t the way EXIF date fields store it.
func exifTime(t time.Time) string {
	return t.Format(exifTimeLayout)
}
