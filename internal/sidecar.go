package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DateSource is one kind of capture-time evidence.
type DateSource interface {
	Source() EvidenceSource
	Extract(rec *FileRecord) (time.Time, bool)
}

// epochSeconds accepts both a JSON number and a quoted decimal string.
// Fractional seconds are truncated.
type epochSeconds int64

func (e *epochSeconds) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*e = epochSeconds(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid epoch timestamp %q", s)
	}
	*e = epochSeconds(int64(f))
	return nil
}

// sidecarMeta is the part of a Takeout-style sidecar we read.
type sidecarMeta struct {
	PhotoTakenTime *struct {
		Timestamp *epochSeconds `json:"timestamp"`
	} `json:"photoTakenTime"`
}

// SidecarSource reads photoTakenTime.timestamp from the JSON file next to
// the media file.
type SidecarSource struct {
	Fs     afero.Fs
	Loc    *time.Location
	Logger *zap.Logger
}

func (s *SidecarSource) Source() EvidenceSource { return SourceSidecar }

func (s *SidecarSource) Extract(rec *FileRecord) (time.Time, bool) {
	if rec.SidecarPath == "" {
		return time.Time{}, false
	}
	data, err := afero.ReadFile(s.Fs, rec.SidecarPath)
	if err != nil {
		s.Logger.Debug("sidecar unreadable", zap.String("file", rec.SidecarPath), zap.Error(err))
		return time.Time{}, false
	}

	var meta sidecarMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		s.Logger.Debug("sidecar malformed", zap.String("file", rec.SidecarPath), zap.Error(err))
		return time.Time{}, false
	}
	if meta.PhotoTakenTime == nil || meta.PhotoTakenTime.Timestamp == nil {
		return time.Time{}, false
	}
	return time.Unix(int64(*meta.PhotoTakenTime.Timestamp), 0).In(s.Loc), true
}

// FindSidecar returns the first existing path+suffix, or "".
func FindSidecar(fs afero.Fs, path string, suffixes []string) string {
	for _, suffix := range suffixes {
		candidate := path + suffix
		if ok, _ := afero.Exists(fs, candidate); ok {
			return candidate
		}
	}
	return ""
}
