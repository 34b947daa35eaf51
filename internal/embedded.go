package internal

import (
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// MetadataReader is the subset of *exiftool.Exiftool used as a fallback
// reader.
type MetadataReader interface {
	ExtractMetadata(files ...string) []exiftool.FileMetadata
}

// EmbeddedSource reads DateTimeOriginal from the EXIF block of JPEG files.
type EmbeddedSource struct {
	Fs       afero.Fs
	Loc      *time.Location
	IsJPEG   func(ext string) bool
	ExifTool MetadataReader // optional
	Logger   *zap.Logger
}

func (s *EmbeddedSource) Source() EvidenceSource { return SourceEmbedded }

func (s *EmbeddedSource) Extract(rec *FileRecord) (time.Time, bool) {
	if !s.IsJPEG(rec.Ext()) {
		return time.Time{}, false
	}
	t, err := s.exifDateOriginal(rec.Path)
	if err == nil {
		return t, true
	}
	s.Logger.Debug("no embedded date", zap.String("file", rec.Path), zap.Error(err))

	if s.ExifTool != nil {
		if t, ok := s.exifToolDate(rec.Path); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// exifDateOriginal extracts DateTimeOriginal with goexif.
func (s *EmbeddedSource) exifDateOriginal(path string) (time.Time, error) {
	f, err := s.Fs.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, err
	}

	dateStr, err := tag.StringVal()
	if err != nil {
		return time.Time{}, err
	}

	return time.ParseInLocation(exifTimeLayout, dateStr, s.Loc)
}

func (s *EmbeddedSource) exifToolDate(path string) (time.Time, bool) {
	for _, fm := range s.ExifTool.ExtractMetadata(path) {
		if fm.Err != nil {
			s.Logger.Debug("exiftool failed", zap.String("file", path), zap.Error(fm.Err))
			continue
		}
		v, err := fm.GetString("DateTimeOriginal")
		if err != nil {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, v, s.Loc)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
