package internal

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"chronofix/internal/exifblock"
	"go.uber.org/zap"
)

const defaultExifVersion = "0220"

// SetCaptureTime writes t into DateTime, DateTimeOriginal and
// DateTimeDigitized.
func SetCaptureTime(b *exifblock.Block, t time.Time) {
	v := exifTime(t)
	b.Group(exifblock.Group0th)[exifblock.TagDateTime] = []byte(v)
	exif := b.Group(exifblock.GroupExif)
	exif[exifblock.TagDateTimeOriginal] = []byte(v)
	exif[exifblock.TagDateTimeDigitized] = []byte(v)
}

// RepairFragileTags coerces ExifVersion and BrightnessValue into forms the
// encoder accepts. Both are commonly written with the wrong type by phone
// firmware and editing apps.
func RepairFragileTags(b *exifblock.Block, logger *zap.Logger) {
	exif, ok := b.Groups[exifblock.GroupExif]
	if !ok {
		return
	}

	if val, ok := exif[exifblock.TagExifVersion]; ok {
		exif[exifblock.TagExifVersion] = repairExifVersion(val)
		logger.Debug("repaired ExifVersion", zap.ByteString("value", exif[exifblock.TagExifVersion].([]byte)))
	}

	if val, ok := exif[exifblock.TagBrightnessValue]; ok {
		if f, isNum := number(val); isNum {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				logger.Debug("removing non-finite BrightnessValue", zap.Float64("value", f))
				delete(exif, exifblock.TagBrightnessValue)
			} else {
				exif[exifblock.TagBrightnessValue] = exifblock.Tuple{int64(f * 1000), 1000}
			}
		} else if t, isTuple := val.(exifblock.Tuple); !isTuple || len(t) != 2 {
			logger.Debug("removing invalid BrightnessValue", zap.Any("value", val))
			delete(exif, exifblock.TagBrightnessValue)
		}
	}
}

func repairExifVersion(val any) []byte {
	if n, ok := integer(val); ok {
		return []byte(fmt.Sprintf("%04d", n))
	}
	switch v := val.(type) {
	case string:
		return []byte(v)
	case []byte:
		if len(v) == 4 {
			return v
		}
		if len(v) > 4 {
			return bytes.Clone(v[:4])
		}
		return append(bytes.Clone(v), bytes.Repeat([]byte{'0'}, 4-len(v))...)
	}
	return []byte(defaultExifVersion)
}

// CleanBlock drops every value the encoder might reject: integers outside
// the int32 range, tuples that are not pairs or triples, and any kind other
// than integers, tuples and raw bytes. The thumbnail is kept.
func CleanBlock(b *exifblock.Block, logger *zap.Logger) int {
	dropped := 0
	for group, tags := range b.Groups {
		for id, v := range tags {
			if validValue(v) {
				continue
			}
			logger.Debug("removing invalid tag",
				zap.String("group", group),
				zap.String("tag", fmt.Sprintf("0x%04x", id)))
			delete(tags, id)
			dropped++
		}
	}
	return dropped
}

func validValue(v any) bool {
	switch val := v.(type) {
	case []byte:
		return true
	case exifblock.Tuple:
		return len(val) == 2 || len(val) == 3
	}
	if n, ok := integer(v); ok {
		return n >= math.MinInt32 && n <= math.MaxInt32
	}
	return false
}

// MinimalBlock holds only the three capture-time fields and ExifVersion.
func MinimalBlock(t time.Time) *exifblock.Block {
	b := exifblock.New()
	SetCaptureTime(b, t)
	b.Group(exifblock.GroupExif)[exifblock.TagExifVersion] = []byte(defaultExifVersion)
	return b
}

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	if n, ok := integer(v); ok {
		return float64(n), true
	}
	f, ok := v.(float64)
	return f, ok
}
