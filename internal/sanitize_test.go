package internal

import (
	"math"
	"reflect"
	"testing"
	"time"

	"chronofix/internal/exifblock"
	"go.uber.org/zap"
)

func blockWithExif(tags exifblock.Tags) *exifblock.Block {
	b := exifblock.New()
	b.Groups[exifblock.GroupExif] = tags
	return b
}

func TestSetCaptureTime(t *testing.T) {
	b := exifblock.New()
	SetCaptureTime(b, time.Date(2023, 4, 5, 12, 13, 14, 0, time.UTC))

	want := []byte("2023:04:05 12:13:14")
	for _, loc := range []struct {
		group string
		tag   uint16
	}{
		{exifblock.Group0th, exifblock.TagDateTime},
		{exifblock.GroupExif, exifblock.TagDateTimeOriginal},
		{exifblock.GroupExif, exifblock.TagDateTimeDigitized},
	} {
		v, ok := b.Lookup(loc.group, loc.tag)
		if !ok || !reflect.DeepEqual(v, want) {
			t.Errorf("%s/0x%04x = %v, want %s", loc.group, loc.tag, v, want)
		}
	}
}

func TestRepairFragileTags_ExifVersion(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"int", 220, "0220"},
		{"int64", int64(230), "0230"},
		{"string", "0231", "0231"},
		{"short bytes", []byte("02"), "0200"},
		{"long bytes", []byte("023000"), "0230"},
		{"good bytes", []byte("0232"), "0232"},
		{"float", 2.2, "0220"},
		{"tuple", exifblock.Tuple{2, 2}, "0220"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := blockWithExif(exifblock.Tags{exifblock.TagExifVersion: tc.in})
			RepairFragileTags(b, zap.NewNop())
			got, _ := b.Lookup(exifblock.GroupExif, exifblock.TagExifVersion)
			if !reflect.DeepEqual(got, []byte(tc.want)) {
				t.Errorf("ExifVersion = %v, want %q", got, tc.want)
			}
		})
	}
}

func TestRepairFragileTags_BrightnessValue(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    exifblock.Tuple
		dropped bool
	}{
		{"float", 2.5, exifblock.Tuple{2500, 1000}, false},
		{"negative float", -1.25, exifblock.Tuple{-1250, 1000}, false},
		{"int", 3, exifblock.Tuple{3000, 1000}, false},
		{"pair", exifblock.Tuple{7, 10}, exifblock.Tuple{7, 10}, false},
		{"NaN", math.NaN(), nil, true},
		{"infinity", math.Inf(-1), nil, true},
		{"triple", exifblock.Tuple{1, 2, 3}, nil, true},
		{"bytes", []byte("bright"), nil, true},
		{"rational list", []exifblock.Tuple{{1, 2}, {3, 4}}, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := blockWithExif(exifblock.Tags{exifblock.TagBrightnessValue: tc.in})
			RepairFragileTags(b, zap.NewNop())
			got, ok := b.Lookup(exifblock.GroupExif, exifblock.TagBrightnessValue)
			if tc.dropped {
				if ok {
					t.Errorf("Expected BrightnessValue to be dropped, got %v", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("BrightnessValue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRepairFragileTags_LeavesAbsentTagsAlone(t *testing.T) {
	b := blockWithExif(exifblock.Tags{0xa002: int64(640)})
	RepairFragileTags(b, zap.NewNop())

	if _, ok := b.Lookup(exifblock.GroupExif, exifblock.TagExifVersion); ok {
		t.Error("ExifVersion should not be added by the repair")
	}
	if b.Len() != 1 {
		t.Errorf("Expected 1 tag, got %d", b.Len())
	}
}

func TestCleanBlock(t *testing.T) {
	logger, logs := observedLogger()
	b := exifblock.New()
	b.Groups[exifblock.Group0th] = exifblock.Tags{
		0x0112: int64(1),
		0x011a: exifblock.Tuple{72, 1},
		0x0110: []byte("Pixel 7"),
		0x9999: int64(math.MaxInt32) + 1,
	}
	b.Groups[exifblock.GroupExif] = exifblock.Tags{
		0xa430: exifblock.Tuple{10, 20, 30},
		0x9204: 0.33,
		0x920a: "4.2mm",
		0x9214: exifblock.Tuple{1, 2, 3, 4},
	}
	b.Groups[exifblock.GroupGPS] = exifblock.Tags{
		0x0002: []exifblock.Tuple{{41, 1}, {53, 1}, {0, 1}},
		0x0001: []byte("N"),
	}
	b.Thumbnail = []byte{0xff, 0xd8, 0xff, 0xd9}

	dropped := CleanBlock(b, logger)

	if dropped != 5 {
		t.Errorf("Expected 5 dropped tags, got %d", dropped)
	}
	if b.Len() != 5 {
		t.Errorf("Expected 5 remaining tags, got %d", b.Len())
	}
	for _, id := range []uint16{0x0112, 0x011a, 0x0110} {
		if _, ok := b.Lookup(exifblock.Group0th, id); !ok {
			t.Errorf("Expected 0th/0x%04x to be kept", id)
		}
	}
	if _, ok := b.Lookup(exifblock.GroupExif, 0xa430); !ok {
		t.Error("Expected triple to be kept")
	}
	if _, ok := b.Lookup(exifblock.GroupGPS, 0x0002); ok {
		t.Error("Expected rational list to be dropped")
	}
	if len(b.Thumbnail) != 4 {
		t.Error("Thumbnail must not be touched")
	}
	if n := logs.FilterMessage("removing invalid tag").Len(); n != 5 {
		t.Errorf("Expected 5 debug entries, got %d", n)
	}
}

func TestMinimalBlock(t *testing.T) {
	b := MinimalBlock(time.Date(2023, 4, 5, 12, 13, 14, 0, time.UTC))

	if b.Len() != 4 {
		t.Errorf("Expected 4 tags, got %d", b.Len())
	}
	v, _ := b.Lookup(exifblock.GroupExif, exifblock.TagExifVersion)
	if !reflect.DeepEqual(v, []byte("0220")) {
		t.Errorf("Expected ExifVersion 0220, got %v", v)
	}
}
