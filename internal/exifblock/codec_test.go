package exifblock

import (
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	rexif "github.com/rwcarlsen/goexif/exif"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func writePlainJPEG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plain.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 16, 16)), nil); err != nil {
		t.Fatal(err)
	}
	return path
}

func dateBlock() *Block {
	b := New()
	dt := []byte("2023:04:05 12:13:14")
	b.Groups[Group0th] = Tags{
		TagDateTime: dt,
		0x0112:      int64(6),       // Orientation
		0x011a:      Tuple{72, 1},   // XResolution
		0x010f:      []byte("ACME"), // Make
	}
	b.Groups[GroupExif] = Tags{
		TagDateTimeOriginal:  dt,
		TagDateTimeDigitized: dt,
		TagExifVersion:       []byte("0220"),
		TagBrightnessValue:   Tuple{-1250, 1000},
	}
	return b
}

func TestCodec_DumpDecodeRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	data, err := c.Dump(dateBlock())
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	checks := []struct {
		group string
		tag   uint16
		want  any
	}{
		{Group0th, TagDateTime, []byte("2023:04:05 12:13:14")},
		{Group0th, 0x0112, int64(6)},
		{Group0th, 0x011a, Tuple{72, 1}},
		{Group0th, 0x010f, []byte("ACME")},
		{GroupExif, TagDateTimeOriginal, []byte("2023:04:05 12:13:14")},
		{GroupExif, TagExifVersion, []byte("0220")},
		{GroupExif, TagBrightnessValue, Tuple{-1250, 1000}},
	}
	for _, tc := range checks {
		v, ok := got.Lookup(tc.group, tc.tag)
		if !ok {
			t.Errorf("%s/0x%04x missing after round trip", tc.group, tc.tag)
			continue
		}
		if !reflect.DeepEqual(v, tc.want) {
			t.Errorf("%s/0x%04x = %#v, want %#v", tc.group, tc.tag, v, tc.want)
		}
	}
}

func TestCodec_DumpRejectsUnsupportedValues(t *testing.T) {
	c := newTestCodec(t)

	for name, v := range map[string]any{
		"float":       0.5,
		"string":      "text",
		"empty tuple": Tuple{},
	} {
		b := New()
		b.Group(GroupExif)[0x9204] = v
		if _, err := c.Dump(b); !errors.Is(err, ErrUnsupportedValue) {
			t.Errorf("%s: expected ErrUnsupportedValue, got %v", name, err)
		}
	}

	b := New()
	b.Group(Group0th)[0x0112] = int64(1 << 40)
	if _, err := c.Dump(b); err == nil {
		t.Error("Expected out of range SHORT value to fail")
	}
}

func TestCodec_LoadWithoutExif(t *testing.T) {
	c := newTestCodec(t)

	b, err := c.Load(writePlainJPEG(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("Expected empty block, got %d tags", b.Len())
	}
}

func TestCodec_LoadRejectsNonJPEG(t *testing.T) {
	c := newTestCodec(t)
	path := filepath.Join(t.TempDir(), "notes.jpg")
	os.WriteFile(path, []byte("not an image at all"), 0644)

	if _, err := c.Load(path); err == nil {
		t.Error("Expected an error for a file that is not a JPEG")
	}
}

func TestCodec_InsertAndLoad(t *testing.T) {
	c := newTestCodec(t)
	path := writePlainJPEG(t)
	info, _ := os.Stat(path)

	data, err := c.Dump(dateBlock())
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if err := c.Insert(data, path); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	b, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v, _ := b.Lookup(GroupExif, TagDateTimeOriginal)
	if !reflect.DeepEqual(v, []byte("2023:04:05 12:13:14")) {
		t.Errorf("DateTimeOriginal = %q after insert", v)
	}

	// an independent reader sees the same date
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	x, err := rexif.Decode(f)
	if err != nil {
		t.Fatalf("goexif decode failed: %v", err)
	}
	dt, err := x.DateTime()
	if err != nil {
		t.Fatalf("goexif DateTime failed: %v", err)
	}
	if dt.Format("2006:01:02 15:04:05") != "2023:04:05 12:13:14" {
		t.Errorf("goexif read %v", dt)
	}

	after, _ := os.Stat(path)
	if after.Mode().Perm() != info.Mode().Perm() {
		t.Errorf("Permissions changed from %v to %v", info.Mode().Perm(), after.Mode().Perm())
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected no temp files left behind, found %d entries", len(entries))
	}
}

func TestCodec_InsertReplacesExisting(t *testing.T) {
	c := newTestCodec(t)
	path := writePlainJPEG(t)

	first := dateBlock()
	data, _ := c.Dump(first)
	if err := c.Insert(data, path); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}

	second := New()
	second.Group(GroupExif)[TagDateTimeOriginal] = []byte("1999:12:31 23:59:59")
	data, err := c.Dump(second)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if err := c.Insert(data, path); err != nil {
		t.Fatalf("second Insert failed: %v", err)
	}

	b, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := b.Lookup(Group0th, 0x010f); ok {
		t.Error("Expected old tags to be replaced")
	}
	v, _ := b.Lookup(GroupExif, TagDateTimeOriginal)
	if !reflect.DeepEqual(v, []byte("1999:12:31 23:59:59")) {
		t.Errorf("DateTimeOriginal = %q", v)
	}
}

func TestText(t *testing.T) {
	if s, err := Text([]byte("ACME\x00\x00")); err != nil || s != "ACME" {
		t.Errorf("Text = %q, %v", s, err)
	}
	if _, err := Text(int64(1)); err == nil {
		t.Error("Expected error for non-text value")
	}
}
