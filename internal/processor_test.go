package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chronofix/internal/exifblock"
	rexif "github.com/rwcarlsen/goexif/exif"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func newTestProcessor(t *testing.T, fs afero.Fs, cfg *Config) *Processor {
	t.Helper()
	logger := zap.NewNop()
	loc, _ := cfg.Location()

	codec, err := exifblock.NewCodec()
	if err != nil {
		t.Fatal(err)
	}
	resolver, err := NewResolver([]DateSource{
		&SidecarSource{Fs: fs, Loc: loc, Logger: logger},
		&EmbeddedSource{Fs: fs, Loc: loc, IsJPEG: cfg.IsJPEG, Logger: logger},
		&FilenameSource{Loc: loc},
	}, cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	return &Processor{
		Cfg:      cfg,
		Fs:       fs,
		Resolver: resolver,
		Renamer:  &Renamer{Fs: fs, Logger: logger},
		Writer:   &MetadataWriter{Codec: codec, Logger: logger},
		Logger:   logger,
	}
}

func TestProcess_JPEGWithSidecar(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "album")
	os.MkdirAll(dir, 0755)
	path := filepath.Join(dir, "photo.jpg")
	writeTestJPEG(t, path)
	os.WriteFile(path+".json", []byte(`{"photoTakenTime":{"timestamp":"1680696794"}}`), 0644)

	p := newTestProcessor(t, afero.NewOsFs(), testConfig())
	rec, err := p.Process(path)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	want := filepath.Join(dir, "IMG_20230405_121314.jpg")
	if rec.FinalPath != want {
		t.Errorf("Expected %s, got %s", want, rec.FinalPath)
	}
	if rec.Source != SourceSidecar {
		t.Errorf("Expected sidecar source, got %s", rec.Source)
	}
	if rec.Metadata != TierFull {
		t.Errorf("Expected tier %s, got %s", TierFull, rec.Metadata)
	}

	f, err := os.Open(want)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	x, err := rexif.Decode(f)
	if err != nil {
		t.Fatalf("EXIF unreadable: %v", err)
	}
	tag, err := x.Get(rexif.DateTimeOriginal)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := tag.StringVal(); s != "2023:04:05 12:13:14" {
		t.Errorf("DateTimeOriginal = %q", s)
	}
}

func TestProcess_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "camera")
	os.MkdirAll(dir, 0755)
	path := filepath.Join(dir, "20230405_121314.jpg")
	writeTestJPEG(t, path)

	p := newTestProcessor(t, afero.NewOsFs(), testConfig())
	first, err := p.Process(path)
	if err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	second, err := p.Process(first.FinalPath)
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}

	if second.FinalPath != first.FinalPath {
		t.Errorf("Second run renamed %s to %s", first.FinalPath, second.FinalPath)
	}
	if second.Source != SourceEmbedded {
		t.Errorf("Expected second run to read the written EXIF date, got %s", second.Source)
	}
	if !second.Taken.Equal(first.Taken) {
		t.Errorf("Timestamp changed from %v to %v", first.Taken, second.Taken)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected a single file, found %d", len(entries))
	}
}

func TestProcess_VideoRenameOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := []byte("\x00\x00\x00\x18ftypmp42 not a jpeg")
	afero.WriteFile(fs, "/lib/clips/VID_20230405_121314.mp4", content, 0644)
	afero.WriteFile(fs, "/lib/clips/movie.MP4", content, 0644)

	p := newTestProcessor(t, fs, testConfig())
	rec, err := p.Process("/lib/clips/movie.MP4")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if rec.Metadata != TierNone {
		t.Errorf("Videos must not get metadata, got tier %s", rec.Metadata)
	}
	if rec.Source != SourceFallback {
		t.Errorf("Expected fallback source, got %s", rec.Source)
	}
	if !strings.HasPrefix(filepath.Base(rec.FinalPath), "IMG_19140525_") || filepath.Ext(rec.FinalPath) != ".mp4" {
		t.Errorf("Unexpected final path %s", rec.FinalPath)
	}
	data, _ := afero.ReadFile(fs, rec.FinalPath)
	if string(data) != string(content) {
		t.Error("Video content must not change")
	}

	rec, err = p.Process("/lib/clips/VID_20230405_121314.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if rec.FinalPath != "/lib/clips/IMG_20230405_121314.mp4" {
		t.Errorf("Unexpected final path %s", rec.FinalPath)
	}
}

func TestProcess_DryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/lib/misc/Screenshot_20230405-121314.png", []byte("png"), 0644)

	p := newTestProcessor(t, fs, testConfig())
	p.DryRun = true

	rec, err := p.Process("/lib/misc/Screenshot_20230405-121314.png")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if rec.FinalPath != "/lib/misc/IMG_20230405_121314.png" {
		t.Errorf("Unexpected planned path %s", rec.FinalPath)
	}
	if ok, _ := afero.Exists(fs, "/lib/misc/Screenshot_20230405-121314.png"); !ok {
		t.Error("Dry run must not rename")
	}
}

func TestProcess_MovesSidecar(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/lib/misc/clip.mp4", []byte("v"), 0644)
	afero.WriteFile(fs, "/lib/misc/clip.mp4.json", []byte(`{"photoTakenTime":{"timestamp":1680696794}}`), 0644)

	cfg := testConfig()
	cfg.MoveSidecars = true
	p := newTestProcessor(t, fs, cfg)

	rec, err := p.Process("/lib/misc/clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if rec.SidecarPath != "/lib/misc/IMG_20230405_121314.mp4.json" {
		t.Errorf("Unexpected sidecar path %s", rec.SidecarPath)
	}
}

type panicSource struct{}

func (panicSource) Source() EvidenceSource { return SourceSidecar }

func (panicSource) Extract(*FileRecord) (time.Time, bool) { panic("broken decoder") }

func TestProcess_RecoversPanics(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/lib/a.png", []byte("x"), 0644)

	p := newTestProcessor(t, fs, testConfig())
	p.Resolver.Sources = []DateSource{panicSource{}}

	rec, err := p.Process("/lib/a.png")
	if err == nil || !strings.Contains(err.Error(), "broken decoder") {
		t.Fatalf("Expected recovered panic, got %v", err)
	}
	if rec == nil || rec.Path != "/lib/a.png" {
		t.Errorf("Expected record for the failed file, got %+v", rec)
	}
}
