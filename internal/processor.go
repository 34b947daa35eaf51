package internal

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Processor normalizes one file at a time: resolve, rename and, for JPEG
// files, rewrite the capture-time metadata.
type Processor struct {
	Cfg      *Config
	Fs       afero.Fs
	Resolver *Resolver
	Renamer  *Renamer
	Writer   *MetadataWriter
	Journal  *Journal // optional
	Logger   *zap.Logger
	DryRun   bool
}

// Process handles path. The returned record is non-nil even when an error
// is returned, so callers can report how far the file got.
func (p *Processor) Process(path string) (rec *FileRecord, err error) {
	rec = NewFileRecord(path)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", filepath.Base(path), r)
			p.Logger.Error("recovered from panic", zap.String("file", path), zap.Any("panic", r))
		}
	}()

	rec.SidecarPath = FindSidecar(p.Fs, path, p.Cfg.SidecarSuffixes)
	p.Resolver.Resolve(rec)

	if p.DryRun {
		target, err := p.Renamer.Plan(path, rec.Taken)
		if err != nil {
			return rec, err
		}
		rec.FinalPath = target
		p.Logger.Info("[dry-run] would rename",
			zap.String("file", path),
			zap.String("target", filepath.Base(target)),
			zap.String("source", string(rec.Source)))
		p.Journal.LogPlanned(rec)
		return rec, nil
	}

	final, err := p.Renamer.Rename(path, rec.Taken)
	if err != nil {
		return rec, err
	}
	rec.FinalPath = final
	if p.Cfg.MoveSidecars {
		rec.SidecarPath = p.Renamer.MoveSidecar(rec.SidecarPath, path, final)
	}
	if final == path {
		p.Journal.LogUnchanged(rec)
	} else {
		p.Journal.LogRenamed(rec)
	}

	ext := rec.Ext()
	if p.Cfg.IsVideo(ext) || !p.Cfg.IsJPEG(ext) {
		return rec, nil
	}

	tier, err := p.Writer.Write(final, rec.Taken)
	rec.Metadata = tier
	if tier != TierNone {
		p.Journal.LogMetadata(rec)
	}
	return rec, err
}
