package cmd

import (
	"fmt"

	"chronofix/internal"
	"chronofix/internal/exifblock"
	"github.com/barasher/go-exiftool"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type appOptions struct {
	folder      string
	dryRun      bool
	useExifTool bool
	noJournal   bool
	quietLog    bool // console shows warnings and errors only
}

// app holds everything a normalizing command needs.
type app struct {
	cfg     *internal.Config
	root    string
	fs      afero.Fs
	log     *internal.Logger
	journal *internal.Journal
	proc    *internal.Processor
	et      *exiftool.Exiftool
}

func newApp(opts appOptions) (*app, error) {
	conf, err := internal.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	if opts.useExifTool {
		conf.UseExifTool = true
	}
	if logLevelFlag != "" {
		conf.LogLevel = logLevelFlag
	}

	a := &app{cfg: conf, fs: afero.NewOsFs(), root: opts.folder}
	if a.root == "" {
		a.root = conf.Root
	}
	if err := internal.CheckRoot(a.fs, a.root); err != nil {
		return nil, err
	}

	consoleLevel := zapcore.DebugLevel
	if opts.quietLog {
		consoleLevel = zapcore.WarnLevel
	}
	a.log, err = internal.NewLogger(conf.LogFile, conf.LogLevel, consoleLevel)
	if err != nil {
		return nil, err
	}
	logger := a.log.Logger

	loc, err := conf.Location()
	if err != nil {
		a.close()
		return nil, err
	}

	embedded := &internal.EmbeddedSource{Fs: a.fs, Loc: loc, IsJPEG: conf.IsJPEG, Logger: logger}
	if conf.UseExifTool {
		a.et, err = exiftool.NewExiftool()
		if err != nil {
			logger.Warn("exiftool unavailable, using built-in EXIF reader only", zap.Error(err))
		} else {
			embedded.ExifTool = a.et
		}
	}

	sources := []internal.DateSource{
		&internal.SidecarSource{Fs: a.fs, Loc: loc, Logger: logger},
		embedded,
		&internal.FilenameSource{Loc: loc},
	}
	resolver, err := internal.NewResolver(sources, conf, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	codec, err := exifblock.NewCodec()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to set up EXIF codec: %w", err)
	}

	if conf.Journal && !opts.noJournal {
		if conf.JournalDir == "" {
			logger.Warn("no journal_dir configured, run journal disabled")
		} else if a.journal, err = internal.OpenJournal(a.fs, conf.JournalDir, a.root, logger); err != nil {
			logger.Warn("run journal disabled", zap.Error(err))
		}
	}

	a.proc = &internal.Processor{
		Cfg:      conf,
		Fs:       a.fs,
		Resolver: resolver,
		Renamer:  &internal.Renamer{Fs: a.fs, Logger: logger},
		Writer:   &internal.MetadataWriter{Codec: codec, Logger: logger},
		Journal:  a.journal,
		Logger:   logger,
		DryRun:   opts.dryRun,
	}
	return a, nil
}

func (a *app) close() {
	if err := a.journal.Close(); err != nil {
		a.log.Warn("failed to close run journal", zap.Error(err))
	}
	if a.et != nil {
		_ = a.et.Close()
	}
	_ = a.log.Close()
}
