package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/maruel/natural"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ScanMediaFiles scans root recursively for files with a configured media
// extension, in natural order so IMG_2 comes before IMG_10. Unreadable
// entries below root are logged and skipped.
func ScanMediaFiles(fs afero.Fs, root string, cfg *Config, logger *zap.Logger) ([]string, error) {
	var files []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if cfg.IsMedia(filepath.Ext(info.Name())) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning files: %w", err)
	}
	sort.Slice(files, func(i, j int) bool {
		return natural.Less(files[i], files[j])
	})
	return files, nil
}

// CheckRoot fails with ErrConfig unless root is an existing directory.
func CheckRoot(fs afero.Fs, root string) error {
	if root == "" {
		return fmt.Errorf("%w: no folder given and no root configured", ErrConfig)
	}
	ok, err := afero.DirExists(fs, root)
	if err != nil || !ok {
		return fmt.Errorf("%w: folder does not exist or is not a directory: %s", ErrConfig, root)
	}
	return nil
}
