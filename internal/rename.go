package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const canonicalLayout = "IMG_20060102_150405"

// Renamer gives files their canonical IMG_YYYYMMDD_HHMMSS name.
type Renamer struct {
	Fs     afero.Fs
	Logger *zap.Logger
}

// CanonicalBase is the extension-less canonical name for t.
func CanonicalBase(t time.Time) string {
	return t.Format(canonicalLayout)
}

// Plan returns the path path would be renamed to, without touching it.
// Files whose name already starts with the canonical base keep their path.
func (r *Renamer) Plan(path string, t time.Time) (string, error) {
	base := CanonicalBase(t)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if strings.HasPrefix(stem, base) {
		return path, nil
	}
	return r.freePath(filepath.Dir(path), base, strings.ToLower(filepath.Ext(path)))
}

// freePath appends _1, _2... to base until the name is unused.
func (r *Renamer) freePath(dir, base, ext string) (string, error) {
	candidate := filepath.Join(dir, base+ext)
	for i := 1; ; i++ {
		exists, err := afero.Exists(r.Fs, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
}

// Rename moves path to its canonical name and returns the new path. A
// rename refused for lack of permission is logged and the original path is
// returned without error.
func (r *Renamer) Rename(path string, t time.Time) (string, error) {
	target, err := r.Plan(path, t)
	if err != nil {
		return path, err
	}
	if target == path {
		return path, nil
	}

	if err := r.Fs.Rename(path, target); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			r.Logger.Warn("permission denied, keeping name",
				zap.String("file", path),
				zap.String("target", filepath.Base(target)))
			return path, nil
		}
		return path, fmt.Errorf("failed to rename %s: %w", path, err)
	}

	r.Logger.Info("renamed",
		zap.String("file", path),
		zap.String("target", filepath.Base(target)))
	return target, nil
}

// MoveSidecar renames sidecar so that it follows its media file from
// oldPath to newPath, keeping its suffix. It returns the sidecar's path
// afterwards; failures are logged and leave the sidecar in place.
func (r *Renamer) MoveSidecar(sidecar, oldPath, newPath string) string {
	if sidecar == "" || oldPath == newPath || !strings.HasPrefix(sidecar, oldPath) {
		return sidecar
	}
	target := newPath + strings.TrimPrefix(sidecar, oldPath)
	if exists, _ := afero.Exists(r.Fs, target); exists {
		r.Logger.Warn("sidecar target exists, leaving sidecar in place",
			zap.String("file", sidecar),
			zap.String("target", target))
		return sidecar
	}
	if err := r.Fs.Rename(sidecar, target); err != nil {
		r.Logger.Warn("failed to move sidecar", zap.String("file", sidecar), zap.Error(err))
		return sidecar
	}
	return target
}
