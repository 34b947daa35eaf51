package internal

import (
	"fmt"
	"time"

	"chronofix/internal/exifblock"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Tier records how much of a file's original metadata survived the write.
type Tier string

const (
	TierNone    Tier = ""        // nothing written
	TierFull    Tier = "full"    // original block, repaired
	TierCleaned Tier = "cleaned" // invalid values dropped
	TierMinimal Tier = "minimal" // capture time and ExifVersion only
	TierSkipped Tier = "skipped" // content is not JPEG
)

// MetadataCodec loads, encodes and embeds EXIF blocks.
type MetadataCodec interface {
	Load(path string) (*exifblock.Block, error)
	Dump(b *exifblock.Block) ([]byte, error)
	Insert(data []byte, path string) error
}

// MetadataWriter rewrites the capture-time fields of JPEG files.
type MetadataWriter struct {
	Codec  MetadataCodec
	Logger *zap.Logger
}

// Write stores t in the file's EXIF block. Each tier is only tried once the
// previous one failed to encode or embed; the tier that succeeded is
// returned. A load failure leaves the file untouched.
func (w *MetadataWriter) Write(path string, t time.Time) (Tier, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return TierNone, err
	}
	if !mtype.Is("image/jpeg") {
		w.Logger.Warn("not a JPEG, metadata left as is",
			zap.String("file", path),
			zap.String("mime", mtype.String()))
		return TierSkipped, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	b, err := w.Codec.Load(path)
	if err != nil {
		w.Logger.Warn("failed to load metadata", zap.String("file", path), zap.Error(err))
		return TierNone, fmt.Errorf("%w: %w", ErrMetadataLoad, err)
	}

	SetCaptureTime(b, t)
	RepairFragileTags(b, w.Logger)

	err = w.embed(b, path)
	if err == nil {
		w.Logger.Debug("metadata updated", zap.String("file", path), zap.String("tier", string(TierFull)))
		return TierFull, nil
	}
	w.Logger.Debug("full metadata write failed, cleaning", zap.String("file", path), zap.Error(err))

	dropped := CleanBlock(b, w.Logger)
	err = w.embed(b, path)
	if err == nil {
		w.Logger.Info("metadata updated after dropping invalid tags",
			zap.String("file", path),
			zap.Int("dropped", dropped))
		return TierCleaned, nil
	}
	w.Logger.Warn("cleaned metadata write failed", zap.String("file", path), zap.Error(err))

	if err := w.embed(MinimalBlock(t), path); err != nil {
		w.Logger.Warn("could not write even minimal metadata", zap.String("file", path), zap.Error(err))
		return TierNone, fmt.Errorf("%w: %w", ErrMetadataWrite, err)
	}
	w.Logger.Info("used minimal metadata", zap.String("file", path))
	return TierMinimal, nil
}

func (w *MetadataWriter) embed(b *exifblock.Block, path string) error {
	data, err := w.Codec.Dump(b)
	if err != nil {
		return err
	}
	return w.Codec.Insert(data, path)
}
