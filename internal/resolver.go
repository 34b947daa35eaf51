package internal

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var folderYearRe = regexp.MustCompile(`\d{4}`)

// Resolver picks a capture timestamp for a file. It never fails: when no
// source has evidence, a sentinel date with a random time of day is used.
type Resolver struct {
	Sources    []DateSource
	Sentinel   time.Time // only the date part is used
	Loc        *time.Location
	FolderYear bool
	Logger     *zap.Logger

	// IntN returns a number in [0, n); defaults to math/rand/v2.
	IntN func(n int) int
}

func NewResolver(sources []DateSource, cfg *Config, logger *zap.Logger) (*Resolver, error) {
	sentinel, err := cfg.SentinelDate()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Resolver{
		Sources:    sources,
		Sentinel:   sentinel,
		Loc:        loc,
		FolderYear: cfg.FolderYear,
		Logger:     logger,
		IntN:       rand.IntN,
	}, nil
}

// Resolve fills rec.Taken, rec.Source and rec.YearFrom.
func (r *Resolver) Resolve(rec *FileRecord) {
	rec.Taken, rec.Source = r.evidence(rec)

	if !r.FolderYear {
		return
	}
	if t, ok := overrideYear(rec.Taken, rec.Folder); ok {
		r.Logger.Debug("year taken from folder",
			zap.String("file", rec.Path),
			zap.String("folder", rec.Folder),
			zap.Int("year", t.Year()))
		rec.Taken = t
		rec.YearFrom = rec.Folder
	}
}

func (r *Resolver) evidence(rec *FileRecord) (time.Time, EvidenceSource) {
	for _, src := range r.Sources {
		if t, ok := src.Extract(rec); ok {
			r.Logger.Debug("date resolved",
				zap.String("file", rec.Path),
				zap.String("source", string(src.Source())),
				zap.Time("taken", t))
			return t, src.Source()
		}
	}

	intN := r.IntN
	if intN == nil {
		intN = rand.IntN
	}
	secs := intN(24 * 60 * 60)
	t := time.Date(r.Sentinel.Year(), r.Sentinel.Month(), r.Sentinel.Day(),
		secs/3600, secs/60%60, secs%60, 0, r.Loc)
	r.Logger.Warn("no date evidence, using fallback date",
		zap.String("file", rec.Path),
		zap.Time("taken", t))
	return t, SourceFallback
}

// overrideYear replaces the year of t with the first four-digit run in
// folder. Feb 29 moved into a non-leap year becomes Feb 28.
func overrideYear(t time.Time, folder string) (time.Time, bool) {
	m := folderYearRe.FindString(folder)
	if m == "" {
		return t, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return t, false
	}
	day := t.Day()
	if t.Month() == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()), true
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
