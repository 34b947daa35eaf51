package internal

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// filenamePattern recognises one naming convention. convert receives the
// submatches (without the full match).
type filenamePattern struct {
	name    string
	re      *regexp.Regexp
	convert func(groups []string, loc *time.Location) (time.Time, error)
}

func dateOnly(groups []string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("20060102", strings.Join(groups, ""), loc)
}

func dateTime(groups []string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("20060102150405", strings.Join(groups, ""), loc)
}

// Tried in order; the first pattern that matches and converts wins.
var filenamePatterns = []filenamePattern{
	{"whatsapp", regexp.MustCompile(`IMG-(\d{4})(\d{2})(\d{2})-WA`), dateOnly},
	// IMG_<date>_<six digit time> belongs to img-datetime
	{"img-date", regexp.MustCompile(`IMG[-_](\d{4})(\d{2})(\d{2})(?:-|_(?:\d{0,5}(?:\D|$)))`), dateOnly},
	{"img-datetime", regexp.MustCompile(`IMG_(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`), dateTime},
	{"datetime", regexp.MustCompile(`(\d{8})_(\d{6})`), dateTime},
	{"video", regexp.MustCompile(`VID_(\d{8})_(\d{6})`), dateTime},
	{"screenshot", regexp.MustCompile(`Screenshot_(\d{4})(\d{2})(\d{2})-(\d{2})(\d{2})(\d{2})`), dateTime},
	{"dashed-short", regexp.MustCompile(`(\d{2}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2})`),
		func(groups []string, loc *time.Location) (time.Time, error) {
			return time.ParseInLocation("06-01-02-15-04-05", groups[0], loc)
		}},
	{"iso-date", regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`), dateOnly},
	{"whatsapp-epoch", regexp.MustCompile(`IMG-(\d{13})-V`),
		func(groups []string, loc *time.Location) (time.Time, error) {
			ms, err := strconv.ParseInt(groups[0], 10, 64)
			if err != nil {
				return time.Time{}, err
			}
			return time.UnixMilli(ms).In(loc), nil
		}},
}

// FilenameSource infers a timestamp from well-known naming conventions.
type FilenameSource struct {
	Loc *time.Location
}

func (s *FilenameSource) Source() EvidenceSource { return SourceFilename }

func (s *FilenameSource) Extract(rec *FileRecord) (time.Time, bool) {
	return parseFilenameDate(filepath.Base(rec.Path), s.Loc)
}

// parseFilenameDate matches the extension-less name against the pattern
// table. A match that does not form a valid date falls through to the next
// pattern.
func parseFilenameDate(name string, loc *time.Location) (time.Time, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, p := range filenamePatterns {
		m := p.re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		t, err := p.convert(m[1:], loc)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
