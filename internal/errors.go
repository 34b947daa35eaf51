package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	ErrConfig          = errors.New("invalid configuration")
	ErrInterrupted     = errors.New("interrupted")
	ErrMetadataLoad    = errors.New("metadata could not be loaded")
	ErrMetadataWrite   = errors.New("metadata could not be written")
	ErrUnsupportedType = errors.New("unsupported content")
)

// ErrorCategory represents the type of error encountered
type ErrorCategory string

const (
	ErrorCategoryEvidence      ErrorCategory = "evidence"           // date source unreadable (never fatal)
	ErrorCategoryRepair        ErrorCategory = "metadata_repair"    // metadata could not be loaded or repaired
	ErrorCategorySerialization ErrorCategory = "serialization"      // even the minimal block could not be written
	ErrorCategoryFilesystem    ErrorCategory = "filesystem"         // rename denied, file unreadable
	ErrorCategoryConfig        ErrorCategory = "config"             // bad root or settings
	ErrorCategoryInterrupt     ErrorCategory = "interrupt"          // user stopped the run
	ErrorCategoryUnsupported   ErrorCategory = "unsupported_format" // extension does not match content
	ErrorCategoryUnknown       ErrorCategory = "unknown_error"      // unexpected errors
)

// ErrorSeverity indicates how critical the error is
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical" // run cannot continue
	ErrorSeverityError    ErrorSeverity = "error"    // file skipped or left partially processed
	ErrorSeverityWarning  ErrorSeverity = "warning"  // recoverable, file still processed
)

// ProcessError represents a categorized error during file processing
type ProcessError struct {
	FilePath    string
	Category    ErrorCategory
	Severity    ErrorSeverity
	OriginalErr error
	Suggestion  string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", e.Severity, e.Category, e.FilePath, e.OriginalErr)
}

func (e *ProcessError) Unwrap() error {
	return e.OriginalErr
}

// CategorizeError classifies err for reporting.
func CategorizeError(filePath string, err error) *ProcessError {
	if err == nil {
		return nil
	}
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe
	}

	procErr := &ProcessError{
		FilePath:    filePath,
		OriginalErr: err,
	}

	switch {
	case errors.Is(err, ErrConfig):
		procErr.Category = ErrorCategoryConfig
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Check the root path and chronofix.toml settings"

	case errors.Is(err, ErrInterrupted):
		procErr.Category = ErrorCategoryInterrupt
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Run again to process the remaining files; finished files are left as they are"

	case errors.Is(err, syscall.ENOSPC) || strings.Contains(strings.ToLower(err.Error()), "no space left"):
		procErr.Category = ErrorCategoryFilesystem
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Free up disk space; metadata rewrites need room for a temporary copy"

	case errors.Is(err, syscall.EROFS):
		procErr.Category = ErrorCategoryFilesystem
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "The library is on a read-only file system - check mount options"

	case errors.Is(err, fs.ErrPermission):
		procErr.Category = ErrorCategoryFilesystem
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Check write permissions on the file and its folder"

	case errors.Is(err, fs.ErrNotExist):
		procErr.Category = ErrorCategoryFilesystem
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "File disappeared during the run - check if the drive was disconnected"

	case errors.Is(err, ErrUnsupportedType):
		procErr.Category = ErrorCategoryUnsupported
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "File content does not match its extension; it was renamed but metadata was not touched"

	case errors.Is(err, ErrMetadataLoad):
		procErr.Category = ErrorCategoryRepair
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Embedded metadata is unreadable; the file was renamed but its metadata was left as is"

	case errors.Is(err, ErrMetadataWrite):
		procErr.Category = ErrorCategorySerialization
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Even a minimal metadata block could not be written; the file was left unchanged"

	default:
		procErr.Category = ErrorCategoryUnknown
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Unexpected error - check the log file for details"
	}

	return procErr
}

// ErrorStats tracks error statistics during a run
type ErrorStats struct {
	Total       int
	Critical    int
	Errors      int
	Warnings    int
	ByCategory  map[ErrorCategory]int
	LastErrors  []*ProcessError // last 5 errors for quick diagnosis
	Consecutive int
}

func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ByCategory: make(map[ErrorCategory]int),
		LastErrors: make([]*ProcessError, 0, 5),
	}
}

func (s *ErrorStats) Add(err *ProcessError) {
	s.Total++
	s.Consecutive++
	s.ByCategory[err.Category]++

	switch err.Severity {
	case ErrorSeverityCritical:
		s.Critical++
	case ErrorSeverityError:
		s.Errors++
	case ErrorSeverityWarning:
		s.Warnings++
	}

	if len(s.LastErrors) >= 5 {
		s.LastErrors = s.LastErrors[1:]
	}
	s.LastErrors = append(s.LastErrors, err)
}

func (s *ErrorStats) ResetConsecutive() {
	s.Consecutive = 0
}

// GenerateReport creates a human-readable error report
func (s *ErrorStats) GenerateReport() string {
	var report strings.Builder

	report.WriteString(color.New(color.Bold).Sprintf("\nRun encountered %s problems:\n\n", humanize.Comma(int64(s.Total))))

	if s.Critical > 0 {
		report.WriteString(color.RedString("  Critical: %d (system-level issues)\n", s.Critical))
	}
	if s.Errors > 0 {
		report.WriteString(color.HiRedString("  Errors:   %d (files skipped)\n", s.Errors))
	}
	if s.Warnings > 0 {
		report.WriteString(color.YellowString("  Warnings: %d (recoverable issues)\n", s.Warnings))
	}

	report.WriteString("\nCategories:\n")
	for cat, count := range s.ByCategory {
		report.WriteString(fmt.Sprintf("  - %s: %d\n", cat, count))
	}

	report.WriteString("\nRecent problems:\n")
	for i, err := range s.LastErrors {
		report.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, err.FilePath))
		report.WriteString(fmt.Sprintf("   Category: %s | Severity: %s\n", err.Category, err.Severity))
		report.WriteString(fmt.Sprintf("   Error: %v\n", err.OriginalErr))
		if err.Suggestion != "" {
			report.WriteString(fmt.Sprintf("   Suggestion: %s\n", err.Suggestion))
		}
	}

	report.WriteString("\n")
	report.WriteString(s.generateSuggestions())

	return report.String()
}

func (s *ErrorStats) generateSuggestions() string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggested next steps:\n")

	if s.ByCategory[ErrorCategoryFilesystem] > 0 {
		suggestions.WriteString("  - Check disk space and permissions under the library root\n")
	}
	if s.ByCategory[ErrorCategoryRepair]+s.ByCategory[ErrorCategorySerialization] > s.Total/2 {
		suggestions.WriteString("  - Many metadata problems - consider the --exiftool flag for date reading\n")
	}
	if s.Consecutive >= 5 {
		suggestions.WriteString("  - Multiple consecutive errors suggest a systemic issue - check system resources\n")
	}
	suggestions.WriteString("  - Check the run journal and log file for the full list\n")

	return suggestions.String()
}
