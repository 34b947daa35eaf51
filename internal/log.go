package internal

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes human-readable lines to stderr and JSON lines to a log file.
type Logger struct {
	*zap.Logger
	f *os.File
}

// NewLogger opens path for the JSON log (truncating it) at the given level.
// The console only receives entries at consoleLevel or above, so a
// progress bar on the same terminal stays readable. An empty path disables
// the file log.
func NewLogger(path, level string, consoleLevel zapcore.Level) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", ErrConfig, level)
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEnc.TimeKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stderr),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= lvl && l >= consoleLevel })),
	}

	var f *os.File
	if path != "" {
		f, err = os.Create(path)
		if err != nil {
			return nil, err
		}
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.Lock(f), lvl))
	}

	return &Logger{Logger: zap.New(zapcore.NewTee(cores...)), f: f}, nil
}

func (l *Logger) Close() error {
	_ = l.Sync()
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}
