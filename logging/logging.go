// logging/logging.go
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init builds the process-wide zap logger.
//
// level is any zap level name ("debug", "info", ...) and falls back to info.
// format "console" selects the development encoder with capitalised levels;
// anything else produces JSON. The terminal UI owns stdout, so output goes to
// outputPath when it is set and to stderr otherwise.
func Init(level, format, outputPath string) (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapConfig.Encoding = "console"
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
	}
	zapConfig.Level = logLevel
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	if outputPath != "" {
		if dir := filepath.Dir(outputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		zapConfig.OutputPaths = []string{outputPath}
	}

	l, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return l, nil
}

// current returns the process-wide logger; a no-op logger until Init succeeds.
func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes buffered log entries. Call it before the program exits.
func Sync() {
	_ = current().Sync()
}
