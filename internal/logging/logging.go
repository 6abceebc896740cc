// Package logging provides the process-wide zap logger and a thin
// per-package accessor, grounded on the dazl-over-zap pattern
// (internal/config/Config.go's "var log = dazl.GetPackageLogger()") but
// talking to zap directly.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu       sync.RWMutex
	base     *zap.Logger
	sinkFile *os.File
)

func init() {
	base, _, _ = build(false, "")
}

// Configure rebuilds the process logger. verbose lowers the level to
// debug; filePath, if non-empty, tees logs to a file in addition to
// stderr (spec.md §6's --no-file-logging flag toggles this off).
func Configure(verbose bool, filePath string) error {
	mu.Lock()
	defer mu.Unlock()
	if sinkFile != nil {
		_ = sinkFile.Close()
		sinkFile = nil
	}
	l, f, err := build(verbose, filePath)
	if err != nil {
		return err
	}
	base = l
	sinkFile = f
	return nil
}

func build(verbose bool, filePath string) (*zap.Logger, *os.File, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}

	var f *os.File
	if filePath != "" {
		var err error
		f, err = os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		jsonEncoder := zapcore.NewJSONEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(f), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, f, nil
}

// Get returns a named child logger, the package's analog of
// dazl.GetPackageLogger().
func Get(name string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(name).Sugar()
}
