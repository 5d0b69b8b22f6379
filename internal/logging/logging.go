// Package logging holds the process-wide sugared zap logger. A default
// logger is installed at import time so early code paths can log; Init
// replaces it once the configuration is loaded.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
)

// Init builds the global sugared logger from the [logging] config section.
// LOG_LEVEL overrides the level when set. Safe to call multiple times; each
// call replaces the previous logger.
func Init(level, format string) *zap.SugaredLogger {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); v != "" {
		level = v
	}
	var cfg zap.Config
	if strings.ToLower(format) == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if lvl, err := zapcore.ParseLevel(strings.ToLower(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	// Redirect standard library logs into zap so all logs are unified.
	_ = zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	mu.Lock()
	sugar = logger.Sugar()
	s := sugar
	mu.Unlock()
	return s
}

// Sugar returns the current global sugared logger.
func Sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Sugar().Sync()
}

func Debugw(msg string, kv ...interface{}) { Sugar().Debugw(msg, kv...) }
func Infow(msg string, kv ...interface{})  { Sugar().Infow(msg, kv...) }
func Warnw(msg string, kv ...interface{})  { Sugar().Warnw(msg, kv...) }
func Errorw(msg string, kv ...interface{}) { Sugar().Errorw(msg, kv...) }

func init() {
	Init("info", "json")
}
