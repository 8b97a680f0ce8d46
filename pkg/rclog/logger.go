// Package rclog provides the structured logging facility shared by every
// rai!connect component: a zap logger fanned out to stderr and to a bounded
// ring buffer the desktop shell can page through via get_logs.
package rclog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultRingCapacity = 500

var (
	mu     sync.RWMutex
	logger *zap.Logger
	ring   *RingCore
)

func init() {
	ring = NewRingCore(defaultRingCapacity, zapcore.DebugLevel)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)

	core := zapcore.NewTee(consoleCore, ring)
	logger = zap.New(core)
}

// L returns the shared logger. Callers typically narrow it further with
// Named for a component-scoped target field.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Named returns a child logger whose target (LoggerName) identifies the
// calling component in buffered/console output.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// SetDebug toggles whether debug-level records reach the console sink; the
// ring buffer always retains everything up to its capacity regardless, so
// get_logs can surface debug detail even when the console is quiet.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()

	level := zapcore.InfoLevel
	if enabled {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	logger = zap.New(zapcore.NewTee(consoleCore, ring))
}

// RecentLogs returns up to count buffered entries (0 means all), oldest
// first within the returned slice, per the get_logs command surface.
func RecentLogs(count int) []Entry {
	return ring.Recent(count)
}

// ClearLogs empties the ring buffer, per the clear_logs command surface.
func ClearLogs() {
	ring.Clear()
}
