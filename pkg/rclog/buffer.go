package rclog

import (
	"sync"

	"go.uber.org/zap/zapcore"
)

// Entry is one buffered log record, shaped for the get_logs command surface.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Target    string `json:"target"`
	Message   string `json:"message"`
}

// RingCore is a zapcore.Core that keeps the most recent entries in memory,
// evicting the oldest once capacity is reached.
type RingCore struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	level    zapcore.LevelEnabler
}

// NewRingCore creates a RingCore bounded to capacity entries.
func NewRingCore(capacity int, level zapcore.LevelEnabler) *RingCore {
	if capacity <= 0 {
		capacity = 500
	}
	return &RingCore{capacity: capacity, level: level}
}

func (c *RingCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl)
}

func (c *RingCore) With(fields []zapcore.Field) zapcore.Core {
	return c
}

func (c *RingCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *RingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := entry.LoggerName
	if target == "" {
		target = "raiconnect"
	}

	c.entries = append(c.entries, Entry{
		Timestamp: entry.Time.Format("15:04:05.000"),
		Level:     entry.Level.CapitalString(),
		Target:    target,
		Message:   entry.Message,
	})
	if len(c.entries) > c.capacity {
		c.entries = c.entries[len(c.entries)-c.capacity:]
	}
	return nil
}

func (c *RingCore) Sync() error { return nil }

// Recent returns up to count of the most recently written entries, newest
// last. count <= 0 means "all buffered entries".
func (c *RingCore) Recent(count int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if count <= 0 || count > len(c.entries) {
		count = len(c.entries)
	}
	out := make([]Entry, count)
	copy(out, c.entries[len(c.entries)-count:])
	return out
}

// Clear drops all buffered entries.
func (c *RingCore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

var _ zapcore.Core = (*RingCore)(nil)
