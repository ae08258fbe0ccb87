// Package logging is a small leveled front end over the standard logger.
// The level comes from HEADROOM_LOG_LEVEL (or LOG_LEVEL) and DEBUG.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level is a log verbosity threshold.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	current  atomic.Int32
	initOnce sync.Once
)

func levelFromEnv() Level {
	if v := strings.ToLower(os.Getenv("DEBUG")); v == "1" || v == "true" || v == "yes" || v == "on" {
		return LevelDebug
	}
	name := os.Getenv("HEADROOM_LOG_LEVEL")
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if l, ok := ParseLevel(name); ok {
		return l
	}
	return LevelInfo
}

// ParseLevel maps a level name onto a Level.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

func ensureInit() {
	initOnce.Do(func() {
		current.Store(int32(levelFromEnv()))
	})
}

// GetLevel returns the active threshold.
func GetLevel() Level {
	ensureInit()
	return Level(current.Load())
}

// SetLevel overrides the threshold taken from the environment.
func SetLevel(l Level) {
	ensureInit()
	current.Store(int32(l))
}

func enabled(l Level) bool { return GetLevel() <= l }

func Debug(format string, args ...any) {
	if enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, args...)
	}
}

func Info(format string, args ...any) {
	if enabled(LevelInfo) {
		log.Printf("[INFO] "+format, args...)
	}
}

func Warn(format string, args ...any) {
	if enabled(LevelWarn) {
		log.Printf("[WARN] "+format, args...)
	}
}

func Error(format string, args ...any) {
	if enabled(LevelError) {
		log.Printf("[ERROR] "+format, args...)
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int32(l))
	}
}
