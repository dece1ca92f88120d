// Package log defines the logging interface shared by the bridge components.
package log

import (
	"fmt"
	"strings"
)

// Logger is the leveled logger consumed by the session, breakpoint and tool layers.
type Logger interface {
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Info(args ...interface{})
	Debug(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

type discard struct{}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return discard{}
}

func (discard) Infof(format string, args ...interface{})  {}
func (discard) Debugf(format string, args ...interface{}) {}
func (discard) Warnf(format string, args ...interface{})  {}
func (discard) Errorf(format string, args ...interface{}) {}
func (discard) Info(args ...interface{})                  {}
func (discard) Debug(args ...interface{})                 {}
func (discard) Warn(args ...interface{})                  {}
func (discard) Error(args ...interface{})                 {}

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}
