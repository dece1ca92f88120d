package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/xhd2015/psdebug-mcp/log"
)

// fileLogger writes "<time> <LEVEL> <msg>" lines at or above min.
type fileLogger struct {
	mu  sync.Mutex
	w   io.Writer
	min log.Level
	now func() time.Time
}

var _ log.Logger = (*fileLogger)(nil)

func newFileLogger(w io.Writer, min log.Level) *fileLogger {
	return &fileLogger{w: w, min: min, now: time.Now}
}

func (l *fileLogger) Debugf(format string, args ...interface{}) { l.logf(log.LevelDebug, format, args) }
func (l *fileLogger) Infof(format string, args ...interface{})  { l.logf(log.LevelInfo, format, args) }
func (l *fileLogger) Warnf(format string, args ...interface{})  { l.logf(log.LevelWarn, format, args) }
func (l *fileLogger) Errorf(format string, args ...interface{}) { l.logf(log.LevelError, format, args) }

func (l *fileLogger) Debug(args ...interface{}) { l.log(log.LevelDebug, args) }
func (l *fileLogger) Info(args ...interface{})  { l.log(log.LevelInfo, args) }
func (l *fileLogger) Warn(args ...interface{})  { l.log(log.LevelWarn, args) }
func (l *fileLogger) Error(args ...interface{}) { l.log(log.LevelError, args) }

func (l *fileLogger) logf(level log.Level, format string, args []interface{}) {
	if level < l.min {
		return
	}
	l.write(level, fmt.Sprintf(format, args...))
}

func (l *fileLogger) log(level log.Level, args []interface{}) {
	if level < l.min {
		return
	}
	l.write(level, fmt.Sprint(args...))
}

func (l *fileLogger) write(level log.Level, msg string) {
	line := fmt.Sprintf("%s %s %s\n", l.now().Format("2006-01-02 15:04:05"), level, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	// a failed log write has nowhere to be reported
	_, _ = io.WriteString(l.w, line)
}
