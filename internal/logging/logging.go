// Package logging provides the leveled stderr logger used across the
// runtime: a direct fmt.Fprintf(os.Stderr, ...) wrapper rather than a
// third-party logging library, since a CLI tool of this shape has no need
// for structured sinks, rotation, or sampling.
package logging

import (
	"fmt"
	"os"
	"time"
)

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
		return "?"
	}
}

// MinLevel suppresses log lines below it. Defaults to Info.
var MinLevel = LevelInfo

func log(level Level, format string, args ...interface{}) {
	if level < MinLevel {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n", ts, level, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) { log(LevelDebug, format, args...) }
func Infof(format string, args ...interface{})  { log(LevelInfo, format, args...) }
func Warnf(format string, args ...interface{})  { log(LevelWarn, format, args...) }
func Errorf(format string, args ...interface{}) { log(LevelError, format, args...) }
