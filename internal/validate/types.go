// SPDX-License-Identifier: MIT
package validate

import (
	"slices"
	"strings"
)

// LogLevel is a level name accepted by the logger configuration.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogLevels lists the accepted levels from most to least verbose.
var LogLevels = []LogLevel{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = &Error{
	Field:   "log.level",
	Message: "invalid log level (must be one of: " + joinLevels(", ") + ")",
}

func (l LogLevel) IsValid() bool { return slices.Contains(LogLevels, l) }

func (l LogLevel) String() string { return string(l) }

// ParseLogLevel parses s case-insensitively, ignoring surrounding space.
func ParseLogLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.IsValid() {
		return "", ErrInvalidLogLevel
	}
	return level, nil
}

func joinLevels(sep string) string {
	names := make([]string, len(LogLevels))
	for i, l := range LogLevels {
		names[i] = string(l)
	}
	return strings.Join(names, sep)
}
