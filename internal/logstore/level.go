package logstore

import (
	"fmt"
	"strings"
)

// Level is the severity of a log entry. Levels are ordered:
// Debug < Info < Warn < Error.
type Level uint8

const (
	Debug Level = iota
	Info
	Warn
	Error

	levelCount = 4
)

var levelNames = [levelCount]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

// Short console tags, one per level.
var levelTags = [levelCount]string{
	Debug: "[D]",
	Info:  "[I]",
	Warn:  "[W]",
	Error: "[E]",
}

// String returns the upper-case level name, or "UNKNOWN" for an
// out-of-range value.
func (l Level) String() string {
	if !l.valid() {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Tag returns the compact console tag for the level (e.g. "[W]").
func (l Level) Tag() string {
	if !l.valid() {
		return "[?]"
	}
	return levelTags[l]
}

// MarshalJSON renders the level as its quoted name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

func (l Level) valid() bool {
	return l < levelCount
}

// ParseLevel converts a level name to a Level, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return Debug, fmt.Errorf("unknown log level %q", s)
}
