// Package severity defines the ordered memory severity levels and the pure
// classifier that maps a footprint and limit onto them.
package severity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is an ordered severity. Higher values are more dangerous, so levels
// may be compared with < and >.
type Level uint8

const (
	Normal Level = iota
	Warning
	Urgent
	Critical
	Terminal
)

var levelNames = map[Level]string{
	Normal:   "normal",
	Warning:  "warning",
	Urgent:   "urgent",
	Critical: "critical",
	Terminal: "terminal",
}

var levelFromName = map[string]Level{
	"normal":   Normal,
	"warning":  Warning,
	"urgent":   Urgent,
	"critical": Critical,
	"terminal": Terminal,
}

// Levels lists every level in ascending order.
func Levels() []Level {
	return []Level{Normal, Warning, Urgent, Critical, Terminal}
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "unknown"
}

// Valid reports whether l is one of the five defined levels.
func (l Level) Valid() bool {
	return l <= Terminal
}

// ParseLevel resolves a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	if l, ok := levelFromName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return Normal, fmt.Errorf("unknown severity level %q", s)
}

// AsPressure clamps l into the coarse pressure subset {Normal, Warning, Critical}.
func (l Level) AsPressure() Level {
	switch {
	case l == Normal:
		return Normal
	case l <= Urgent:
		return Warning
	default:
		return Critical
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}
