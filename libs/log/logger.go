package log

import (
	"fmt"
)

const (
	// LogFormatPlain defines a logging format used for human-readable output.
	LogFormatPlain = "plain"
	// LogFormatText defines a logging format used for human-readable output.
	LogFormatText = "text"
	// LogFormatJSON defines a logging format for structured JSON output.
	LogFormatJSON = "json"

	// Supported log levels.
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Logger defines a generic logging interface compatible with the bridge.
type Logger interface {
	Debug(msg string, keyVals ...interface{})
	Info(msg string, keyVals ...interface{})
	Error(msg string, keyVals ...interface{})

	With(keyVals ...interface{}) Logger
}

// Hexadecimal is intended to convert a []byte type to a value that is
// hexadecimal (uppercase).
type Hexadecimal struct {
	b []byte
}

func Hex(b []byte) Hexadecimal { return Hexadecimal{b: b} }

// String fulfills the Stringer interface within the fmt package.
func (s Hexadecimal) String() string {
	return fmt.Sprintf("%X", s.b)
}
