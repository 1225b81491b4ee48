package log

import (
	"testing"

	"github.com/rs/zerolog"
)

// NewTestingLogger converts a testing.T into a logging interface to make test
// failures and verbose provide better feedback associated with test
// failures. This logging instance is safe for use from multiple threads, but
// in general you should create one of these loggers ONCE for each *testing.T
// instance that you interact with.
//
// By default it collects only ERROR messages, or DEBUG messages in verbose
// mode, and relies on the testing framework to omit messages for successful
// tests.
func NewTestingLogger(t *testing.T) Logger {
	level := LogLevelError
	if testing.Verbose() {
		level = LogLevelDebug
	}

	return NewTestingLoggerWithLevel(t, level)
}

// NewTestingLoggerWithLevel creates a testing logger instance at a specific
// level that wraps the behavior of testing.T.Log().
func NewTestingLoggerWithLevel(t *testing.T, level string) Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		t.Fatalf("failed to parse log level (%s): %v", level, err)
	}

	return defaultLogger{
		Logger: zerolog.New(newTestingWriter(t)).Level(logLevel),
	}
}

type testingWriter struct {
	t *testing.T
}

func newTestingWriter(t *testing.T) testingWriter {
	return testingWriter{t: t}
}

func (tw testingWriter) Write(in []byte) (int, error) {
	tw.t.Log(string(in))
	return len(in), nil
}
