package servicegraph

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stdoutLogger prints one line per message, followed by its key-value pairs.
type stdoutLogger struct{}

func (stdoutLogger) Info(msg string, keysAndValues ...interface{}) {
	fmt.Println(formatLine("INFO", msg, keysAndValues))
}

func (stdoutLogger) Error(err error, msg string,
	keysAndValues ...interface{}) {
	fmt.Println(formatLine("ERROR", msg,
		append(keysAndValues, "error", err)))
}

func formatLine(level, msg string, keysAndValues []interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %s", level, msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v", keysAndValues[i])
		}
	}
	return b.String()
}

func TestFormatLine(t *testing.T) {
	assert.Equal(t, "INFO  starting service=db",
		formatLine("INFO", "starting", []interface{}{"service", "db"}))
	assert.Equal(t, "ERROR failed odd", formatLine("ERROR", "failed",
		[]interface{}{"odd"}))
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := SlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	l.Info("service started", "service", "db")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), `msg="service started" service=db`)

	buf.Reset()
	l.Error(errors.New("oops"), "listener failed", "listener", 0)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "listener=0 error=oops")
}

func TestSlogLoggerDefault(t *testing.T) {
	l, ok := SlogLogger(nil).(slogLogger)
	assert.True(t, ok)
	assert.Same(t, slog.Default(), l.l)
}
