// Package debug provides conditional debug logging for arbor.
//
// Debug logging is enabled by setting the ARBOR_DEBUG environment variable:
//
//	ARBOR_DEBUG=1 arbor tree.json
//
// When enabled, messages go to stderr (or to the file named by
// ARBOR_DEBUG_FILE, which keeps them out of the TUI's alternate screen).
// When disabled (default), all functions are no-ops.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const prefix = "[ARBOR_DEBUG] "

var (
	mu      sync.RWMutex
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("ARBOR_DEBUG") == "" {
		return
	}
	var out io.Writer = os.Stderr
	if path := os.Getenv("ARBOR_DEBUG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = f
		}
	}
	enabled = true
	logger = log.New(out, prefix, log.Ltime|log.Lmicroseconds)
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, prefix, 0)
}

func active() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return nil
	}
	return logger
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if l := active(); l != nil {
		l.Printf(format, args...)
	}
}

// LogTiming writes a timing message.
func LogTiming(name string, d time.Duration) {
	if l := active(); l != nil {
		l.Printf("%s took %v", name, d)
	}
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogEnterExit logs function entry and exit with timing:
//
//	defer debug.LogEnterExit("load")()
func LogEnterExit(name string) func() {
	l := active()
	if l == nil {
		return func() {}
	}
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Dump logs a value with its type.
func Dump(name string, v any) {
	if l := active(); l != nil {
		l.Printf("%s: %T = %+v", name, v, v)
	}
}

// Assert panics if the condition is false. Only active when debug is enabled.
func Assert(cond bool, msg string) {
	l := active()
	if l == nil || cond {
		return
	}
	l.Printf("ASSERTION FAILED: %s", msg)
	panic(fmt.Sprintf("debug assertion failed: %s", msg))
}
