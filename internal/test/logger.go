// Package test contains test utilities.
package test

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bluenviron/avplay/internal/logger"
)

type nilLogger struct{}

func (nilLogger) Log(_ logger.Level, _ string, _ ...any) {
}

// NilLogger discards all entries.
var NilLogger logger.Writer = &nilLogger{}

type funcLogger func(logger.Level, string, ...any)

func (f funcLogger) Log(level logger.Level, format string, args ...any) {
	f(level, format, args...)
}

// Logger returns a logger that calls cb for each entry.
func Logger(cb func(logger.Level, string, ...any)) logger.Writer {
	return funcLogger(cb)
}

// LogRecorder is a logger that stores formatted entries.
type LogRecorder struct {
	mutex   sync.Mutex
	entries []string
}

// Log implements logger.Writer.
func (r *LogRecorder) Log(_ logger.Level, format string, args ...any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, fmt.Sprintf(format, args...))
}

// Contains returns true if an entry containing s was logged.
func (r *LogRecorder) Contains(s string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, e := range r.entries {
		if strings.Contains(e, s) {
			return true
		}
	}
	return false
}
