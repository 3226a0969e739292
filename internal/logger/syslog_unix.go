//go:build !windows
// +build !windows

package logger

import (
	native "log/syslog"
)

type syslogWriter struct {
	inner *native.Writer
}

func newSyslog(prefix string) (syslogOutput, error) {
	inner, err := native.New(native.LOG_INFO|native.LOG_DAEMON, prefix)
	if err != nil {
		return nil, err
	}

	return &syslogWriter{inner: inner}, nil
}

func (w *syslogWriter) write(level Level, msg string) error {
	switch level {
	case Debug:
		return w.inner.Debug(msg)
	case Warn:
		return w.inner.Warning(msg)
	case Error:
		return w.inner.Err(msg)
	}
	return w.inner.Info(msg)
}

func (w *syslogWriter) close() error {
	return w.inner.Close()
}
