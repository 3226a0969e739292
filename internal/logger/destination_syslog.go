package logger

import (
	"bytes"
	"time"
)

// syslogOutput writes entries with the priority of their level.
type syslogOutput interface {
	write(level Level, msg string) error
	close() error
}

type destinationSysLog struct {
	structured bool
	syslog     syslogOutput

	buf bytes.Buffer
}

func newDestinationSyslog(structured bool, prefix string) (destination, error) {
	syslog, err := newSyslog(prefix)
	if err != nil {
		return nil, err
	}

	return &destinationSysLog{
		structured: structured,
		syslog:     syslog,
	}, nil
}

func (d *destinationSysLog) log(t time.Time, level Level, format string, args ...any) {
	d.buf.Reset()

	if d.structured {
		writeStructured(&d.buf, t, level, format, args)
	} else {
		writePlain(&d.buf, t, level, false, format, args)
	}

	d.syslog.write(level, d.buf.String()) //nolint:errcheck
}

func (d *destinationSysLog) close() {
	d.syslog.close() //nolint:errcheck
}
