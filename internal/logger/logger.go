// Package logger contains a logger implementation.
package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gookit/color"
)

// Logger is a log handler.
type Logger struct {
	Level        Level
	Destinations []Destination
	Structured   bool
	File         string
	SysLogPrefix string

	timeNow      func() time.Time
	stdout       io.Writer
	destinations []destination
	mutex        sync.Mutex
}

// Initialize initializes Logger.
func (lh *Logger) Initialize() error {
	if lh.Level == 0 {
		lh.Level = Info
	}
	if lh.timeNow == nil {
		lh.timeNow = time.Now
	}
	if lh.stdout == nil {
		lh.stdout = os.Stdout
	}
	if lh.SysLogPrefix == "" {
		lh.SysLogPrefix = "avplay"
	}

	for _, destType := range lh.Destinations {
		switch destType {
		case DestinationStdout:
			lh.destinations = append(lh.destinations, newDestionationStdout(lh.Structured, lh.stdout))

		case DestinationFile:
			dest, err := newDestinationFile(lh.Structured, lh.File)
			if err != nil {
				lh.Close()
				return err
			}
			lh.destinations = append(lh.destinations, dest)

		case DestinationSyslog:
			dest, err := newDestinationSyslog(lh.Structured, lh.SysLogPrefix)
			if err != nil {
				lh.Close()
				return err
			}
			lh.destinations = append(lh.destinations, dest)
		}
	}

	return nil
}

// Close closes a log handler.
func (lh *Logger) Close() {
	for _, dest := range lh.destinations {
		dest.close()
	}
	lh.destinations = nil
}

// https://golang.org/src/log/log.go#L78
func itoa(i int, wid int) []byte {
	// Assemble decimal in reverse order.
	var b [20]byte
	bp := len(b) - 1
	for i >= 10 || wid > 1 {
		wid--
		q := i / 10
		b[bp] = byte('0' + i - q*10)
		bp--
		i = q
	}
	// i < 10
	b[bp] = byte('0' + i)
	return b[bp:]
}

func writeTime(buf *bytes.Buffer, t time.Time, useColor bool) {
	var intbuf bytes.Buffer

	// date
	year, month, day := t.Date()
	intbuf.Write(itoa(year, 4))
	intbuf.WriteByte('/')
	intbuf.Write(itoa(int(month), 2))
	intbuf.WriteByte('/')
	intbuf.Write(itoa(day, 2))
	intbuf.WriteByte(' ')

	// time
	hour, minute, sec := t.Clock()
	intbuf.Write(itoa(hour, 2))
	intbuf.WriteByte(':')
	intbuf.Write(itoa(minute, 2))
	intbuf.WriteByte(':')
	intbuf.Write(itoa(sec, 2))
	intbuf.WriteByte(' ')

	if useColor {
		buf.WriteString(color.RenderString(color.Gray.Code(), intbuf.String()))
	} else {
		buf.WriteString(intbuf.String())
	}
}

func writeLevel(buf *bytes.Buffer, level Level, useColor bool) {
	s := level.code()

	if useColor {
		switch level {
		case Debug:
			s = color.RenderString(color.Debug.Code(), s)
		case Info:
			s = color.RenderString(color.Green.Code(), s)
		case Warn:
			s = color.RenderString(color.Warn.Code(), s)
		case Error:
			s = color.RenderString(color.Error.Code(), s)
		}
	}

	buf.WriteString(s)
	buf.WriteByte(' ')
}

func writePlain(buf *bytes.Buffer, t time.Time, level Level, useColor bool, format string, args []any) {
	writeTime(buf, t, useColor)
	writeLevel(buf, level, useColor)
	fmt.Fprintf(buf, format, args...)
	buf.WriteByte('\n')
}

func writeStructured(buf *bytes.Buffer, t time.Time, level Level, format string, args []any) {
	buf.WriteString(`{"timestamp":`)
	ts, _ := json.Marshal(t.Format(time.RFC3339Nano))
	buf.Write(ts)
	buf.WriteString(`,"level":"`)
	buf.WriteString(level.code())
	buf.WriteString(`","message":`)
	msg, _ := json.Marshal(fmt.Sprintf(format, args...))
	buf.Write(msg)
	buf.WriteString("}\n")
}

// Log writes a log entry.
func (lh *Logger) Log(level Level, format string, args ...any) {
	if level < lh.Level {
		return
	}

	lh.mutex.Lock()
	defer lh.mutex.Unlock()

	t := lh.timeNow()

	for _, dest := range lh.destinations {
		dest.log(t, level, format, args...)
	}
}
