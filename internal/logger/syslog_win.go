//go:build windows
// +build windows

package logger

import (
	"fmt"
)

func newSyslog(_ string) (syslogOutput, error) {
	return nil, fmt.Errorf("not implemented on windows")
}
